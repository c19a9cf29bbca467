// Package inquiries merges the four inquiry tables into one admin feed.
package inquiries

import (
	"strings"
	"time"

	"github.com/referral-desk/referral-desk/internal/labels"
)

// Origin tags the table an inquiry came from.
type Origin string

const (
	OriginConsultation   Origin = "consultation"
	OriginMarketing      Origin = "marketing"
	OriginPartnerInquiry Origin = "partner_inquiry"
	OriginPromo          Origin = "promo"
)

// Origins lists every origin in fetch order.
var Origins = []Origin{OriginConsultation, OriginMarketing, OriginPartnerInquiry, OriginPromo}

// ParseOrigin validates an origin taken from a URL.
func ParseOrigin(s string) (Origin, bool) {
	for _, o := range Origins {
		if string(o) == s {
			return o, true
		}
	}
	return "", false
}

// Source is the normalized five-way classification of an inquiry.
type Source string

const (
	SourcePartner          Source = "partner"
	SourcePromo            Source = "promo"
	SourceMarketingMedical Source = "marketing-medical"
	SourceMarketingBiz     Source = "marketing-biz"
	SourceConsultation     Source = "consultation"
)

// Sources lists every source in filter order.
var Sources = []Source{SourcePartner, SourcePromo, SourceMarketingMedical, SourceMarketingBiz, SourceConsultation}

// DefaultStatus stands in for rows that carry no status yet.
const DefaultStatus = "new"

// Record is one row of any origin table. Normalize projects it onto the
// uniform display row.
type Record interface {
	Normalize() Row
}

// Row is the uniform projection shown in the feed and the CSV export.
type Row struct {
	Origin   Origin    `json:"origin"`
	ID       int64     `json:"id"`
	Date     time.Time `json:"date"`
	Source   Source    `json:"source"`
	Name     string    `json:"name"`
	Phone    string    `json:"phone"`
	Business string    `json:"business"`
	Status   string    `json:"status"`
	Note     string    `json:"note"`

	// Set only for consultations linked to a partner.
	PartnerID      *int64 `json:"partner_id,omitempty"`
	PipelineStatus string `json:"pipeline_status,omitempty"`
}

// Consultation is a primary intake record.
type Consultation struct {
	ID             int64     `db:"id"`
	Name           string    `db:"name"`
	Phone          string    `db:"phone"`
	BusinessType   *string   `db:"business_type"`
	Message        *string   `db:"message"`
	SourcePage     *string   `db:"source_page"`
	Status         *string   `db:"status"`
	PipelineStatus *string   `db:"pipeline_status"`
	PartnerID      *int64    `db:"partner_id"`
	CreatedAt      time.Time `db:"created_at"`
}

// Normalize implements Record.
func (c Consultation) Normalize() Row {
	return Row{
		Origin:         OriginConsultation,
		ID:             c.ID,
		Date:           c.CreatedAt,
		Source:         Classify(OriginConsultation, deref(c.SourcePage)),
		Name:           c.Name,
		Phone:          c.Phone,
		Business:       labels.BusinessType(deref(c.BusinessType)),
		Status:         status(c.Status),
		Note:           deref(c.Message),
		PartnerID:      c.PartnerID,
		PipelineStatus: deref(c.PipelineStatus),
	}
}

// MarketingInquiry arrives from the marketing landing pages.
type MarketingInquiry struct {
	ID         int64     `db:"id"`
	Name       string    `db:"name"`
	Phone      string    `db:"phone"`
	Occupation *string   `db:"occupation"`
	SourcePage *string   `db:"source_page"`
	Message    *string   `db:"message"`
	Status     *string   `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
}

// Normalize implements Record.
func (m MarketingInquiry) Normalize() Row {
	return Row{
		Origin:   OriginMarketing,
		ID:       m.ID,
		Date:     m.CreatedAt,
		Source:   Classify(OriginMarketing, deref(m.SourcePage)),
		Name:     m.Name,
		Phone:    m.Phone,
		Business: orPlaceholder(deref(m.Occupation)),
		Status:   status(m.Status),
		Note:     deref(m.Message),
	}
}

// PartnerInquiry is a prospective partner asking to join.
type PartnerInquiry struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Phone     string    `db:"phone"`
	Company   *string   `db:"company"`
	Message   *string   `db:"message"`
	Status    *string   `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}

// Normalize implements Record.
func (p PartnerInquiry) Normalize() Row {
	return Row{
		Origin:   OriginPartnerInquiry,
		ID:       p.ID,
		Date:     p.CreatedAt,
		Source:   Classify(OriginPartnerInquiry, ""),
		Name:     p.Name,
		Phone:    p.Phone,
		Business: orPlaceholder(deref(p.Company)),
		Status:   status(p.Status),
		Note:     deref(p.Message),
	}
}

// PromoInquiry is a sign-up through a promotion code.
type PromoInquiry struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Phone        string    `db:"phone"`
	BusinessName *string   `db:"business_name"`
	PromoCode    *string   `db:"promo_code"`
	Message      *string   `db:"message"`
	Status       *string   `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
}

// Normalize implements Record.
func (p PromoInquiry) Normalize() Row {
	note := deref(p.Message)
	if code := deref(p.PromoCode); code != "" {
		if note == "" {
			note = "[" + code + "]"
		} else {
			note = "[" + code + "] " + note
		}
	}
	return Row{
		Origin:   OriginPromo,
		ID:       p.ID,
		Date:     p.CreatedAt,
		Source:   Classify(OriginPromo, ""),
		Name:     p.Name,
		Phone:    p.Phone,
		Business: orPlaceholder(deref(p.BusinessName)),
		Status:   status(p.Status),
		Note:     note,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func status(s *string) string {
	if v := deref(s); v != "" {
		return v
	}
	return DefaultStatus
}

func orPlaceholder(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
