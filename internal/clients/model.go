// Package clients manages consultation records: public intake, partner
// registration, admin triage and the partner pipeline.
package clients

import "time"

// Triage statuses used by the admin.
const (
	TriageNew       = "new"
	TriageContacted = "contacted"
	TriageCompleted = "completed"
	TriageCancelled = "cancelled"
)

// SourcePartner marks consultations registered by a partner.
const SourcePartner = "partner"

// Client is a consultation record.
type Client struct {
	ID                int64      `db:"id" json:"id"`
	Name              string     `db:"name" json:"name"`
	Phone             string     `db:"phone" json:"phone"`
	BusinessType      *string    `db:"business_type" json:"business_type,omitempty"`
	Revenue           *string    `db:"revenue" json:"revenue,omitempty"`
	Region            *string    `db:"region" json:"region,omitempty"`
	Product           *string    `db:"product" json:"product,omitempty"`
	Message           *string    `db:"message" json:"message,omitempty"`
	SourcePage        *string    `db:"source_page" json:"source_page,omitempty"`
	Status            *string    `db:"status" json:"status,omitempty"`
	PipelineStatus    *string    `db:"pipeline_status" json:"pipeline_status,omitempty"`
	PartnerID         *int64     `db:"partner_id" json:"partner_id,omitempty"`
	TransactionAmount *int64     `db:"transaction_amount" json:"transaction_amount,omitempty"`
	AdminMemo         *string    `db:"admin_memo" json:"admin_memo,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	StatusChangedAt   *time.Time `db:"status_changed_at" json:"status_changed_at,omitempty"`
	InstalledAt       *time.Time `db:"installed_at" json:"installed_at,omitempty"`
	UpdatedAt         *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Triage returns the triage status, defaulting to new.
func (c Client) Triage() string {
	if s := str(c.Status); s != "" {
		return s
	}
	return TriageNew
}

// Pipeline returns the pipeline status or an empty string when the client
// is not on a partner pipeline.
func (c Client) Pipeline() string { return str(c.PipelineStatus) }

// Business returns the business type code.
func (c Client) Business() string { return str(c.BusinessType) }

// RevenueCode returns the revenue bracket code.
func (c Client) RevenueCode() string { return str(c.Revenue) }

// RegionCode returns the region code.
func (c Client) RegionCode() string { return str(c.Region) }

// ProductCode returns the product interest code.
func (c Client) ProductCode() string { return str(c.Product) }

// Note returns the free-text message.
func (c Client) Note() string { return str(c.Message) }

// Memo returns the admin memo.
func (c Client) Memo() string { return str(c.AdminMemo) }

// Amount returns the transaction amount or zero.
func (c Client) Amount() int64 {
	if c.TransactionAmount == nil {
		return 0
	}
	return *c.TransactionAmount
}

// ListFilter narrows client lists. PartnerID scopes the list to one
// partner; Linked restricts to partner-registered clients.
type ListFilter struct {
	Status    string
	Pipeline  string
	Search    string
	PartnerID int64
	Linked    bool
	Limit     int
	Offset    int
}

// IntakeRequest is the public consultation form.
type IntakeRequest struct {
	Name         string `validate:"required,max=50"`
	Phone        string `validate:"required,min=9,max=20"`
	BusinessType string `validate:"required"`
	Revenue      string
	Region       string
	Product      string
	Message      string `validate:"max=2000"`
	SourcePage   string `validate:"max=200"`
	Agree        bool   `validate:"required"`
}

// RegisterRequest is a partner registering a client.
type RegisterRequest struct {
	Name         string `validate:"required,max=50"`
	Phone        string `validate:"required,min=9,max=20"`
	BusinessType string `validate:"required"`
	Revenue      string
	Region       string
	Product      string
	Message      string `validate:"max=2000"`
}

// Stats summarises one partner's clients.
type Stats struct {
	Total           int            `json:"total"`
	ByPipeline      map[string]int `json:"by_pipeline"`
	InstalledAmount int64          `json:"installed_amount"`
}

// Count returns the number of clients at pipeline stage.
func (s Stats) Count(stage string) int { return s.ByPipeline[stage] }
