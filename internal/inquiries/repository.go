package inquiries

import (
	"context"
	"fmt"
	"time"

	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/shared"
)

// Repository reads the four origin tables.
type Repository interface {
	Consultations(ctx context.Context) ([]Consultation, error)
	MarketingInquiries(ctx context.Context) ([]MarketingInquiry, error)
	PartnerInquiries(ctx context.Context) ([]PartnerInquiry, error)
	PromoInquiries(ctx context.Context) ([]PromoInquiry, error)
	Get(ctx context.Context, origin Origin, id int64) (Record, error)
	UpdateStatus(ctx context.Context, origin Origin, id int64, status string, at time.Time) error
}

var tables = map[Origin]string{
	OriginConsultation:   backend.TableConsultations,
	OriginMarketing:      backend.TableMarketingInquiries,
	OriginPartnerInquiry: backend.TablePartnerInquiries,
	OriginPromo:          backend.TablePromoInquiries,
}

var columns = map[Origin][]string{
	OriginConsultation:   {"id", "name", "phone", "business_type", "message", "source_page", "status", "pipeline_status", "partner_id", "created_at"},
	OriginMarketing:      {"id", "name", "phone", "occupation", "source_page", "message", "status", "created_at"},
	OriginPartnerInquiry: {"id", "name", "phone", "company", "message", "status", "created_at"},
	OriginPromo:          {"id", "name", "phone", "business_name", "promo_code", "message", "status", "created_at"},
}

type repository struct {
	db backend.DB
}

// NewRepository reads inquiries through the backend query API.
func NewRepository(db backend.DB) Repository {
	return &repository{db: db}
}

func listQuery(origin Origin) backend.Query {
	return backend.From(tables[origin]).Select(columns[origin]...).OrderBy("created_at", true)
}

func (r *repository) Consultations(ctx context.Context) ([]Consultation, error) {
	return backend.Select[Consultation](ctx, r.db, listQuery(OriginConsultation))
}

func (r *repository) MarketingInquiries(ctx context.Context) ([]MarketingInquiry, error) {
	return backend.Select[MarketingInquiry](ctx, r.db, listQuery(OriginMarketing))
}

func (r *repository) PartnerInquiries(ctx context.Context) ([]PartnerInquiry, error) {
	return backend.Select[PartnerInquiry](ctx, r.db, listQuery(OriginPartnerInquiry))
}

func (r *repository) PromoInquiries(ctx context.Context) ([]PromoInquiry, error) {
	return backend.Select[PromoInquiry](ctx, r.db, listQuery(OriginPromo))
}

func (r *repository) Get(ctx context.Context, origin Origin, id int64) (Record, error) {
	q := backend.From(tables[origin]).Select(columns[origin]...).Where(backend.Eq("id", id))
	switch origin {
	case OriginConsultation:
		return backend.One[Consultation](ctx, r.db, q)
	case OriginMarketing:
		return backend.One[MarketingInquiry](ctx, r.db, q)
	case OriginPartnerInquiry:
		return backend.One[PartnerInquiry](ctx, r.db, q)
	default:
		return backend.One[PromoInquiry](ctx, r.db, q)
	}
}

func (r *repository) UpdateStatus(ctx context.Context, origin Origin, id int64, status string, at time.Time) error {
	patch := backend.Values{"status": status}
	if origin == OriginConsultation {
		patch["status_changed_at"] = at
	}
	n, err := backend.Update(ctx, r.db, tables[origin], []backend.Filter{backend.Eq("id", id)}, patch)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", tables[origin], id, shared.ErrNotFound)
	}
	return nil
}
