package settlements

import (
	"context"
	"fmt"

	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/shared"
)

// Repository persists settlements.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Settlement, error)
	Get(ctx context.Context, id int64) (Settlement, error)
	Insert(ctx context.Context, values backend.Values) (int64, error)
	Update(ctx context.Context, id int64, patch backend.Values) error
	Delete(ctx context.Context, id int64) (int64, error)
}

var settlementColumns = []string{
	"id", "partner_id", "client_id", "month", "client_name", "transaction_amount",
	"commission_rate", "commission_amount", "status", "created_at", "confirmed_at", "paid_at",
}

type repository struct {
	db backend.DB
}

// NewRepository builds the backend-backed repository.
func NewRepository(db backend.DB) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, f Filter) ([]Settlement, error) {
	q := backend.From(backend.TableSettlements).Select(settlementColumns...).
		OrderBy("month", true).OrderBy("created_at", true)
	if f.Month != "" {
		q = q.Where(backend.Eq("month", f.Month))
	}
	if f.PartnerID > 0 {
		q = q.Where(backend.Eq("partner_id", f.PartnerID))
	}
	if f.Status != "" && f.Status != "all" {
		q = q.Where(backend.Eq("status", f.Status))
	}
	return backend.Select[Settlement](ctx, r.db, q)
}

func (r *repository) Get(ctx context.Context, id int64) (Settlement, error) {
	return backend.One[Settlement](ctx, r.db, backend.From(backend.TableSettlements).Select(settlementColumns...).Where(backend.Eq("id", id)))
}

func (r *repository) Insert(ctx context.Context, values backend.Values) (int64, error) {
	return backend.Insert(ctx, r.db, backend.TableSettlements, values)
}

func (r *repository) Update(ctx context.Context, id int64, patch backend.Values) error {
	n, err := backend.Update(ctx, r.db, backend.TableSettlements, []backend.Filter{backend.Eq("id", id)}, patch)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("settlement %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) (int64, error) {
	return backend.Delete(ctx, r.db, backend.TableSettlements, []backend.Filter{backend.Eq("id", id)})
}
