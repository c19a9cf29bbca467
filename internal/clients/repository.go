package clients

import (
	"context"

	"github.com/referral-desk/referral-desk/internal/backend"
)

// Repository persists consultation records.
type Repository interface {
	List(ctx context.Context, f ListFilter) ([]Client, error)
	Count(ctx context.Context, f ListFilter) (int, error)
	Get(ctx context.Context, id int64) (Client, error)
	Insert(ctx context.Context, values backend.Values) (int64, error)
	Update(ctx context.Context, id int64, patch backend.Values) error
	Delete(ctx context.Context, id int64) error
}

var clientColumns = []string{
	"id", "name", "phone", "business_type", "revenue", "region", "product",
	"message", "source_page", "status", "pipeline_status", "partner_id",
	"transaction_amount", "admin_memo", "created_at", "status_changed_at", "installed_at", "updated_at",
}

type repository struct {
	db backend.DB
}

// NewRepository builds the backend-backed repository.
func NewRepository(db backend.DB) Repository {
	return &repository{db: db}
}

func filters(f ListFilter) []backend.Filter {
	var out []backend.Filter
	if f.PartnerID > 0 {
		out = append(out, backend.Eq("partner_id", f.PartnerID))
	} else if f.Linked {
		out = append(out, backend.NotNull("partner_id"))
	}
	if f.Status != "" && f.Status != "all" {
		out = append(out, backend.Eq("status", f.Status))
	}
	if f.Pipeline != "" && f.Pipeline != "all" {
		out = append(out, backend.Eq("pipeline_status", f.Pipeline))
	}
	if f.Search != "" {
		pattern := backend.Contains(f.Search)
		out = append(out, backend.Or(backend.ILike("name", pattern), backend.ILike("phone", pattern)))
	}
	return out
}

func (r *repository) List(ctx context.Context, f ListFilter) ([]Client, error) {
	q := backend.From(backend.TableConsultations).
		Select(clientColumns...).
		Where(filters(f)...).
		OrderBy("created_at", true).
		Page(f.Limit, f.Offset)
	return backend.Select[Client](ctx, r.db, q)
}

func (r *repository) Count(ctx context.Context, f ListFilter) (int, error) {
	return backend.Count(ctx, r.db, backend.From(backend.TableConsultations).Where(filters(f)...))
}

func (r *repository) Get(ctx context.Context, id int64) (Client, error) {
	return backend.One[Client](ctx, r.db, backend.From(backend.TableConsultations).Select(clientColumns...).Where(backend.Eq("id", id)))
}

func (r *repository) Insert(ctx context.Context, values backend.Values) (int64, error) {
	return backend.Insert(ctx, r.db, backend.TableConsultations, values)
}

func (r *repository) Update(ctx context.Context, id int64, patch backend.Values) error {
	n, err := backend.Update(ctx, r.db, backend.TableConsultations, []backend.Filter{backend.Eq("id", id)}, patch)
	if err != nil {
		return err
	}
	if n == 0 {
		return errNotFound(id)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	n, err := backend.Delete(ctx, r.db, backend.TableConsultations, []backend.Filter{backend.Eq("id", id)})
	if err != nil {
		return err
	}
	if n == 0 {
		return errNotFound(id)
	}
	return nil
}
