package partners

import (
	"context"

	"github.com/referral-desk/referral-desk/internal/backend"
)

// Repository persists partners.
type Repository interface {
	List(ctx context.Context, f ListFilter) ([]Partner, error)
	Get(ctx context.Context, id int64) (Partner, error)
	ByUser(ctx context.Context, userID string) (Partner, error)
	// Update applies patch while the partner is still in one of from and
	// reports how many rows changed. An empty from matches any status.
	Update(ctx context.Context, id int64, patch backend.Values, from ...Status) (int64, error)
	CountByStatus(ctx context.Context, statuses ...Status) (int, error)
}

var partnerColumns = []string{
	"id", "name", "phone", "email", "company", "status", "commission_rate",
	"user_id", "rejection_reason", "approved_at", "approved_by", "created_at",
}

type repository struct {
	db backend.DB
}

// NewRepository builds the backend-backed repository.
func NewRepository(db backend.DB) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, f ListFilter) ([]Partner, error) {
	q := backend.From(backend.TablePartners).Select(partnerColumns...).OrderBy("created_at", true)
	if f.Status != "" && f.Status != "all" {
		q = q.Where(backend.Eq("status", f.Status))
	}
	if f.Search != "" {
		pattern := backend.Contains(f.Search)
		q = q.Where(backend.Or(
			backend.ILike("name", pattern),
			backend.ILike("phone", pattern),
			backend.ILike("company", pattern),
		))
	}
	return backend.Select[Partner](ctx, r.db, q)
}

func (r *repository) Get(ctx context.Context, id int64) (Partner, error) {
	return backend.One[Partner](ctx, r.db, backend.From(backend.TablePartners).Select(partnerColumns...).Where(backend.Eq("id", id)))
}

func (r *repository) ByUser(ctx context.Context, userID string) (Partner, error) {
	return backend.One[Partner](ctx, r.db, backend.From(backend.TablePartners).Select(partnerColumns...).Where(backend.Eq("user_id", userID)))
}

func (r *repository) Update(ctx context.Context, id int64, patch backend.Values, from ...Status) (int64, error) {
	filters := []backend.Filter{backend.Eq("id", id)}
	if len(from) > 0 {
		filters = append(filters, backend.In("status", statusCodes(from)...))
	}
	return backend.Update(ctx, r.db, backend.TablePartners, filters, patch)
}

func (r *repository) CountByStatus(ctx context.Context, statuses ...Status) (int, error) {
	return backend.Count(ctx, r.db, backend.From(backend.TablePartners).Where(backend.In("status", statusCodes(statuses)...)))
}

func statusCodes(statuses []Status) []string {
	codes := make([]string, len(statuses))
	for i, s := range statuses {
		codes[i] = string(s)
	}
	return codes
}
