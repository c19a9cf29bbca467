// Package notices manages announcements shown on the partner dashboard.
package notices

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/shared"
)

// Notice is an announcement.
type Notice struct {
	ID        int64      `db:"id" json:"id"`
	Title     string     `db:"title" json:"title"`
	Body      string     `db:"body" json:"body"`
	IsActive  bool       `db:"is_active" json:"is_active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Input is the admin notice form.
type Input struct {
	Title    string `validate:"required,max=200"`
	Body     string `validate:"required,max=10000"`
	IsActive bool
}

var columns = []string{"id", "title", "body", "is_active", "created_at", "updated_at"}


// Service provides notice CRUD.
type Service struct {
	db       backend.DB
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs the service.
func NewService(db backend.DB) *Service {
	return &Service{db: db, validate: validator.New(), now: time.Now}
}

func byID(id int64) []backend.Filter {
	return []backend.Filter{backend.Eq("id", id)}
}

func notFound(id int64, n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("notice %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// List returns all notices, newest first.
func (s *Service) List(ctx context.Context) ([]Notice, error) {
	return backend.Select[Notice](ctx, s.db, backend.From(backend.TableNotices).Select(columns...).OrderBy("created_at", true))
}

// ListActive returns the notices partners see.
func (s *Service) ListActive(ctx context.Context, limit int) ([]Notice, error) {
	q := backend.From(backend.TableNotices).Select(columns...).
		Where(backend.Eq("is_active", true)).
		OrderBy("created_at", true).
		Page(limit, 0)
	return backend.Select[Notice](ctx, s.db, q)
}

// Get loads one notice.
func (s *Service) Get(ctx context.Context, id int64) (Notice, error) {
	return backend.One[Notice](ctx, s.db, backend.From(backend.TableNotices).Select(columns...).Where(backend.Eq("id", id)))
}

func (s *Service) check(in *Input) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	return shared.ValidateStruct(s.validate, *in)
}

// Create adds a notice.
func (s *Service) Create(ctx context.Context, in Input) (int64, error) {
	if err := s.check(&in); err != nil {
		return 0, err
	}
	return backend.Insert(ctx, s.db, backend.TableNotices, backend.Values{
		"title":     in.Title,
		"body":      in.Body,
		"is_active": in.IsActive,
	})
}

// Update replaces a notice's content.
func (s *Service) Update(ctx context.Context, id int64, in Input) error {
	if err := s.check(&in); err != nil {
		return err
	}
	n, err := backend.Update(ctx, s.db, backend.TableNotices, byID(id), backend.Values{
		"title":      in.Title,
		"body":       in.Body,
		"is_active":  in.IsActive,
		"updated_at": s.now().UTC(),
	})
	return notFound(id, n, err)
}

// ToggleActive flips the active flag and returns the new value.
func (s *Service) ToggleActive(ctx context.Context, id int64) (bool, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	next := !current.IsActive
	n, err := backend.Update(ctx, s.db, backend.TableNotices, byID(id), backend.Values{
		"is_active":  next,
		"updated_at": s.now().UTC(),
	})
	return next, notFound(id, n, err)
}

// Delete removes a notice.
func (s *Service) Delete(ctx context.Context, id int64) error {
	n, err := backend.Delete(ctx, s.db, backend.TableNotices, byID(id))
	return notFound(id, n, err)
}
