// Package notifications reads and acknowledges in-app notifications.
// Creation happens server-side through the create-notification procedure.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/shared"
)

// Notification is one message for a user.
type Notification struct {
	ID        int64     `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Type      string    `db:"type" json:"type"`
	Title     string    `db:"title" json:"title"`
	Message   string    `db:"message" json:"message"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

var columns = []string{"id", "user_id", "type", "title", "message", "is_read", "created_at"}

// Service serves a user's notifications.
type Service struct {
	db backend.DB
}

// NewService constructs the service.
func NewService(db backend.DB) *Service {
	return &Service{db: db}
}

func forUser(userID string) backend.Filter {
	return backend.Eq("user_id", userID)
}

// ListForUser returns the newest notifications first.
func (s *Service) ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	q := backend.From(backend.TableNotifications).Select(columns...).
		Where(forUser(userID)).
		OrderBy("created_at", true).
		Page(limit, 0)
	return backend.Select[Notification](ctx, s.db, q)
}

// UnreadCount counts unread notifications.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return backend.Count(ctx, s.db, backend.From(backend.TableNotifications).Where(forUser(userID), backend.Eq("is_read", false)))
}

// MarkRead marks one of the user's notifications as read.
func (s *Service) MarkRead(ctx context.Context, userID string, id int64) error {
	n, err := backend.Update(ctx, s.db, backend.TableNotifications,
		[]backend.Filter{backend.Eq("id", id), forUser(userID)},
		backend.Values{"is_read": true})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("notification %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// MarkAllRead marks every unread notification of the user as read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return backend.Update(ctx, s.db, backend.TableNotifications,
		[]backend.Filter{forUser(userID), backend.Eq("is_read", false)},
		backend.Values{"is_read": true})
}
