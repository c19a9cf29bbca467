package partners

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/platform/cache"
	"github.com/referral-desk/referral-desk/internal/shared"
)

// Notification types emitted on decisions.
const (
	NotificationApproved = "partner_approved"
	NotificationRejected = "partner_rejected"
)

// Notifier creates in-app notifications.
type Notifier interface {
	CreateNotification(ctx context.Context, input backend.NotificationInput) (int64, error)
}

// Mailer queues an e-mail for background delivery.
type Mailer interface {
	SendNotificationEmail(ctx context.Context, to, subject, body string) error
}

// Service applies partner decisions.
type Service struct {
	repo     Repository
	notifier Notifier
	mailer   Mailer
	cache    *cache.Versioned
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the partner service. mailer and listCache may be nil.
func NewService(repo Repository, notifier Notifier, mailer Mailer, listCache *cache.Versioned, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		mailer:   mailer,
		cache:    listCache,
		logger:   logger,
		now:      time.Now,
	}
}

// List returns partners through the versioned cache.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Partner, error) {
	status := f.Status
	if status == "" {
		status = "all"
	}
	key, err := s.cache.Key(ctx, "list", status, strings.ToLower(strings.TrimSpace(f.Search)))
	if err != nil {
		s.logger.Warn("partner cache key", slog.Any("error", err))
		return s.repo.List(ctx, f)
	}
	var partners []Partner
	err = s.cache.FetchJSON(ctx, key, &partners, func(ctx context.Context) (any, error) {
		return s.repo.List(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	return partners, nil
}

// Get loads one partner.
func (s *Service) Get(ctx context.Context, id int64) (Partner, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Partner{}, fmt.Errorf("partner %d: %w", id, err)
	}
	return p, nil
}

// ByUser loads the partner linked to a login identity.
func (s *Service) ByUser(ctx context.Context, userID string) (Partner, error) {
	p, err := s.repo.ByUser(ctx, userID)
	if err != nil {
		return Partner{}, fmt.Errorf("partner for user: %w", err)
	}
	return p, nil
}

// AwaitingCount counts partners still waiting for a decision.
func (s *Service) AwaitingCount(ctx context.Context) (int, error) {
	return s.repo.CountByStatus(ctx, StatusNew, StatusPending, StatusReviewing)
}

// Approve moves an undecided partner to approved and records who did it.
func (s *Service) Approve(ctx context.Context, id int64, approverID string) (Partner, error) {
	p, err := s.loadUndecided(ctx, id)
	if err != nil {
		return Partner{}, err
	}
	now := s.now().UTC()
	patch := backend.Values{
		"status":      string(StatusApproved),
		"approved_at": now,
		"approved_by": approverID,
	}
	if err := s.decide(ctx, id, patch, undecided...); err != nil {
		return Partner{}, fmt.Errorf("approve partner: %w", err)
	}
	p.Status = StatusApproved
	p.ApprovedAt = &now
	p.ApprovedBy = &approverID

	s.announce(ctx, p, NotificationApproved, "파트너 승인 완료",
		"파트너 가입이 승인되었습니다. 지금 바로 대시보드를 이용하실 수 있습니다.")
	s.invalidate(ctx)
	return p, nil
}

// Reject moves an undecided partner to rejected. The reason is mandatory
// and is checked before anything is loaded.
func (s *Service) Reject(ctx context.Context, id int64, approverID, reason string) (Partner, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Partner{}, shared.NewValidationError("reason", "반려 사유를 입력해 주세요.")
	}
	p, err := s.loadUndecided(ctx, id)
	if err != nil {
		return Partner{}, err
	}
	now := s.now().UTC()
	patch := backend.Values{
		"status":           string(StatusRejected),
		"rejection_reason": reason,
		"approved_at":      now,
		"approved_by":      approverID,
	}
	if err := s.decide(ctx, id, patch, undecided...); err != nil {
		return Partner{}, fmt.Errorf("reject partner: %w", err)
	}
	p.Status = StatusRejected
	p.RejectionReason = &reason

	s.announce(ctx, p, NotificationRejected, "파트너 가입 반려",
		"파트너 가입이 반려되었습니다. 사유: "+reason)
	s.invalidate(ctx)
	return p, nil
}

// SetReviewing marks a new or pending partner as under review.
func (s *Service) SetReviewing(ctx context.Context, id int64) (Partner, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Partner{}, fmt.Errorf("partner %d: %w", id, err)
	}
	if p.Status != StatusNew && p.Status != StatusPending && p.Status != "" {
		return Partner{}, shared.NewValidationError("status", "신규 또는 승인대기 상태에서만 검토를 시작할 수 있습니다.")
	}
	patch := backend.Values{"status": string(StatusReviewing)}
	if err := s.decide(ctx, id, patch, StatusNew, StatusPending); err != nil {
		return Partner{}, fmt.Errorf("review partner: %w", err)
	}
	p.Status = StatusReviewing
	s.invalidate(ctx)
	return p, nil
}

func (s *Service) loadUndecided(ctx context.Context, id int64) (Partner, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Partner{}, fmt.Errorf("partner %d: %w", id, err)
	}
	if !p.Status.Undecided() {
		return Partner{}, errAlreadyDecided()
	}
	return p, nil
}

// decide writes patch only while the row still holds one of from. A
// concurrent decision that landed first leaves nothing to update, and the
// caller must not announce anything.
func (s *Service) decide(ctx context.Context, id int64, patch backend.Values, from ...Status) error {
	n, err := s.repo.Update(ctx, id, patch, from...)
	if err != nil {
		return err
	}
	if n == 0 {
		return errAlreadyDecided()
	}
	return nil
}

func errAlreadyDecided() error {
	return shared.NewValidationError("status", "이미 처리된 파트너입니다.")
}

// announce sends the in-app notification when a login is linked and queues
// an e-mail when an address is known. Neither failure undoes the decision.
func (s *Service) announce(ctx context.Context, p Partner, kind, title, message string) {
	if userID, ok := p.LinkedUser(); ok && s.notifier != nil {
		_, err := s.notifier.CreateNotification(ctx, backend.NotificationInput{
			UserID:  userID,
			Type:    kind,
			Title:   title,
			Message: message,
		})
		if err != nil {
			s.logger.Warn("partner notification", slog.Int64("partner_id", p.ID), slog.Any("error", err))
		}
	}
	if email := p.EmailAddress(); email != "" && s.mailer != nil {
		if err := s.mailer.SendNotificationEmail(ctx, email, title, message); err != nil {
			s.logger.Warn("partner email", slog.Int64("partner_id", p.ID), slog.Any("error", err))
		}
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("partner cache bump", slog.Any("error", err))
	}
}
