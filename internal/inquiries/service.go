package inquiries

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/referral-desk/referral-desk/internal/shared"
)

// Statuses lists the triage statuses in display order.
var Statuses = []string{"new", "contacted", "completed", "cancelled"}

var triageStatuses = map[string]struct{}{
	"new":       {},
	"contacted": {},
	"completed": {},
	"cancelled": {},
}

// Service assembles the unified inquiry feed.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs the service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Feed fetches all four origins concurrently, merges them and applies f.
// Any failing origin fails the whole feed.
func (s *Service) Feed(ctx context.Context, f Filter) ([]Row, error) {
	var consultations []Consultation
	var marketing []MarketingInquiry
	var partnerInquiries []PartnerInquiry
	var promos []PromoInquiry

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		consultations, err = s.repo.Consultations(gctx)
		return wrapOrigin(OriginConsultation, err)
	})
	g.Go(func() error {
		var err error
		marketing, err = s.repo.MarketingInquiries(gctx)
		return wrapOrigin(OriginMarketing, err)
	})
	g.Go(func() error {
		var err error
		partnerInquiries, err = s.repo.PartnerInquiries(gctx)
		return wrapOrigin(OriginPartnerInquiry, err)
	})
	g.Go(func() error {
		var err error
		promos, err = s.repo.PromoInquiries(gctx)
		return wrapOrigin(OriginPromo, err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := Merge(records(consultations), records(marketing), records(partnerInquiries), records(promos))
	return Apply(rows, f), nil
}

// Detail returns one inquiry as a display row.
func (s *Service) Detail(ctx context.Context, origin Origin, id int64) (Row, error) {
	rec, err := s.repo.Get(ctx, origin, id)
	if err != nil {
		return Row{}, fmt.Errorf("inquiry %s/%d: %w", origin, id, err)
	}
	return rec.Normalize(), nil
}

// UpdateStatus moves an inquiry to another triage status.
func (s *Service) UpdateStatus(ctx context.Context, origin Origin, id int64, status string) error {
	if _, ok := triageStatuses[status]; !ok {
		return shared.NewValidationError("status", "알 수 없는 상태입니다.")
	}
	if err := s.repo.UpdateStatus(ctx, origin, id, status, s.now()); err != nil {
		return fmt.Errorf("update inquiry status: %w", err)
	}
	return nil
}

func wrapOrigin(origin Origin, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("fetch %s: %w", origin, err)
}
