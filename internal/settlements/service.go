package settlements

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/commission"
	"github.com/referral-desk/referral-desk/internal/labels"
	"github.com/referral-desk/referral-desk/internal/partners"
	"github.com/referral-desk/referral-desk/internal/shared"
)

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// PartnerLookup resolves the partner a settlement is for.
type PartnerLookup interface {
	Get(ctx context.Context, id int64) (partners.Partner, error)
}

// Service manages settlements.
type Service struct {
	repo     Repository
	partners PartnerLookup
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs the service.
func NewService(repo Repository, lookup PartnerLookup) *Service {
	return &Service{repo: repo, partners: lookup, validate: validator.New(), now: time.Now}
}

// ValidMonth reports whether s is a YYYY-MM bucket.
func ValidMonth(s string) bool {
	return monthPattern.MatchString(s)
}

// Create computes the commission and stores the settlement. The rate used
// is snapshotted alongside the amount.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Settlement, error) {
	req.ClientName = strings.TrimSpace(req.ClientName)
	req.Month = strings.TrimSpace(req.Month)
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return Settlement{}, err
	}
	if !ValidMonth(req.Month) {
		return Settlement{}, shared.NewValidationError("month", "정산월 형식은 YYYY-MM 입니다.")
	}
	amount := commission.SanitizeAmount(req.AmountText)
	if amount <= 0 {
		return Settlement{}, shared.NewValidationError("transaction_amount", "거래금액을 입력해 주세요.")
	}
	ratePercent, err := ResolveRate(ctx, s.partners, req.PartnerID, req.RatePercent)
	if err != nil {
		return Settlement{}, err
	}
	rate, _ := decimal.NewFromFloat(ratePercent).Div(decimal.NewFromInt(100)).Float64()

	st := Settlement{
		PartnerID:         req.PartnerID,
		Month:             req.Month,
		ClientName:        req.ClientName,
		TransactionAmount: amount,
		CommissionRate:    rate,
		CommissionAmount:  commission.Compute(amount, ratePercent),
		Status:            StatusPending,
		CreatedAt:         s.now().UTC(),
	}
	values := backend.Values{
		"partner_id":         st.PartnerID,
		"month":              st.Month,
		"client_name":        st.ClientName,
		"transaction_amount": st.TransactionAmount,
		"commission_rate":    st.CommissionRate,
		"commission_amount":  st.CommissionAmount,
		"status":             st.Status,
	}
	if req.ClientID > 0 {
		st.ClientID = &req.ClientID
		values["client_id"] = req.ClientID
	}
	id, err := s.repo.Insert(ctx, values)
	if err != nil {
		return Settlement{}, fmt.Errorf("create settlement: %w", err)
	}
	st.ID = id
	return st, nil
}

// ResolveRate picks the commission rate, in percent, for a settlement of
// partnerID. An explicit rate wins and must lie in 0..100; otherwise the
// partner's configured rate applies. A known partner is always looked up,
// so an unknown one fails here for the preview and for Create alike.
func ResolveRate(ctx context.Context, lookup PartnerLookup, partnerID int64, explicit *float64) (float64, error) {
	if explicit != nil && (*explicit < 0 || *explicit > 100) {
		return 0, shared.NewValidationError("commission_rate", "수수료율은 0~100% 사이여야 합니다.")
	}
	if partnerID <= 0 {
		if explicit != nil {
			return *explicit, nil
		}
		return 0, shared.NewValidationError("partner_id", "파트너를 선택해 주세요.")
	}
	partner, err := lookup.Get(ctx, partnerID)
	if err != nil {
		return 0, fmt.Errorf("settlement partner: %w", err)
	}
	if explicit != nil {
		return *explicit, nil
	}
	return commission.RateToPercent(partner.Rate()), nil
}

// Preview computes what Create would store for the same input.
func Preview(ctx context.Context, lookup PartnerLookup, partnerID int64, amountText string, explicit *float64) (commission.Preview, error) {
	ratePercent, err := ResolveRate(ctx, lookup, partnerID, explicit)
	if err != nil {
		return commission.Preview{}, err
	}
	return commission.NewPreview(amountText, ratePercent), nil
}

// Next returns the status after current, or false when current is final.
func Next(current string) (string, bool) {
	switch current {
	case StatusPending:
		return StatusConfirmed, true
	case StatusConfirmed:
		return StatusPaid, true
	}
	return "", false
}

// Advance moves a settlement one step: pending, confirmed, paid.
func (s *Service) Advance(ctx context.Context, id int64) (Settlement, error) {
	st, err := s.repo.Get(ctx, id)
	if err != nil {
		return Settlement{}, fmt.Errorf("settlement %d: %w", id, err)
	}
	next, ok := Next(st.Status)
	if !ok {
		return Settlement{}, shared.NewValidationError("status", "이미 지급 완료된 정산입니다.")
	}
	now := s.now().UTC()
	patch := backend.Values{"status": next}
	switch next {
	case StatusConfirmed:
		patch["confirmed_at"] = now
		st.ConfirmedAt = &now
	case StatusPaid:
		patch["paid_at"] = now
		st.PaidAt = &now
	}
	if err := s.repo.Update(ctx, id, patch); err != nil {
		return Settlement{}, fmt.Errorf("advance settlement: %w", err)
	}
	st.Status = next
	return st, nil
}

// Delete removes a settlement.
func (s *Service) Delete(ctx context.Context, id int64) error {
	n, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete settlement: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("settlement %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// List returns settlements matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Settlement, error) {
	if f.Month != "" && !ValidMonth(f.Month) {
		return nil, shared.NewValidationError("month", "정산월 형식은 YYYY-MM 입니다.")
	}
	return s.repo.List(ctx, f)
}

// ListForPartner returns one partner's settlements.
func (s *Service) ListForPartner(ctx context.Context, partnerID int64, month string) ([]Settlement, error) {
	return s.List(ctx, Filter{PartnerID: partnerID, Month: month})
}

// MonthSummary totals the settlements of month.
func (s *Service) MonthSummary(ctx context.Context, month string) (Summary, error) {
	items, err := s.List(ctx, Filter{Month: month})
	if err != nil {
		return Summary{}, err
	}
	return Summarize(month, items), nil
}

// CurrentMonth returns the YYYY-MM bucket for now.
func (s *Service) CurrentMonth() string {
	return labels.Month(s.now())
}

// Summarize totals items.
func Summarize(month string, items []Settlement) Summary {
	sum := Summary{Month: month, ByStatus: map[string]int64{}}
	for _, st := range items {
		sum.Count++
		sum.TransactionTotal += st.TransactionAmount
		sum.CommissionTotal += st.CommissionAmount
		sum.ByStatus[st.Status] += st.CommissionAmount
	}
	return sum
}
