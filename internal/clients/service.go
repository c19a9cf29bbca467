package clients

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/commission"
	"github.com/referral-desk/referral-desk/internal/labels"
	"github.com/referral-desk/referral-desk/internal/pipeline"
	"github.com/referral-desk/referral-desk/internal/shared"
)

// DuplicateChecker looks up existing clients by phone.
type DuplicateChecker interface {
	CheckDuplicatePhone(ctx context.Context, phone string) (backend.DuplicateResult, error)
}

// LeaderboardRefresher is told when an install changes a month's ranking.
type LeaderboardRefresher interface {
	RefreshLeaderboard(ctx context.Context, month string) error
}

// TriageStatuses lists the admin triage statuses in display order.
var TriageStatuses = []string{TriageNew, TriageContacted, TriageCompleted, TriageCancelled}

var triageStatuses = map[string]struct{}{
	TriageNew:       {},
	TriageContacted: {},
	TriageCompleted: {},
	TriageCancelled: {},
}

// Service implements client use cases for both dashboards and the intake
// form.
type Service struct {
	repo     Repository
	dupes    DuplicateChecker
	ranking  LeaderboardRefresher
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs the service.
func NewService(repo Repository, dupes DuplicateChecker) *Service {
	return &Service{repo: repo, dupes: dupes, logger: slog.Default(), validate: validator.New(), now: time.Now}
}

// UseLeaderboard asks r to rebuild the month's ranking after each install.
// A failed request is logged; the hourly warmup catches up.
func (s *Service) UseLeaderboard(r LeaderboardRefresher, logger *slog.Logger) {
	s.ranking = r
	if logger != nil {
		s.logger = logger
	}
}

func errNotFound(id int64) error {
	return fmt.Errorf("client %d: %w", id, shared.ErrNotFound)
}

// List returns clients for the admin along with the unpaged total.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Client, int, error) {
	items, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}
	total, err := s.repo.Count(ctx, ListFilter{Status: f.Status, Pipeline: f.Pipeline, Search: f.Search, PartnerID: f.PartnerID, Linked: f.Linked})
	if err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}
	return items, total, nil
}

// Count returns how many clients match f.
func (s *Service) Count(ctx context.Context, f ListFilter) (int, error) {
	return s.repo.Count(ctx, f)
}

// Get loads one client.
func (s *Service) Get(ctx context.Context, id int64) (Client, error) {
	return s.repo.Get(ctx, id)
}

// GetForPartner loads a client only when it belongs to partnerID.
func (s *Service) GetForPartner(ctx context.Context, partnerID, id int64) (Client, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Client{}, err
	}
	if c.PartnerID == nil || *c.PartnerID != partnerID {
		return Client{}, errNotFound(id)
	}
	return c, nil
}

// UpdateTriage sets the admin triage status.
func (s *Service) UpdateTriage(ctx context.Context, id int64, status string) error {
	if _, ok := triageStatuses[status]; !ok {
		return shared.NewValidationError("status", "알 수 없는 상태입니다.")
	}
	return s.repo.Update(ctx, id, backend.Values{
		"status":            status,
		"status_changed_at": s.now().UTC(),
		"updated_at":        s.now().UTC(),
	})
}

// UpdatePipeline moves the client along the partner pipeline. The amount
// text is only read when the stage is installed.
func (s *Service) UpdatePipeline(ctx context.Context, id int64, stage, amountText string) error {
	if !pipeline.Valid(stage) {
		return shared.NewValidationError("pipeline_status", "알 수 없는 진행 단계입니다.")
	}
	now := s.now()
	patch := backend.Values{
		"pipeline_status": stage,
		"updated_at":      now.UTC(),
	}
	if stage == pipeline.Installed {
		amount := commission.SanitizeAmount(amountText)
		if amount <= 0 {
			return shared.NewValidationError("transaction_amount", "설치완료 시 거래금액을 입력해 주세요.")
		}
		patch["transaction_amount"] = amount
		patch["installed_at"] = now.UTC()
	}
	if err := s.repo.Update(ctx, id, patch); err != nil {
		return err
	}
	if stage == pipeline.Installed && s.ranking != nil {
		month := labels.Month(now)
		if err := s.ranking.RefreshLeaderboard(ctx, month); err != nil {
			s.logger.Warn("request leaderboard refresh", slog.String("month", month), slog.Any("error", err))
		}
	}
	return nil
}

// UpdateMemo replaces the admin memo.
func (s *Service) UpdateMemo(ctx context.Context, id int64, memo string) error {
	return s.repo.Update(ctx, id, backend.Values{
		"admin_memo": strings.TrimSpace(memo),
		"updated_at": s.now().UTC(),
	})
}

// Delete removes a client.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Submit stores a public intake form.
func (s *Service) Submit(ctx context.Context, req IntakeRequest) (int64, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return 0, err
	}
	if backend.NormalizePhone(req.Phone) == "" {
		return 0, shared.NewValidationError("phone", "연락처를 확인해 주세요.")
	}
	values := intakeValues(req.Name, req.Phone, req.BusinessType, req.Revenue, req.Region, req.Product, req.Message)
	values["status"] = TriageNew
	if page := strings.TrimSpace(req.SourcePage); page != "" {
		values["source_page"] = page
	}
	id, err := s.repo.Insert(ctx, values)
	if err != nil {
		return 0, fmt.Errorf("submit consultation: %w", err)
	}
	return id, nil
}

// Register stores a client on behalf of a partner after checking the phone
// number is not already known.
func (s *Service) Register(ctx context.Context, partnerID int64, req RegisterRequest) (int64, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return 0, err
	}
	if backend.NormalizePhone(req.Phone) == "" {
		return 0, shared.NewValidationError("phone", "연락처를 확인해 주세요.")
	}
	dup, err := s.dupes.CheckDuplicatePhone(ctx, req.Phone)
	if err != nil {
		return 0, fmt.Errorf("duplicate check: %w", err)
	}
	if dup.IsDuplicate {
		return 0, shared.NewValidationError("phone",
			fmt.Sprintf("이미 등록된 연락처입니다. (기존 %d건)", dup.ExistingCount))
	}
	values := intakeValues(req.Name, req.Phone, req.BusinessType, req.Revenue, req.Region, req.Product, req.Message)
	values["partner_id"] = partnerID
	values["status"] = TriageNew
	values["pipeline_status"] = pipeline.Received
	values["source_page"] = SourcePartner
	id, err := s.repo.Insert(ctx, values)
	if err != nil {
		return 0, fmt.Errorf("register client: %w", err)
	}
	return id, nil
}

// ListForPartner returns one partner's clients.
func (s *Service) ListForPartner(ctx context.Context, partnerID int64, f ListFilter) ([]Client, error) {
	f.PartnerID = partnerID
	f.Status = ""
	return s.repo.List(ctx, f)
}

// StatsForPartner counts a partner's clients per pipeline stage and totals
// installed transaction amounts.
func (s *Service) StatsForPartner(ctx context.Context, partnerID int64) (Stats, error) {
	items, err := s.repo.List(ctx, ListFilter{PartnerID: partnerID})
	if err != nil {
		return Stats{}, fmt.Errorf("partner stats: %w", err)
	}
	return Summarize(items), nil
}

// Summarize computes Stats over clients.
func Summarize(items []Client) Stats {
	stats := Stats{ByPipeline: make(map[string]int, len(pipeline.Stages)+1)}
	for _, c := range items {
		stats.Total++
		stage := c.Pipeline()
		if stage == "" {
			stage = pipeline.Received
		}
		stats.ByPipeline[stage]++
		if stage == pipeline.Installed {
			stats.InstalledAmount += c.Amount()
		}
	}
	return stats
}

func intakeValues(name, phone, business, revenue, region, product, message string) backend.Values {
	values := backend.Values{
		"name":          name,
		"phone":         phone,
		"business_type": business,
	}
	optional := map[string]string{
		"revenue": revenue,
		"region":  region,
		"product": product,
		"message": strings.TrimSpace(message),
	}
	for col, v := range optional {
		if v != "" {
			values[col] = v
		}
	}
	return values
}
