package partners

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/backend/backendtest"
	"github.com/referral-desk/referral-desk/internal/platform/cache"
	"github.com/referral-desk/referral-desk/internal/shared"
)

func strPtr(s string) *string { return &s }

type fakeRepo struct {
	partners map[int64]Partner
	gets     int
	lists    int
	patches  []backend.Values
}

func (f *fakeRepo) List(context.Context, ListFilter) ([]Partner, error) {
	f.lists++
	out := make([]Partner, 0, len(f.partners))
	for _, p := range f.partners {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRepo) Get(_ context.Context, id int64) (Partner, error) {
	f.gets++
	p, ok := f.partners[id]
	if !ok {
		return Partner{}, shared.ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) ByUser(_ context.Context, userID string) (Partner, error) {
	for _, p := range f.partners {
		if id, ok := p.LinkedUser(); ok && id == userID {
			return p, nil
		}
	}
	return Partner{}, shared.ErrNotFound
}

func (f *fakeRepo) Update(_ context.Context, id int64, patch backend.Values, from ...Status) (int64, error) {
	p, ok := f.partners[id]
	if !ok || (len(from) > 0 && !slices.Contains(from, p.Status)) {
		return 0, nil
	}
	f.patches = append(f.patches, patch)
	if status, ok := patch["status"].(string); ok {
		p.Status = Status(status)
	}
	f.partners[id] = p
	return 1, nil
}

func (f *fakeRepo) CountByStatus(_ context.Context, statuses ...Status) (int, error) {
	n := 0
	for _, p := range f.partners {
		for _, s := range statuses {
			if p.Status == s {
				n++
			}
		}
	}
	return n, nil
}

type fakeNotifier struct {
	inputs []backend.NotificationInput
	err    error
}

func (f *fakeNotifier) CreateNotification(_ context.Context, in backend.NotificationInput) (int64, error) {
	f.inputs = append(f.inputs, in)
	return int64(len(f.inputs)), f.err
}

type fakeMailer struct {
	sent []string
}

func (f *fakeMailer) SendNotificationEmail(_ context.Context, to, subject, _ string) error {
	f.sent = append(f.sent, to+"|"+subject)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) (*Service, *fakeRepo, *fakeNotifier, *fakeMailer) {
	t.Helper()
	repo := &fakeRepo{partners: map[int64]Partner{
		1: {ID: 1, Name: "링크드", Status: StatusPending, UserID: strPtr("u-1"), Email: strPtr("p1@example.com")},
		2: {ID: 2, Name: "언링크드", Status: StatusNew},
		3: {ID: 3, Name: "승인됨", Status: StatusApproved},
	}}
	notifier := &fakeNotifier{}
	mailer := &fakeMailer{}
	svc := NewService(repo, notifier, mailer, nil, quietLogger())
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }
	return svc, repo, notifier, mailer
}

func TestApproveNotifiesLinkedUserOnce(t *testing.T) {
	svc, repo, notifier, mailer := newFixture(t)

	p, err := svc.Approve(context.Background(), 1, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, p.Status)
	require.NotNil(t, p.ApprovedBy)
	assert.Equal(t, "admin-1", *p.ApprovedBy)

	require.Len(t, notifier.inputs, 1)
	assert.Equal(t, "u-1", notifier.inputs[0].UserID)
	assert.Equal(t, NotificationApproved, notifier.inputs[0].Type)
	assert.Equal(t, []string{"p1@example.com|파트너 승인 완료"}, mailer.sent)
	require.Len(t, repo.patches, 1)
	assert.Equal(t, "approved", repo.patches[0]["status"])
	assert.Equal(t, "admin-1", repo.patches[0]["approved_by"])
}

func TestApproveWithoutLinkedUserSkipsNotification(t *testing.T) {
	svc, _, notifier, mailer := newFixture(t)
	_, err := svc.Approve(context.Background(), 2, "admin-1")
	require.NoError(t, err)
	assert.Empty(t, notifier.inputs)
	assert.Empty(t, mailer.sent)
}

func TestApproveKeepsDecisionWhenNotificationFails(t *testing.T) {
	svc, repo, notifier, _ := newFixture(t)
	notifier.err = errors.New("rpc down")
	_, err := svc.Approve(context.Background(), 1, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, repo.partners[1].Status)
}

func TestRejectRequiresReasonBeforeBackend(t *testing.T) {
	svc, repo, notifier, _ := newFixture(t)
	_, err := svc.Reject(context.Background(), 1, "admin-1", "   ")
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Zero(t, repo.gets)
	assert.Empty(t, repo.patches)
	assert.Empty(t, notifier.inputs)
}

func TestRejectRecordsReason(t *testing.T) {
	svc, repo, notifier, _ := newFixture(t)
	p, err := svc.Reject(context.Background(), 1, "admin-1", "서류 미비")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, p.Status)
	assert.Equal(t, "서류 미비", repo.patches[0]["rejection_reason"])
	require.Len(t, notifier.inputs, 1)
	assert.Equal(t, NotificationRejected, notifier.inputs[0].Type)
	assert.Contains(t, notifier.inputs[0].Message, "서류 미비")
}

func TestDecisionsAreTerminal(t *testing.T) {
	svc, repo, _, _ := newFixture(t)
	_, err := svc.Approve(context.Background(), 3, "admin-1")
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Reject(context.Background(), 3, "admin-1", "사유")
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, repo.patches)

	_, err = svc.Approve(context.Background(), 42, "admin-1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSetReviewing(t *testing.T) {
	svc, repo, _, _ := newFixture(t)
	p, err := svc.SetReviewing(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, StatusReviewing, p.Status)

	_, err = svc.SetReviewing(context.Background(), 3)
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Len(t, repo.patches, 1)

	n, err := svc.AwaitingCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestListCacheRefreshesAfterDecision(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc, repo, _, _ := newFixture(t)
	svc.cache = cache.NewVersioned(client, "partners", time.Minute)
	ctx := context.Background()

	_, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	_, err = svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lists)

	_, err = svc.Approve(ctx, 2, "admin-1")
	require.NoError(t, err)
	list, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.lists)
	for _, p := range list {
		if p.ID == 2 {
			assert.Equal(t, StatusApproved, p.Status)
		}
	}
}

func TestGate(t *testing.T) {
	for _, s := range []Status{StatusNew, StatusPending, StatusReviewing} {
		d := Gate(Partner{Status: s})
		assert.False(t, d.Allow)
		assert.Equal(t, LevelInfo, d.Level)
	}

	d := Gate(Partner{Status: StatusRejected, RejectionReason: strPtr("중복 가입")})
	assert.False(t, d.Allow)
	assert.Equal(t, LevelError, d.Level)
	assert.Contains(t, d.Message, "중복 가입")

	d = Gate(Partner{Status: StatusRejected})
	assert.Equal(t, "파트너 가입이 반려되었습니다.", d.Message)

	assert.True(t, Gate(Partner{Status: StatusApproved}).Allow)
}

func TestRateFallsBackToDefault(t *testing.T) {
	assert.Equal(t, DefaultCommissionRate, Partner{}.Rate())
	r := 0.02
	assert.Equal(t, 0.02, Partner{CommissionRate: &r}.Rate())
}

var partnerRow = []string{"id", "name", "status", "user_id"}

func TestSecondDecisionOnSameSnapshotLoses(t *testing.T) {
	db := &backendtest.Recorder{RowsAffected: 1}
	db.Push(partnerRow, []any{int64(1), "링크드", "pending", "u-1"})
	db.Push(partnerRow, []any{int64(1), "링크드", "pending", "u-1"})
	notifier := &fakeNotifier{}
	svc := NewService(NewRepository(db), notifier, nil, nil, quietLogger())
	ctx := context.Background()

	_, err := svc.Approve(ctx, 1, "admin-a")
	require.NoError(t, err)
	update := db.Last()
	assert.True(t, strings.HasPrefix(update.SQL, `UPDATE "partners"`))
	assert.Contains(t, update.SQL, `"status" = ANY(`)
	assert.Contains(t, update.Args, []string{"new", "pending", "reviewing"})

	db.RowsAffected = 0
	_, err = svc.Reject(ctx, 1, "admin-b", "서류 미비")
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, "이미 처리된 파트너입니다.", shared.UserSafeMessage(err))
	assert.Len(t, notifier.inputs, 1)
}

func TestSetReviewingLosesToConcurrentDecision(t *testing.T) {
	db := &backendtest.Recorder{RowsAffected: 0}
	db.Push(partnerRow, []any{int64(2), "언링크드", "new", nil})
	svc := NewService(NewRepository(db), &fakeNotifier{}, nil, nil, quietLogger())

	_, err := svc.SetReviewing(context.Background(), 2)
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, db.Last().Args, []string{"new", "pending"})
}
