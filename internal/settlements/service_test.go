package settlements

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/backend/backendtest"
	"github.com/referral-desk/referral-desk/internal/commission"
	"github.com/referral-desk/referral-desk/internal/partners"
	"github.com/referral-desk/referral-desk/internal/shared"
)

type memRepo struct {
	rows    map[int64]Settlement
	inserts []backend.Values
	patches []backend.Values
}

func (m *memRepo) List(_ context.Context, f Filter) ([]Settlement, error) {
	var out []Settlement
	for _, st := range m.rows {
		if f.Month != "" && st.Month != f.Month {
			continue
		}
		if f.PartnerID > 0 && st.PartnerID != f.PartnerID {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

func (m *memRepo) Get(_ context.Context, id int64) (Settlement, error) {
	st, ok := m.rows[id]
	if !ok {
		return Settlement{}, shared.ErrNotFound
	}
	return st, nil
}

func (m *memRepo) Insert(_ context.Context, values backend.Values) (int64, error) {
	m.inserts = append(m.inserts, values)
	return int64(len(m.inserts)), nil
}

func (m *memRepo) Update(_ context.Context, id int64, patch backend.Values) error {
	m.patches = append(m.patches, patch)
	st := m.rows[id]
	st.Status = patch["status"].(string)
	m.rows[id] = st
	return nil
}

func (m *memRepo) Delete(_ context.Context, id int64) (int64, error) {
	if _, ok := m.rows[id]; !ok {
		return 0, nil
	}
	delete(m.rows, id)
	return 1, nil
}

type partnerTable map[int64]partners.Partner

func (p partnerTable) Get(_ context.Context, id int64) (partners.Partner, error) {
	v, ok := p[id]
	if !ok {
		return partners.Partner{}, shared.ErrNotFound
	}
	return v, nil
}

func rate(v float64) *float64 { return &v }

func newService() (*Service, *memRepo) {
	custom := 0.02
	repo := &memRepo{rows: map[int64]Settlement{}}
	svc := NewService(repo, partnerTable{
		1: {ID: 1, Status: partners.StatusApproved},
		2: {ID: 2, Status: partners.StatusApproved, CommissionRate: &custom},
	})
	svc.now = func() time.Time { return time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestCreateUsesPartnerRateAndStoresSnapshot(t *testing.T) {
	svc, repo := newService()

	st, err := svc.Create(context.Background(), CreateRequest{PartnerID: 1, Month: "2024-07", ClientName: "카페 모카", AmountText: "1,000,000원"})
	require.NoError(t, err)
	assert.Equal(t, int64(15000), st.CommissionAmount)
	assert.Equal(t, 0.015, st.CommissionRate)
	assert.Equal(t, StatusPending, st.Status)
	assert.Equal(t, int64(15000), repo.inserts[0]["commission_amount"])

	st, err = svc.Create(context.Background(), CreateRequest{PartnerID: 2, Month: "2024-07", ClientName: "x", AmountText: "3333333"})
	require.NoError(t, err)
	assert.Equal(t, int64(66667), st.CommissionAmount)
}

func TestCreateMatchesPreview(t *testing.T) {
	svc, _ := newService()
	preview := commission.NewPreview("12,345,678", 1.5)
	st, err := svc.Create(context.Background(), CreateRequest{PartnerID: 1, Month: "2024-07", ClientName: "x", AmountText: "12,345,678", RatePercent: rate(1.5)})
	require.NoError(t, err)
	assert.Equal(t, preview.Commission, st.CommissionAmount)
}

func TestCreateValidation(t *testing.T) {
	svc, repo := newService()
	ctx := context.Background()
	cases := []CreateRequest{
		{Month: "2024-07", ClientName: "x", AmountText: "100"},
		{PartnerID: 1, Month: "2024-13", ClientName: "x", AmountText: "100"},
		{PartnerID: 1, Month: "2024-07", ClientName: " ", AmountText: "100"},
		{PartnerID: 1, Month: "2024-07", ClientName: "x", AmountText: "없음"},
		{PartnerID: 1, Month: "2024-07", ClientName: "x", AmountText: "100", RatePercent: rate(120)},
	}
	for _, req := range cases {
		_, err := svc.Create(ctx, req)
		assert.ErrorIs(t, err, shared.ErrValidation, "%+v", req)
	}
	assert.Empty(t, repo.inserts)

	_, err := svc.Create(ctx, CreateRequest{PartnerID: 9, Month: "2024-07", ClientName: "x", AmountText: "100"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAdvance(t *testing.T) {
	svc, repo := newService()
	repo.rows[1] = Settlement{ID: 1, Status: StatusPending}
	ctx := context.Background()

	st, err := svc.Advance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, st.Status)
	assert.NotNil(t, st.ConfirmedAt)

	st, err = svc.Advance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, st.Status)
	assert.NotNil(t, st.PaidAt)

	_, err = svc.Advance(ctx, 1)
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Len(t, repo.patches, 2)
}

func TestDeleteAndSummary(t *testing.T) {
	svc, repo := newService()
	repo.rows[1] = Settlement{ID: 1, Month: "2024-07", TransactionAmount: 1000000, CommissionAmount: 15000, Status: StatusPending}
	repo.rows[2] = Settlement{ID: 2, Month: "2024-07", TransactionAmount: 2000000, CommissionAmount: 30000, Status: StatusPaid}
	repo.rows[3] = Settlement{ID: 3, Month: "2024-06", TransactionAmount: 5, CommissionAmount: 5, Status: StatusPaid}

	sum, err := svc.MonthSummary(context.Background(), "2024-07")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)
	assert.Equal(t, int64(3000000), sum.TransactionTotal)
	assert.Equal(t, int64(45000), sum.CommissionTotal)
	assert.Equal(t, int64(15000), sum.Owed())
	assert.Equal(t, "2024-07", svc.CurrentMonth())

	require.NoError(t, svc.Delete(context.Background(), 3))
	assert.ErrorIs(t, svc.Delete(context.Background(), 3), shared.ErrNotFound)

	_, err = svc.List(context.Background(), Filter{Month: "July"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestAdvanceOnDeletedSettlementIsNotFound(t *testing.T) {
	db := &backendtest.Recorder{RowsAffected: 0}
	db.Push([]string{"id", "status"}, []any{int64(4), StatusPending})
	svc := NewService(NewRepository(db), partnerTable{})

	_, err := svc.Advance(context.Background(), 4)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestExplicitZeroRateIsStoredAsZero(t *testing.T) {
	svc, repo := newService()
	st, err := svc.Create(context.Background(), CreateRequest{PartnerID: 2, Month: "2024-07", ClientName: "x", AmountText: "1,000,000", RatePercent: rate(0)})
	require.NoError(t, err)
	assert.Zero(t, st.CommissionAmount)
	assert.Zero(t, st.CommissionRate)
	assert.Equal(t, 0.0, repo.inserts[0]["commission_rate"])
}

func TestPreviewAndCreateResolveTheSameRate(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	lookup := svc.partners

	preview, err := Preview(ctx, lookup, 2, "3,333,333", nil)
	require.NoError(t, err)
	st, err := svc.Create(ctx, CreateRequest{PartnerID: 2, Month: "2024-07", ClientName: "x", AmountText: "3,333,333"})
	require.NoError(t, err)
	assert.Equal(t, preview.Commission, st.CommissionAmount)
	assert.Equal(t, 2.0, preview.RatePercent)

	_, err = Preview(ctx, lookup, 9, "100", nil)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = Preview(ctx, lookup, 0, "100", nil)
	assert.ErrorIs(t, err, shared.ErrValidation)

	explicit, err := Preview(ctx, lookup, 0, "1,000,000", rate(3))
	require.NoError(t, err)
	assert.Equal(t, int64(30000), explicit.Commission)
}
