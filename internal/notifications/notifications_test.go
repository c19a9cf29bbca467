package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/referral-desk/referral-desk/internal/backend/backendtest"
	"github.com/referral-desk/referral-desk/internal/shared"
)

func TestListForUserScopesAndOrders(t *testing.T) {
	db := &backendtest.Recorder{}
	created := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	db.Push(columns, []any{int64(5), "u-1", "partner_approved", "승인", "축하합니다", false, created})

	items, err := NewService(db).ListForUser(context.Background(), "u-1", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "승인", items[0].Title)
	assert.False(t, items[0].IsRead)

	call := db.Last()
	assert.Contains(t, call.SQL, `WHERE "user_id" = $1 ORDER BY "created_at" DESC LIMIT $2`)
	assert.Equal(t, []any{"u-1", 50}, call.Args)
}

func TestUnreadCount(t *testing.T) {
	db := &backendtest.Recorder{}
	db.Push([]string{"count"}, []any{3})
	n, err := NewService(db).UnreadCount(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, `SELECT COUNT(*) FROM "notifications" WHERE "user_id" = $1 AND "is_read" = $2`, db.Last().SQL)
}

func TestMarkReadIsScopedToOwner(t *testing.T) {
	db := &backendtest.Recorder{RowsAffected: 1}
	svc := NewService(db)
	require.NoError(t, svc.MarkRead(context.Background(), "u-1", 9))
	assert.Equal(t, `UPDATE "notifications" SET "is_read" = $1 WHERE "id" = $2 AND "user_id" = $3`, db.Last().SQL)
	assert.Equal(t, []any{true, int64(9), "u-1"}, db.Last().Args)

	db.RowsAffected = 0
	assert.ErrorIs(t, svc.MarkRead(context.Background(), "u-2", 9), shared.ErrNotFound)
}

func TestMarkAllRead(t *testing.T) {
	db := &backendtest.Recorder{RowsAffected: 4}
	n, err := NewService(db).MarkAllRead(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
