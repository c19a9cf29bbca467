package notices

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/referral-desk/referral-desk/internal/backend/backendtest"
	"github.com/referral-desk/referral-desk/internal/shared"
)

func TestCreateValidatesBeforeInsert(t *testing.T) {
	db := &backendtest.Recorder{}
	_, err := NewService(db).Create(context.Background(), Input{Title: "  ", Body: "본문"})
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, db.Calls)
}

func TestCreateInsertsTrimmedValues(t *testing.T) {
	db := &backendtest.Recorder{}
	db.Push([]string{"id"}, []any{int64(12)})
	id, err := NewService(db).Create(context.Background(), Input{Title: " 7월 정산 안내 ", Body: "본문", IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
	assert.Equal(t, []any{"본문", true, "7월 정산 안내"}, db.Last().Args)
}

func TestToggleActiveFlipsFlag(t *testing.T) {
	db := &backendtest.Recorder{RowsAffected: 1}
	db.Push(columns, []any{int64(3), "t", "b", true, time.Now(), nil})
	svc := NewService(db)

	active, err := svc.ToggleActive(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Equal(t, false, db.Last().Args[0])
}

func TestDeleteMissingNotice(t *testing.T) {
	db := &backendtest.Recorder{RowsAffected: 0}
	err := NewService(db).Delete(context.Background(), 99)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
