package backend

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/referral-desk/referral-desk/internal/shared"
)

func TestBuildSelect(t *testing.T) {
	q := From(TableConsultations).
		Select("id", "name").
		Where(Eq("partner_id", int64(7)), In("pipeline_status", "approved", "installed"), NotNull("phone")).
		Where(Or(ILike("name", Contains("kim")), ILike("phone", Contains("kim")))).
		OrderBy("created_at", true).
		Page(20, 40)

	sql, args, err := q.Build(false)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "name" FROM "consultations" WHERE "partner_id" = $1 AND "pipeline_status" = ANY($2) AND "phone" IS NOT NULL AND ("name" ILIKE $3 OR "phone" ILIKE $4) ORDER BY "created_at" DESC LIMIT $5 OFFSET $6`, sql)
	assert.Equal(t, []any{int64(7), []string{"approved", "installed"}, "%kim%", "%kim%", 20, 40}, args)
}

func TestBuildCountDropsOrdering(t *testing.T) {
	sql, args, err := From(TablePartners).Where(Eq("status", "pending")).OrderBy("id", false).Page(10, 0).Build(true)
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "partners" WHERE "status" = $1`, sql)
	assert.Equal(t, []any{"pending"}, args)
}

func TestBuildRejectsUnknownIdentifiers(t *testing.T) {
	_, _, err := From("pg_shadow").Build(false)
	assert.ErrorIs(t, err, shared.ErrQuery)

	_, _, err = From(TablePartners).Where(Eq("status; drop table x", 1)).Build(false)
	assert.ErrorIs(t, err, shared.ErrQuery)
}

func TestEmptyInMatchesNothing(t *testing.T) {
	sql, _, err := From(TablePartners).Where(In[string]("status")).Build(false)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "partners" WHERE FALSE`, sql)
}

func TestEqNilIsNullCheck(t *testing.T) {
	sql, args, err := From(TableConsultations).Where(Eq("partner_id", nil)).Build(false)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "consultations" WHERE "partner_id" IS NULL`, sql)
	assert.Empty(t, args)
}

func TestContainsEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%50\%\_off%`, Contains("50%_off"))
}

func TestBuildMutations(t *testing.T) {
	sql, args, err := BuildInsert(TableNotices, Values{"title": "t", "body": "b", "is_active": true})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "notices" ("body", "is_active", "title") VALUES ($1, $2, $3) RETURNING id`, sql)
	assert.Equal(t, []any{"b", true, "t"}, args)

	sql, args, err = BuildUpdate(TablePartners, []Filter{Eq("id", int64(3))}, Values{"status": "approved"})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "partners" SET "status" = $1 WHERE "id" = $2`, sql)
	assert.Equal(t, []any{"approved", int64(3)}, args)

	sql, _, err = BuildDelete(TableSettlements, []Filter{Eq("id", int64(9))})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "settlements" WHERE "id" = $1`, sql)
}

func TestMutationsRequireFilters(t *testing.T) {
	_, _, err := BuildUpdate(TablePartners, nil, Values{"status": "approved"})
	assert.ErrorIs(t, err, shared.ErrMutation)
	_, _, err = BuildDelete(TablePartners, nil)
	assert.ErrorIs(t, err, shared.ErrMutation)
	_, _, err = BuildInsert(TablePartners, Values{})
	assert.ErrorIs(t, err, shared.ErrMutation)
}

func TestClassify(t *testing.T) {
	dup := classify(shared.ErrMutation, "insert partners", &pgconn.PgError{Code: "23505", Message: "duplicate key"})
	assert.ErrorIs(t, dup, shared.ErrMutation)
	assert.ErrorIs(t, dup, shared.ErrDuplicate)

	check := classify(shared.ErrMutation, "insert consultations", &pgconn.PgError{Code: "23514", Message: "violates check"})
	assert.ErrorIs(t, check, shared.ErrMutation)
	assert.Contains(t, check.Error(), "violates check")

	other := classify(shared.ErrQuery, "select notices", errors.New("connection reset"))
	assert.ErrorIs(t, other, shared.ErrQuery)
	assert.Nil(t, classify(shared.ErrQuery, "x", nil))
}

func TestDecodeChange(t *testing.T) {
	c, err := DecodeChange(`{"table":"notifications","event":"INSERT","record":{"id":5,"user_id":"u-1","title":"승인"}}`)
	require.NoError(t, err)
	assert.Equal(t, "notifications", c.Table)
	assert.Equal(t, "INSERT", c.Event)
	assert.Equal(t, "승인", c.Record["title"])

	_, err = DecodeChange("not json")
	assert.Error(t, err)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "01012345678", NormalizePhone("010-1234-5678"))
	assert.Equal(t, "", NormalizePhone(" - "))
}
