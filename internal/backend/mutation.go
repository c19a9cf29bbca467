package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/referral-desk/referral-desk/internal/shared"
)

// Values is a column -> value map for inserts and patches.
type Values map[string]any

func (v Values) sortedColumns() []string {
	cols := make([]string, 0, len(v))
	for c := range v {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// BuildInsert renders an INSERT ... RETURNING id statement.
func BuildInsert(table string, values Values) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}
	if len(values) == 0 {
		return "", nil, fmt.Errorf("%w: insert into %s without values", shared.ErrMutation, table)
	}
	tbl, err := quoteIdent(table)
	if err != nil {
		return "", nil, err
	}
	b := &sqlBuilder{}
	cols := values.sortedColumns()
	quoted := make([]string, 0, len(cols))
	params := make([]string, 0, len(cols))
	for _, c := range cols {
		q, err := quoteIdent(c)
		if err != nil {
			return "", nil, err
		}
		quoted = append(quoted, q)
		params = append(params, b.bind(values[c]))
	}
	sql := "INSERT INTO " + tbl + " (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(params, ", ") + ") RETURNING id"
	return sql, b.args, nil
}

// BuildUpdate renders an UPDATE statement. At least one filter is required
// so a patch can never silently hit a whole table.
func BuildUpdate(table string, filters []Filter, patch Values) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}
	if len(filters) == 0 {
		return "", nil, fmt.Errorf("%w: update %s without filters", shared.ErrMutation, table)
	}
	if len(patch) == 0 {
		return "", nil, fmt.Errorf("%w: update %s without changes", shared.ErrMutation, table)
	}
	tbl, err := quoteIdent(table)
	if err != nil {
		return "", nil, err
	}
	b := &sqlBuilder{}
	sets := make([]string, 0, len(patch))
	for _, c := range patch.sortedColumns() {
		q, err := quoteIdent(c)
		if err != nil {
			return "", nil, err
		}
		sets = append(sets, q+" = "+b.bind(patch[c]))
	}
	where, err := b.where(filters)
	if err != nil {
		return "", nil, err
	}
	return "UPDATE " + tbl + " SET " + strings.Join(sets, ", ") + where, b.args, nil
}

// BuildDelete renders a DELETE statement; filters are mandatory.
func BuildDelete(table string, filters []Filter) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}
	if len(filters) == 0 {
		return "", nil, fmt.Errorf("%w: delete from %s without filters", shared.ErrMutation, table)
	}
	tbl, err := quoteIdent(table)
	if err != nil {
		return "", nil, err
	}
	b := &sqlBuilder{}
	where, err := b.where(filters)
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM " + tbl + where, b.args, nil
}

// Insert adds one row and returns its id.
func Insert(ctx context.Context, db DB, table string, values Values) (int64, error) {
	sql, args, err := BuildInsert(table, values)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, classify(shared.ErrMutation, "insert "+table, err)
	}
	return id, nil
}

// Update patches matching rows and returns how many changed.
func Update(ctx context.Context, db DB, table string, filters []Filter, patch Values) (int64, error) {
	sql, args, err := BuildUpdate(table, filters, patch)
	if err != nil {
		return 0, err
	}
	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, classify(shared.ErrMutation, "update "+table, err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes matching rows and returns how many were removed.
func Delete(ctx context.Context, db DB, table string, filters []Filter) (int64, error) {
	sql, args, err := BuildDelete(table, filters)
	if err != nil {
		return 0, err
	}
	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, classify(shared.ErrMutation, "delete "+table, err)
	}
	return tag.RowsAffected(), nil
}
