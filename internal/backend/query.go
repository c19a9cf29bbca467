package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/referral-desk/referral-desk/internal/shared"
)

// Op is a filter operator.
type Op string

const (
	OpEq      Op = "eq"
	OpIn      Op = "in"
	OpNotNull Op = "not_null"
	OpILike   Op = "ilike"
	OpOr      Op = "or"
	OpGte     Op = "gte"
	OpLt      Op = "lt"
)

// Filter is one predicate of a Query.
type Filter struct {
	Column string
	Op     Op
	Value  any
	Size   int
	Any    []Filter
}

// Eq matches column = value.
func Eq(column string, value any) Filter { return Filter{Column: column, Op: OpEq, Value: value} }

// In matches column against a set of values, bound as one typed array.
func In[T any](column string, values ...T) Filter {
	return Filter{Column: column, Op: OpIn, Value: values, Size: len(values)}
}

// NotNull matches rows where column is set.
func NotNull(column string) Filter { return Filter{Column: column, Op: OpNotNull} }

// ILike matches column case-insensitively against a LIKE pattern.
func ILike(column, pattern string) Filter {
	return Filter{Column: column, Op: OpILike, Value: pattern}
}

// Gte matches column >= value.
func Gte(column string, value any) Filter { return Filter{Column: column, Op: OpGte, Value: value} }

// Lt matches column < value.
func Lt(column string, value any) Filter { return Filter{Column: column, Op: OpLt, Value: value} }

// Or matches when any of filters matches.
func Or(filters ...Filter) Filter { return Filter{Op: OpOr, Any: filters} }

// Contains builds the ILIKE pattern for a substring search, escaping
// LIKE metacharacters in term.
func Contains(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

// Order sorts by a column.
type Order struct {
	Column string
	Desc   bool
}

// Query describes a select against one table.
type Query struct {
	Table   string
	Columns []string
	Filters []Filter
	Orders  []Order
	Limit   int
	Offset  int
}

// From starts a query on table.
func From(table string) Query { return Query{Table: table} }

// Select sets the projected columns.
func (q Query) Select(columns ...string) Query {
	q.Columns = columns
	return q
}

// Where appends filters, all of which must match.
func (q Query) Where(filters ...Filter) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), filters...)
	return q
}

// OrderBy appends an ordering.
func (q Query) OrderBy(column string, desc bool) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), Order{Column: column, Desc: desc})
	return q
}

// Page limits the result window.
func (q Query) Page(limit, offset int) Query {
	q.Limit = limit
	q.Offset = offset
	return q
}

type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *sqlBuilder) where(filters []Filter) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	clause, err := b.conjunction(filters, " AND ")
	if err != nil {
		return "", err
	}
	return " WHERE " + clause, nil
}

func (b *sqlBuilder) conjunction(filters []Filter, sep string) (string, error) {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		part, err := b.predicate(f)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, sep), nil
}

func (b *sqlBuilder) predicate(f Filter) (string, error) {
	if f.Op == OpOr {
		if len(f.Any) == 0 {
			return "FALSE", nil
		}
		inner, err := b.conjunction(f.Any, " OR ")
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	}
	col, err := quoteIdent(f.Column)
	if err != nil {
		return "", err
	}
	switch f.Op {
	case OpEq:
		if f.Value == nil {
			return col + " IS NULL", nil
		}
		return col + " = " + b.bind(f.Value), nil
	case OpIn:
		if f.Size == 0 {
			return "FALSE", nil
		}
		return col + " = ANY(" + b.bind(f.Value) + ")", nil
	case OpNotNull:
		return col + " IS NOT NULL", nil
	case OpILike:
		return col + " ILIKE " + b.bind(f.Value), nil
	case OpGte:
		return col + " >= " + b.bind(f.Value), nil
	case OpLt:
		return col + " < " + b.bind(f.Value), nil
	default:
		return "", fmt.Errorf("%w: unsupported operator %q", shared.ErrQuery, f.Op)
	}
}

// Build renders the SQL and arguments for q. countOnly replaces the
// projection with COUNT(*) and drops ordering and paging.
func (q Query) Build(countOnly bool) (string, []any, error) {
	if err := checkTable(q.Table); err != nil {
		return "", nil, err
	}
	table, err := quoteIdent(q.Table)
	if err != nil {
		return "", nil, err
	}
	projection := "*"
	if countOnly {
		projection = "COUNT(*)"
	} else if len(q.Columns) > 0 {
		cols := make([]string, 0, len(q.Columns))
		for _, c := range q.Columns {
			quoted, err := quoteIdent(c)
			if err != nil {
				return "", nil, err
			}
			cols = append(cols, quoted)
		}
		projection = strings.Join(cols, ", ")
	}

	b := &sqlBuilder{}
	var sb strings.Builder
	sb.WriteString("SELECT " + projection + " FROM " + table)
	where, err := b.where(q.Filters)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(where)
	if countOnly {
		return sb.String(), b.args, nil
	}
	if len(q.Orders) > 0 {
		orders := make([]string, 0, len(q.Orders))
		for _, o := range q.Orders {
			col, err := quoteIdent(o.Column)
			if err != nil {
				return "", nil, err
			}
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			orders = append(orders, col+" "+dir)
		}
		sb.WriteString(" ORDER BY " + strings.Join(orders, ", "))
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + b.bind(q.Limit))
	}
	if q.Offset > 0 {
		sb.WriteString(" OFFSET " + b.bind(q.Offset))
	}
	return sb.String(), b.args, nil
}

// Select runs q and scans each row into T by column name.
func Select[T any](ctx context.Context, db DB, q Query) ([]T, error) {
	sql, args, err := q.Build(false)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(shared.ErrQuery, "select "+q.Table, err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return nil, classify(shared.ErrQuery, "scan "+q.Table, err)
	}
	return items, nil
}

// One runs q expecting a single row; an empty result is ErrNotFound.
func One[T any](ctx context.Context, db DB, q Query) (T, error) {
	var zero T
	items, err := Select[T](ctx, db, q.Page(1, 0))
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, fmt.Errorf("%s: %w", q.Table, shared.ErrNotFound)
	}
	return items[0], nil
}

// Count returns the number of rows matching q.
func Count(ctx context.Context, db DB, q Query) (int, error) {
	sql, args, err := q.Build(true)
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, classify(shared.ErrQuery, "count "+q.Table, err)
	}
	return n, nil
}
