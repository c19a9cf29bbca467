// Package backendtest provides an in-memory stand-in for backend.DB that
// records statements and replays canned rows.
package backendtest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Call is one recorded statement.
type Call struct {
	SQL  string
	Args []any
}

// Result is a canned result set.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Recorder implements backend.DB. Queries pop results in FIFO order;
// Exec reports RowsAffected.
type Recorder struct {
	mu           sync.Mutex
	Calls        []Call
	Results      []Result
	RowsAffected int64
	Err          error
}

// Push queues a result for the next Query or QueryRow.
func (r *Recorder) Push(columns []string, rows ...[]any) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Results = append(r.Results, Result{Columns: columns, Rows: rows})
	return r
}

// Last returns the most recent call.
func (r *Recorder) Last() Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Calls) == 0 {
		return Call{}
	}
	return r.Calls[len(r.Calls)-1]
}

func (r *Recorder) record(sql string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, Call{SQL: sql, Args: args})
}

func (r *Recorder) pop() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Results) == 0 {
		return Result{}
	}
	res := r.Results[0]
	r.Results = r.Results[1:]
	return res
}

// Exec records the statement.
func (r *Recorder) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.record(sql, args)
	if r.Err != nil {
		return pgconn.CommandTag{}, r.Err
	}
	verb := strings.ToUpper(strings.SplitN(strings.TrimSpace(sql), " ", 2)[0])
	return pgconn.NewCommandTag(fmt.Sprintf("%s %d", verb, r.RowsAffected)), nil
}

// Query records the statement and returns the next queued result.
func (r *Recorder) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	r.record(sql, args)
	if r.Err != nil {
		return nil, r.Err
	}
	res := r.pop()
	return &rows{result: res, index: -1}, nil
}

// QueryRow records the statement and returns the first row of the next
// queued result.
func (r *Recorder) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	rs, err := r.Query(ctx, sql, args...)
	if err != nil {
		return errRow{err: err}
	}
	return &singleRow{rows: rs.(*rows)}
}

type errRow struct{ err error }

func (e errRow) Scan(...any) error { return e.err }

type singleRow struct{ rows *rows }

func (s *singleRow) Scan(dest ...any) error {
	if !s.rows.Next() {
		return pgx.ErrNoRows
	}
	return s.rows.Scan(dest...)
}

type rows struct {
	result Result
	index  int
	closed bool
}

func (r *rows) Close()                        { r.closed = true }
func (r *rows) Err() error                    { return nil }
func (r *rows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT") }
func (r *rows) RawValues() [][]byte           { return nil }
func (r *rows) Conn() *pgx.Conn               { return nil }

func (r *rows) FieldDescriptions() []pgconn.FieldDescription {
	out := make([]pgconn.FieldDescription, len(r.result.Columns))
	for i, c := range r.result.Columns {
		out[i] = pgconn.FieldDescription{Name: c}
	}
	return out
}

func (r *rows) Next() bool {
	if r.closed {
		return false
	}
	r.index++
	return r.index < len(r.result.Rows)
}

func (r *rows) Values() ([]any, error) {
	if r.index < 0 || r.index >= len(r.result.Rows) {
		return nil, errors.New("backendtest: no current row")
	}
	return r.result.Rows[r.index], nil
}

func (r *rows) Scan(dest ...any) error {
	values, err := r.Values()
	if err != nil {
		return err
	}
	if len(dest) != len(values) {
		return fmt.Errorf("backendtest: %d targets for %d columns", len(dest), len(values))
	}
	for i, d := range dest {
		if err := assign(d, values[i]); err != nil {
			return fmt.Errorf("backendtest: column %s: %w", r.result.Columns[i], err)
		}
	}
	return nil
}

func assign(dest, value any) error {
	target := reflect.ValueOf(dest)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return errors.New("scan target must be a non-nil pointer")
	}
	elem := target.Elem()
	if value == nil {
		elem.Set(reflect.Zero(elem.Type()))
		return nil
	}
	v := reflect.ValueOf(value)
	if elem.Kind() == reflect.Pointer && v.Kind() != reflect.Pointer {
		ptr := reflect.New(elem.Type().Elem())
		if err := assign(ptr.Interface(), value); err != nil {
			return err
		}
		elem.Set(ptr)
		return nil
	}
	switch {
	case v.Type().AssignableTo(elem.Type()):
		elem.Set(v)
	case v.Type().ConvertibleTo(elem.Type()):
		elem.Set(v.Convert(elem.Type()))
	default:
		return fmt.Errorf("cannot assign %T to %s", value, elem.Type())
	}
	return nil
}
