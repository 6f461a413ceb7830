package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sakif/sanctuary/internal/model"
)

// nowString is the adapter clock rendered in model.TimeLayout.
func (db *DB) nowString() string {
	return model.FormatTime(db.now())
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows, so one scan
// function per table serves single-row and multi-row queries.
type rowScanner interface {
	Scan(dest ...any) error
}

// setBuilder collects "col = ?" pairs for a partial UPDATE.
//
// Only fields whose Opt is set are added. If nothing was added the caller
// skips the write entirely and returns the current row.
type setBuilder struct {
	cols []string
	args []any
	err  error
}

// set adds col when o is set. Pointer values become NULL when nil.
func set[T any](b *setBuilder, col string, o model.Opt[T]) {
	if !o.Set {
		return
	}
	b.cols = append(b.cols, col+" = ?")
	b.args = append(b.args, sqlValue(o.Value))
}

// sqlValue unwraps the nullable model types into driver values.
func sqlValue(v any) any {
	switch v := v.(type) {
	case *string:
		return nullString(v)
	case *int:
		return nullInt(v)
	case model.UnbindStatus:
		return string(v)
	}
	return v
}

// setEncoded adds col with the value produced by encode when set is true.
// The first encoding error is kept and reported by exec.
func setEncoded(b *setBuilder, col string, isSet bool, encode func() (*string, error)) {
	if !isSet || b.err != nil {
		return
	}
	v, err := encode()
	if err != nil {
		b.err = fmt.Errorf("%s: %w", col, err)
		return
	}
	b.cols = append(b.cols, col+" = ?")
	b.args = append(b.args, nullString(v))
}

func (b *setBuilder) empty() bool {
	return len(b.cols) == 0
}

// exec runs UPDATE table SET ... WHERE where.
func (b *setBuilder) exec(ctx context.Context, conn *sql.DB, table, where string, whereArgs ...any) error {
	if b.err != nil {
		return b.err
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(b.cols, ", "), where)
	_, err := conn.ExecContext(ctx, query, append(b.args, whereArgs...)...)
	return err
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	n := int(ni.Int64)
	return &n
}

// count runs a SELECT COUNT(*) style query.
func (db *DB) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
