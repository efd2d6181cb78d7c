package postgres

import (
	"fmt"
	"strings"
)

// query accumulates a SELECT with numbered placeholders.
type query struct {
	sb   strings.Builder
	args []any
}

func newQuery(base string) *query {
	q := &query{}
	q.sb.WriteString(base)
	return q
}

// and appends " AND <clause>", where clause holds one %d for the placeholder number.
func (q *query) and(clause string, arg any) {
	q.args = append(q.args, arg)
	q.sb.WriteString(" AND ")
	fmt.Fprintf(&q.sb, clause, len(q.args))
}

func (q *query) order(by string) {
	q.sb.WriteString(" ORDER BY ")
	q.sb.WriteString(by)
}

func (q *query) limit(n int) {
	q.args = append(q.args, n)
	fmt.Fprintf(&q.sb, " LIMIT $%d", len(q.args))
}

// page orders and applies LIMIT/OFFSET, defaulting the limit to 20.
func (q *query) page(orderBy string, limit, offset int) {
	if limit <= 0 {
		limit = 20
	}
	q.order(orderBy)
	q.limit(limit)
	q.args = append(q.args, offset)
	fmt.Fprintf(&q.sb, " OFFSET $%d", len(q.args))
}

func (q *query) String() string {
	return q.sb.String()
}

// andOpt adds the clause only when v is non-nil.
func andOpt[T any](q *query, clause string, v *T) {
	if v != nil {
		q.and(clause, *v)
	}
}
