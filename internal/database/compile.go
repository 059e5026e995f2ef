package database

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/Shimizu-Technology/holo-search-api/internal/query"
)

// columns maps predicate fields to SQL expressions.
var columns = map[query.Field]string{
	query.FieldID:          "id",
	query.FieldTitle:       "title",
	query.FieldChannelID:   "channel_id",
	query.FieldStatus:      "status",
	query.FieldTopicID:     "topic_id",
	query.FieldAvailableAt: "available_at",
	query.FieldRaw:         "raw::text",
}

// sqlBuilder accumulates positional arguments while a predicate is compiled.
type sqlBuilder struct {
	args []interface{}
}

// bind appends an argument and returns its $N placeholder.
func (b *sqlBuilder) bind(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// compileWhere turns a predicate into a parameterized WHERE expression.
// The pass-through predicate compiles to TRUE.
func compileWhere(p query.Predicate) (string, []interface{}, error) {
	b := &sqlBuilder{}
	sql, err := b.compile(p)
	if err != nil {
		return "", nil, err
	}
	return sql, b.args, nil
}

func (b *sqlBuilder) compile(p query.Predicate) (string, error) {
	switch p.Op {
	case query.OpAll:
		return "TRUE", nil
	case query.OpAnd, query.OpOr:
		joiner := " AND "
		if p.Op == query.OpOr {
			joiner = " OR "
		}
		parts := make([]string, 0, len(p.Children))
		for _, c := range p.Children {
			part, err := b.compile(c)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		if len(parts) == 0 {
			return "TRUE", nil
		}
		return "(" + strings.Join(parts, joiner) + ")", nil
	}

	col, ok := columns[p.Field]
	if !ok {
		return "", fmt.Errorf("unknown filter field %q", p.Field)
	}

	switch p.Op {
	case query.OpEq:
		return col + " = " + b.bind(p.Value), nil
	case query.OpNe:
		return col + " <> " + b.bind(p.Value), nil
	case query.OpContains:
		return col + " LIKE " + b.bind(likePattern(p.Value)), nil
	case query.OpContainsFold:
		// served by the pg_trgm index on title
		return col + " ILIKE " + b.bind(likePattern(p.Value)), nil
	case query.OpRange:
		if p.Field != query.FieldAvailableAt {
			return "", fmt.Errorf("range filter on non-time field %q", p.Field)
		}
		return fmt.Sprintf("(%s >= %s AND %s < %s)", col, b.bind(p.From), col, b.bind(p.To)), nil
	case query.OpIn:
		if len(p.Values) == 0 {
			return "FALSE", nil
		}
		return col + " = ANY(" + b.bind(pq.Array(p.Values)) + ")", nil
	case query.OpNotNull:
		return col + " IS NOT NULL", nil
	}
	return "", fmt.Errorf("unsupported filter operator %s", p.Op)
}

// likePattern wraps s in % wildcards, escaping LIKE metacharacters so the
// user's text is matched literally. Backslash is Postgres' default escape.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
