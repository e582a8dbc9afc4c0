package sqlq

import (
	"fmt"
	"strings"

	"github.com/pulseboardhq/analytics-backend/internal/errs"
)

// Condition is one parameterized predicate. Value is opaque to the builder
// and always leaves as a bound parameter ($n placeholder).
type Condition struct {
	Column   string
	Operator string // "=", ">=", "<=", "IN"
	Value    any    // for IN, a []any of members
}

// SelectBuilder composes a single read-only SELECT over one validated
// relation.
type SelectBuilder struct {
	from    Identifier
	conds   []Condition
	orderBy string
	desc    bool
	limit   int
	offset  int
}

func NewSelect(from Identifier) *SelectBuilder {
	return &SelectBuilder{from: from, limit: -1, offset: -1}
}

func (b *SelectBuilder) Where(c Condition) *SelectBuilder {
	b.conds = append(b.conds, c)
	return b
}

func (b *SelectBuilder) OrderBy(column string, desc bool) *SelectBuilder {
	b.orderBy = column
	b.desc = desc
	return b
}

func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = n
	return b
}

func (b *SelectBuilder) Offset(n int) *SelectBuilder {
	b.offset = n
	return b
}

// Build renders the statement and its bound parameters. Column names are
// re-checked against the identifier pattern; values are never interpolated.
func (b *SelectBuilder) Build() (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(b.from.Qualified())

	params := make([]any, 0, len(b.conds))
	next := 1

	if len(b.conds) > 0 {
		sb.WriteString(" WHERE ")
		for i, c := range b.conds {
			if !ValidColumn(c.Column) {
				return "", nil, errs.NewInvalidViewIdentifierError(
					"condition column failed identifier validation: " + c.Column)
			}
			if i > 0 {
				sb.WriteString(" AND ")
			}
			switch c.Operator {
			case "IN":
				members, ok := c.Value.([]any)
				if !ok || len(members) == 0 {
					return "", nil, errs.NewValidationError(
						"IN condition requires a non-empty member list for column " + c.Column)
				}
				placeholders := make([]string, len(members))
				for j, m := range members {
					placeholders[j] = fmt.Sprintf("$%d", next)
					params = append(params, m)
					next++
				}
				fmt.Fprintf(&sb, "%s IN (%s)", c.Column, strings.Join(placeholders, ", "))
			case "=", ">=", "<=", ">", "<":
				fmt.Fprintf(&sb, "%s %s $%d", c.Column, c.Operator, next)
				params = append(params, c.Value)
				next++
			default:
				return "", nil, errs.NewValidationError("unsupported operator: " + c.Operator)
			}
		}
	}

	if b.orderBy != "" {
		if !ValidColumn(b.orderBy) {
			return "", nil, errs.NewUnknownOrderColumnError(b.orderBy)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(b.orderBy)
		if b.desc {
			sb.WriteString(" DESC")
		}
	}

	if b.limit >= 0 {
		fmt.Fprintf(&sb, " LIMIT %d", b.limit)
	}
	if b.offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", b.offset)
	}

	return sb.String(), params, nil
}
