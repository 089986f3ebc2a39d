// Package query turns declarative analysis requests into parameterized SQL over the data table.
// Identifiers are always quoted and values always bound; the generated text uses ? placeholders.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Annany2002/nebula-insights/internal/core"
)

var (
	ErrNoAggregation       = errors.New("at least one aggregation (column + operation) is required")
	ErrInvalidAggregation  = errors.New("invalid aggregation")
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrUnknownColumn       = errors.New("unknown column")
)

// Aggregation is one OPERATION(column) AS alias term.
type Aggregation struct {
	Column    string `json:"column"`
	Operation string `json:"operation"`
	Alias     string `json:"alias,omitempty"`
}

// Filter is one predicate. Value is a scalar or, for IN, a list.
type Filter struct {
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Order is one ORDER BY term. Direction "desc" sorts descending, anything else ascending.
type Order struct {
	Column    string `json:"column"`
	Direction string `json:"direction,omitempty"`
}

// StringList decodes from a JSON string or array of strings.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*l = nil
		} else {
			*l = StringList{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected a string or a list of strings: %w", err)
	}
	*l = many
	return nil
}

// Request is an analysis query. Column and Operation are the legacy single-aggregation form.
type Request struct {
	GroupBy      StringList    `json:"groupBy,omitempty"`
	Aggregations []Aggregation `json:"aggregations,omitempty"`
	Column       string        `json:"column,omitempty"`
	Operation    string        `json:"operation,omitempty"`
	Filters      []Filter      `json:"filters,omitempty"`
	Having       []Filter      `json:"having,omitempty"`
	OrderBy      []Order       `json:"orderBy,omitempty"`
	Limit        *int          `json:"limit,omitempty"`
	Offset       *int          `json:"offset,omitempty"`
}

var aggregateOps = map[string]bool{"SUM": true, "COUNT": true, "AVG": true, "MIN": true, "MAX": true}

var operatorAliases = map[string]string{
	"=":    "=",
	"!=":   "!=",
	"<>":   "!=",
	"≠":    "!=",
	"<":    "<",
	">":    ">",
	"<=":   "<=",
	"≤":    "<=",
	">=":   ">=",
	"≥":    ">=",
	"LIKE": "LIKE",
	"IN":   "IN",
}

// Builder generates SQL against one table.
type Builder struct {
	table   string
	strict  bool
	columns map[string]bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithStrictOperators makes an unknown operator fail the request instead of dropping the predicate.
func WithStrictOperators(strict bool) Option {
	return func(b *Builder) { b.strict = strict }
}

// WithColumns restricts every referenced column to names. Without it any quoted name is accepted.
func WithColumns(names []string) Option {
	return func(b *Builder) {
		b.columns = make(map[string]bool, len(names))
		for _, name := range names {
			b.columns[name] = true
		}
	}
}

// NewBuilder returns a builder for table.
func NewBuilder(table string, opts ...Option) *Builder {
	b := &Builder{table: table}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build renders req as
// SELECT groups, aggregates FROM table [WHERE] [GROUP BY] [HAVING] [ORDER BY] [LIMIT ? [OFFSET ?]].
// Arguments follow placeholder order: WHERE, HAVING, LIMIT, OFFSET.
func (b *Builder) Build(req Request) (string, []any, error) {
	aggs := req.Aggregations
	if len(aggs) == 0 {
		if req.Column == "" || req.Operation == "" {
			return "", nil, ErrNoAggregation
		}
		aggs = []Aggregation{{Column: req.Column, Operation: req.Operation, Alias: "value"}}
	}

	selectParts := make([]string, 0, len(req.GroupBy)+len(aggs))
	groupParts := make([]string, 0, len(req.GroupBy))
	for _, g := range req.GroupBy {
		if err := b.checkColumn(g); err != nil {
			return "", nil, err
		}
		selectParts = append(selectParts, core.QuoteIdent(g))
		groupParts = append(groupParts, core.QuoteIdent(g))
	}

	aliases := make(map[string]string, len(aggs))
	for _, agg := range aggs {
		op := strings.ToUpper(strings.TrimSpace(agg.Operation))
		if !aggregateOps[op] {
			return "", nil, fmt.Errorf("%w: operation %q", ErrInvalidAggregation, agg.Operation)
		}
		target := "*"
		if agg.Column == "*" && op != "COUNT" {
			return "", nil, fmt.Errorf("%w: %s(*)", ErrInvalidAggregation, op)
		}
		if agg.Column != "*" {
			if err := b.checkColumn(agg.Column); err != nil {
				return "", nil, err
			}
			target = core.QuoteIdent(agg.Column)
		}
		alias := agg.Alias
		if alias == "" {
			alias = strings.ToLower(op) + "_" + agg.Column
		}
		expr := fmt.Sprintf("%s(%s)", op, target)
		aliases[alias] = expr
		selectParts = append(selectParts, expr+" AS "+core.QuoteIdent(alias))
	}

	var sb strings.Builder
	args := make([]any, 0)
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selectParts, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(core.QuoteIdent(b.table))

	where, whereArgs, err := b.predicates(req.Filters, nil, false)
	if err != nil {
		return "", nil, err
	}
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
		args = append(args, whereArgs...)
	}

	if len(groupParts) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(groupParts, ", "))
	}

	having, havingArgs, err := b.predicates(req.Having, aliases, false)
	if err != nil {
		return "", nil, err
	}
	if having != "" {
		sb.WriteString(" HAVING ")
		sb.WriteString(having)
		args = append(args, havingArgs...)
	}

	if len(req.OrderBy) > 0 {
		orderParts := make([]string, 0, len(req.OrderBy))
		for _, o := range req.OrderBy {
			if _, ok := aliases[o.Column]; !ok {
				if err := b.checkColumn(o.Column); err != nil {
					return "", nil, err
				}
			}
			dir := "ASC"
			if strings.EqualFold(strings.TrimSpace(o.Direction), "desc") {
				dir = "DESC"
			}
			orderParts = append(orderParts, core.QuoteIdent(o.Column)+" "+dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(orderParts, ", "))
	}

	if req.Limit != nil && *req.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, *req.Limit)
		if req.Offset != nil && *req.Offset >= 0 {
			sb.WriteString(" OFFSET ?")
			args = append(args, *req.Offset)
		}
	}

	return sb.String(), args, nil
}

// BuildFilter renders filters as a WHERE body without the keyword. likeContains wraps LIKE values
// in %...% as the download screens expect.
func (b *Builder) BuildFilter(filters []Filter, likeContains bool) (string, []any, error) {
	return b.predicates(filters, nil, likeContains)
}

// BuildSelect renders SELECT * over the filtered rows, newest first.
func (b *Builder) BuildSelect(filters []Filter, likeContains bool) (string, []any, error) {
	where, args, err := b.BuildFilter(filters, likeContains)
	if err != nil {
		return "", nil, err
	}
	sql := "SELECT * FROM " + core.QuoteIdent(b.table)
	if where != "" {
		sql += " WHERE " + where
	}
	sql += " ORDER BY " + core.QuoteIdent(core.SystemColumn) + " DESC"
	return sql, args, nil
}

// BuildCount renders SELECT COUNT(*) over the filtered rows.
func (b *Builder) BuildCount(filters []Filter, likeContains bool) (string, []any, error) {
	where, args, err := b.BuildFilter(filters, likeContains)
	if err != nil {
		return "", nil, err
	}
	sql := "SELECT COUNT(*) FROM " + core.QuoteIdent(b.table)
	if where != "" {
		sql += " WHERE " + where
	}
	return sql, args, nil
}

// predicates joins filters with AND. A column naming an entry of aliases renders as the aliased
// expression, since PostgreSQL does not resolve output aliases in HAVING.
func (b *Builder) predicates(filters []Filter, aliases map[string]string, likeContains bool) (string, []any, error) {
	parts := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		op, ok := operatorAliases[strings.ToUpper(strings.TrimSpace(f.Operator))]
		if !ok {
			if b.strict {
				return "", nil, fmt.Errorf("%w: %q", ErrUnsupportedOperator, f.Operator)
			}
			continue
		}
		col, isAlias := aliases[f.Column]
		if !isAlias {
			if err := b.checkColumn(f.Column); err != nil {
				return "", nil, err
			}
			col = core.QuoteIdent(f.Column)
		}

		switch op {
		case "IN":
			values := listOf(f.Value)
			if len(values) == 0 {
				parts = append(parts, "1 = 0")
				continue
			}
			parts = append(parts, fmt.Sprintf("%s IN (%s)", col, strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")))
			args = append(args, values...)
		case "LIKE":
			value := f.Value
			if likeContains {
				value = fmt.Sprintf("%%%v%%", f.Value)
			}
			parts = append(parts, col+" LIKE ?")
			args = append(args, value)
		default:
			parts = append(parts, fmt.Sprintf("%s %s ?", col, op))
			args = append(args, f.Value)
		}
	}
	return strings.Join(parts, " AND "), args, nil
}

func (b *Builder) checkColumn(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty column name", ErrUnknownColumn)
	}
	if b.columns != nil && !b.columns[name] {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return nil
}

func listOf(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}
