package querysql

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTooManyParams is returned when a statement would exceed the dialect's
// bound parameter ceiling.
var ErrTooManyParams = errors.New("too many bound parameters")

// Compiler renders Query values to parameterized SQL.
//
// CRITICAL: values are never interpolated - every value becomes a placeholder.
// CRITICAL: every Select carries an ORDER BY.
type Compiler struct {
	Dialect Dialect
}

// NewCompiler returns a Compiler for d.
func NewCompiler(d Dialect) *Compiler {
	return &Compiler{Dialect: d}
}

// Compile converts q to SQL text and its bound parameters.
func (c *Compiler) Compile(q Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}

	b := &builder{dialect: c.Dialect}
	var err error
	switch query := q.(type) {
	case Select:
		err = b.selectStmt(query)
	case *Select:
		err = b.selectStmt(*query)
	case Count:
		err = b.countStmt(query)
	case *Count:
		err = b.countStmt(*query)
	case Insert:
		err = b.insertStmt(query)
	case *Insert:
		err = b.insertStmt(*query)
	case Delete:
		err = b.deleteStmt(query)
	case *Delete:
		err = b.deleteStmt(*query)
	case Update:
		err = b.updateStmt(query)
	case *Update:
		err = b.updateStmt(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
	if err != nil {
		return "", nil, err
	}
	if len(b.params) > c.Dialect.MaxParams {
		return "", nil, fmt.Errorf("%w: %d > %d", ErrTooManyParams, len(b.params), c.Dialect.MaxParams)
	}
	return b.sb.String(), b.params, nil
}

// builder accumulates SQL text and parameters for one statement.
type builder struct {
	dialect Dialect
	sb      strings.Builder
	params  []any
}

func (b *builder) bind(v any) string {
	b.params = append(b.params, v)
	return b.dialect.placeholder(len(b.params))
}

func (b *builder) selectStmt(q Select) error {
	if q.From == "" {
		return fmt.Errorf("select: table is required")
	}
	if len(q.OrderBy) == 0 {
		return fmt.Errorf("select from %s: ORDER BY is required", q.From)
	}

	cols := "*"
	if len(q.Columns) > 0 {
		cols = strings.Join(q.Columns, ", ")
	}
	fmt.Fprintf(&b.sb, "SELECT %s FROM %s", cols, q.From)
	if err := b.where(q.Where); err != nil {
		return err
	}

	terms := make([]string, len(q.OrderBy))
	for i, o := range q.OrderBy {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		terms[i] = o.Field + " " + dir
	}
	b.sb.WriteString(" ORDER BY " + strings.Join(terms, ", "))

	if q.Limit > 0 {
		b.sb.WriteString(" LIMIT " + b.bind(q.Limit))
	}
	if q.Offset > 0 {
		if q.Limit <= 0 {
			return fmt.Errorf("select from %s: OFFSET requires LIMIT", q.From)
		}
		b.sb.WriteString(" OFFSET " + b.bind(q.Offset))
	}
	return nil
}

func (b *builder) countStmt(q Count) error {
	if q.From == "" {
		return fmt.Errorf("count: table is required")
	}
	cols := "COUNT(*)"
	if len(q.GroupBy) > 0 {
		cols = strings.Join(q.GroupBy, ", ") + ", COUNT(*)"
	}
	fmt.Fprintf(&b.sb, "SELECT %s FROM %s", cols, q.From)
	if err := b.where(q.Where); err != nil {
		return err
	}
	if len(q.GroupBy) > 0 {
		group := strings.Join(q.GroupBy, ", ")
		b.sb.WriteString(" GROUP BY " + group + " ORDER BY " + group)
	}
	return nil
}

func (b *builder) insertStmt(q Insert) error {
	if q.Table == "" || len(q.Columns) == 0 {
		return fmt.Errorf("insert: table and columns are required")
	}
	if len(q.Rows) == 0 {
		return fmt.Errorf("insert into %s: no rows", q.Table)
	}
	if n := len(q.Rows) * len(q.Columns); n > b.dialect.MaxParams {
		return fmt.Errorf("insert into %s: %w: %d rows x %d columns > %d",
			q.Table, ErrTooManyParams, len(q.Rows), len(q.Columns), b.dialect.MaxParams)
	}

	fmt.Fprintf(&b.sb, "INSERT INTO %s (%s) VALUES ", q.Table, strings.Join(q.Columns, ", "))
	for i, row := range q.Rows {
		if len(row) != len(q.Columns) {
			return fmt.Errorf("insert into %s: row %d has %d values, want %d", q.Table, i, len(row), len(q.Columns))
		}
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.sb.WriteByte('(')
		for j, v := range row {
			if j > 0 {
				b.sb.WriteString(", ")
			}
			b.sb.WriteString(b.bind(v))
		}
		b.sb.WriteByte(')')
	}
	return nil
}

func (b *builder) deleteStmt(q Delete) error {
	if q.From == "" {
		return fmt.Errorf("delete: table is required")
	}
	if q.Limit <= 0 {
		b.sb.WriteString("DELETE FROM " + q.From)
		return b.where(q.Where)
	}

	key := q.Key
	if key == "" {
		key = "id"
	}
	fmt.Fprintf(&b.sb, "DELETE FROM %s WHERE %s IN (SELECT %s FROM %s", q.From, key, key, q.From)
	if err := b.where(q.Where); err != nil {
		return err
	}
	b.sb.WriteString(" LIMIT " + b.bind(q.Limit) + ")")
	return nil
}

func (b *builder) updateStmt(q Update) error {
	if q.Table == "" || len(q.Set) == 0 {
		return fmt.Errorf("update: table and assignments are required")
	}
	b.sb.WriteString("UPDATE " + q.Table + " SET ")
	for i, a := range q.Set {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.sb.WriteString(a.Field + " = " + b.bind(a.Value))
	}
	return b.where(q.Where)
}

func (b *builder) where(p Predicate) error {
	if p == nil {
		return nil
	}
	sql, err := b.predicate(p)
	if err != nil {
		return err
	}
	b.sb.WriteString(" WHERE " + sql)
	return nil
}

// predicate renders p. Parameters are bound in textual order so numbered
// placeholders line up.
func (b *builder) predicate(p Predicate) (string, error) {
	switch pred := p.(type) {
	case Eq:
		return pred.Field + " = " + b.bind(pred.Value), nil
	case Cmp:
		switch pred.Op {
		case "<", "<=", ">", ">=":
		default:
			return "", fmt.Errorf("unsupported comparison operator %q", pred.Op)
		}
		return pred.Field + " " + pred.Op + " " + b.bind(pred.Value), nil
	case In:
		if len(pred.Values) == 0 {
			return "1 = 0", nil
		}
		marks := make([]string, len(pred.Values))
		for i, v := range pred.Values {
			marks[i] = b.bind(v)
		}
		return pred.Field + " IN (" + strings.Join(marks, ", ") + ")", nil
	case And:
		if len(pred) == 0 {
			return "1 = 1", nil
		}
		parts := make([]string, 0, len(pred))
		for _, sub := range pred {
			sql, err := b.predicate(sub)
			if err != nil {
				return "", err
			}
			parts = append(parts, sql)
		}
		return strings.Join(parts, " AND "), nil
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}
