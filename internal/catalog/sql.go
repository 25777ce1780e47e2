package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"slices"

	"github.com/roach88/maat/internal/querysql"
	"github.com/roach88/maat/internal/ranking"
)

// Row is one fetched entity: column name to value. Byte slices are
// converted to strings.
type Row map[string]any

// SQLHandler is a ranking.Handler running one SELECT per typology.
type SQLHandler struct {
	db       *sql.DB
	accessor string
	names    []string
	queries  map[string]string
}

// NewSQLHandler returns the handler of e reading from db.
func NewSQLHandler(db *sql.DB, e Entity) *SQLHandler {
	h := &SQLHandler{
		db:       db,
		accessor: e.Accessor,
		queries:  make(map[string]string, len(e.Typologies)),
	}
	for _, t := range e.Typologies {
		h.names = append(h.names, t.Name)
		h.queries[t.Name] = t.Query
	}
	return h
}

func (h *SQLHandler) Typologies() []string {
	return slices.Clone(h.names)
}

func (h *SQLHandler) AccessorName() string {
	return h.accessor
}

// IDs runs the typology query when the sequence is first ranged over and
// streams the first column of each row. The cursor is closed when the
// consumer stops.
func (h *SQLHandler) IDs(ctx context.Context, typology string) iter.Seq2[int64, error] {
	query, ok := h.queries[ranking.NormalizeName(typology)]
	if !ok {
		return ranking.Fail(ranking.NewTypologyError("", typology))
	}

	return func(yield func(int64, error) bool) {
		rows, err := h.db.QueryContext(ctx, query)
		if err != nil {
			yield(0, ranking.StorageError("typology query "+typology, err))
			return
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			yield(0, ranking.StorageError("typology query "+typology, err))
			return
		}
		dest := make([]any, len(cols))
		var id int64
		dest[0] = &id
		for i := 1; i < len(dest); i++ {
			dest[i] = new(any)
		}

		for rows.Next() {
			if err := rows.Scan(dest...); err != nil {
				yield(0, fmt.Errorf("typology query %s: scan id: %w", typology, err))
				return
			}
			if !yield(id, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(0, ranking.StorageError("typology query "+typology, err))
		}
	}
}

// SQLAccessor fetches entity rows from a table by key.
type SQLAccessor struct {
	db       *sql.DB
	compiler *querysql.Compiler
	table    string
	key      string
	columns  []string
	chunk    int
}

// NewSQLAccessor returns the accessor of e. Ids are fetched in IN lists
// sized to the dialect's parameter limit.
func NewSQLAccessor(db *sql.DB, dialect querysql.Dialect, e Entity) *SQLAccessor {
	return &SQLAccessor{
		db:       db,
		compiler: querysql.NewCompiler(dialect),
		table:    e.Table,
		key:      e.Key,
		columns:  e.selectColumns(),
		chunk:    dialect.MaxParams,
	}
}

// Fetch returns a Row for every id present in the table.
func (a *SQLAccessor) Fetch(ctx context.Context, ids []int64) (map[int64]any, error) {
	out := make(map[int64]any, len(ids))
	for chunk := range slices.Chunk(ids, a.chunk) {
		if err := a.fetch(ctx, chunk, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (a *SQLAccessor) fetch(ctx context.Context, ids []int64, out map[int64]any) error {
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	query, args, err := a.compiler.Compile(querysql.Select{
		Columns: a.columns,
		From:    a.table,
		Where:   querysql.In{Field: a.key, Values: values},
		OrderBy: []querysql.Order{{Field: a.key}},
	})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", a.table, err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return ranking.StorageError("fetch "+a.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key int64
		dest := make([]any, len(a.columns))
		dest[0] = &key
		vals := make([]any, len(a.columns))
		for i := 1; i < len(dest); i++ {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("fetch %s: scan: %w", a.table, err)
		}

		row := Row{a.key: key}
		for i := 1; i < len(a.columns); i++ {
			if b, ok := vals[i].([]byte); ok {
				vals[i] = string(b)
			}
			row[a.columns[i]] = vals[i]
		}
		out[key] = row
	}
	if err := rows.Err(); err != nil {
		return ranking.StorageError("fetch "+a.table, err)
	}
	return nil
}

// Register builds the handler and entity type of every catalog entity and
// registers them in reg, in catalog order. Entity tables are read through
// db.
func Register(reg *ranking.Registry, db *sql.DB, dialect querysql.Dialect, cat *Catalog) ([]*ranking.EntityType, error) {
	types := make([]*ranking.EntityType, 0, len(cat.Entities))
	for _, e := range cat.Entities {
		t := ranking.NewEntityType(e.Type).WithAccessor(e.Accessor, NewSQLAccessor(db, dialect, e))
		if err := reg.Register(t, NewSQLHandler(db, e)); err != nil {
			return types, fmt.Errorf("register %s: %w", e.Type, err)
		}
		types = append(types, t)
	}
	return types, nil
}
