package querysql

// Query is a statement the Compiler can render.
//
// This is a sealed interface - only types in this package implement it, so
// Compile can switch exhaustively.
type Query interface {
	queryNode()
}

// Predicate is a WHERE condition.
type Predicate interface {
	predicateNode()
}

// Eq is field = value.
type Eq struct {
	Field string
	Value any
}

// Cmp is field <op> value for op in <, <=, >, >=.
type Cmp struct {
	Field string
	Op    string
	Value any
}

// In is field IN (values...). An empty In is always false.
type In struct {
	Field  string
	Values []any
}

// And is a conjunction. An empty And is always true.
type And []Predicate

func (Eq) predicateNode()  {}
func (Cmp) predicateNode() {}
func (In) predicateNode()  {}
func (And) predicateNode() {}

// Order is one ORDER BY term.
type Order struct {
	Field string
	Desc  bool
}

// Select reads rows.
//
// OrderBy is mandatory: every read in maat has a deterministic order.
type Select struct {
	Columns []string // empty means *
	From    string
	Where   Predicate
	OrderBy []Order
	Limit   int // 0 means no limit
	Offset  int
}

// Count counts rows matching Where, grouped by GroupBy when set.
// Grouped counts are ordered by the grouping columns.
type Count struct {
	From    string
	Where   Predicate
	GroupBy []string
}

// Insert writes Rows in a single multi-row VALUES statement.
type Insert struct {
	Table   string
	Columns []string
	Rows    [][]any
}

// Delete removes rows matching Where. When Limit > 0 at most Limit rows are
// removed, selected by Key (default "id") through a subquery, which both
// SQLite and PostgreSQL accept.
type Delete struct {
	From  string
	Where Predicate
	Key   string
	Limit int
}

// Update sets Set columns on rows matching Where.
type Update struct {
	Table string
	Set   []Assign
	Where Predicate
}

// Assign is one SET column = value term.
type Assign struct {
	Field string
	Value any
}

func (Select) queryNode() {}
func (Count) queryNode()  {}
func (Insert) queryNode() {}
func (Delete) queryNode() {}
func (Update) queryNode() {}
