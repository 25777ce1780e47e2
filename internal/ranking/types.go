package ranking

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// PositionOrigin is the position of the first entry in every ranking.
const PositionOrigin int64 = 1

// DefaultAccessor is the accessor name used when a handler does not name one.
const DefaultAccessor = "objects"

// Buffer identifies one half of the double-buffered ranking storage.
// The numeric values are persisted; do not reorder.
type Buffer int

const (
	// Staging holds rows written by a flush in progress. Never read.
	Staging Buffer = 0

	// Active holds the rows currently served to readers.
	Active Buffer = 1
)

func (b Buffer) String() string {
	switch b {
	case Staging:
		return "staging"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("Buffer(%d)", int(b))
	}
}

// Valid reports whether b is one of the two persisted buffer values.
func (b Buffer) Valid() bool {
	return b == Staging || b == Active
}

// Direction selects the scan order of a ranking.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// ParseOrdering splits the "-typology" shorthand into a typology name and a
// direction. A leading '-' means descending.
func ParseOrdering(s string) (string, Direction) {
	if strings.HasPrefix(s, "-") {
		return NormalizeName(s[1:]), Descending
	}
	return NormalizeName(s), Ascending
}

// NormalizeName trims surrounding whitespace and applies Unicode NFC.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Ref is a generic reference to one entity: a type tag plus a numeric id.
type Ref struct {
	Type string
	ID   int64
}

func (r Ref) String() string {
	return fmt.Sprintf("%s#%d", r.Type, r.ID)
}

// Entry is one persisted ranking row.
type Entry struct {
	Ref
	Typology string
	Buffer   Buffer
	Position int64
}

// Accessor fetches full entities by id. Ids missing from the result are
// treated as deleted and skipped by readers.
type Accessor interface {
	Fetch(ctx context.Context, ids []int64) (map[int64]any, error)
}

// AccessorFunc adapts a function to the Accessor interface.
type AccessorFunc func(ctx context.Context, ids []int64) (map[int64]any, error)

// Fetch calls f.
func (f AccessorFunc) Fetch(ctx context.Context, ids []int64) (map[int64]any, error) {
	return f(ctx, ids)
}

// EntityType describes a rankable entity type: its stable tag and the named
// accessors that resolve ids back into entities.
//
// Accessors should be attached before the type is registered; EntityType is
// not safe for concurrent mutation.
type EntityType struct {
	tag       string
	accessors map[string]Accessor
}

// NewEntityType returns an entity type with the given tag and no accessors.
func NewEntityType(tag string) *EntityType {
	return &EntityType{
		tag:       NormalizeName(tag),
		accessors: make(map[string]Accessor),
	}
}

// Tag returns the normalized type tag.
func (t *EntityType) Tag() string {
	return t.tag
}

// WithAccessor attaches an accessor under name and returns t.
func (t *EntityType) WithAccessor(name string, a Accessor) *EntityType {
	t.accessors[NormalizeName(name)] = a
	return t
}

// Accessor returns the accessor registered under name.
func (t *EntityType) Accessor(name string) (Accessor, bool) {
	a, ok := t.accessors[NormalizeName(name)]
	return a, ok
}

// AccessorNames returns the attached accessor names, sorted.
func (t *EntityType) AccessorNames() []string {
	names := make([]string, 0, len(t.accessors))
	for name := range t.accessors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *EntityType) String() string {
	return t.tag
}
