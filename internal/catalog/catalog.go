// Package catalog declares SQL-backed entity types and their typologies in a
// YAML or CUE file and turns them into registered handlers.
//
// Every typology is a SELECT whose first column is the entity id, in rank
// order. Entities are fetched back from their table by key.
//
// YAML:
//
//	entities:
//	  - type: blog.article
//	    table: articles
//	    key: id
//	    columns: [id, title]
//	    typologies:
//	      - name: newest
//	        query: SELECT id FROM articles ORDER BY published_at DESC, id
//
// CUE:
//
//	entity: "blog.article": {
//		table:   "articles"
//		columns: ["id", "title"]
//		typology: newest: "SELECT id FROM articles ORDER BY published_at DESC, id"
//	}
package catalog

import (
	"fmt"
	"regexp"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/maat/internal/ranking"
)

// DefaultKey is the key column used when an entity does not name one.
const DefaultKey = "id"

// Catalog is a set of entity declarations, in file order.
type Catalog struct {
	Entities []Entity `yaml:"entities"`

	// Source is the file or directory the catalog was loaded from.
	Source string `yaml:"-"`
}

// Entity declares one rankable entity type backed by a table.
type Entity struct {
	Type       string     `yaml:"type"`
	Table      string     `yaml:"table"`
	Key        string     `yaml:"key"`
	Columns    []string   `yaml:"columns"`
	Accessor   string     `yaml:"accessor"`
	Typologies []Typology `yaml:"typologies"`

	// Line is the source line of the declaration, when known.
	Line int `yaml:"-"`
}

// Typology is one named ordering query.
type Typology struct {
	Name  string `yaml:"name"`
	Query string `yaml:"query"`
}

// LoadError describes one problem in a catalog file.
type LoadError struct {
	File    string
	Line    int
	Field   string
	Message string
}

func (e *LoadError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	switch {
	case loc != "" && e.Field != "":
		return fmt.Sprintf("%s: %s: %s", loc, e.Field, e.Message)
	case loc != "":
		return fmt.Sprintf("%s: %s", loc, e.Message)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	default:
		return e.Message
	}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Validate checks every declaration and returns all problems found.
// Missing keys and accessor names are filled with their defaults.
func (c *Catalog) Validate() error {
	var result *multierror.Error
	fail := func(e Entity, field, format string, args ...any) {
		result = multierror.Append(result, &LoadError{
			File:    c.Source,
			Line:    e.Line,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
		})
	}

	seenTypes := make(map[string]bool, len(c.Entities))
	for i := range c.Entities {
		e := &c.Entities[i]
		path := fmt.Sprintf("entities[%d]", i)

		e.Type = ranking.NormalizeName(e.Type)
		if e.Key == "" {
			e.Key = DefaultKey
		}
		if e.Accessor == "" {
			e.Accessor = ranking.DefaultAccessor
		}

		switch {
		case e.Type == "":
			fail(*e, path+".type", "entity type is required")
		case seenTypes[e.Type]:
			fail(*e, path+".type", "entity type %q declared twice", e.Type)
		}
		seenTypes[e.Type] = true

		if !identPattern.MatchString(e.Table) {
			fail(*e, path+".table", "invalid table name %q", e.Table)
		}
		if !identPattern.MatchString(e.Key) {
			fail(*e, path+".key", "invalid key column %q", e.Key)
		}
		for j, col := range e.Columns {
			if !identPattern.MatchString(col) {
				fail(*e, fmt.Sprintf("%s.columns[%d]", path, j), "invalid column name %q", col)
			}
		}

		if len(e.Typologies) == 0 {
			fail(*e, path+".typologies", "at least one typology is required")
		}
		seenTypologies := make(map[string]bool, len(e.Typologies))
		for j := range e.Typologies {
			t := &e.Typologies[j]
			tpath := fmt.Sprintf("%s.typologies[%d]", path, j)
			t.Name = ranking.NormalizeName(t.Name)
			switch {
			case t.Name == "":
				fail(*e, tpath+".name", "typology name is required")
			case t.Name[0] == '-':
				fail(*e, tpath+".name", "typology name %q must not start with '-'", t.Name)
			case seenTypologies[t.Name]:
				fail(*e, tpath+".name", "typology %q declared twice", t.Name)
			}
			seenTypologies[t.Name] = true
			if t.Query == "" {
				fail(*e, tpath+".query", "query is required")
			}
		}
	}
	return result.ErrorOrNil()
}

// selectColumns returns the columns an accessor reads: the key first, then
// the declared columns without it.
func (e Entity) selectColumns() []string {
	cols := []string{e.Key}
	for _, c := range e.Columns {
		if c != e.Key {
			cols = append(cols, c)
		}
	}
	return cols
}
