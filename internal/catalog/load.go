package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"gopkg.in/yaml.v3"
)

// ErrNoCatalog is returned by Load when path does not exist.
var ErrNoCatalog = errors.New("catalog not found")

// Load reads a catalog from a .yaml/.yml file, a .cue file, or a directory
// holding a CUE package, and validates it.
func Load(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoCatalog, path)
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	if info.IsDir() {
		return LoadCUEDir(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return ParseYAML(data, path)
	case ".cue":
		return ParseCUE(data, path)
	default:
		return nil, &LoadError{File: path, Message: "unsupported catalog format, want .yaml, .yml or .cue"}
	}
}

// ParseYAML decodes and validates a YAML catalog. Unknown keys are errors.
func ParseYAML(data []byte, source string) (*Catalog, error) {
	cat := &Catalog{Source: source}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{File: source, Message: err.Error()}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cat); err != nil && !errors.Is(err, io.EOF) {
		return nil, &LoadError{File: source, Message: err.Error()}
	}
	setYAMLLines(cat, &doc)

	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// setYAMLLines copies the line of each entities[i] mapping onto the entity.
func setYAMLLines(cat *Catalog, doc *yaml.Node) {
	if len(doc.Content) == 0 {
		return
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "entities" {
			continue
		}
		for j, item := range root.Content[i+1].Content {
			if j < len(cat.Entities) {
				cat.Entities[j].Line = item.Line
			}
		}
	}
}

// ParseCUE compiles and validates a single-file CUE catalog.
func ParseCUE(data []byte, source string) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(source))
	return fromCUE(v, source)
}

// LoadCUEDir builds the CUE package in dir and validates it as a catalog.
func LoadCUEDir(dir string) (*Catalog, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{File: dir, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{File: dir, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	ctx := cuecontext.New()
	return fromCUE(ctx.BuildInstance(inst), dir)
}

func fromCUE(v cue.Value, source string) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, cueError(source, "", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(source, "", err)
	}

	cat := &Catalog{Source: source}
	entities := v.LookupPath(cue.ParsePath("entity"))
	if entities.Exists() {
		iter, err := entities.Fields()
		if err != nil {
			return nil, cueError(source, "entity", err)
		}
		for iter.Next() {
			e, err := parseCUEEntity(iter.Selector(), iter.Value(), source)
			if err != nil {
				return nil, err
			}
			cat.Entities = append(cat.Entities, e)
		}
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// parseCUEEntity reads one entity: "<type>": {...} struct.
func parseCUEEntity(sel cue.Selector, v cue.Value, source string) (Entity, error) {
	e := Entity{Line: v.Pos().Line()}
	if sel.LabelType() == cue.StringLabel {
		e.Type = sel.Unquoted()
	} else {
		e.Type = sel.String()
	}
	field := "entity." + sel.String()

	var err error
	if e.Table, err = optionalString(v, "table"); err != nil {
		return e, cueError(source, field+".table", err)
	}
	if e.Key, err = optionalString(v, "key"); err != nil {
		return e, cueError(source, field+".key", err)
	}
	if e.Accessor, err = optionalString(v, "accessor"); err != nil {
		return e, cueError(source, field+".accessor", err)
	}
	if cols := v.LookupPath(cue.ParsePath("columns")); cols.Exists() {
		if err := cols.Decode(&e.Columns); err != nil {
			return e, cueError(source, field+".columns", err)
		}
	}

	typologies := v.LookupPath(cue.ParsePath("typology"))
	if !typologies.Exists() {
		return e, nil
	}
	iter, err := typologies.Fields()
	if err != nil {
		return e, cueError(source, field+".typology", err)
	}
	for iter.Next() {
		query, err := iter.Value().String()
		if err != nil {
			return e, cueError(source, field+".typology."+iter.Selector().String(), err)
		}
		name := iter.Selector().String()
		if iter.Selector().LabelType() == cue.StringLabel {
			name = iter.Selector().Unquoted()
		}
		e.Typologies = append(e.Typologies, Typology{Name: name, Query: query})
	}
	return e, nil
}

func optionalString(v cue.Value, name string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() || !f.IsConcrete() {
		return "", nil
	}
	return f.String()
}

func cueError(source, field string, err error) *LoadError {
	return &LoadError{File: source, Field: field, Message: err.Error()}
}
