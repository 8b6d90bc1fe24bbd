package schema

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

//go:embed defs.cue
var defsCUE string

//go:embed default.cue
var defaultCUE string

// LoadError is a schema loading error with CUE source position.
type LoadError struct {
	Path    string // e.g. "entity.users.relations.roles"
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Path, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Default returns the registry built from the embedded demo schema.
func Default() (*Registry, error) {
	return CompileString(defaultCUE)
}

// CompileString builds a registry from CUE source text.
func CompileString(src string) (*Registry, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return build(ctx, v)
}

// Load builds a registry from the CUE package in dir.
func Load(dir string) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &LoadError{Message: fmt.Sprintf("schema directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return build(ctx, v)
}

// build unifies v with the entity definitions and extracts the registry.
func build(ctx *cue.Context, v cue.Value) (*Registry, error) {
	defs := ctx.CompileString(defsCUE, cue.Filename("defs.cue"))
	if err := defs.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := defs.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	entitiesVal := unified.LookupPath(cue.ParsePath("entity"))
	if !entitiesVal.Exists() {
		return nil, &LoadError{Path: "entity", Message: "no entities declared"}
	}

	iter, err := entitiesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	reg := &Registry{entities: map[string]*Entity{}}
	for iter.Next() {
		e, err := parseEntity(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		reg.entities[e.Name] = e
	}
	if len(reg.entities) == 0 {
		return nil, &LoadError{Path: "entity", Message: "no entities declared"}
	}

	if err := resolveRelations(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func parseEntity(name string, v cue.Value) (*Entity, error) {
	path := "entity." + name
	e := &Entity{Name: name, Relations: map[string]Relation{}}

	var err error
	if e.Table, err = stringField(v, "table"); err != nil {
		return nil, err
	}
	if e.PrimaryKey, err = stringField(v, "primary_key"); err != nil {
		return nil, err
	}
	if e.SoftDelete, err = boolField(v, "soft_delete"); err != nil {
		return nil, err
	}

	cols := v.LookupPath(cue.ParsePath("columns"))
	if !cols.Exists() {
		return nil, &LoadError{Path: path + ".columns", Message: "field is required", Pos: v.Pos()}
	}
	colIter, err := cols.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for colIter.Next() {
		col, err := colIter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		e.Columns = append(e.Columns, col)
	}
	if !e.HasColumn(e.PrimaryKey) {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("primary key %q is not a column", e.PrimaryKey), Pos: v.Pos()}
	}

	rels := v.LookupPath(cue.ParsePath("relations"))
	if !rels.Exists() {
		return e, nil
	}
	relIter, err := rels.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for relIter.Next() {
		r, err := parseRelation(relIter.Label(), relIter.Value())
		if err != nil {
			return nil, err
		}
		if !e.HasColumn(r.OwnerKey) {
			return nil, &LoadError{
				Path:    path + ".relations." + r.Name,
				Message: fmt.Sprintf("owner key %q is not a column of %s", r.OwnerKey, name),
				Pos:     relIter.Value().Pos(),
			}
		}
		e.Relations[r.Name] = r
	}

	return e, nil
}

func parseRelation(name string, v cue.Value) (Relation, error) {
	r := Relation{Name: name}

	kind, err := stringField(v, "kind")
	if err != nil {
		return r, err
	}
	r.Kind = RelationKind(kind)

	fields := []struct {
		key string
		dst *string
	}{
		{"entity", &r.Entity},
		{"owner_key", &r.OwnerKey},
		{"target_key", &r.TargetKey},
		{"through", &r.Through},
		{"through_owner_key", &r.ThroughOwnerKey},
		{"through_target_key", &r.ThroughTargetKey},
	}
	for _, f := range fields {
		if *f.dst, err = stringField(v, f.key); err != nil {
			return r, err
		}
	}

	if r.Through != "" && (r.ThroughOwnerKey == "" || r.ThroughTargetKey == "") {
		return r, &LoadError{
			Message: fmt.Sprintf("relation %s: through requires through_owner_key and through_target_key", name),
			Pos:     v.Pos(),
		}
	}
	return r, nil
}

// resolveRelations fills target table and key details from target entities.
func resolveRelations(reg *Registry) error {
	for _, e := range reg.entities {
		for name, r := range e.Relations {
			target, ok := reg.entities[r.Entity]
			if !ok {
				return &LoadError{
					Path:    fmt.Sprintf("entity.%s.relations.%s", e.Name, name),
					Message: fmt.Sprintf("unknown target entity %q", r.Entity),
				}
			}
			if !target.HasColumn(r.TargetKey) {
				return &LoadError{
					Path:    fmt.Sprintf("entity.%s.relations.%s", e.Name, name),
					Message: fmt.Sprintf("target key %q is not a column of %s", r.TargetKey, target.Name),
				}
			}
			r.Table = target.Table
			r.PrimaryKey = target.PrimaryKey
			e.Relations[name] = r
		}
	}
	return nil
}

func stringField(v cue.Value, path string) (string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return "", &LoadError{Path: path, Message: "field is required", Pos: v.Pos()}
	}
	f, _ = f.Default()
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func boolField(v cue.Value, path string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return false, &LoadError{Path: path, Message: "field is required", Pos: v.Pos()}
	}
	f, _ = f.Default()
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Message: err.Error()}
	}

	first := errs[0]
	le := &LoadError{Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
