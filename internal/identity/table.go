// Package identity holds the run-scoped mapping from old to new identities
// for modules, models and schemas. Every map is write-once: an old identity
// maps to at most one new identity per run.
package identity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kingrea/modmigrate/internal/project"
)

// ErrConflict is returned when an old identity is already mapped elsewhere.
var ErrConflict = errors.New("identity: conflicting mapping")

// Table is threaded explicitly through the migration phases. The zero value
// is ready to use.
type Table struct {
	modules    map[string]struct{}
	modelNames map[string]struct{}
	models     map[project.ModelID]project.ModelRef
	schemas    map[string]*project.Module
}

// New returns an empty table.
func New() Table {
	return Table{}
}

func (t *Table) init() {
	if t.modules == nil {
		t.modules = map[string]struct{}{}
	}
	if t.modelNames == nil {
		t.modelNames = map[string]struct{}{}
	}
	if t.models == nil {
		t.models = map[project.ModelID]project.ModelRef{}
	}
	if t.schemas == nil {
		t.schemas = map[string]*project.Module{}
	}
}

// AddModule records that the module named name was replaced.
func (t *Table) AddModule(name string) {
	t.init()
	t.modules[name] = struct{}{}
}

// HasModule reports whether name belongs to a replaced module.
func (t Table) HasModule(name string) bool {
	_, ok := t.modules[name]
	return ok
}

// ModuleNames returns the replaced module names, sorted.
func (t Table) ModuleNames() []string {
	return sortedKeys(t.modules)
}

// AddModel maps an old model to its replacement. Re-adding the same mapping
// is a no-op; mapping the same old id elsewhere fails with ErrConflict.
func (t *Table) AddModel(old, replacement project.ModelRef) error {
	t.init()
	if existing, ok := t.models[old.ID]; ok {
		if existing == replacement {
			return nil
		}
		return fmt.Errorf("%w: model %s -> %s, already %s", ErrConflict, old, replacement, existing)
	}
	t.models[old.ID] = replacement
	t.modelNames[old.Name] = struct{}{}
	return nil
}

// Model returns the replacement for an old model id.
func (t Table) Model(id project.ModelID) (project.ModelRef, bool) {
	ref, ok := t.models[id]
	return ref, ok
}

// HasModelName reports whether a model with that simple name was replaced.
func (t Table) HasModelName(name string) bool {
	_, ok := t.modelNames[name]
	return ok
}

// RecordModelName remembers a replaced model name even when no replacement
// could be mapped for it.
func (t *Table) RecordModelName(name string) {
	t.init()
	t.modelNames[name] = struct{}{}
}

// ModelCount returns how many model mappings are recorded.
func (t Table) ModelCount() int {
	return len(t.models)
}

// AddSchema records the module now serving the schema formerly known as
// name.
func (t *Table) AddSchema(name string, module *project.Module) error {
	t.init()
	if existing, ok := t.schemas[name]; ok {
		if existing == module {
			return nil
		}
		return fmt.Errorf("%w: schema %s already served by %s", ErrConflict, name, existing.Ref())
	}
	t.schemas[name] = module
	return nil
}

// Schema returns the module serving the schema formerly known as name.
func (t Table) Schema(name string) (*project.Module, bool) {
	m, ok := t.schemas[name]
	return m, ok
}

// SchemaCount returns how many schema mappings are recorded.
func (t Table) SchemaCount() int {
	return len(t.schemas)
}

// Empty reports whether nothing was migrated.
func (t Table) Empty() bool {
	return len(t.modules) == 0 && len(t.models) == 0 && len(t.schemas) == 0
}

// Merge commits every entry of other into t. Nothing is committed when any
// entry conflicts.
func (t *Table) Merge(other Table) error {
	for _, id := range sortedModelIDs(other.models) {
		if existing, ok := t.models[id]; ok && existing != other.models[id] {
			return fmt.Errorf("%w: model %s -> %s, already %s", ErrConflict, id, other.models[id], existing)
		}
	}
	for _, name := range sortedKeys(other.schemas) {
		if existing, ok := t.schemas[name]; ok && existing != other.schemas[name] {
			return fmt.Errorf("%w: schema %s already served by %s", ErrConflict, name, existing.Ref())
		}
	}
	t.init()
	for name := range other.modules {
		t.modules[name] = struct{}{}
	}
	for name := range other.modelNames {
		t.modelNames[name] = struct{}{}
	}
	for id, ref := range other.models {
		t.models[id] = ref
	}
	for name, m := range other.schemas {
		t.schemas[name] = m
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedModelIDs(m map[project.ModelID]project.ModelRef) []project.ModelID {
	out := make([]project.ModelID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
