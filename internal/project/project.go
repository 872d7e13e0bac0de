// Package project holds the in-memory representation of a typed-tree
// project: modules, their models, the node trees inside those models and the
// schemas contributed by language modules.
//
// A Project is mutated only inside Write, which serialises every mutation of
// the module list and of the trees hanging off it.
package project

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
)

// Project is a live, mutable set of modules.
type Project struct {
	Name string
	Root string

	access  sync.Mutex
	mu      sync.RWMutex
	modules []*Module
	folders map[string]string
}

// New creates an empty project rooted at root.
func New(name, root string) *Project {
	return &Project{Name: name, Root: root, folders: map[string]string{}}
}

// Write runs fn with exclusive write access to the project. Calls do not
// nest.
func (p *Project) Write(fn func() error) error {
	p.access.Lock()
	defer p.access.Unlock()
	return fn()
}

// Modules returns a snapshot of the module list.
func (p *Project) Modules() []*Module {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*Module(nil), p.modules...)
}

// ModuleByName finds the module currently owning name.
func (p *Project) ModuleByName(name string) (*Module, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, m := range p.modules {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// ModuleByPath finds the module backed by the descriptor at path.
func (p *Project) ModuleByPath(path string) (*Module, bool) {
	if path == "" {
		return nil, false
	}
	clean := filepath.Clean(path)
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, m := range p.modules {
		if m.Path != "" && filepath.Clean(m.Path) == clean {
			return m, true
		}
	}
	return nil, false
}

// Models returns every model of every module.
func (p *Project) Models() []*Model {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*Model
	for _, m := range p.modules {
		out = append(out, m.models...)
	}
	return out
}

// ModelByName finds a model by simple name across all modules.
func (p *Project) ModelByName(name string) (*Model, bool) {
	for _, model := range p.Models() {
		if model.Name() == name {
			return model, true
		}
	}
	return nil, false
}

// ModelByID finds a model by id across all modules.
func (p *Project) ModelByID(id ModelID) (*Model, bool) {
	for _, model := range p.Models() {
		if model.Ref().ID == id {
			return model, true
		}
	}
	return nil, false
}

// AddModule registers m. A second module with the same id is rejected; two
// modules may share a name only transiently while one of them is replaced.
func (p *Project) AddModule(m *Module) error {
	if err := m.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.modules {
		if existing.ID == m.ID {
			return fmt.Errorf("project: module id %s already registered by %s", m.ID, existing.Name)
		}
	}
	p.modules = append(p.modules, m)
	return nil
}

// RemoveModule unregisters m and forgets its folder.
func (p *Project) RemoveModule(m *Module) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.modules {
		if existing == m {
			p.modules = append(p.modules[:i], p.modules[i+1:]...)
			delete(p.folders, string(m.ID))
			return true
		}
	}
	return false
}

// FolderFor returns the logical folder a module is shown in.
func (p *Project) FolderFor(m *Module) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.folders[string(m.ID)]
}

// SetFolderFor places a module in a logical folder. An empty folder clears
// the assignment.
func (p *Project) SetFolderFor(m *Module, folder string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if folder == "" {
		delete(p.folders, string(m.ID))
		return
	}
	p.folders[string(m.ID)] = folder
}

// ModuleNames returns the sorted names of all modules.
func (p *Project) ModuleNames() []string {
	modules := p.Modules()
	names := make([]string, 0, len(modules))
	for _, m := range modules {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names
}
