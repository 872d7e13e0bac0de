package migrate

import (
	"fmt"

	"github.com/kingrea/modmigrate/internal/identity"
	"github.com/kingrea/modmigrate/internal/project"
)

// Replicate gives every module of the project a fresh physical identity
// while keeping its name. Each module is handled on its own: a failure is
// logged, the module is left as it was and the run moves on. Entries for a
// module are merged into tbl only once that module is done. The returned
// paths are the descriptors of the replacements, to be confirmed by the
// loader.
func (e *Engine) Replicate(tbl identity.Table) (identity.Table, []string) {
	var paths []string
	for _, m := range e.project.Modules() {
		e.notify(PhaseReplicate, m.Name)
		local, path, err := e.replicateModule(m)
		if err != nil {
			e.log.Error("%s: replication failed, module left unmigrated: %v", m.Name, err)
			e.report.fail(m.Name, PhaseReplicate, err)
			continue
		}
		if err := tbl.Merge(local); err != nil {
			e.log.Error("%s: %v", m.Name, err)
			e.report.fail(m.Name, PhaseReplicate, err)
			continue
		}
		e.report.Replicated = append(e.report.Replicated, m.Name)
		paths = append(paths, path)
	}
	return tbl, paths
}

func (e *Engine) replicateModule(m *project.Module) (local identity.Table, path string, err error) {
	var clone *project.Module
	removed := false
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil && clone != nil && !removed {
			e.discard(clone)
		}
	}()

	name := m.Name
	folder := e.project.FolderFor(m)
	e.log.Info("%s: replicating", name)

	local.AddModule(name)
	for _, model := range m.Models() {
		local.RecordModelName(model.Name())
	}

	clone, err = e.store.Copy(m, name+e.cloneSuffix)
	if err != nil {
		return identity.Table{}, "", fmt.Errorf("copy: %w", err)
	}
	if err = e.project.AddModule(clone); err != nil {
		return identity.Table{}, "", fmt.Errorf("register copy: %w", err)
	}

	for _, model := range m.Models() {
		copied, ok := clone.Model(model.Name())
		if !ok {
			e.log.Error("%s: no copy of model %s, references to it stay dangling", name, model.Name())
			continue
		}
		if err = local.AddModel(model.Ref(), copied.Ref()); err != nil {
			return identity.Table{}, "", err
		}
	}

	e.project.RemoveModule(m)
	removed = true
	deleted := true
	if err := e.store.Delete(m); err != nil {
		e.log.Error("%s: could not delete original storage: %v", name, err)
		deleted = false
	}

	e.rename(clone, name, deleted)
	e.project.SetFolderFor(clone, folder)
	return local, clone.Path, nil
}

// rename gives the copy its final name on disk. When the original's storage
// survived, the copy takes over its folder so no second module with the
// same name remains on disk.
func (e *Engine) rename(clone *project.Module, name string, deleted bool) {
	err := e.store.Rename(clone, name)
	if err == nil {
		return
	}
	if !deleted {
		e.log.Warn("%s: original storage still present, replacing it with the copy", name)
		if err = e.store.Replace(clone, name); err == nil {
			return
		}
	}
	e.log.Error("%s: could not rename storage of the copy, it stays at %s: %v", name, clone.Path, err)
	clone.Name = name
}

// discard removes a partial copy from the project and from storage.
func (e *Engine) discard(clone *project.Module) {
	e.project.RemoveModule(clone)
	if err := e.store.Delete(clone); err != nil {
		e.log.Error("%s: could not delete partial copy: %v", clone.Name, err)
	}
}
