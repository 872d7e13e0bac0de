package migrate

import (
	"github.com/kingrea/modmigrate/internal/identity"
	"github.com/kingrea/modmigrate/internal/project"
)

// RepairLinks points module dependencies, model schema imports, model
// imports and language runtime lists at the modules and models that now
// carry the replaced names. It visits every module, replicated or not.
// Replaced languages are recorded as schemas in the returned table.
func (e *Engine) RepairLinks(tbl identity.Table) identity.Table {
	for _, m := range e.project.Modules() {
		e.notify(PhaseLinks, m.Name)
		e.repairDependencies(m, tbl)
		for _, model := range m.Models() {
			e.repairLanguages(model, tbl)
			e.repairImports(model, tbl)
		}
		if m.IsLanguage() {
			e.repairRuntime(m, tbl)
		}
	}
	for _, name := range tbl.ModuleNames() {
		current, ok := e.project.ModuleByName(name)
		if !ok || !current.IsLanguage() {
			continue
		}
		if err := tbl.AddSchema(name, current); err != nil {
			e.log.Error("%s: %v", name, err)
		}
	}
	return tbl
}

func (e *Engine) repairDependencies(m *project.Module, tbl identity.Table) {
	var stale []project.Dependency
	for _, dep := range m.Dependencies {
		if tbl.HasModule(dep.Target.Name) {
			stale = append(stale, dep)
		}
	}
	for _, dep := range stale {
		m.RemoveDependency(dep.Target)
		current, ok := e.project.ModuleByName(dep.Target.Name)
		if !ok {
			e.log.Error("%s: can't find replacement for dependency %s, dropping it", m.Name, dep.Target.Name)
			e.report.DependenciesDropped++
			continue
		}
		e.log.Info("%s: fixing broken dependency on %s", m.Name, dep.Target.Name)
		m.AddDependency(current.Ref(), dep.Reexport)
		e.report.DependenciesRepaired++
	}
}

func (e *Engine) repairLanguages(model *project.Model, tbl identity.Table) {
	var stale []project.ModuleRef
	for _, lang := range model.Languages {
		if tbl.HasModule(lang.Name) {
			stale = append(stale, lang)
		}
	}
	for _, lang := range stale {
		model.RemoveLanguage(lang)
		current, ok := e.project.ModuleByName(lang.Name)
		if !ok || !current.IsLanguage() {
			e.log.Error("%s: can't find replacement for used language %s, dropping it", model.Name(), lang.Name)
			e.report.LanguagesDropped++
			continue
		}
		model.AddLanguage(current.Ref())
		e.report.LanguagesRepaired++
	}
}

func (e *Engine) repairImports(model *project.Model, tbl identity.Table) {
	var stale []project.ModelRef
	for _, imp := range model.Imports {
		if tbl.HasModelName(imp.Name) {
			stale = append(stale, imp)
		}
	}
	for _, imp := range stale {
		model.RemoveImport(imp)
		current, ok := e.project.ModelByName(imp.Name)
		if !ok {
			e.log.Error("%s: can't find replacement for imported model %s, dropping it", model.Name(), imp.Name)
			e.report.ImportsDropped++
			continue
		}
		model.AddImport(current.Ref())
		e.report.ImportsRepaired++
	}
}

func (e *Engine) repairRuntime(m *project.Module, tbl identity.Table) {
	var stale []project.ModuleRef
	for _, ref := range m.Runtime {
		if tbl.HasModule(ref.Name) {
			stale = append(stale, ref)
		}
	}
	for _, ref := range stale {
		m.RemoveRuntime(ref)
		current, ok := e.project.ModuleByName(ref.Name)
		if !ok {
			e.log.Error("%s: can't find replacement for runtime module %s, dropping it", m.Name, ref.Name)
			e.report.RuntimeDropped++
			continue
		}
		m.AddRuntime(current.Ref())
		e.report.RuntimeRepaired++
	}
}
