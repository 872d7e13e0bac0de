package migrate

import (
	"github.com/kingrea/modmigrate/internal/identity"
	"github.com/kingrea/modmigrate/internal/project"
)

// RepairReferences retargets every reference whose target model was
// replaced. The target node id and resolve info are left as they are.
func (e *Engine) RepairReferences(tbl identity.Table) {
	for _, model := range e.project.Models() {
		e.notify(PhaseReferences, model.Name())
		model.Walk(func(h project.Handle, n *project.Node) bool {
			for _, ref := range n.References() {
				replacement, ok := tbl.Model(ref.Target.ID)
				if !ok || replacement == ref.Target {
					continue
				}
				ref.Target = replacement
				if err := model.SetReference(h, ref); err != nil {
					e.log.Error("%s: node %s: %v", model.Name(), n.ID, err)
					continue
				}
				e.report.ReferencesRetargeted++
			}
			return true
		})
	}
}
