package project

import (
	"strings"

	"github.com/google/uuid"
)

// NodeID is the process-stable identifier of a node. It survives every
// rewrite performed by the migration engine.
type NodeID string

// ModelID identifies one physical model. Copies of a model get a fresh id.
type ModelID string

// ModuleID identifies one physical module. Copies of a module get a fresh id.
type ModuleID string

// ElementID is the stable id of a schema element (concept, property or link).
type ElementID string

// NewModelID returns a fresh random model identifier.
func NewModelID() ModelID {
	return ModelID(uuid.NewString())
}

// NewModuleID returns a fresh random module identifier.
func NewModuleID() ModuleID {
	return ModuleID(uuid.NewString())
}

// ModuleRef points at a module by id and name.
type ModuleRef struct {
	ID   ModuleID `yaml:"id" json:"id"`
	Name string   `yaml:"name" json:"name"`
}

// IsZero reports whether the reference is empty.
func (r ModuleRef) IsZero() bool {
	return r.ID == "" && r.Name == ""
}

func (r ModuleRef) String() string {
	if r.ID == "" {
		return r.Name
	}
	return r.Name + "(" + string(r.ID) + ")"
}

// ModelRef points at a model by id and simple name.
type ModelRef struct {
	ID   ModelID `yaml:"id" json:"id"`
	Name string  `yaml:"name" json:"name"`
}

// IsZero reports whether the reference is empty.
func (r ModelRef) IsZero() bool {
	return r.ID == "" && r.Name == ""
}

func (r ModelRef) String() string {
	if r.ID == "" {
		return r.Name
	}
	return r.Name + "(" + string(r.ID) + ")"
}

func normalizeName(name string) string {
	return strings.TrimSpace(name)
}
