package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// Model is the format-agnostic representation of a whole pipeline.
type Model struct {
	Steps []*Step
}

// Step is one invocation of a registered tool.
type Step struct {
	Tool      string
	Name      string
	Arguments map[string]hcl.Expression
	DependsOn []string
}

// ID is the address other steps use to refer to this one.
func (s *Step) ID() string {
	return fmt.Sprintf("step.%s.%s", s.Tool, s.Name)
}

// Step returns the step with the given id, or nil.
func (m *Model) Step(id string) *Step {
	for _, s := range m.Steps {
		if s.ID() == id {
			return s
		}
	}
	return nil
}
