package hcl

import "github.com/hashicorp/hcl/v2"

// argumentsBlock captures the free-form content of an 'arguments' block.
type argumentsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// stepBlock is a `step "<tool>" "<name>" { ... }` block.
type stepBlock struct {
	Tool      string          `hcl:"tool,label"`
	Name      string          `hcl:"name,label"`
	Arguments *argumentsBlock `hcl:"arguments,block"`
	DependsOn []string        `hcl:"depends_on,optional"`
}

// pipelineFile is the top-level structure of a pipeline file.
type pipelineFile struct {
	Steps []*stepBlock `hcl:"step,block"`
}
