package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModel_Step(t *testing.T) {
	fill := &Step{Tool: "fill_depressions", Name: "dem"}
	d8 := &Step{Tool: "d8_pointer", Name: "dem"}
	m := &Model{Steps: []*Step{fill, d8}}

	assert.Equal(t, "step.fill_depressions.dem", fill.ID())
	assert.Same(t, d8, m.Step("step.d8_pointer.dem"))
	assert.Nil(t, m.Step("step.d8_pointer.other"))
}
