package app

import (
	"github.com/vk/flowgrid/internal/registry"
	"github.com/vk/flowgrid/modules/env_vars"
	"github.com/vk/flowgrid/modules/hydrography"
	"github.com/vk/flowgrid/modules/inspect"
	"github.com/vk/flowgrid/modules/print"
	"github.com/vk/flowgrid/modules/publish"
	"github.com/vk/flowgrid/modules/routing"
	"github.com/vk/flowgrid/modules/terrain"
)

// coreModules is the definitive list of all tool modules compiled into the
// flowgrid binary.
var coreModules = []registry.Module{
	&terrain.Module{},
	&routing.Module{},
	&hydrography.Module{},
	&inspect.Module{},
	&env_vars.Module{},
	&print.Module{},
	&publish.Module{},
}
