package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/flowgrid/internal/config"
	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/registry"
)

// App holds one loaded pipeline together with the logger and tool registry
// it runs against.
type App struct {
	cfg       *Config
	logger    *slog.Logger
	registry  *registry.Registry
	pipeline  *config.Model
	converter config.Converter
}

// NewApp loads the pipeline at cfg.PipelinePath and registers modules, or
// the core modules when none are given. Startup failures panic: a pipeline
// that does not load, or a tool whose handler does not match its input.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	pipeline, converter, err := loader.Load(ctx, cfg.PipelinePath)
	if err != nil {
		panic(fmt.Errorf("failed to load pipeline: %w", err))
	}
	logger.Debug("Pipeline loaded.", "path", cfg.PipelinePath, "steps", len(pipeline.Steps))

	reg, err := buildRegistry(ctx, modules)
	if err != nil {
		panic(err)
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		registry:  reg,
		pipeline:  pipeline,
		converter: converter,
	}
}

func buildRegistry(ctx context.Context, modules []registry.Module) (*registry.Registry, error) {
	if len(modules) == 0 {
		modules = coreModules
	}
	reg := registry.New()
	for _, mod := range modules {
		mod.Register(reg)
	}
	if err := reg.ValidateRegistry(ctx); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Registry validated.", "modules", len(modules), "tools", len(reg.Names()))
	return reg, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}
