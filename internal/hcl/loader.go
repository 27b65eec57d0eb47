package hcl

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/vk/flowgrid/internal/config"
	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/flowerr"
)

const fileExt = ".hcl"

// Loader is the HCL implementation of config.Loader. Locations are resolved
// through afs, so a pipeline may live on local disk or in memory.
type Loader struct {
	fs afs.Service
}

// NewLoader creates a Loader backed by the default afs service.
func NewLoader() *Loader {
	return &Loader{fs: afs.New()}
}

// Load parses every .hcl file found at paths. A path naming a .hcl file is
// read as is; any other path is walked for .hcl files, which are read in
// lexical order so step order is stable between runs.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	const op = "hcl.Load"
	logger := ctxlog.FromContext(ctx)

	if len(paths) == 0 {
		return nil, nil, flowerr.Config(op, "no pipeline location given")
	}

	var files []string
	for _, p := range paths {
		found, err := l.discover(ctx, p)
		if err != nil {
			return nil, nil, flowerr.Config(op, "failed to scan %s: %w", p, err)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, nil, flowerr.Config(op, "no %s files found in %s", fileExt, strings.Join(paths, ", "))
	}
	logger.Debug("Found pipeline files.", "files", files)

	parser := hclparse.NewParser()
	model := &config.Model{}
	seen := make(map[string]string)

	for _, location := range files {
		data, err := l.fs.DownloadWithURL(ctx, location)
		if err != nil {
			return nil, nil, flowerr.Config(op, "failed to read %s: %w", location, err)
		}
		file, diags := parser.ParseHCL(data, location)
		if diags.HasErrors() {
			return nil, nil, flowerr.Config(op, "failed to parse %s: %w", location, diags)
		}

		var pf pipelineFile
		if diags := gohcl.DecodeBody(file.Body, nil, &pf); diags.HasErrors() {
			return nil, nil, flowerr.Config(op, "failed to decode %s: %w", location, diags)
		}

		for _, sb := range pf.Steps {
			step, err := translateStep(sb)
			if err != nil {
				return nil, nil, flowerr.Config(op, "in %s: %w", location, err)
			}
			if prev, dup := seen[step.ID()]; dup {
				return nil, nil, flowerr.Config(op, "step %q is declared in both %s and %s", step.ID(), prev, location)
			}
			seen[step.ID()] = location
			model.Steps = append(model.Steps, step)
		}
		logger.Debug("Loaded pipeline file.", "file", location, "steps", len(pf.Steps))
	}

	logger.Info("Pipeline loaded.", "files", len(files), "steps", len(model.Steps))
	return model, NewConverter(), nil
}

func (l *Loader) discover(ctx context.Context, location string) ([]string, error) {
	if strings.EqualFold(path.Ext(location), fileExt) {
		return []string{location}, nil
	}
	var found []string
	err := l.fs.Walk(ctx, location, func(ctx context.Context, baseURL, parent string, info os.FileInfo, reader io.Reader) (bool, error) {
		if info.IsDir() {
			return true, nil
		}
		if strings.EqualFold(path.Ext(info.Name()), fileExt) {
			found = append(found, url.Join(url.Join(baseURL, parent), info.Name()))
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}

// translateStep converts the HCL step block into the agnostic model.
func translateStep(sb *stepBlock) (*config.Step, error) {
	step := &config.Step{
		Tool:      sb.Tool,
		Name:      sb.Name,
		Arguments: map[string]hcl.Expression{},
		DependsOn: sb.DependsOn,
	}
	if sb.Arguments == nil || sb.Arguments.Body == nil {
		return step, nil
	}
	attrs, diags := sb.Arguments.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("arguments of %s: %w", step.ID(), diags)
	}
	for name, attr := range attrs {
		step.Arguments[name] = attr.Expr
	}
	return step, nil
}
