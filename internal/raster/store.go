package raster

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/viant/afs"
	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/flowerr"
)

// Store loads and saves grids by URL. Any scheme afs understands works:
// plain paths, file://, mem:// for in-process hand-off between steps.
type Store struct {
	fs afs.Service
}

// NewStore creates a Store backed by the default afs service.
func NewStore() *Store {
	return &Store{fs: afs.New()}
}

// Load reads the grid at url.
func (s *Store) Load(ctx context.Context, url string) (*Grid, error) {
	if strings.TrimSpace(url) == "" {
		return nil, flowerr.Config("raster.Load", "empty grid location")
	}
	if err := checkExt(url); err != nil {
		return nil, err
	}
	data, err := s.fs.DownloadWithURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to read grid %s: %w", url, err)
	}
	g, err := ReadASCII(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode grid %s: %w", url, err)
	}
	ctxlog.FromContext(ctx).Debug("Grid loaded.", "url", url, "rows", g.Rows, "cols", g.Cols)
	return g, nil
}

// Save writes g to url, replacing any existing content.
func (s *Store) Save(ctx context.Context, url string, g *Grid) error {
	if strings.TrimSpace(url) == "" {
		return flowerr.Config("raster.Save", "empty grid location")
	}
	if err := checkExt(url); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := WriteASCII(&buf, g); err != nil {
		return fmt.Errorf("failed to encode grid %s: %w", url, err)
	}
	if err := s.fs.Upload(ctx, url, 0644, &buf); err != nil {
		return fmt.Errorf("failed to write grid %s: %w", url, err)
	}
	ctxlog.FromContext(ctx).Debug("Grid saved.", "url", url, "rows", g.Rows, "cols", g.Cols)
	return nil
}

func checkExt(url string) error {
	switch strings.ToLower(path.Ext(url)) {
	case ".asc", ".txt":
		return nil
	default:
		return flowerr.Config("raster", "unsupported grid format %q: only Esri ASCII (.asc, .txt) is supported", url)
	}
}
