// Package publish provides the publish tool, which copies a finished grid
// to its delivery location: any afs URL, or an HTTP(S) endpoint such as a
// pre-signed object storage URL that accepts a PUT.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/raster"
	"github.com/vk/flowgrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// httpClient is shared by all publish steps to reuse TCP connections.
var httpClient = &http.Client{}

// Input defines the arguments for the publish tool.
type Input struct {
	Source      string `hcl:"source"`
	Destination string `hcl:"destination"`
}

// OnRunPublish is the handler for the publish tool. The source is decoded
// before it is sent, so only well-formed grids are published.
func OnRunPublish(ctx context.Context, in *Input) (cty.Value, error) {
	ctx, logger := ctxlog.With(ctx, "source", in.Source, "destination", in.Destination)
	store := raster.NewStore()
	g, err := store.Load(ctx, in.Source)
	if err != nil {
		return cty.NilVal, err
	}
	digest, err := raster.Digest(g)
	if err != nil {
		return cty.NilVal, err
	}

	var buf bytes.Buffer
	if err := raster.WriteASCII(&buf, g); err != nil {
		return cty.NilVal, fmt.Errorf("failed to encode grid %s: %w", in.Source, err)
	}
	size := buf.Len()

	if isHTTP(in.Destination) {
		if err := upload(ctx, in.Destination, buf.Bytes()); err != nil {
			return cty.NilVal, err
		}
	} else if err := store.Save(ctx, in.Destination, g); err != nil {
		return cty.NilVal, err
	}
	logger.Info("Grid published.", "bytes", size, "digest", digest)

	return cty.ObjectVal(map[string]cty.Value{
		"destination": cty.StringVal(in.Destination),
		"digest":      cty.StringVal(digest),
		"bytes":       cty.NumberIntVal(int64(size)),
	}), nil
}

func isHTTP(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// upload sends body to url with a PUT. Any 2xx status is success.
func upload(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.ContentLength = int64(len(body))

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload failed with status: %s", resp.Status)
	}
	return nil
}

// Register registers the tool with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTool("publish", &registry.Tool{
		Description: "Copies a grid to an afs URL or PUTs it to an HTTP(S) URL.",
		NewInput:    func() any { return new(Input) },
		Fn:          OnRunPublish,
		Outputs:     []string{"destination", "digest", "bytes"},
	})
}
