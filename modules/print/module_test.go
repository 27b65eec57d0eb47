package print

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/registry"
)

func TestOnRunPrint(t *testing.T) {
	var buf bytes.Buffer
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

	out, err := OnRunPrint(ctx, &Input{
		Message: "Catchment summary.",
		Values:  map[string]string{"streams": "42", "basins": "3"},
	})
	require.NoError(t, err)
	n, _ := out.GetAttr("count").AsBigFloat().Int64()
	assert.Equal(t, int64(2), n)
	assert.Contains(t, buf.String(), `msg="Catchment summary." basins=3 streams=42`)
}

func TestOnRunPrint_DefaultMessage(t *testing.T) {
	var buf bytes.Buffer
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

	_, err := OnRunPrint(ctx, &Input{})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `msg="Printing values."`)
}

func TestRegister(t *testing.T) {
	r := registry.New()
	(&Module{}).Register(r)
	assert.Equal(t, []string{"print"}, r.Names())
	assert.NoError(t, r.ValidateRegistry(context.Background()))
}
