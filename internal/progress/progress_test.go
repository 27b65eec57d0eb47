package progress

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/flowerr"
)

func TestTracker_ReportsPercent(t *testing.T) {
	var got []int
	tr := New(context.Background(), "test", 10, func(pct int) bool {
		got = append(got, pct)
		return false
	}).WithInterval(5)

	for i := 1; i <= 10; i++ {
		require.NoError(t, tr.Tick(i))
	}
	require.NoError(t, tr.Done())
	assert.Equal(t, []int{50, 100}, got)
}

func TestTracker_CallbackCancels(t *testing.T) {
	tr := New(context.Background(), "fill", 100, func(pct int) bool { return pct >= 20 }).WithInterval(1)

	var err error
	for i := 1; i <= 100 && err == nil; i++ {
		err = tr.Tick(i)
	}
	require.Error(t, err)
	assert.True(t, flowerr.IsCanceled(err))
}

func TestTracker_ContextCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := New(ctx, "breach", 10, nil)
	assert.NoError(t, tr.Tick(1), "polls only once per interval")

	err := tr.Poll(1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, flowerr.ErrCanceled)
}

func TestLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	fn := Logged(ctx, "fill", 50)
	for pct := 0; pct <= 100; pct++ {
		assert.False(t, fn(pct))
	}
	assert.Equal(t, 3, strings.Count(buf.String(), "Progress."), "logs at 0, 50 and 100")
	assert.Contains(t, buf.String(), "op=fill")
}
