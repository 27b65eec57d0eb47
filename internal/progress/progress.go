// Package progress reports percent-complete to a caller and polls for
// cooperative cancellation at bounded intervals.
package progress

import (
	"context"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/flowerr"
)

// Func receives percent-complete updates. Returning true requests cancellation.
type Func func(pct int) (cancel bool)

// DefaultInterval is the number of ticks between polls.
const DefaultInterval = 4096

// Tracker is owned by one running stage; it is not safe for concurrent use.
type Tracker struct {
	ctx      context.Context
	op       string
	total    int
	interval int
	fn       Func
	ticks    int
	last     int
}

// New creates a Tracker for op processing total units of work. fn may be nil.
func New(ctx context.Context, op string, total int, fn Func) *Tracker {
	if total < 1 {
		total = 1
	}
	return &Tracker{ctx: ctx, op: op, total: total, interval: DefaultInterval, fn: fn, last: -1}
}

// WithInterval changes how many ticks pass between polls.
func (t *Tracker) WithInterval(n int) *Tracker {
	if n < 1 {
		n = 1
	}
	t.interval = n
	return t
}

// Tick records progress up to done units and polls once per interval.
func (t *Tracker) Tick(done int) error {
	t.ticks++
	if t.ticks%t.interval != 0 {
		return nil
	}
	return t.Poll(done)
}

// Poll checks for cancellation immediately and forwards a changed percentage.
func (t *Tracker) Poll(done int) error {
	if err := t.ctx.Err(); err != nil {
		return flowerr.Canceled(t.op, err)
	}
	pct := done * 100 / t.total
	if pct > 100 {
		pct = 100
	}
	if pct != t.last {
		t.last = pct
		if t.fn != nil && t.fn(pct) {
			return flowerr.Canceled(t.op, nil)
		}
	}
	return nil
}

// Done reports 100% and performs a final cancellation check.
func (t *Tracker) Done() error {
	return t.Poll(t.total)
}

// Logged returns a Func that reports every step-th percent at Debug level on
// the logger carried by ctx. It never requests cancellation.
func Logged(ctx context.Context, op string, step int) Func {
	if step < 1 {
		step = 1
	}
	logger := ctxlog.FromContext(ctx)
	next := 0
	return func(pct int) bool {
		if pct >= next {
			logger.Debug("Progress.", "op", op, "percent", pct)
			next = (pct/step + 1) * step
		}
		return false
	}
}
