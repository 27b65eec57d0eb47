package neighbor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodingRoundTrip(t *testing.T) {
	for _, enc := range []Encoding{Standard, ESRI} {
		seen := map[float64]bool{}
		for d := Direction(0); d < Count; d++ {
			code := enc.Code(d)
			assert.False(t, seen[code], "duplicate code %v", code)
			seen[code] = true

			back, ok := enc.Decode(code)
			assert.True(t, ok)
			assert.Equal(t, d, back)
		}
	}
}

func TestEncodingValues(t *testing.T) {
	assert.Equal(t, 1.0, Standard.Code(NE))
	assert.Equal(t, 2.0, Standard.Code(E))
	assert.Equal(t, 128.0, Standard.Code(N))

	assert.Equal(t, 1.0, ESRI.Code(E))
	assert.Equal(t, 4.0, ESRI.Code(S))
	assert.Equal(t, 64.0, ESRI.Code(N))
	assert.Equal(t, 128.0, ESRI.Code(NE))
}

func TestDecodeRejects(t *testing.T) {
	for _, v := range []float64{NoFlow, -1, 3, 256, 2.5, math.NaN()} {
		_, ok := Standard.Decode(v)
		assert.False(t, ok, "value %v", v)
	}
}

func TestOppositeAndOffsets(t *testing.T) {
	for d := Direction(0); d < Count; d++ {
		dr, dc := d.Offset()
		or, oc := d.Opposite().Offset()
		assert.Equal(t, -dr, or)
		assert.Equal(t, -dc, oc)
	}
	assert.Equal(t, "SW", NE.Opposite().String())
}

func TestDistances(t *testing.T) {
	d := NewDistances(1, 1)
	assert.Equal(t, 1.0, d[E])
	assert.Equal(t, 1.0, d[N])
	assert.InDelta(t, math.Sqrt2, d[NE], 1e-12)

	rect := NewDistances(3, 4)
	assert.Equal(t, 3.0, rect[W])
	assert.Equal(t, 4.0, rect[S])
	assert.Equal(t, 5.0, rect[SE])
}
