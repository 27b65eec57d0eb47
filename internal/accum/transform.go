package accum

import "github.com/vk/flowgrid/internal/raster"

// ClipQuantile is the upper display bound used by Clip.
const ClipQuantile = 0.99

func clip(g *raster.Grid) {
	s := raster.Summarize(g)
	if s.Valid == 0 {
		return
	}
	g.DisplayMin = s.Min
	g.DisplayMax = raster.Quantile(g, ClipQuantile)
}
