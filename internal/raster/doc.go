// Package raster is the grid abstraction every flow-routing stage reads and
// writes through. A Grid is a dense row-major array of float64 values with a
// nodata sentinel, a cell size and a lower-left georeference. The package
// also owns the Esri ASCII codec, the URL-addressed Store used by the
// pipeline tools, and grid fingerprints and statistics.
package raster
