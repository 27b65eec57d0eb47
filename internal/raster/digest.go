package raster

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/minio/highwayhash"
)

var digestKey = []byte("flowgrid-digest-key-0123456789AB")

// Digest fingerprints the shape, nodata sentinel and every cell bit pattern
// of g. Two grids share a digest only if they are bit-identical.
func Digest(g *Grid) (string, error) {
	h, err := highwayhash.New64(digestKey)
	if err != nil {
		return "", err
	}
	var word [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(word[:], v)
		h.Write(word[:])
	}
	put(uint64(g.Rows))
	put(uint64(g.Cols))
	put(math.Float64bits(g.NoData))
	for _, v := range g.Data {
		put(math.Float64bits(v))
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
