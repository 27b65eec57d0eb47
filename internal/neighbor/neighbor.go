// Package neighbor is the 8-connected (D8) neighbourhood model: direction
// offsets, the two pointer encodings and the distance weights used by every
// flow-routing stage.
//
// Directions are indexed 0..7 in the fixed order NE, E, SE, S, SW, W, NW, N.
// This order is also the tie-break preference for steepest descent: when
// two neighbours share the maximum slope the lower index wins.
package neighbor

import "math"

// Direction indexes one of the 8 neighbours.
type Direction int

const (
	NE Direction = iota
	E
	SE
	S
	SW
	W
	NW
	N
)

// Count is the number of neighbours.
const Count = 8

// NoFlow is the pointer value of a cell without a downslope neighbour.
const NoFlow = 0

var (
	// RowOffset and ColOffset give the neighbour displacement per Direction.
	RowOffset = [Count]int{-1, 0, 1, 1, 1, 0, -1, -1}
	ColOffset = [Count]int{1, 1, 1, 0, -1, -1, -1, 0}

	names = [Count]string{"NE", "E", "SE", "S", "SW", "W", "NW", "N"}

	// CounterClockwise lists directions starting east, turning towards north.
	CounterClockwise = [Count]Direction{E, NE, N, NW, W, SW, S, SE}
)

func (d Direction) String() string {
	if d < 0 || d >= Count {
		return "none"
	}
	return names[d]
}

// Opposite returns the direction pointing back at the current cell.
func (d Direction) Opposite() Direction { return (d + 4) % Count }

// Diagonal reports whether d is one of the four corner neighbours.
func (d Direction) Diagonal() bool { return d%2 == 0 }

// Offset returns the (row, col) displacement of d.
func (d Direction) Offset() (int, int) { return RowOffset[d], ColOffset[d] }

// Encoding selects a pointer numbering convention.
type Encoding int

const (
	// Standard numbers directions clockwise from north-east: 1 NE, 2 E, 4 SE, 8 S,
	// 16 SW, 32 W, 64 NW, 128 N.
	Standard Encoding = iota
	// ESRI numbers directions clockwise from east: 1 E, 2 SE, 4 S, 8 SW, 16 W,
	// 32 NW, 64 N, 128 NE.
	ESRI
)

// EncodingFor maps the common "esri pointer" flag to an Encoding.
func EncodingFor(esri bool) Encoding {
	if esri {
		return ESRI
	}
	return Standard
}

// Code returns the pointer value of d under enc.
func (enc Encoding) Code(d Direction) float64 {
	if enc == ESRI {
		return float64(int(1) << ((int(d) + 7) % Count))
	}
	return float64(int(1) << int(d))
}

// Decode turns a pointer value back into a Direction. ok is false for the
// no-flow value and anything that is not one of the 8 codes.
func (enc Encoding) Decode(v float64) (Direction, bool) {
	if v <= 0 || v > 128 || v != math.Trunc(v) {
		return -1, false
	}
	code := int(v)
	if code&(code-1) != 0 {
		return -1, false
	}
	bit := 0
	for code > 1 {
		code >>= 1
		bit++
	}
	if enc == ESRI {
		return Direction((bit + 1) % Count), true
	}
	return Direction(bit), true
}

// Distances holds the centre-to-centre distance to each neighbour.
type Distances [Count]float64

// NewDistances derives neighbour distances from a cell size. For unit
// square cells these are 1 for cardinal and √2 for diagonal neighbours.
func NewDistances(dx, dy float64) Distances {
	diag := math.Hypot(dx, dy)
	var d Distances
	for i := Direction(0); i < Count; i++ {
		switch {
		case i.Diagonal():
			d[i] = diag
		case i == E || i == W:
			d[i] = dx
		default:
			d[i] = dy
		}
	}
	return d
}
