package raster

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vk/flowgrid/internal/flowerr"
)

// ReadASCII decodes an Esri ASCII grid. Both the corner and the center
// georeference forms are accepted, as are the non-square dx/dy headers.
func ReadASCII(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	sc.Split(bufio.ScanWords)

	header := map[string]float64{}
	var first string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			first = sc.Text()
			break
		}
		if !sc.Scan() {
			return nil, flowerr.Data("raster.ReadASCII", "header %q has no value", key)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, flowerr.Data("raster.ReadASCII", "header %q: %v", key, err)
		}
		header[key] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ascii grid: %w", err)
	}

	cols, okc := header["ncols"]
	rows, okr := header["nrows"]
	if !okc || !okr {
		return nil, flowerr.Data("raster.ReadASCII", "missing ncols/nrows header")
	}
	dx, dy := header["cellsize"], header["cellsize"]
	if v, ok := header["dx"]; ok {
		dx = v
	}
	if v, ok := header["dy"]; ok {
		dy = v
	}
	nodata, ok := header["nodata_value"]
	if !ok {
		nodata = DefaultNoData
	}

	g, err := New(int(rows), int(cols), dx, dy, nodata)
	if err != nil {
		return nil, err
	}
	if v, ok := header["xllcorner"]; ok {
		g.XLLCorner = v
	} else if v, ok := header["xllcenter"]; ok {
		g.XLLCorner = v - dx/2
	}
	if v, ok := header["yllcorner"]; ok {
		g.YLLCorner = v
	} else if v, ok := header["yllcenter"]; ok {
		g.YLLCorner = v - dy/2
	}

	n := 0
	if first != "" {
		v, err := strconv.ParseFloat(first, 64)
		if err != nil {
			return nil, flowerr.Data("raster.ReadASCII", "cell 0: %v", err)
		}
		g.Data[0] = v
		n = 1
	}
	for ; n < len(g.Data) && sc.Scan(); n++ {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, flowerr.Data("raster.ReadASCII", "cell %d: %v", n, err)
		}
		g.Data[n] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ascii grid: %w", err)
	}
	if n != len(g.Data) {
		return nil, flowerr.Data("raster.ReadASCII", "expected %d values, found %d", len(g.Data), n)
	}
	return g, nil
}

// WriteASCII encodes g as an Esri ASCII grid. Values are written with the
// shortest representation that round-trips exactly.
func WriteASCII(w io.Writer, g *Grid) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\nnrows %d\n", g.Cols, g.Rows)
	fmt.Fprintf(bw, "xllcorner %s\nyllcorner %s\n", formatValue(g.XLLCorner), formatValue(g.YLLCorner))
	if g.CellSizeX == g.CellSizeY {
		fmt.Fprintf(bw, "cellsize %s\n", formatValue(g.CellSizeX))
	} else {
		fmt.Fprintf(bw, "dx %s\ndy %s\n", formatValue(g.CellSizeX), formatValue(g.CellSizeY))
	}
	fmt.Fprintf(bw, "NODATA_value %s\n", formatValue(g.NoData))

	buf := make([]byte, 0, 32)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			if c > 0 {
				bw.WriteByte(' ')
			}
			buf = strconv.AppendFloat(buf[:0], g.Data[r*g.Cols+c], 'g', -1, 64)
			bw.Write(buf)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
