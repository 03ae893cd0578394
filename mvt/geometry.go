package mvt

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/openwyrm/wyrm/grid"
	"github.com/openwyrm/wyrm/layer"
	"github.com/openwyrm/wyrm/provider"
)

// GeomType is the MVT Feature.type enum value.
type GeomType uint32

const (
	Unknown     GeomType = 0
	PointType   GeomType = 1
	LineType    GeomType = 2
	PolygonType GeomType = 3
)

const (
	cmdMoveTo    = 1
	cmdLineTo    = 2
	cmdClosePath = 7
)

func commandInt(id, count uint32) uint32 {
	return (id & 0x7) | (count << 3)
}

func zigzag(v int32) uint32 {
	return uint32((v << 1) ^ (v >> 31))
}

func pixel(tr grid.Transform, p orb.Point) (int32, int32) {
	x, y := tr.Project(p[0], p[1])
	return int32(math.Round(x)), int32(math.Round(y))
}

// EncodeGeometry turns a builder geometry value into an MVT command
// stream in tile-local pixel coordinates. ok is false when nothing
// survives clipping against bbox, so the caller drops the feature rather
// than emit an empty geometry field.
//
// Points are dropped individually against the query box, linestrings are
// cut into disconnected runs at the buffered edge, and polygon rings are
// trusted to already be well-formed -- winding order (the Outer flag)
// alone tells a ring apart from a hole, so no boundary clipping happens
// for polygons here.
func EncodeGeometry(kind layer.GeomKind, geom any, tr grid.Transform, bbox provider.BBox) (GeomType, []uint32, bool) {
	switch kind {
	case layer.Point:
		p, ok := geom.(orb.Point)
		if !ok {
			return Unknown, nil, false
		}
		cmds := encodePoints([]orb.Point{p}, tr, bbox)
		return PointType, cmds, len(cmds) > 0
	case layer.Linestring:
		ls, ok := geom.(orb.LineString)
		if !ok {
			return Unknown, nil, false
		}
		cmds := encodeLine([]orb.Point(ls), tr, bbox)
		return LineType, cmds, len(cmds) > 0
	case layer.Polygon:
		rings, ok := geom.(provider.Rings)
		if !ok {
			return Unknown, nil, false
		}
		cmds := encodePolygon(rings, tr)
		return PolygonType, cmds, len(cmds) > 0
	default:
		return Unknown, nil, false
	}
}

func encodePoints(pts []orb.Point, tr grid.Transform, bbox provider.BBox) []uint32 {
	var coords []uint32
	var cx, cy int32
	var count uint32
	for _, p := range pts {
		if !bbox.Contains(p[0], p[1]) {
			continue
		}
		x, y := pixel(tr, p)
		coords = append(coords, zigzag(x-cx), zigzag(y-cy))
		cx, cy = x, y
		count++
	}
	if count == 0 {
		return nil
	}
	out := make([]uint32, 0, 1+len(coords))
	out = append(out, commandInt(cmdMoveTo, count))
	return append(out, coords...)
}

func encodeLine(line []orb.Point, tr grid.Transform, bbox provider.BBox) []uint32 {
	var out []uint32
	var cx, cy int32
	for _, run := range lineRuns(line, bbox) {
		pts := make([][2]int32, len(run))
		for i, p := range run {
			x, y := pixel(tr, p)
			pts[i] = [2]int32{x, y}
		}
		out = append(out, commandInt(cmdMoveTo, 1), zigzag(pts[0][0]-cx), zigzag(pts[0][1]-cy))
		cx, cy = pts[0][0], pts[0][1]
		if len(pts) > 1 {
			out = append(out, commandInt(cmdLineTo, uint32(len(pts)-1)))
			for _, p := range pts[1:] {
				out = append(out, zigzag(p[0]-cx), zigzag(p[1]-cy))
				cx, cy = p[0], p[1]
			}
		}
	}
	return out
}

// lineRuns splits line into maximal runs of consecutive points whose
// connecting segment lies entirely within bbox, dropping the segments
// that leave the buffered tile edge instead of clipping them precisely.
func lineRuns(line []orb.Point, bbox provider.BBox) [][]orb.Point {
	var runs [][]orb.Point
	var cur []orb.Point
	for i := 0; i+1 < len(line); i++ {
		p0, p1 := line[i], line[i+1]
		if bbox.Contains(p0[0], p0[1]) && bbox.Contains(p1[0], p1[1]) {
			if len(cur) == 0 {
				cur = append(cur, p0)
			}
			cur = append(cur, p1)
			continue
		}
		if len(cur) > 1 {
			runs = append(runs, cur)
		}
		cur = nil
	}
	if len(cur) > 1 {
		runs = append(runs, cur)
	}
	return runs
}

// encodePolygon emits one MoveTo/LineTo/ClosePath run per ring. A ring's
// closing point (a duplicate of its first) is never written; ClosePath
// implies it.
func encodePolygon(rings provider.Rings, tr grid.Transform) []uint32 {
	var out []uint32
	var cx, cy int32
	for _, r := range rings {
		pts := ringPoints(r, tr)
		if len(pts) < 3 {
			continue
		}
		out = append(out, commandInt(cmdMoveTo, 1), zigzag(pts[0][0]-cx), zigzag(pts[0][1]-cy))
		cx, cy = pts[0][0], pts[0][1]
		out = append(out, commandInt(cmdLineTo, uint32(len(pts)-1)))
		for _, p := range pts[1:] {
			out = append(out, zigzag(p[0]-cx), zigzag(p[1]-cy))
			cx, cy = p[0], p[1]
		}
		out = append(out, commandInt(cmdClosePath, 1))
	}
	return out
}

// ringPoints projects a ring to tile pixels, dropping its duplicated
// closing point, and fixes up winding direction from the Outer flag: a
// positive shoelace sum in tile pixel space (y increasing downward) is
// clockwise, the MVT convention for an exterior ring.
func ringPoints(r provider.Ring, tr grid.Transform) [][2]int32 {
	pts := r.Points
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	out := make([][2]int32, len(pts))
	for i, p := range pts {
		x, y := pixel(tr, p)
		out[i] = [2]int32{x, y}
	}
	if (signedArea(out) > 0) != r.Outer {
		reverse(out)
	}
	return out
}

func signedArea(pts [][2]int32) int64 {
	var sum int64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += int64(pts[i][0])*int64(pts[j][1]) - int64(pts[j][0])*int64(pts[i][1])
	}
	return sum
}

func reverse(pts [][2]int32) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}
