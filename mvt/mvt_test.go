package mvt

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openwyrm/wyrm/grid"
	"github.com/openwyrm/wyrm/layer"
	"github.com/openwyrm/wyrm/pattern"
	"github.com/openwyrm/wyrm/provider"
)

func testTransform(t *testing.T) (grid.Transform, provider.BBox) {
	t.Helper()
	id, err := grid.New(4, 3, 3)
	require.NoError(t, err)
	return id.Transform(4096), id.BufferedBBox(4096, 64)
}

func TestEncodePointDroppedOutsideBBox(t *testing.T) {
	tr, bbox := testTransform(t)
	inside := orb.Point{bbox.MinX, bbox.MinY}
	outside := orb.Point{bbox.MaxX + 1e9, bbox.MaxY + 1e9}

	_, cmds, ok := EncodeGeometry(layer.Point, inside, tr, bbox)
	assert.True(t, ok)
	assert.NotEmpty(t, cmds)

	_, cmds, ok = EncodeGeometry(layer.Point, outside, tr, bbox)
	assert.False(t, ok)
	assert.Empty(t, cmds)
}

// TestEncodeLineSplitsAtBufferedEdge checks the edge-extent clipping
// scenario: a line that leaves the buffered bbox and re-enters it is cut
// into two separate MoveTo/LineTo runs rather than one continuous one.
func TestEncodeLineSplitsAtBufferedEdge(t *testing.T) {
	tr, bbox := testTransform(t)
	far := bbox.MaxX + 10*(bbox.MaxX-bbox.MinX)
	mid := (bbox.MinX + bbox.MaxX) / 2
	y := (bbox.MinY + bbox.MaxY) / 2

	line := orb.LineString{
		{bbox.MinX, y},
		{mid, y},
		{far, y}, // leaves the buffered box
		{mid, y}, // re-enters
		{bbox.MaxX, y},
	}

	typ, cmds, ok := EncodeGeometry(layer.Linestring, line, tr, bbox)
	require.True(t, ok)
	assert.Equal(t, LineType, typ)

	moveToCount := 0
	for _, c := range cmds {
		if c&0x7 == cmdMoveTo {
			moveToCount++
		}
	}
	assert.Equal(t, 2, moveToCount, "expected two disconnected runs around the out-of-bounds point")
}

func TestEncodeLineSingleRunStaysConnected(t *testing.T) {
	tr, bbox := testTransform(t)
	y := (bbox.MinY + bbox.MaxY) / 2
	line := orb.LineString{{bbox.MinX, y}, {bbox.MaxX, y}}

	_, cmds, ok := EncodeGeometry(layer.Linestring, line, tr, bbox)
	require.True(t, ok)

	moveToCount := 0
	for _, c := range cmds {
		if c&0x7 == cmdMoveTo {
			moveToCount++
		}
	}
	assert.Equal(t, 1, moveToCount)
}

// TestEncodePolygonFixesWinding verifies a ring tagged Outer but stored
// counter-clockwise gets reversed to the MVT exterior convention
// (clockwise in tile pixel space), and an inner ring tagged !Outer but
// stored clockwise gets reversed to counter-clockwise.
func TestEncodePolygonFixesWinding(t *testing.T) {
	tr, _ := testTransform(t)
	box := grid.ID{Z: 4, X: 3, Y: 3}.TightBBox()

	// A square traversed counter-clockwise in Web Mercator (x,y) space.
	ccw := orb.Ring{
		{box.MinX, box.MinY},
		{box.MaxX, box.MinY},
		{box.MaxX, box.MaxY},
		{box.MinX, box.MaxY},
		{box.MinX, box.MinY},
	}
	cw := orb.Ring{
		{box.MinX, box.MinY},
		{box.MinX, box.MaxY},
		{box.MaxX, box.MaxY},
		{box.MaxX, box.MinY},
		{box.MinX, box.MinY},
	}

	outerPts := ringPoints(provider.Ring{Points: ccw, Outer: true}, tr)
	assert.Greater(t, signedArea(outerPts), int64(0), "exterior ring must end up clockwise (positive area) in pixel space")

	innerPts := ringPoints(provider.Ring{Points: cw, Outer: false}, tr)
	assert.Less(t, signedArea(innerPts), int64(0), "interior ring must end up counter-clockwise (negative area) in pixel space")
}

func TestEncodeLayerDeduplicatesValues(t *testing.T) {
	feats := []Feature{
		{ID: 1, Type: PointType, Geometry: []uint32{commandInt(cmdMoveTo, 1), 0, 0},
			Props: []pattern.Property{{Tag: "highway", Value: "residential"}}},
		{ID: 2, Type: PointType, Geometry: []uint32{commandInt(cmdMoveTo, 1), 2, 2},
			Props: []pattern.Property{{Tag: "highway", Value: "residential"}}},
	}
	buf := EncodeLayer("roads", 4096, feats, logrus.New())
	assert.NotEmpty(t, buf)

	keys, values := countDictEntries(t, buf)
	assert.Equal(t, 1, keys, "both features share the same tag key")
	assert.Equal(t, 1, values, "both features share the same tag value")
}

func TestEncodeLayerDropsUnparseableSInt(t *testing.T) {
	feats := []Feature{
		{ID: 1, Type: PointType, Geometry: []uint32{commandInt(cmdMoveTo, 1), 0, 0},
			Props: []pattern.Property{
				{Tag: "name", Value: "Main St"},
				{Tag: "population", Value: "not-a-number", SInt: true},
			}},
	}
	buf := EncodeLayer("roads", 4096, feats, logrus.New())

	keys, values := countDictEntries(t, buf)
	assert.Equal(t, 1, keys, "only the valid property's key is interned")
	assert.Equal(t, 1, values, "only the valid property's value is interned")
}

func TestEncodeTileDeterministic(t *testing.T) {
	feats := []Feature{
		{ID: 1, Type: PointType, Geometry: []uint32{commandInt(cmdMoveTo, 1), 0, 0},
			Props: []pattern.Property{{Tag: "name", Value: "a"}}},
	}
	a := EncodeTile([][]byte{EncodeLayer("points", 4096, feats, logrus.New())})
	b := EncodeTile([][]byte{EncodeLayer("points", 4096, feats, logrus.New())})
	assert.Equal(t, a, b)
}

// countDictEntries walks a Layer message's top-level fields just far
// enough to count its keys (field 3) and values (field 4) entries,
// without implementing a full protobuf decoder.
func countDictEntries(t *testing.T, buf []byte) (keys, values int) {
	t.Helper()
	for len(buf) > 0 {
		tag, n := decodeVarint(buf)
		buf = buf[n:]
		field := tag >> 3
		wireType := tag & 0x7
		switch wireType {
		case 0:
			_, n := decodeVarint(buf)
			buf = buf[n:]
		case 2:
			l, n := decodeVarint(buf)
			buf = buf[n:]
			if field == fieldLayerKeys {
				keys++
			} else if field == fieldLayerValues {
				values++
			}
			buf = buf[l:]
		default:
			t.Fatalf("unexpected wire type %d", wireType)
		}
	}
	return keys, values
}

func decodeVarint(buf []byte) (uint64, int) {
	var v uint64
	var shift uint
	for i, b := range buf {
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, i + 1
		}
		shift += 7
	}
	return v, len(buf)
}
