// Package grid implements the Web Mercator slippy-map tile grid: tile
// identity, validation, and the bounding-box/transform math needed to
// turn indexed geometry into tile-local pixel coordinates.
package grid

import (
	"fmt"

	"github.com/openwyrm/wyrm/mercator"
	"github.com/openwyrm/wyrm/provider"
)

// MaxZoom is the highest valid zoom level, matching layer.ZoomMax.
const MaxZoom = 30

// ErrInvalidTile is returned for a tile id outside the valid grid range.
type ErrInvalidTile struct {
	Z, X, Y uint32
}

func (e ErrInvalidTile) Error() string {
	return fmt.Sprintf("invalid tile %d/%d/%d", e.Z, e.X, e.Y)
}

// ID identifies one tile in the grid.
type ID struct {
	Z, X, Y uint32
}

// New validates and builds a tile ID.
func New(z, x, y uint32) (ID, error) {
	if z > MaxZoom {
		return ID{}, ErrInvalidTile{z, x, y}
	}
	n := uint32(1) << z
	if x >= n || y >= n {
		return ID{}, ErrInvalidTile{z, x, y}
	}
	return ID{Z: z, X: x, Y: y}, nil
}

// worldSize is the full side length of the Web Mercator square, meters.
const worldSize = 2 * mercator.HalfCircumference

// tileSize returns the side length in meters of a tile at zoom z.
func tileSize(z uint32) float64 {
	return worldSize / float64(uint64(1)<<z)
}

// TightBBox returns the tile's bounding box with no edge buffer, in Web
// Mercator meters. This is the box the final pixel transform is built
// from -- never the buffered query box.
func (t ID) TightBBox() provider.BBox {
	ts := tileSize(t.Z)
	minX := -mercator.HalfCircumference + float64(t.X)*ts
	maxY := mercator.HalfCircumference - float64(t.Y)*ts
	return provider.BBox{
		MinX: minX,
		MinY: maxY - ts,
		MaxX: minX + ts,
		MaxY: maxY,
	}
}

// BufferedBBox returns TightBBox expanded by edgeExtent pixels worth of
// Web Mercator meters, given a tile_extent-pixel tile. This is the box
// used to query the spatial index and clip geometry; the pixel
// transform is never built from it.
func (t ID) BufferedBBox(tileExtent, edgeExtent uint32) provider.BBox {
	box := t.TightBBox()
	if edgeExtent == 0 {
		return box
	}
	edge := float64(edgeExtent) / float64(tileExtent)
	edgeX := edge * (box.MaxX - box.MinX)
	edgeY := edge * (box.MaxY - box.MinY)
	return box.Expand2(edgeX, edgeY)
}

// Transform maps Web Mercator meters to tile-local pixel coordinates.
type Transform struct {
	minX, maxY float64
	scale      float64
}

// Transform builds the tile's pixel transform from its tight bbox, scaled
// to tileExtent pixels per side.
func (t ID) Transform(tileExtent uint32) Transform {
	box := t.TightBBox()
	return Transform{
		minX:  box.MinX,
		maxY:  box.MaxY,
		scale: float64(tileExtent) / (box.MaxX - box.MinX),
	}
}

// Project converts a Web Mercator point to tile-local pixel coordinates.
// Y is flipped: Web Mercator Y increases northward, tile pixel Y increases
// downward from the tile's top edge.
func (tr Transform) Project(x, y float64) (float64, float64) {
	return (x - tr.minX) * tr.scale, (tr.maxY - y) * tr.scale
}
