// Package provider defines the shared feature and bounding-box types
// that every builder ("osm" and "json" sources) and every spatial index
// consumer (the "loam" package) speak, so they can be composed without
// depending on each other's internals.
//
// Builder.Build's streaming-callback shape pushes results to a callback
// instead of buffering a slice, so a multi-million-feature PBF extract
// never has to fit in memory at once.
package provider

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/openwyrm/wyrm/layer"
	"github.com/openwyrm/wyrm/pattern"
)

// Feature is one geometry accepted into a layer, with its extracted
// property values attached. Geom holds an orb.Point, orb.LineString or
// Rings depending on the owning layer's GeomKind.
type Feature struct {
	ID     int64
	Geom   any
	Values pattern.Values
}

// Ring is one closed ring contributing to a polygon feature, tagged with
// the role it was assembled under.
type Ring struct {
	Points orb.Ring
	Outer  bool
}

// Rings is a flat, ordered list of closed polygon rings belonging to one
// feature. Unlike orb.Polygon (one outer ring plus holes), Rings makes no
// outer/hole pairing: per the Mapbox Vector Tile spec a POLYGON feature may
// carry any number of rings, and a consumer tells outer from inner purely
// by winding order (clockwise outer, counter-clockwise inner). Pairing an
// inner ring with its enclosing outer is a rendering concern, not an
// encoding one, so it is never done here; the mvt package fixes up winding
// from the Outer flag just before encoding.
type Rings []Ring

// BBox is an axis-aligned bounding box in Web Mercator meters.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// Intersects reports whether b and o overlap (including touching edges).
func (b BBox) Intersects(o BBox) bool {
	return b.MinX <= o.MaxX && b.MaxX >= o.MinX &&
		b.MinY <= o.MaxY && b.MaxY >= o.MinY
}

// Expand returns b grown by d meters on every side.
func (b BBox) Expand(d float64) BBox {
	return BBox{MinX: b.MinX - d, MinY: b.MinY - d, MaxX: b.MaxX + d, MaxY: b.MaxY + d}
}

// Expand2 returns b grown by dx meters on its left/right sides and dy
// meters on its top/bottom sides.
func (b BBox) Expand2(dx, dy float64) BBox {
	return BBox{MinX: b.MinX - dx, MinY: b.MinY - dy, MaxX: b.MaxX + dx, MaxY: b.MaxY + dy}
}

// Contains reports whether (x, y) lies within b, inclusive of its edges.
func (b BBox) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// ErrUnknownSource is returned by Registry.For when no builder has been
// registered under the requested name.
type ErrUnknownSource struct {
	Name  string
	Known []string
}

func (e ErrUnknownSource) Error() string {
	return fmt.Sprintf("unknown provider source %q (known: %v)", e.Name, e.Known)
}

// Builder produces the features belonging to one layer from a backing data
// source (an OSM PBF extract, a Postgres table, ...). It streams features
// to fn rather than returning a slice, so the index build never has to
// hold a whole extract's features in memory.
type Builder interface {
	// Build streams every feature in def's source that belongs in def
	// (per def.CheckTags) to fn. If fn returns an error, Build stops and
	// returns it unwrapped.
	Build(ctx context.Context, def layer.Def, fn func(Feature) error) error
}

// BuilderFunc is an InitFunc analogue: it builds a Builder given the raw
// config section for one data source.
type BuilderFunc func(cfg map[string]any) (Builder, error)

// Registry holds the set of named builder constructors, keyed by source
// name so config can select one at startup.
type Registry struct {
	ctors map[string]BuilderFunc
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]BuilderFunc)}
}

// Register adds a named builder constructor. It is generally called from a
// source package's init function, via a package-level default registry.
func (r *Registry) Register(name string, fn BuilderFunc) {
	r.ctors[name] = fn
}

// For constructs the named builder with the given config.
func (r *Registry) For(name string, cfg map[string]any) (Builder, error) {
	fn, ok := r.ctors[name]
	if !ok {
		known := make([]string, 0, len(r.ctors))
		for k := range r.ctors {
			known = append(known, k)
		}
		return nil, ErrUnknownSource{Name: name, Known: known}
	}
	return fn(cfg)
}

// Default is the package-level registry source packages register
// themselves against via their init functions.
var Default = NewRegistry()
