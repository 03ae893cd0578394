// Package layer implements the layer schema: the aggregate of a layer's
// name, data source, geometry kind, zoom range and tag patterns.
package layer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openwyrm/wyrm/pattern"
)

// ZoomMax is the highest zoom level a layer may be visible at.
const ZoomMax = 30

// GeomKind is the kind of geometry a layer stores.
type GeomKind uint8

const (
	Point GeomKind = iota
	Linestring
	Polygon
)

func (g GeomKind) String() string {
	switch g {
	case Point:
		return "point"
	case Linestring:
		return "linestring"
	case Polygon:
		return "polygon"
	default:
		return "unknown"
	}
}

// Source is where a layer's raw features come from.
type Source uint8

const (
	// OSM layers are built from a planet PBF extract.
	OSM Source = iota
	// JSON layers are built from a pre-tagged external source (a
	// Postgres table).
	JSON
)

func (s Source) String() string {
	if s == JSON {
		return "json"
	}
	return "osm"
}

// ErrUnknownGeometry is returned for an unrecognized geom_type config value.
type ErrUnknownGeometry struct{ Got string }

func (e ErrUnknownGeometry) Error() string {
	return fmt.Sprintf("unknown geometry type: %q", e.Got)
}

// ErrUnknownSource is returned for an unrecognized source config value.
type ErrUnknownSource struct{ Got string }

func (e ErrUnknownSource) Error() string {
	return fmt.Sprintf("unknown data source: %q", e.Got)
}

// ErrInvalidZoom is returned when a zoom string names a level above ZoomMax.
type ErrInvalidZoom struct{ Zoom int }

func (e ErrInvalidZoom) Error() string {
	return fmt.Sprintf("invalid zoom level: %d", e.Zoom)
}

// Config is the raw, TOML-shaped description of one layer. SourceConfig
// carries the builder-specific keys a data source needs
// (e.g. osm's "path"/"procs" or json's "dsn"/"table") -- the core is
// agnostic to their contents and only hands the map to provider.Registry.For.
type Config struct {
	Name         string         `toml:"name"`
	Source       string         `toml:"source"`
	GeomType     string         `toml:"geom_type"`
	Zoom         string         `toml:"zoom"`
	Tags         []string       `toml:"tags"`
	SourceConfig map[string]any `toml:"source_config"`
}

// Def is a fully parsed, validated layer schema -- immutable once built.
type Def struct {
	name         string
	source       Source
	geomKind     GeomKind
	zoomMin      int
	zoomMax      int
	patterns     pattern.List
	sourceConfig map[string]any
}

// New validates and builds a Def from a raw Config. Errors here are all
// fatal at startup.
func New(cfg Config) (Def, error) {
	source, err := parseSource(cfg.Source)
	if err != nil {
		return Def{}, err
	}
	geomKind, err := parseGeomKind(cfg.GeomType)
	if err != nil {
		return Def{}, err
	}
	zoomMin, zoomMax, err := parseZoomRange(cfg.Zoom)
	if err != nil {
		return Def{}, err
	}
	patterns, err := pattern.ParseList(cfg.Tags)
	if err != nil {
		return Def{}, err
	}
	return Def{
		name:         cfg.Name,
		source:       source,
		geomKind:     geomKind,
		zoomMin:      zoomMin,
		zoomMax:      zoomMax,
		patterns:     patterns,
		sourceConfig: cfg.SourceConfig,
	}, nil
}

func parseSource(s string) (Source, error) {
	switch s {
	case "osm":
		return OSM, nil
	case "json":
		return JSON, nil
	default:
		return 0, ErrUnknownSource{Got: s}
	}
}

func parseGeomKind(s string) (GeomKind, error) {
	switch s {
	case "point":
		return Point, nil
	case "linestring":
		return Linestring, nil
	case "polygon":
		return Polygon, nil
	default:
		return 0, ErrUnknownGeometry{Got: s}
	}
}

// parseZoomRange parses "N", "N-M" or "N+" into [zoomMin, zoomMax].
func parseZoomRange(z string) (min, max int, err error) {
	switch {
	case strings.Contains(z, "-"):
		parts := strings.SplitN(z, "-", 2)
		min, err = parseZoom(parts[0])
		if err != nil {
			return 0, 0, err
		}
		max, err = parseZoom(parts[1])
		return min, max, err
	case strings.HasSuffix(z, "+"):
		min, err = parseZoom(strings.TrimSuffix(z, "+"))
		return min, ZoomMax, err
	default:
		min, err = parseZoom(z)
		return min, min, err
	}
}

func parseZoom(s string) (int, error) {
	z, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if z < 0 || z > ZoomMax {
		return 0, ErrInvalidZoom{Zoom: z}
	}
	return z, nil
}

// Name returns the layer's name.
func (d Def) Name() string { return d.name }

// Source returns the layer's data source.
func (d Def) Source() Source { return d.source }

// GeomKind returns the layer's geometry kind.
func (d Def) GeomKind() GeomKind { return d.geomKind }

// ZoomMin returns the lowest zoom the layer is visible at.
func (d Def) ZoomMin() int { return d.zoomMin }

// ZoomMax returns the highest zoom the layer is visible at.
func (d Def) ZoomMax() int { return d.zoomMax }

// CheckZoom reports whether the layer contributes at zoom z.
func (d Def) CheckZoom(z int) bool {
	return z >= d.zoomMin && z <= d.zoomMax
}

// CheckTags reports whether a feature's tag dictionary belongs in this
// layer.
func (d Def) CheckTags(tags pattern.Dict) bool {
	return d.patterns.CheckTags(tags)
}

// IncludedTags lists the tag names this layer attaches as MVT properties.
func (d Def) IncludedTags() []string {
	return d.patterns.IncludedTags()
}

// TagValues extracts the layer's Values for one object.
func (d Def) TagValues(id int64, tags pattern.Dict) pattern.Values {
	return d.patterns.TagValues(id, tags)
}

// Properties converts stored Values back into (tag, value, sint) triples
// ready for MVT attachment.
func (d Def) Properties(values pattern.Values) []pattern.Property {
	return d.patterns.Properties(values)
}

// SourceConfig returns the builder-specific config keys for this layer.
func (d Def) SourceConfig() map[string]any { return d.sourceConfig }
