// Package json builds layer features from a pre-tagged Postgres table: a
// layer.JSON-sourced layer reads rows of (id, geometry, tag object)
// directly instead of an OSM extract.
//
// It queries a jackc/pgx connection pool with a per-layer SQL statement.
package json

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openwyrm/wyrm/layer"
	"github.com/openwyrm/wyrm/mercator"
	"github.com/openwyrm/wyrm/pattern"
	"github.com/openwyrm/wyrm/provider"
)

func init() {
	provider.Default.Register("json", New)
}

// ErrMissingConfig is returned when a required source config key is absent.
type ErrMissingConfig struct{ Key string }

func (e ErrMissingConfig) Error() string {
	return fmt.Sprintf("json source: missing %q", e.Key)
}

// Source builds features by querying a Postgres/PostGIS table. Rows are
// expected to carry a WGS-84 geometry column and a jsonb tag column.
type Source struct {
	pool                    *pgxpool.Pool
	table                   string
	idCol, geomCol, tagsCol string
}

// New builds a Source from a raw source-config map:
//
//	dsn (string)          [required] libpq-style Postgres connection string
//	table (string)        [required] table or view to query
//	id_column (string)    [optional] default "id"
//	geom_column (string)  [optional] default "geom"
//	tags_column (string)  [optional] default "tags", a jsonb object column
func New(cfg map[string]any) (provider.Builder, error) {
	dsn, _ := cfg["dsn"].(string)
	if dsn == "" {
		return nil, ErrMissingConfig{Key: "dsn"}
	}
	table, _ := cfg["table"].(string)
	if table == "" {
		return nil, ErrMissingConfig{Key: "table"}
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, errors.Wrap(err, "json: connect")
	}
	return &Source{
		pool:    pool,
		table:   table,
		idCol:   stringOr(cfg["id_column"], "id"),
		geomCol: stringOr(cfg["geom_column"], "geom"),
		tagsCol: stringOr(cfg["tags_column"], "tags"),
	}, nil
}

func stringOr(v any, def string) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return def
	}
	return s
}

// Close releases the connection pool. Call it during shutdown.
func (s *Source) Close() {
	s.pool.Close()
}

// Build implements provider.Builder.
func (s *Source) Build(ctx context.Context, def layer.Def, fn func(provider.Feature) error) error {
	query := fmt.Sprintf(
		`SELECT %s, ST_AsBinary(%s), %s FROM %s`,
		s.idCol, s.geomCol, s.tagsCol, s.table,
	)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return errors.Wrap(err, "json: query")
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var geomBytes []byte
		var tagsJSON []byte
		if err := rows.Scan(&id, &geomBytes, &tagsJSON); err != nil {
			return errors.Wrap(err, "json: scan")
		}

		tags, err := decodeTags(tagsJSON)
		if err != nil {
			logrus.WithField("id", id).WithError(err).Warn("json: invalid tags, row dropped")
			continue
		}
		dict := pattern.MapDict(tags)
		if !def.CheckTags(dict) {
			continue
		}

		geom, err := wkb.Unmarshal(geomBytes)
		if err != nil {
			logrus.WithField("id", id).WithError(err).Warn("json: invalid geometry, row dropped")
			continue
		}
		feat, ok := convertGeometry(projectGeometry(geom), def.GeomKind())
		if !ok {
			continue
		}

		values := def.TagValues(id, dict)
		if err := fn(provider.Feature{ID: id, Geom: feat, Values: values}); err != nil {
			return err
		}
	}
	return errors.Wrap(rows.Err(), "json: rows")
}

func decodeTags(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out, nil
}

// projectGeometry converts a WGS-84 geometry into Web Mercator meters,
// the coordinate space every builder in this module produces.
func projectGeometry(g orb.Geometry) orb.Geometry {
	switch g := g.(type) {
	case orb.Point:
		return projectPoint(g)
	case orb.LineString:
		return projectLineString(g)
	case orb.Polygon:
		return projectPolygon(g)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(g))
		for i, p := range g {
			out[i] = projectPolygon(p)
		}
		return out
	default:
		return g
	}
}

func projectPoint(p orb.Point) orb.Point {
	pt := mercator.FromWGS84(p[1], p[0])
	return orb.Point{pt.X, pt.Y}
}

func projectLineString(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[i] = projectPoint(p)
	}
	return out
}

func projectRing(r orb.Ring) orb.Ring {
	out := make(orb.Ring, len(r))
	for i, p := range r {
		out[i] = projectPoint(p)
	}
	return out
}

func projectPolygon(p orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, r := range p {
		out[i] = projectRing(r)
	}
	return out
}

// convertGeometry adapts a decoded orb.Geometry into the shape this
// module's Feature.Geom expects for kind.
func convertGeometry(g orb.Geometry, kind layer.GeomKind) (any, bool) {
	switch kind {
	case layer.Point:
		p, ok := g.(orb.Point)
		return p, ok
	case layer.Linestring:
		ls, ok := g.(orb.LineString)
		return ls, ok
	case layer.Polygon:
		switch gg := g.(type) {
		case orb.Polygon:
			return polygonToRings(gg), true
		case orb.MultiPolygon:
			var rings provider.Rings
			for _, p := range gg {
				rings = append(rings, polygonToRings(p)...)
			}
			return rings, true
		default:
			return nil, false
		}
	default:
		return nil, false
	}
}

func polygonToRings(p orb.Polygon) provider.Rings {
	rings := make(provider.Rings, len(p))
	for i, ring := range p {
		rings[i] = provider.Ring{Points: ring, Outer: i == 0}
	}
	return rings
}
