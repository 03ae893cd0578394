// Package osm builds layer features from an OpenStreetMap PBF extract:
// nodes become points, ways become linestrings or simple polygons, and
// relations are assembled into multipolygons.
//
// A .osm.pbf file guarantees a strict block order: every node precedes
// every way, and every way precedes every relation. That invariant lets
// each geometry kind be built with a small, fixed number of forward
// passes over the file: collect which ids are needed on one pass, then
// resolve them on the next.
package osm

import (
	"context"
	"os"
	"runtime"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openwyrm/wyrm/layer"
	"github.com/openwyrm/wyrm/mercator"
	"github.com/openwyrm/wyrm/pattern"
	"github.com/openwyrm/wyrm/provider"
)

func init() {
	provider.Default.Register("osm", New)
}

// ErrMissingPath is returned when a source config is missing its "path".
type ErrMissingPath struct{}

func (ErrMissingPath) Error() string { return "osm source: missing \"path\"" }

// Source builds features by scanning a PBF file.
type Source struct {
	path  string
	procs int
}

// New builds a Source from a raw source-config map (the "path" key names
// the PBF extract on disk; "procs" optionally overrides the decode
// parallelism, defaulting to GOMAXPROCS).
func New(cfg map[string]any) (provider.Builder, error) {
	path, _ := cfg["path"].(string)
	if path == "" {
		return nil, ErrMissingPath{}
	}
	var procs int
	switch v := cfg["procs"].(type) {
	case int:
		procs = v
	case int64:
		procs = int(v)
	}
	if procs <= 0 {
		procs = runtime.GOMAXPROCS(0)
	}
	return &Source{path: path, procs: procs}, nil
}

// Build implements provider.Builder.
func (s *Source) Build(ctx context.Context, def layer.Def, fn func(provider.Feature) error) error {
	switch def.GeomKind() {
	case layer.Point:
		return s.buildPoints(ctx, def, fn)
	case layer.Linestring:
		return s.buildLinestrings(ctx, def, fn)
	case layer.Polygon:
		return s.buildPolygons(ctx, def, fn)
	default:
		return nil
	}
}

// scan opens the PBF file fresh and streams every object in it to visit.
// Opening fresh each call is what lets buildLinestrings/buildPolygons make
// more than one forward pass.
func (s *Source) scan(ctx context.Context, visit func(osm.Object) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		return errors.Wrap(err, "osm: open")
	}
	defer f.Close()

	scanner := osmpbf.New(ctx, f, s.procs)
	defer scanner.Close()

	for scanner.Scan() {
		if err := visit(scanner.Object()); err != nil {
			return err
		}
	}
	return errors.Wrap(scanner.Err(), "osm: scan")
}

func (s *Source) buildPoints(ctx context.Context, def layer.Def, fn func(provider.Feature) error) error {
	return s.scan(ctx, func(o osm.Object) error {
		node, ok := o.(*osm.Node)
		if !ok {
			return nil
		}
		tags := pattern.MapDict(node.Tags.Map())
		if !def.CheckTags(tags) {
			return nil
		}
		pt := mercator.FromWGS84(node.Lat, node.Lon)
		values := def.TagValues(int64(node.ID), tags)
		return fn(provider.Feature{
			ID:     int64(node.ID),
			Geom:   orbPoint(pt),
			Values: values,
		})
	})
}

// wayCandidate is a way that has been selected into a layer, pending node
// coordinate resolution.
type wayCandidate struct {
	id      int64
	nodeIDs []osm.NodeID
	values  pattern.Values
}

func (s *Source) buildLinestrings(ctx context.Context, def layer.Def, fn func(provider.Feature) error) error {
	var candidates []wayCandidate
	needed := make(map[osm.NodeID]bool)

	err := s.scan(ctx, func(o osm.Object) error {
		way, ok := o.(*osm.Way)
		if !ok {
			return nil
		}
		tags := pattern.MapDict(way.Tags.Map())
		if !def.CheckTags(tags) || len(way.Nodes) < 2 {
			return nil
		}
		ids := wayNodeIDs(way)
		for _, id := range ids {
			needed[id] = true
		}
		candidates = append(candidates, wayCandidate{
			id:      int64(way.ID),
			nodeIDs: ids,
			values:  def.TagValues(int64(way.ID), tags),
		})
		return nil
	})
	if err != nil {
		return err
	}

	coords, err := s.resolveNodes(ctx, needed)
	if err != nil {
		return err
	}

	for _, c := range candidates {
		pts, ok := lookupCoords(c.nodeIDs, coords)
		if !ok {
			logrus.WithField("way", c.id).Warn("osm: linestring missing a node, dropped")
			continue
		}
		if err := fn(provider.Feature{ID: c.id, Geom: orb.LineString(pts), Values: c.values}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Source) buildPolygons(ctx context.Context, def layer.Def, fn func(provider.Feature) error) error {
	var relCandidates []relCandidate
	neededWays := make(map[osm.WayID]bool)

	err := s.scan(ctx, func(o osm.Object) error {
		rel, ok := o.(*osm.Relation)
		if !ok {
			return nil
		}
		tags := pattern.MapDict(rel.Tags.Map())
		if !def.CheckTags(tags) {
			return nil
		}
		rc := relCandidate{id: int64(rel.ID), values: def.TagValues(int64(rel.ID), tags)}
		for _, m := range rel.Members {
			if m.Type != osm.TypeWay {
				continue
			}
			var outer bool
			switch m.Role {
			case "outer":
				outer = true
			case "inner":
				outer = false
			default:
				continue
			}
			wid := osm.WayID(m.Ref)
			neededWays[wid] = true
			rc.members = append(rc.members, relMember{way: wid, outer: outer})
		}
		relCandidates = append(relCandidates, rc)
		return nil
	})
	if err != nil {
		return err
	}

	// way-as-its-own-polygon candidates: closed ways matching the layer
	// directly.
	var directCandidates []wayCandidate
	wayNodes := make(map[osm.WayID][]osm.NodeID)
	needed := make(map[osm.NodeID]bool)

	err = s.scan(ctx, func(o osm.Object) error {
		way, ok := o.(*osm.Way)
		if !ok {
			return nil
		}
		id := way.ID
		isDep := neededWays[id]
		tags := pattern.MapDict(way.Tags.Map())
		matchesDirect := len(way.Nodes) > 0 && isClosed(way) && def.CheckTags(tags)
		if !isDep && !matchesDirect {
			return nil
		}
		ids := wayNodeIDs(way)
		if isDep && len(ids) > 1 {
			wayNodes[id] = ids
		}
		if matchesDirect {
			directCandidates = append(directCandidates, wayCandidate{
				id:      int64(id),
				nodeIDs: ids,
				values:  def.TagValues(int64(id), tags),
			})
		}
		for _, nid := range ids {
			needed[nid] = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	coords, err := s.resolveNodes(ctx, needed)
	if err != nil {
		return err
	}

	for _, c := range directCandidates {
		pts, ok := lookupCoords(c.nodeIDs, coords)
		if !ok {
			logrus.WithField("way", c.id).Warn("osm: polygon way missing a node, dropped")
			continue
		}
		ring := provider.Rings{{Points: orb.Ring(pts), Outer: true}}
		if err := fn(provider.Feature{ID: c.id, Geom: ring, Values: c.values}); err != nil {
			return err
		}
	}

	for _, rc := range relCandidates {
		rings, ok := assembleRelation(rc, wayNodes, coords)
		if !ok {
			logrus.WithField("relation", rc.id).Debug("osm: broken multipolygon relation, dropped")
			continue
		}
		if len(rings) == 0 {
			continue
		}
		if err := fn(provider.Feature{ID: rc.id, Geom: rings, Values: rc.values}); err != nil {
			return err
		}
	}
	return nil
}

// resolveNodes makes one forward pass over the file to look up the
// Web Mercator coordinates of every id in needed.
func (s *Source) resolveNodes(ctx context.Context, needed map[osm.NodeID]bool) (map[osm.NodeID]mercator.Point, error) {
	coords := make(map[osm.NodeID]mercator.Point, len(needed))
	if len(needed) == 0 {
		return coords, nil
	}
	err := s.scan(ctx, func(o osm.Object) error {
		node, ok := o.(*osm.Node)
		if !ok {
			return nil
		}
		if needed[node.ID] {
			coords[node.ID] = mercator.FromWGS84(node.Lat, node.Lon)
		}
		return nil
	})
	return coords, err
}

func isClosed(way *osm.Way) bool {
	if len(way.Nodes) < 2 {
		return false
	}
	return way.Nodes[0].ID == way.Nodes[len(way.Nodes)-1].ID
}

func wayNodeIDs(way *osm.Way) []osm.NodeID {
	ids := make([]osm.NodeID, len(way.Nodes))
	for i, n := range way.Nodes {
		ids[i] = n.ID
	}
	return ids
}

func lookupCoords(ids []osm.NodeID, coords map[osm.NodeID]mercator.Point) ([]orb.Point, bool) {
	pts := make([]orb.Point, len(ids))
	for i, id := range ids {
		p, ok := coords[id]
		if !ok {
			return nil, false
		}
		pts[i] = orb.Point{p.X, p.Y}
	}
	return pts, true
}

func orbPoint(p mercator.Point) orb.Point {
	return orb.Point{p.X, p.Y}
}

func orbRing(pts []orb.Point) orb.Ring {
	return orb.Ring(pts)
}
