// Package atlas implements the request dispatcher: it maps a (group, z,
// x, y) tile request to one of four outcomes, and answers the "query"
// diagnostic command by scanning every configured layer for features
// covering a point.
package atlas

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/openwyrm/wyrm/grid"
	"github.com/openwyrm/wyrm/loam"
	"github.com/openwyrm/wyrm/mercator"
	"github.com/openwyrm/wyrm/pattern"
	"github.com/openwyrm/wyrm/provider"
	"github.com/openwyrm/wyrm/tile"
)

// Outcome is one of the four user-visible dispatcher results. Transient
// states such as "received" or "validated" never surface here -- only
// the terminal ones a caller can act on.
type Outcome uint8

const (
	Ok Outcome = iota
	Empty
	NotFound
	InternalError
)

// Result is the dispatcher's answer to one tile request.
type Result struct {
	Outcome Outcome
	Bytes   []byte
}

// Group is a named layer group: its tile/edge extents and its layers,
// each with an already-opened (or absent) index.
type Group struct {
	Name       string
	TileExtent uint32
	EdgeExtent uint32
	Layers     []tile.Layer
}

// Wyrm dispatches tile and query requests across a fixed set of groups,
// built once at startup and shared read-only across concurrent requests.
type Wyrm struct {
	groups map[string]*Group
	log    logrus.FieldLogger
}

// New builds a Wyrm from its configured groups.
func New(groups []*Group, log logrus.FieldLogger) *Wyrm {
	w := &Wyrm{groups: make(map[string]*Group, len(groups)), log: log}
	for _, g := range groups {
		w.groups[g.Name] = g
	}
	return w
}

// FetchTile answers a single tile request.
func (w *Wyrm) FetchTile(ctx context.Context, groupName string, z, x, y uint32) Result {
	group, ok := w.groups[groupName]
	if !ok {
		return Result{Outcome: NotFound}
	}
	id, err := grid.New(z, x, y)
	if err != nil {
		return Result{Outcome: NotFound}
	}

	plan := tile.NewPlan(id, group.TileExtent, group.EdgeExtent)
	log := w.log.WithField("group", groupName).WithField("tile", id)
	bytes, ok, err := tile.Compose(ctx, plan, group.Layers, log)
	if err != nil {
		log.WithError(err).Error("atlas: tile composition failed")
		return Result{Outcome: InternalError}
	}
	if !ok {
		return Result{Outcome: Empty}
	}
	return Result{Outcome: Ok, Bytes: bytes}
}

// Match is one feature found by QueryFeatures.
type Match struct {
	Group string
	Layer string
	Props []pattern.Property
}

// QueryFeatures returns every feature, across every configured group and
// layer, whose stored bounding box contains the WGS-84 position (lat,
// lon). It backs the "query" CLI diagnostic.
func (w *Wyrm) QueryFeatures(ctx context.Context, lat, lon float64) ([]Match, error) {
	pos := mercator.FromWGS84(lat, lon)
	bbox := provider.BBox{MinX: pos.X, MinY: pos.Y, MaxX: pos.X, MaxY: pos.Y}

	var matches []Match
	for _, group := range w.groups {
		for _, l := range group.Layers {
			if l.Tree == nil {
				continue
			}
			err := l.Tree.Query(ctx, bbox, func(f provider.Feature) error {
				gbox, ok := loam.BBoxOf(f.Geom)
				if !ok || !gbox.Contains(pos.X, pos.Y) {
					return nil
				}
				matches = append(matches, Match{
					Group: group.Name,
					Layer: l.Def.Name(),
					Props: l.Def.Properties(f.Values),
				})
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}
	return matches, nil
}
