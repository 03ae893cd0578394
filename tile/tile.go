// Package tile implements the tile planner and composer: given a tile
// id and a layer group, it computes the query/clip geometry and
// assembles one tile's MVT bytes.
package tile

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openwyrm/wyrm/grid"
	"github.com/openwyrm/wyrm/layer"
	"github.com/openwyrm/wyrm/loam"
	"github.com/openwyrm/wyrm/mvt"
	"github.com/openwyrm/wyrm/provider"
)

// Plan is the tile planner's output: the tile's id, its query bbox
// (buffered by edge_extent), and the pixel transform built from the
// tight, unbuffered tile bbox.
type Plan struct {
	ID         grid.ID
	TileExtent uint32
	QueryBBox  provider.BBox
	Transform  grid.Transform
}

// NewPlan computes a tile's planner state.
func NewPlan(id grid.ID, tileExtent, edgeExtent uint32) Plan {
	return Plan{
		ID:         id,
		TileExtent: tileExtent,
		QueryBBox:  id.BufferedBBox(tileExtent, edgeExtent),
		Transform:  id.Transform(tileExtent),
	}
}

// Layer pairs a layer's schema with its opened index. Tree is nil if the
// layer's index file doesn't exist (an empty layer left no .loam file at
// dig time, or the layer was never built).
type Layer struct {
	Def  layer.Def
	Tree *loam.Tree
}

// Compose walks layers in declaration order and assembles one tile's MVT
// bytes. ok is false when every in-zoom layer produced zero features
// after clipping -- tile-empty, distinct from an error.
func Compose(ctx context.Context, plan Plan, layers []Layer, log logrus.FieldLogger) ([]byte, bool, error) {
	var layerBufs [][]byte
	for _, l := range layers {
		if !l.Def.CheckZoom(int(plan.ID.Z)) {
			continue
		}
		if l.Tree == nil {
			log.WithField("layer", l.Def.Name()).Warn("tile: layer index absent, skipping")
			continue
		}
		feats, err := composeLayer(ctx, plan, l)
		if err != nil {
			return nil, false, errors.Wrapf(err, "tile: compose layer %q", l.Def.Name())
		}
		if len(feats) == 0 {
			continue
		}
		layerBufs = append(layerBufs, mvt.EncodeLayer(l.Def.Name(), plan.TileExtent, feats, log))
	}
	if len(layerBufs) == 0 {
		return nil, false, nil
	}
	return mvt.EncodeTile(layerBufs), true, nil
}

// composeLayer queries one layer's index and encodes every feature that
// survives clipping into MVT form.
func composeLayer(ctx context.Context, plan Plan, l Layer) ([]mvt.Feature, error) {
	var feats []mvt.Feature
	err := l.Tree.Query(ctx, plan.QueryBBox, func(f provider.Feature) error {
		bbox, ok := loam.BBoxOf(f.Geom)
		if !ok || !bbox.Intersects(plan.QueryBBox) {
			return nil // rtree false positive -- strict bbox check rejects it
		}
		mf, ok := mvt.BuildFeature(l.Def, f, plan.Transform, plan.QueryBBox)
		if !ok {
			return nil
		}
		feats = append(feats, mf)
		return nil
	})
	return feats, err
}
