package main

import (
	"github.com/pkg/errors"

	"github.com/openwyrm/wyrm/atlas"
	"github.com/openwyrm/wyrm/config"
	"github.com/openwyrm/wyrm/layer"
	"github.com/openwyrm/wyrm/loam"
	"github.com/openwyrm/wyrm/tile"
)

// buildWyrm opens every configured layer's index that exists and
// assembles an atlas.Wyrm ready to serve or query requests. The
// returned close function releases every opened index; callers must
// invoke it once done, including on error paths that return early.
func buildWyrm(cfg config.Config) (*atlas.Wyrm, func(), error) {
	var trees []*loam.Tree
	closeFn := func() {
		for _, t := range trees {
			t.Close()
		}
	}

	var groups []*atlas.Group
	for _, g := range cfg.LayerGroups {
		group := &atlas.Group{
			Name:       g.Name,
			TileExtent: cfg.GroupTileExtent(g),
			EdgeExtent: cfg.GroupEdgeExtent(g),
		}
		for _, lcfg := range g.Layers {
			def, err := layer.New(lcfg)
			if err != nil {
				closeFn()
				return nil, nil, errors.Wrapf(err, "layer %q config", lcfg.Name)
			}
			tl := tile.Layer{Def: def}
			if tr, err := loam.Open(cfg.LoamPath(def.Name())); err == nil {
				trees = append(trees, tr)
				tl.Tree = tr
			} else {
				log.WithField("layer", def.Name()).Warn("layer index absent, serving without it")
			}
			group.Layers = append(group.Layers, tl)
		}
		groups = append(groups, group)
	}
	return atlas.New(groups, log), closeFn, nil
}
