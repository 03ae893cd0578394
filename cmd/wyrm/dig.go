package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/openwyrm/wyrm/config"
	"github.com/openwyrm/wyrm/layer"
	"github.com/openwyrm/wyrm/loam"
	"github.com/openwyrm/wyrm/provider"
)

func newDigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dig",
		Short: "Build per-layer spatial indices from the configured data sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runDig(cfg)
		},
	}
}

func runDig(cfg config.Config) error {
	ctx := context.Background()
	for _, group := range cfg.LayerGroups {
		for _, lcfg := range group.Layers {
			def, err := layer.New(lcfg)
			if err != nil {
				return errors.Wrapf(err, "dig: layer %q config", lcfg.Name)
			}
			if err := digLayer(ctx, cfg, def); err != nil {
				return err
			}
		}
	}
	return nil
}

// digLayer streams a layer's builder output into a fresh index file. The
// writer is finalized only if at least one geometry was accepted, so an
// empty layer leaves no .loam file behind.
func digLayer(ctx context.Context, cfg config.Config, def layer.Def) error {
	builder, err := provider.Default.For(def.Source().String(), mergeSourceConfig(cfg, def))
	if err != nil {
		return errors.Wrapf(err, "dig: layer %q builder", def.Name())
	}

	w, err := loam.NewWriter(cfg.LoamPath(def.Name()))
	if err != nil {
		return errors.Wrapf(err, "dig: layer %q index", def.Name())
	}

	if err := builder.Build(ctx, def, func(f provider.Feature) error { return w.Push(f) }); err != nil {
		_ = w.Cancel()
		return errors.Wrapf(err, "dig: layer %q build", def.Name())
	}

	count := w.Count()
	if err := w.Finish(); err != nil {
		return errors.Wrapf(err, "dig: layer %q finish", def.Name())
	}
	if count == 0 {
		log.WithField("layer", def.Name()).Info("dig: no features matched, index not written")
		return nil
	}
	log.WithField("layer", def.Name()).WithField("count", count).Info("dig: layer built")
	return nil
}

// mergeSourceConfig folds a layer's own source_config keys over the
// top-level config's source defaults (the global osm_path or
// postgres_dsn), so a layer only has to override what differs.
func mergeSourceConfig(cfg config.Config, def layer.Def) map[string]any {
	merged := map[string]any{}
	switch def.Source() {
	case layer.OSM:
		merged["path"] = cfg.OSMPath
	case layer.JSON:
		merged["dsn"] = cfg.PostgresDSN
	}
	for k, v := range def.SourceConfig() {
		merged[k] = v
	}
	return merged
}
