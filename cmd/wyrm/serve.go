package main

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/openwyrm/wyrm/atlas"
	"github.com/openwyrm/wyrm/cache"
	"github.com/openwyrm/wyrm/config"
	"github.com/openwyrm/wyrm/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve vector tiles over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg config.Config) error {
	wyrm, closeFn, err := buildWyrm(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	fetch := server.Fetcher(wyrm.FetchTile)
	if cfg.RedisAddr != "" {
		rc := cache.New(cfg.RedisAddr, 0)
		defer rc.Close()
		fetch = func(ctx context.Context, group string, z, x, y uint32) atlas.Result {
			return rc.FetchTile(ctx, wyrm, group, z, x, y)
		}
		log.WithField("addr", cfg.RedisAddr).Info("serve: tile cache enabled")
	}

	srv := server.New(fetch, log)
	log.WithField("addr", cfg.BindAddress).Info("serve: listening")
	return http.ListenAndServe(cfg.BindAddress, srv.Handler())
}
