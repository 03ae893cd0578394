package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	_ "github.com/openwyrm/wyrm/provider/json"
	_ "github.com/openwyrm/wyrm/provider/osm"
)

var (
	configPath string
	log        = logrus.New()
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wyrm",
		Short:         "Build and serve vector tiles from OpenStreetMap extracts",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "wyrm.toml", "path to the TOML configuration file")
	root.AddCommand(newInitCmd(), newDigCmd(), newQueryCmd(), newServeCmd())
	return root
}
