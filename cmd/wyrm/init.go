package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// skeletonConfig is the starter TOML written by `wyrm init`.
const skeletonConfig = `bind_address = "0.0.0.0:8080"
tile_extent = 4096
edge_extent = 6
osm_path = "osm"
loam_dir = "loam"

[[layer_group]]
name = "osm"

  [[layer_group.layer]]
  name = "city"
  source = "osm"
  geom_type = "polygon"
  zoom = "1+"
  tags = ["?name", "?population", "boundary=administrative", "admin_level=8"]
`

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a skeleton configuration and the osm/loam directory tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

func runInit() error {
	if err := os.MkdirAll("osm", 0o755); err != nil {
		return errors.Wrap(err, "init: creating osm directory")
	}
	if err := os.MkdirAll("loam", 0o755); err != nil {
		return errors.Wrap(err, "init: creating loam directory")
	}
	if err := writeNewFile("wyrm.toml", []byte(skeletonConfig)); err != nil {
		return errors.Wrap(err, "init: writing wyrm.toml")
	}
	return nil
}

// writeNewFile refuses to overwrite an existing file, so re-running init
// in a populated project directory never clobbers a tuned configuration.
func writeNewFile(path string, contents []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(contents)
	return err
}
