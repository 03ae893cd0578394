// Command wyrm builds and serves OpenStreetMap-derived vector tiles:
// init writes a skeleton project, dig builds the per-layer indices from
// a PBF extract, query is a diagnostic lookup, and serve runs the tile
// HTTP endpoint.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
