// Package config loads wyrm's TOML configuration: bind address,
// tile/edge extents, and the layer groups to build and serve.
package config

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/openwyrm/wyrm/layer"
)

// Defaults for the two tile-sizing scalars, applied when a config omits
// them. Pointer fields distinguish "omitted" from "explicitly zero".
const (
	DefaultTileExtent = 4096
	DefaultEdgeExtent = 6
)

// LayerGroup is a named bundle of layers served under one URL prefix.
type LayerGroup struct {
	Name       string         `toml:"name"`
	TileExtent *uint32        `toml:"tile_extent"`
	EdgeExtent *uint32        `toml:"edge_extent"`
	Layers     []layer.Config `toml:"layer"`
}

// TileExtentOr returns g's tile extent, or def when unset.
func (g LayerGroup) TileExtentOr(def uint32) uint32 {
	if g.TileExtent != nil {
		return *g.TileExtent
	}
	return def
}

// EdgeExtentOr returns g's edge extent, or def when unset.
func (g LayerGroup) EdgeExtentOr(def uint32) uint32 {
	if g.EdgeExtent != nil {
		return *g.EdgeExtent
	}
	return def
}

// Config is the top-level parsed configuration document.
type Config struct {
	BindAddress string       `toml:"bind_address"`
	TileExtent  *uint32      `toml:"tile_extent"`
	EdgeExtent  *uint32      `toml:"edge_extent"`
	OSMPath     string       `toml:"osm_path"`
	LoamDir     string       `toml:"loam_dir"`
	PostgresDSN string       `toml:"postgres_dsn"`
	RedisAddr   string       `toml:"redis_addr"`
	LayerGroups []LayerGroup `toml:"layer_group"`
}

// TileExtentOr returns c's default tile extent, or def when unset.
func (c Config) TileExtentOr(def uint32) uint32 {
	if c.TileExtent != nil {
		return *c.TileExtent
	}
	return def
}

// EdgeExtentOr returns c's default edge extent, or def when unset.
func (c Config) EdgeExtentOr(def uint32) uint32 {
	if c.EdgeExtent != nil {
		return *c.EdgeExtent
	}
	return def
}

// GroupTileExtent resolves a group's effective tile extent, falling back
// from the group to the top-level config to the package default.
func (c Config) GroupTileExtent(g LayerGroup) uint32 {
	return g.TileExtentOr(c.TileExtentOr(DefaultTileExtent))
}

// GroupEdgeExtent resolves a group's effective edge extent, the same way
// as GroupTileExtent.
func (c Config) GroupEdgeExtent(g LayerGroup) uint32 {
	return g.EdgeExtentOr(c.EdgeExtentOr(DefaultEdgeExtent))
}

// LoamPath returns the on-disk path for a layer's index file:
// "<layer-name>.loam" under the loam directory.
func (c Config) LoamPath(layerName string) string {
	return filepath.Join(c.LoamDir, layerName+".loam")
}

// Load reads and parses the TOML config file at path, substituting
// $ENV_VAR references first.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "config: open")
	}
	defer f.Close()

	substituted, err := replaceEnvVars(f)
	if err != nil {
		return Config{}, errors.Wrap(err, "config: env substitution")
	}

	var cfg Config
	if _, err := toml.NewDecoder(substituted).Decode(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: parse")
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$[A-Za-z_][A-Za-z0-9_]*`)

// replaceEnvVars substitutes every $ENV_VAR reference in r's contents
// with the named environment variable's value (empty string if unset).
// A "$" not followed by a letter or underscore (e.g. "$32.78") is left
// untouched.
func replaceEnvVars(r io.Reader) (io.Reader, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	out := envVarPattern.ReplaceAllStringFunc(string(b), func(m string) string {
		return os.Getenv(m[1:])
	})
	return strings.NewReader(out), nil
}
