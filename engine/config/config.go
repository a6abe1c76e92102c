// Package config loads the YAML configuration of the viewer and its engine parts.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/memmaker/sandvox/engine/util"
	"github.com/memmaker/sandvox/engine/voxel"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const EnvConfigPath = "SANDVOX_CONFIG"

type Config struct {
	Chunk   ChunkConfig   `yaml:"chunk"`
	Mesher  MesherConfig  `yaml:"mesher"`
	Staging StagingConfig `yaml:"staging"`
	Log     LogConfig     `yaml:"log"`
	World   WorldConfig   `yaml:"world"`
	Window  WindowConfig  `yaml:"window"`
	Blocks  BlocksConfig  `yaml:"blocks"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type ChunkConfig struct {
	// Shape is "morton" (cubic, power-of-two side) or "linear".
	Shape string `yaml:"shape"`
	Side  int    `yaml:"side"`
}

type MesherConfig struct {
	Strategy string `yaml:"strategy"`
	Workers  int    `yaml:"workers"`
}

type StagingConfig struct {
	// MemoryLimit caps the bytes the headless memory device may allocate; 0 means unlimited.
	MemoryLimit int `yaml:"memory_limit"`
}

type LogConfig struct {
	Level      string   `yaml:"level"`
	Categories []string `yaml:"categories"`
}

type WorldConfig struct {
	Path   string `yaml:"path"`
	Seed   int64  `yaml:"seed"`
	Radius int    `yaml:"radius"`
	Height int    `yaml:"height"`
}

type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	VSync  bool   `yaml:"vsync"`
	Title  string `yaml:"title"`
}

type BlocksConfig struct {
	Definitions string `yaml:"definitions"`
	Textures    string `yaml:"textures"`
	TileSize    int    `yaml:"tile_size"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

const defaultWorkers = 4

// Default is the configuration used without a config file.
func Default() Config {
	cfg := base()
	cfg.applyDefaults()
	return cfg
}

func base() Config {
	return Config{
		Chunk:   ChunkConfig{Shape: "morton", Side: 32},
		Mesher:  MesherConfig{Strategy: "naive"},
		Log:     LogConfig{Level: "info"},
		World:   WorldConfig{Path: "world.db", Seed: 1, Radius: 2, Height: 2},
		Window:  WindowConfig{Width: 1280, Height: 720, VSync: true, Title: "sandvox"},
		Blocks:  BlocksConfig{Definitions: "assets/blocks.yaml", Textures: "assets/textures/blocks", TileSize: 16},
		Metrics: MetricsConfig{Address: ":2112"},
	}
}

// Load reads path, or the file named by SANDVOX_CONFIG when path is empty.
// Without either the defaults are returned. Missing values fall back to defaults.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	cfg := base()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse config %s", path)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := base()
	if c.Chunk.Shape == "" {
		c.Chunk.Shape = def.Chunk.Shape
	}
	if c.Chunk.Side <= 0 {
		c.Chunk.Side = def.Chunk.Side
	}
	if c.Mesher.Strategy == "" {
		c.Mesher.Strategy = def.Mesher.Strategy
	}
	if c.Mesher.Workers <= 0 {
		c.Mesher.Workers = envInt("SANDVOX_MESH_WORKERS", defaultWorkers)
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.World.Path == "" {
		c.World.Path = def.World.Path
	}
	if c.World.Radius <= 0 {
		c.World.Radius = def.World.Radius
	}
	if c.World.Height <= 0 {
		c.World.Height = def.World.Height
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		c.Window.Width, c.Window.Height = def.Window.Width, def.Window.Height
	}
	if c.Window.Title == "" {
		c.Window.Title = def.Window.Title
	}
	if c.Blocks.Definitions == "" {
		c.Blocks.Definitions = def.Blocks.Definitions
	}
	if c.Blocks.Textures == "" {
		c.Blocks.Textures = def.Blocks.Textures
	}
	if c.Blocks.TileSize <= 0 {
		c.Blocks.TileSize = def.Blocks.TileSize
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = def.Metrics.Address
	}
}

func envInt(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func (c Config) Validate() error {
	switch c.Chunk.Shape {
	case "morton":
		if !voxel.IsPowerOfTwo(c.Chunk.Side) {
			return errors.Errorf("chunk.side %d must be a power of two for the morton shape", c.Chunk.Side)
		}
	case "linear":
	default:
		return errors.Errorf("unknown chunk.shape %q", c.Chunk.Shape)
	}
	if c.Chunk.Side > 1<<10 {
		return errors.Errorf("chunk.side %d is too large", c.Chunk.Side)
	}
	switch c.Mesher.Strategy {
	case "naive", "greedy":
	default:
		return errors.Errorf("unknown mesher.strategy %q", c.Mesher.Strategy)
	}
	if _, err := util.ParseLogLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	if _, err := util.ParseLogCategories(c.Log.Categories); err != nil {
		return errors.Wrap(err, "log.categories")
	}
	if c.Staging.MemoryLimit < 0 {
		return errors.Errorf("staging.memory_limit must not be negative")
	}
	return nil
}

// ChunkShape builds the shape all chunks of the world share.
func (c Config) ChunkShape() voxel.Shape {
	side := uint16(c.Chunk.Side)
	if c.Chunk.Shape == "linear" {
		return voxel.NewLinearShape(side, side, side)
	}
	return voxel.NewMortonShape(side)
}
