package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/memmaker/sandvox/engine/voxel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sandvox.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("SANDVOX_MESH_WORKERS", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 4, cfg.Mesher.Workers)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
chunk:
  shape: linear
  side: 24
mesher:
  strategy: greedy
log:
  level: debug
  categories: [mesh, staging]
world:
  seed: 99
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "linear", cfg.Chunk.Shape)
	assert.Equal(t, 24, cfg.Chunk.Side)
	assert.Equal(t, "greedy", cfg.Mesher.Strategy)
	assert.Equal(t, []string{"mesh", "staging"}, cfg.Log.Categories)
	assert.Equal(t, int64(99), cfg.World.Seed)
	// untouched sections keep their defaults
	assert.Equal(t, "world.db", cfg.World.Path)
	assert.Equal(t, 1280, cfg.Window.Width)
	assert.Equal(t, 16, cfg.Blocks.TileSize)

	shape := cfg.ChunkShape()
	assert.IsType(t, voxel.LinearShape{}, shape)
	assert.Equal(t, 24*24*24, shape.Len())
}

func TestLoadFromEnvironment(t *testing.T) {
	path := writeConfig(t, "mesher:\n  strategy: greedy\n")
	t.Setenv(EnvConfigPath, path)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "greedy", cfg.Mesher.Strategy)
}

func TestWorkersFromEnvironment(t *testing.T) {
	t.Setenv("SANDVOX_MESH_WORKERS", "7")
	cfg, err := Load(writeConfig(t, "log:\n  level: info\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Mesher.Workers)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"non power of two morton": "chunk:\n  side: 24\n",
		"unknown shape":           "chunk:\n  shape: octree\n",
		"unknown mesher":          "mesher:\n  strategy: marching\n",
		"negative memory limit":   "staging:\n  memory_limit: -1\n",
		"unknown log level":       "log:\n  level: loud\n",
		"unknown log category":    "log:\n  categories: [network]\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "chunk: [1, 2"))
	assert.Error(t, err)
}

func TestMortonShapeFromConfig(t *testing.T) {
	cfg := Default()
	cfg.Chunk.Side = 16
	shape := cfg.ChunkShape()
	assert.IsType(t, voxel.MortonShape{}, shape)
	assert.Equal(t, 4096, shape.Len())
}
