package main

import (
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/memmaker/sandvox/engine/config"
	"github.com/memmaker/sandvox/engine/staging"
	"github.com/memmaker/sandvox/engine/util"
	"github.com/memmaker/sandvox/engine/voxel"
	"github.com/memmaker/sandvox/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInt3(t *testing.T) {
	p, err := parseInt3("10, -20,3")
	require.NoError(t, err)
	assert.Equal(t, voxel.Int3{X: 10, Y: -20, Z: 3}, p)

	_, err = parseInt3("1,2")
	assert.Error(t, err)
	_, err = parseInt3("1,x,2")
	assert.Error(t, err)
}

func TestParseSeed(t *testing.T) {
	assert.Equal(t, int64(7), parseSeed("", 7))
	assert.Equal(t, int64(-42), parseSeed("-42", 7))
	assert.Equal(t, game.SeedFromString("hello"), parseSeed("hello", 7))
}

func testConfig(t *testing.T, strategy string) config.Config {
	cfg := config.Default()
	cfg.World.Path = filepath.Join(t.TempDir(), "world.db")
	cfg.World.Radius = 1
	cfg.World.Height = 1
	cfg.Chunk.Side = 16
	cfg.Mesher.Strategy = strategy
	cfg.Mesher.Workers = 2
	return cfg
}

func TestChunkCenterFloors(t *testing.T) {
	s, err := newSession(testConfig(t, "naive"), 1, staging.NewMemoryDevice(0))
	require.NoError(t, err)
	defer func() { require.NoError(t, s.close()) }()

	assert.Equal(t, voxel.Int3{X: 0, Y: 0, Z: 0}, chunkCenter(s.world, mgl32.Vec3{0.5, 15.9, 3}))
	assert.Equal(t, voxel.Int3{X: -1, Y: 0, Z: -1}, chunkCenter(s.world, mgl32.Vec3{-0.1, 0, -16}))
	assert.Equal(t, voxel.Int3{X: 1, Y: -2, Z: 0}, chunkCenter(s.world, mgl32.Vec3{16, -16.5, 15.99}))
}

func TestHeadlessMeshesEveryChunkInRange(t *testing.T) {
	for _, strategy := range []string{"naive", "greedy"} {
		t.Run(strategy, func(t *testing.T) {
			cfg := testConfig(t, strategy)
			device := staging.NewMemoryDevice(0)
			s, err := newSession(cfg, 3, device)
			require.NoError(t, err)

			center := chunkCenter(s.world, s.spawnPoint(0, 0))
			export := filepath.Join(t.TempDir(), "chunks.glb")
			require.NoError(t, runHeadless(s, device, center, export))

			assert.Equal(t, 27, s.world.Chunks.Len())
			assert.Empty(t, s.world.Chunks.TakeDirty())
			stats := s.renderer.Stats()
			assert.Equal(t, int64(27), stats.ChunksMeshed)
			assert.Greater(t, stats.Quads, int64(0))
			require.NoError(t, s.close())

			meshes, err := util.LoadGLBMeshes(export)
			require.NoError(t, err)
			require.NotEmpty(t, meshes)
			for _, mesh := range meshes {
				assert.Equal(t, 0, len(mesh.Indices)%6, mesh.Name)
				assert.Len(t, mesh.Normals, len(mesh.Positions))
			}
		})
	}
}

func TestGreedyNeedsFewerQuads(t *testing.T) {
	quads := map[string]int64{}
	for _, strategy := range []string{"naive", "greedy"} {
		cfg := testConfig(t, strategy)
		device := staging.NewMemoryDevice(0)
		s, err := newSession(cfg, 5, device)
		require.NoError(t, err)
		require.NoError(t, runHeadless(s, device, chunkCenter(s.world, s.spawnPoint(0, 0)), ""))
		quads[strategy] = s.renderer.Stats().Quads
		require.NoError(t, s.close())
	}
	assert.Less(t, quads["greedy"], quads["naive"])
}
