package world

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/memmaker/sandvox/engine/voxel"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worlds", "test.db")
	f, err := Create(path, 1234, "morton", 16)
	require.NoError(t, err)
	created := f.Metadata()
	assert.Equal(t, int64(1234), created.Seed)
	assert.False(t, created.Created.IsZero())
	require.NoError(t, f.Close())

	f, err = Open(path)
	require.NoError(t, err)
	defer f.Close()
	meta := f.Metadata()
	assert.Equal(t, int64(1234), f.Seed())
	assert.Equal(t, "morton", meta.Shape)
	assert.Equal(t, 16, meta.Side)
	assert.True(t, created.Created.Equal(meta.Created))
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}

func TestOpenWithoutMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	f, err := open(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Open(path)
	assert.True(t, errors.Is(err, ErrNoMetadata))

	f, err = OpenOrCreate(path, 5, "linear", 8)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, int64(5), f.Seed())
}

func TestOpenOrCreateKeepsExistingWorld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.db")
	f, err := OpenOrCreate(path, 1, "morton", 32)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = OpenOrCreate(path, 2, "morton", 32)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, int64(1), f.Seed())
}

func TestSaveAndLoadChunk(t *testing.T) {
	ctx := context.Background()
	f, err := Create(filepath.Join(t.TempDir(), "w.db"), 1, "morton", 4)
	require.NoError(t, err)
	defer f.Close()

	ids := make([]uint16, 64)
	for i := range ids {
		ids[i] = uint16(i * 1000)
	}
	require.NoError(t, f.SaveChunk(ctx, voxel.Int3{X: -1, Y: 2, Z: 3}, ids))

	got, ok, err := f.LoadChunk(ctx, voxel.Int3{X: -1, Y: 2, Z: 3})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ids, got)

	_, ok, err = f.LoadChunk(ctx, voxel.Int3{})
	require.NoError(t, err)
	assert.False(t, ok)

	ids[0] = 7
	require.NoError(t, f.SaveChunk(ctx, voxel.Int3{X: -1, Y: 2, Z: 3}, ids))
	got, _, err = f.LoadChunk(ctx, voxel.Int3{X: -1, Y: 2, Z: 3})
	require.NoError(t, err)
	assert.Equal(t, uint16(7), got[0])

	require.NoError(t, f.DeleteChunk(ctx, voxel.Int3{X: -1, Y: 2, Z: 3}))
	_, ok, err = f.LoadChunk(ctx, voxel.Int3{X: -1, Y: 2, Z: 3})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChunkBlobsAreCompressed(t *testing.T) {
	ctx := context.Background()
	f, err := Create(filepath.Join(t.TempDir(), "w.db"), 1, "morton", 32)
	require.NoError(t, err)
	defer f.Close()

	ids := make([]uint16, 32*32*32)
	for i := range ids[:len(ids)/2] {
		ids[i] = 3
	}
	require.NoError(t, f.SaveChunk(ctx, voxel.Int3{}, ids))

	var size int
	require.NoError(t, f.db.QueryRow(`SELECT length(data) FROM chunks`).Scan(&size))
	assert.Less(t, size, len(ids)*2/10)
}

func TestChunkPositionsAreOrdered(t *testing.T) {
	ctx := context.Background()
	f, err := Create(filepath.Join(t.TempDir(), "w.db"), 1, "morton", 4)
	require.NoError(t, err)
	defer f.Close()

	for _, pos := range []voxel.Int3{{X: 2}, {X: -1, Y: 5}, {X: -1, Y: 0, Z: 1}} {
		require.NoError(t, f.SaveChunk(ctx, pos, []uint16{1}))
	}
	positions, err := f.ChunkPositions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []voxel.Int3{{X: -1, Y: 0, Z: 1}, {X: -1, Y: 5}, {X: 2}}, positions)
}

func TestChunkDataHelpers(t *testing.T) {
	ctx := context.Background()
	f, err := Create(filepath.Join(t.TempDir(), "w.db"), 1, "morton", 4)
	require.NoError(t, err)
	defer f.Close()

	shape := voxel.NewMortonShape(4)
	chunk := voxel.ChunkFromFunc(shape, func(p voxel.Point3) bool { return p.Y() == 0 })
	toID := func(solid bool) uint16 {
		if solid {
			return 1
		}
		return 0
	}
	fromID := func(id uint16) bool { return id == 1 }
	require.NoError(t, SaveChunkData(ctx, f, voxel.Int3{}, chunk, toID))

	loaded := voxel.NewChunk(shape, false)
	ok, err := LoadChunkData(ctx, f, voxel.Int3{}, loaded, fromID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, chunk.Data(), loaded.Data())

	ok, err = LoadChunkData(ctx, f, voxel.Int3{X: 1}, loaded, fromID)
	require.NoError(t, err)
	assert.False(t, ok)

	small := voxel.NewChunk(voxel.NewMortonShape(2), false)
	_, err = LoadChunkData(ctx, f, voxel.Int3{}, small, fromID)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}
