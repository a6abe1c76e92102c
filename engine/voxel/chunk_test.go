package voxel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearShapeOffsets(t *testing.T) {
	shape := NewLinearShape(4, 3, 2)
	assert.Equal(t, 24, shape.Len())
	assert.Equal(t, 0, shape.Offset(Point3{0, 0, 0}))
	assert.Equal(t, 1, shape.Offset(Point3{1, 0, 0}))
	assert.Equal(t, 4, shape.Offset(Point3{0, 1, 0}))
	assert.Equal(t, 12, shape.Offset(Point3{0, 0, 1}))
	assert.Equal(t, 23, shape.Offset(Point3{3, 2, 1}))

	for i := 0; i < shape.Len(); i++ {
		require.Equal(t, i, shape.Offset(shape.Delinearize(i)))
	}
}

func TestLinearShapeOutOfRangePanics(t *testing.T) {
	shape := NewLinearShape(2, 2, 1)
	assert.Panics(t, func() { shape.Offset(Point3{2, 0, 0}) })
	assert.Panics(t, func() { shape.Offset(Point3{0, 0, 1}) })
}

func TestMortonShapeIsBijective(t *testing.T) {
	shape := NewMortonShape(8)
	require.Equal(t, 512, shape.Len())
	seen := make([]bool, shape.Len())
	for z := uint16(0); z < 8; z++ {
		for y := uint16(0); y < 8; y++ {
			for x := uint16(0); x < 8; x++ {
				offset := shape.Offset(Point3{x, y, z})
				require.Less(t, offset, shape.Len())
				require.False(t, seen[offset])
				seen[offset] = true
				require.Equal(t, Point3{x, y, z}, shape.Delinearize(offset))
			}
		}
	}
}

func TestMortonShapeOutOfRangeNeverAliases(t *testing.T) {
	shape := NewMortonShape(4)
	for _, p := range []Point3{{4, 0, 0}, {0, 4, 0}, {0, 0, 4}, {3, 3, 5}, {100, 0, 0}} {
		assert.GreaterOrEqual(t, shape.Offset(p), shape.Len(), "%v", p)
	}
	chunk := NewChunk[int](shape, 0)
	assert.Panics(t, func() { chunk.Get(Point3{4, 0, 0}) })
}

func TestMortonShapeRequiresPowerOfTwo(t *testing.T) {
	assert.Panics(t, func() { NewMortonShape(12) })
	assert.Panics(t, func() { NewMortonShape(0) })
	assert.NotPanics(t, func() { NewMortonShape(32) })
}

func TestChunkGetSet(t *testing.T) {
	for _, shape := range []Shape{NewLinearShape(4, 4, 4), NewMortonShape(4)} {
		chunk := NewChunk(shape, air)
		chunk.Set(Point3{1, 2, 3}, stone)
		assert.Equal(t, stone, *chunk.Get(Point3{1, 2, 3}))
		assert.Equal(t, air, *chunk.Get(Point3{3, 2, 1}))

		chunk.Get(Point3{0, 0, 0}).texture = 3
		assert.Equal(t, AtlasID(3), chunk.Get(Point3{0, 0, 0}).texture)

		assert.Nil(t, chunk.GetLocal(-1, 0, 0))
		assert.NotNil(t, chunk.GetLocal(3, 3, 3))
	}
}

func TestChunkEachVisitsEveryCellOnceInStableOrder(t *testing.T) {
	for _, shape := range []Shape{NewLinearShape(3, 2, 5), NewMortonShape(4)} {
		chunk := ChunkFromFunc(shape, func(p Point3) Point3 { return p })

		var first []Point3
		seen := make(map[Point3]bool)
		chunk.Each(func(p Point3, v *Point3) {
			require.Equal(t, p, *v)
			require.False(t, seen[p])
			seen[p] = true
			first = append(first, p)
		})
		assert.Len(t, seen, chunk.Len())

		var second []Point3
		chunk.Each(func(p Point3, v *Point3) { second = append(second, p) })
		assert.Equal(t, first, second)
	}
}

func TestChunkMapWorldCoordinates(t *testing.T) {
	m := NewChunkMap(NewMortonShape(16), air)

	chunkPos, local := m.ToChunkPos(Int3{17, -1, 0})
	assert.Equal(t, Int3{1, -1, 0}, chunkPos)
	assert.Equal(t, Point3{1, 15, 0}, local)

	chunkPos, local = m.ToChunkPos(Int3{-16, -17, 15})
	assert.Equal(t, Int3{-1, -2, 0}, chunkPos)
	assert.Equal(t, Point3{0, 15, 15}, local)

	assert.Equal(t, float32(-16), m.ChunkOrigin(Int3{-1, 0, 0}).X())
}

func TestChunkMapDirtyTracking(t *testing.T) {
	m := NewChunkMap(NewLinearShape(4, 4, 4), air)
	m.Insert(Int3{1, 0, 0}, m.NewChunk())
	m.Insert(Int3{0, 0, 0}, m.NewChunk())

	assert.Equal(t, []Int3{{0, 0, 0}, {1, 0, 0}}, m.TakeDirty())
	assert.Empty(t, m.TakeDirty())

	assert.True(t, m.SetBlock(Int3{5, 1, 1}, stone))
	assert.False(t, m.SetBlock(Int3{50, 1, 1}, stone))
	assert.True(t, m.IsDirty(Int3{1, 0, 0}))
	assert.False(t, m.IsDirty(Int3{0, 0, 0}))
	assert.Equal(t, stone, *m.GetGlobalBlock(Int3{5, 1, 1}))
	assert.Nil(t, m.GetGlobalBlock(Int3{-5, 1, 1}))

	m.SetDirty(Int3{9, 9, 9})
	assert.Equal(t, []Int3{{1, 0, 0}}, m.TakeDirty())

	m.Remove(Int3{1, 0, 0})
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, []Int3{{0, 0, 0}}, m.Positions())
}

type floorGenerator struct{}

func (floorGenerator) Generate(chunkPos Int3, chunk *Chunk[testVoxel]) {
	if chunkPos.Y != 0 {
		return
	}
	size := chunk.Size()
	for x := uint16(0); x < size.X(); x++ {
		for z := uint16(0); z < size.Z(); z++ {
			chunk.Set(Point3{x, 0, z}, stone)
		}
	}
}

func TestChunkMapGenerate(t *testing.T) {
	m := NewChunkMap(NewMortonShape(4), air)
	chunk := m.Generate(Int3{0, 0, 0}, floorGenerator{})
	assert.Same(t, chunk, m.GetChunk(Int3{0, 0, 0}))
	assert.Equal(t, stone, *chunk.Get(Point3{3, 0, 3}))
	assert.Equal(t, air, *chunk.Get(Point3{3, 1, 3}))
	assert.True(t, m.IsDirty(Int3{0, 0, 0}))
}

func TestChunkMapRejectsForeignShape(t *testing.T) {
	m := NewChunkMap(NewMortonShape(4), air)
	assert.Panics(t, func() { m.Insert(Int3{}, NewChunk(NewMortonShape(8), air)) })
}
