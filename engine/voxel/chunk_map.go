package voxel

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/memmaker/sandvox/engine/util"
)

// ChunkGenerator fills a freshly allocated chunk at the given chunk position.
type ChunkGenerator[V any] interface {
	Generate(chunkPos Int3, chunk *Chunk[V])
}

// ChunkMap stores loaded chunks by chunk position and tracks which of them need remeshing.
// All chunks share one shape.
type ChunkMap[V any] struct {
	mu     sync.RWMutex
	shape  Shape
	empty  V
	chunks map[Int3]*Chunk[V]
	dirty  map[Int3]struct{}
}

func NewChunkMap[V any](shape Shape, empty V) *ChunkMap[V] {
	return &ChunkMap[V]{
		shape:  shape,
		empty:  empty,
		chunks: make(map[Int3]*Chunk[V]),
		dirty:  make(map[Int3]struct{}),
	}
}

func (m *ChunkMap[V]) Shape() Shape {
	return m.shape
}

func (m *ChunkMap[V]) chunkSize() Int3 {
	return m.shape.Size().ToInt3()
}

// NewChunk allocates an empty chunk of the map's shape without inserting it.
func (m *ChunkMap[V]) NewChunk() *Chunk[V] {
	return NewChunk(m.shape, m.empty)
}

func (m *ChunkMap[V]) Insert(pos Int3, chunk *Chunk[V]) {
	if chunk.Shape().Size() != m.shape.Size() {
		panic(fmt.Sprintf("failed to insert chunk %v: size %v does not match map size %v", pos, chunk.Size(), m.shape.Size()))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[pos] = chunk
	m.dirty[pos] = struct{}{}
}

// Generate creates, fills and inserts the chunk at pos.
func (m *ChunkMap[V]) Generate(pos Int3, generator ChunkGenerator[V]) *Chunk[V] {
	chunk := m.NewChunk()
	generator.Generate(pos, chunk)
	m.Insert(pos, chunk)
	util.LogWorldDebug(fmt.Sprintf("[ChunkMap] Generated chunk %d,%d,%d", pos.X, pos.Y, pos.Z))
	return chunk
}

func (m *ChunkMap[V]) GetChunk(pos Int3) *Chunk[V] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chunks[pos]
}

func (m *ChunkMap[V]) ChunkExists(pos Int3) bool {
	return m.GetChunk(pos) != nil
}

func (m *ChunkMap[V]) Remove(pos Int3) *Chunk[V] {
	m.mu.Lock()
	defer m.mu.Unlock()
	chunk := m.chunks[pos]
	delete(m.chunks, pos)
	delete(m.dirty, pos)
	return chunk
}

func (m *ChunkMap[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// Positions returns the loaded chunk positions in ascending order.
func (m *ChunkMap[V]) Positions() []Int3 {
	m.mu.RLock()
	result := make([]Int3, 0, len(m.chunks))
	for pos := range m.chunks {
		result = append(result, pos)
	}
	m.mu.RUnlock()
	sortPositions(result)
	return result
}

func (m *ChunkMap[V]) SetDirty(pos Int3) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chunks[pos]; ok {
		m.dirty[pos] = struct{}{}
	}
}

func (m *ChunkMap[V]) IsDirty(pos Int3) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.dirty[pos]
	return ok
}

// TakeDirty returns the dirty chunk positions in ascending order and clears the set.
func (m *ChunkMap[V]) TakeDirty() []Int3 {
	m.mu.Lock()
	result := make([]Int3, 0, len(m.dirty))
	for pos := range m.dirty {
		result = append(result, pos)
	}
	m.dirty = make(map[Int3]struct{})
	m.mu.Unlock()
	sortPositions(result)
	return result
}

// ToChunkPos splits a world block position into its chunk position and chunk-local cell.
func (m *ChunkMap[V]) ToChunkPos(world Int3) (Int3, Point3) {
	size := m.chunkSize()
	chunkPos := Int3{floorDiv(world.X, size.X), floorDiv(world.Y, size.Y), floorDiv(world.Z, size.Z)}
	local := world.Sub(chunkPos.MulInt3(size))
	return chunkPos, Point3{uint16(local.X), uint16(local.Y), uint16(local.Z)}
}

// ChunkOrigin is the world position of the chunk's (0,0,0) cell.
func (m *ChunkMap[V]) ChunkOrigin(chunkPos Int3) mgl32.Vec3 {
	return chunkPos.MulInt3(m.chunkSize()).ToVec3()
}

// GetGlobalBlock returns nil when the containing chunk is not loaded.
func (m *ChunkMap[V]) GetGlobalBlock(world Int3) *V {
	chunkPos, local := m.ToChunkPos(world)
	chunk := m.GetChunk(chunkPos)
	if chunk == nil {
		return nil
	}
	return chunk.Get(local)
}

// SetBlock writes a voxel at a world position and marks the chunk dirty.
// It returns false when the containing chunk is not loaded.
func (m *ChunkMap[V]) SetBlock(world Int3, v V) bool {
	chunkPos, local := m.ToChunkPos(world)
	m.mu.Lock()
	defer m.mu.Unlock()
	chunk, ok := m.chunks[chunkPos]
	if !ok {
		return false
	}
	chunk.Set(local, v)
	m.dirty[chunkPos] = struct{}{}
	return true
}

func sortPositions(positions []Int3) {
	sort.Slice(positions, func(i, j int) bool { return positions[i].Less(positions[j]) })
}
