// Package render connects chunk meshing to the staging pipeline. It exposes the two units
// a frame scheduler drives: MeshChunk, safe to call from several goroutines, and
// CommitFrame/CompleteFrame on the render thread.
package render

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/memmaker/sandvox/engine/staging"
	"github.com/memmaker/sandvox/engine/util"
	"github.com/memmaker/sandvox/engine/voxel"
	"github.com/memmaker/sandvox/engine/workspace"
)

// Mesh holds the GPU buffers of one chunk.
type Mesh struct {
	Position voxel.Int3
	Vertices *staging.StagedBuffer[voxel.Vertex]
	Indices  *staging.StagedBuffer[uint32]
}

// IndexCount is the number of indices visible to the GPU after the last commit.
func (m *Mesh) IndexCount() int {
	return m.Indices.Len()
}

func (m *Mesh) release() {
	m.Vertices.Release()
	m.Indices.Release()
}

type Stats struct {
	Meshes       int
	ChunksMeshed int64
	EmptyChunks  int64
	Quads        int64
	Triangles    int64
}

type MeshResult struct {
	Quads     int
	Triangles int
	Vertices  int
}

type ChunkRenderer[V voxel.Voxel[D], D any] struct {
	mesher   voxel.ChunkMesher[V, D]
	builders *workspace.Workspaces[voxel.MeshBuilder]
	pipeline *staging.Pipeline

	mu     sync.Mutex
	meshes map[voxel.Int3]*Mesh

	chunksMeshed atomic.Int64
	emptyChunks  atomic.Int64
	quads        atomic.Int64
	triangles    atomic.Int64
}

func NewChunkRenderer[V voxel.Voxel[D], D any](mesher voxel.ChunkMesher[V, D], pipeline *staging.Pipeline) *ChunkRenderer[V, D] {
	return &ChunkRenderer[V, D]{
		mesher:   mesher,
		builders: workspace.New("mesh builders", voxel.NewMeshBuilder, (*voxel.MeshBuilder).Clear),
		pipeline: pipeline,
		meshes:   make(map[voxel.Int3]*Mesh),
	}
}

func (r *ChunkRenderer[V, D]) Pipeline() *staging.Pipeline {
	return r.pipeline
}

func (r *ChunkRenderer[V, D]) Builders() *workspace.Workspaces[voxel.MeshBuilder] {
	return r.builders
}

// Pools lists the workspace pools meshing draws from: the builders and, if the mesher
// keeps one, its own scratch pool.
func (r *ChunkRenderer[V, D]) Pools() []func() workspace.Info {
	pools := []func() workspace.Info{r.builders.Info}
	if pooled, ok := r.mesher.(interface{ PoolInfo() workspace.Info }); ok {
		pools = append(pools, pooled.PoolInfo)
	}
	return pools
}

func (r *ChunkRenderer[V, D]) meshFor(pos voxel.Int3) *Mesh {
	r.mu.Lock()
	defer r.mu.Unlock()
	mesh, ok := r.meshes[pos]
	if !ok {
		label := fmt.Sprintf("chunk %d,%d,%d", pos.X, pos.Y, pos.Z)
		mesh = &Mesh{
			Position: pos,
			Vertices: staging.NewStagedBuffer[voxel.Vertex](r.pipeline, label+" vertices", staging.UsageVertex),
			Indices:  staging.NewStagedBuffer[uint32](r.pipeline, label+" indices", staging.UsageIndex),
		}
		r.meshes[pos] = mesh
	}
	return mesh
}

// build meshes the chunk into a pooled builder and hands it to fn before the builder
// goes back to the pool.
func (r *ChunkRenderer[V, D]) build(pos voxel.Int3, chunk *voxel.Chunk[V], data D, fn func(builder *voxel.MeshBuilder)) MeshResult {
	guard := r.builders.Get()
	defer guard.Release()
	builder := guard.Value()

	r.mesher.MeshChunk(chunk, builder, data)
	fn(builder)

	result := MeshResult{
		Quads:     builder.QuadCount(),
		Triangles: builder.TriangleCount(),
		Vertices:  builder.VertexCount(),
	}
	r.chunksMeshed.Add(1)
	r.quads.Add(int64(result.Quads))
	r.triangles.Add(int64(result.Triangles))
	if builder.IsEmpty() {
		r.emptyChunks.Add(1)
	}
	util.LogMeshDebug(fmt.Sprintf("[Mesher] Chunk %d,%d,%d was meshed into %d triangles", pos.X, pos.Y, pos.Z, result.Triangles))
	return result
}

// MeshChunk meshes a chunk and stages the result in the chunk's own buffers. The upload
// happens at the next CommitFrame.
func (r *ChunkRenderer[V, D]) MeshChunk(pos voxel.Int3, chunk *voxel.Chunk[V], data D) MeshResult {
	mesh := r.meshFor(pos)
	return r.build(pos, chunk, data, func(builder *voxel.MeshBuilder) {
		r.pipeline.Stage(func() {
			mesh.Vertices.Write(builder.Vertices())
			mesh.Indices.Write(builder.Indices())
		})
	})
}

// MeshChunkInto meshes a chunk and appends it to a shared batch.
func (r *ChunkRenderer[V, D]) MeshChunkInto(batch *Batch, pos voxel.Int3, chunk *voxel.Chunk[V], data D) DrawRange {
	var drawRange DrawRange
	r.build(pos, chunk, data, func(builder *voxel.MeshBuilder) {
		drawRange = batch.Add(pos, builder)
	})
	return drawRange
}

// MeshDirty remeshes every dirty chunk of the map, in position order.
func (r *ChunkRenderer[V, D]) MeshDirty(chunks *voxel.ChunkMap[V], data D) int {
	dirty := chunks.TakeDirty()
	for _, pos := range dirty {
		chunk := chunks.GetChunk(pos)
		if chunk == nil {
			continue
		}
		r.MeshChunk(pos, chunk, data)
	}
	return len(dirty)
}

func (r *ChunkRenderer[V, D]) Remove(pos voxel.Int3) {
	r.mu.Lock()
	mesh, ok := r.meshes[pos]
	delete(r.meshes, pos)
	r.mu.Unlock()
	if ok {
		mesh.release()
	}
}

func (r *ChunkRenderer[V, D]) Mesh(pos voxel.Int3) *Mesh {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meshes[pos]
}

// Meshes returns all chunk meshes ordered by position.
func (r *ChunkRenderer[V, D]) Meshes() []*Mesh {
	r.mu.Lock()
	result := make([]*Mesh, 0, len(r.meshes))
	for _, mesh := range r.meshes {
		result = append(result, mesh)
	}
	r.mu.Unlock()
	sort.Slice(result, func(i, j int) bool { return result[i].Position.Less(result[j].Position) })
	return result
}

func (r *ChunkRenderer[V, D]) CommitFrame() (uint64, error) {
	return r.pipeline.CommitFrame()
}

func (r *ChunkRenderer[V, D]) CompleteFrame(frame uint64) {
	r.pipeline.CompleteFrame(frame)
}

func (r *ChunkRenderer[V, D]) Stats() Stats {
	r.mu.Lock()
	meshes := len(r.meshes)
	r.mu.Unlock()
	return Stats{
		Meshes:       meshes,
		ChunksMeshed: r.chunksMeshed.Load(),
		EmptyChunks:  r.emptyChunks.Load(),
		Quads:        r.quads.Load(),
		Triangles:    r.triangles.Load(),
	}
}

// Release frees the buffers of every chunk mesh.
func (r *ChunkRenderer[V, D]) Release() {
	r.mu.Lock()
	meshes := r.meshes
	r.meshes = make(map[voxel.Int3]*Mesh)
	r.mu.Unlock()
	for _, mesh := range meshes {
		mesh.release()
	}
}
