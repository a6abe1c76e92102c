package render

import (
	"sync"

	"github.com/memmaker/sandvox/engine/staging"
	"github.com/memmaker/sandvox/engine/voxel"
)

// DrawRange locates one chunk inside a batch: draw IndexCount indices starting at
// FirstIndex, adding BaseVertex to each.
type DrawRange struct {
	BaseVertex int
	FirstIndex int
	IndexCount int
}

// Batch packs many chunk meshes into one vertex and one index buffer. Each Add appends
// after everything staged so far, so concurrent writers never overlap.
type Batch struct {
	mu       sync.Mutex
	pipeline *staging.Pipeline
	Vertices *staging.StagedBuffer[voxel.Vertex]
	Indices  *staging.StagedBuffer[uint32]
	ranges   map[voxel.Int3]DrawRange
}

func NewBatch(pipeline *staging.Pipeline, label string) *Batch {
	return &Batch{
		pipeline: pipeline,
		Vertices: staging.NewStagedBuffer[voxel.Vertex](pipeline, label+" vertices", staging.UsageVertex),
		Indices:  staging.NewStagedBuffer[uint32](pipeline, label+" indices", staging.UsageIndex),
		ranges:   make(map[voxel.Int3]DrawRange),
	}
}

// Add appends the builder's mesh. Both halves land in the same commit.
func (b *Batch) Add(pos voxel.Int3, builder *voxel.MeshBuilder) DrawRange {
	var drawRange DrawRange
	b.pipeline.Stage(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		drawRange = DrawRange{
			BaseVertex: b.Vertices.Append(builder.Vertices()),
			FirstIndex: b.Indices.Append(builder.Indices()),
			IndexCount: builder.TriangleCount() * 3,
		}
		b.ranges[pos] = drawRange
	})
	return drawRange
}

func (b *Batch) Range(pos voxel.Int3) (DrawRange, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.ranges[pos]
	return r, ok
}

func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ranges)
}

// Ranges returns a copy of all draw ranges.
func (b *Batch) Ranges() map[voxel.Int3]DrawRange {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make(map[voxel.Int3]DrawRange, len(b.ranges))
	for pos, r := range b.ranges {
		result[pos] = r
	}
	return result
}

// Reset forgets the ranges before the batch is rebuilt for the next commit.
func (b *Batch) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ranges = make(map[voxel.Int3]DrawRange)
}

func (b *Batch) Release() {
	b.Vertices.Release()
	b.Indices.Release()
}
