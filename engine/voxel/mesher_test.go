package voxel

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func positions(vertices []Vertex) []mgl32.Vec3 {
	result := make([]mgl32.Vec3, len(vertices))
	for i, v := range vertices {
		result[i] = v.Position.Vec3()
	}
	return result
}

func TestNaiveMesherSingleVoxel(t *testing.T) {
	chunk := NewChunk(NewMortonShape(4), air)
	chunk.Set(Point3{1, 1, 1}, stone)

	builder := NewMeshBuilder()
	NaiveMesher[testVoxel, *testData]{}.MeshChunk(chunk, builder, nil)

	assert.Equal(t, 6, builder.QuadCount())
	assert.Equal(t, 24, builder.VertexCount())
	assert.Equal(t, 12, builder.TriangleCount())
	assert.Len(t, builder.Indices(), 36)
	for _, index := range builder.Indices() {
		assert.Less(t, index, uint32(builder.VertexCount()))
	}
}

func TestNaiveMesherSkipsFacesWithoutTexture(t *testing.T) {
	chunk := NewChunk(NewLinearShape(2, 2, 2), air)
	chunk.Set(Point3{0, 0, 0}, stone)

	builder := NewMeshBuilder()
	data := &testData{hidden: map[BlockFace]bool{Up: true, Left: true}}
	NaiveMesher[testVoxel, *testData]{}.MeshChunk(chunk, builder, data)

	assert.Equal(t, 4, builder.QuadCount())
	assert.Equal(t, 16, builder.VertexCount())
	assert.Equal(t, 8, builder.TriangleCount())
	for _, v := range builder.Vertices() {
		assert.NotEqual(t, Up.Normal().Vec4(0), v.Normal)
		assert.NotEqual(t, Left.Normal().Vec4(0), v.Normal)
	}
}

func TestNaiveMesherEmptyChunk(t *testing.T) {
	builder := NewMeshBuilder()
	NaiveMesher[testVoxel, *testData]{}.MeshChunk(NewChunk(NewMortonShape(8), air), builder, nil)
	assert.True(t, builder.IsEmpty())
	assert.Zero(t, builder.VertexCount())
}

// A 2x2x1 chunk with only the origin cell solid yields one quad per face, placed by the
// face axis table, all carrying the voxel's texture.
func TestNaiveMesherScenario(t *testing.T) {
	chunk := NewChunk(NewLinearShape(2, 2, 1), air)
	chunk.Set(Point3{0, 0, 0}, stone)

	builder := NewMeshBuilder()
	NaiveMesher[testVoxel, *testData]{}.MeshChunk(chunk, builder, nil)
	require.Equal(t, 6, builder.QuadCount())

	expected := [][4]mgl32.Vec3{
		{{0, 1, 0}, {0, 1, 1}, {0, 0, 1}, {0, 0, 0}}, // Left
		{{1, 1, 0}, {1, 1, 1}, {1, 0, 1}, {1, 0, 0}}, // Right
		{{0, 0, 1}, {1, 0, 1}, {1, 0, 0}, {0, 0, 0}}, // Down
		{{0, 1, 1}, {1, 1, 1}, {1, 1, 0}, {0, 1, 0}}, // Up
		{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}}, // Front
		{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}, // Back
	}
	got := positions(builder.Vertices())
	for n, face := range AllFaces {
		assert.Equal(t, expected[n][:], got[n*4:n*4+4], face.String())
		for _, v := range builder.Vertices()[n*4 : n*4+4] {
			assert.Equal(t, face.Normal().Vec4(0), v.Normal, face.String())
			assert.Equal(t, uint32(7), v.TextureID)
		}
	}
}

func TestQuadWindingIsConsistentPerFace(t *testing.T) {
	quad := UnorientedQuad{IJ0: [2]uint16{2, 3}, IJ1: [2]uint16{5, 4}, K: 1}
	for _, face := range AllFaces {
		vertices, faces := quad.Mesh(face, 1)
		for _, tri := range faces {
			a := vertices[tri[0]].Position.Vec3()
			b := vertices[tri[1]].Position.Vec3()
			c := vertices[tri[2]].Position.Vec3()
			normal := b.Sub(a).Cross(c.Sub(a)).Normalize()
			assert.True(t, normal.ApproxEqual(face.Normal().Mul(-1)), "%v: %v", face, normal)
		}
	}
}

func TestQuadDepthOffset(t *testing.T) {
	quad := UnitQuad(Right, Point3{3, 4, 5})
	assert.Equal(t, UnorientedQuad{IJ0: [2]uint16{5, 4}, IJ1: [2]uint16{6, 5}, K: 3}, quad)
	vertices, _ := quad.Mesh(Right, 0)
	for _, v := range vertices {
		assert.Equal(t, float32(4), v.Position.X())
	}
	vertices, _ = UnitQuad(Left, Point3{3, 4, 5}).Mesh(Left, 0)
	for _, v := range vertices {
		assert.Equal(t, float32(3), v.Position.X())
	}
}

func TestQuadUVsScaleWithSize(t *testing.T) {
	quad := UnorientedQuad{IJ0: [2]uint16{0, 0}, IJ1: [2]uint16{3, 2}}
	vertices, _ := quad.Mesh(Front, 0)
	assert.Equal(t, mgl32.Vec2{0, 2}, vertices[0].UV)
	assert.Equal(t, mgl32.Vec2{3, 2}, vertices[1].UV)
	assert.Equal(t, mgl32.Vec2{3, 0}, vertices[2].UV)
	assert.Equal(t, mgl32.Vec2{0, 0}, vertices[3].UV)
}

func TestMeshBuilderRebasesIndices(t *testing.T) {
	builder := NewMeshBuilder()
	fragment := make([]Vertex, 3)
	builder.Push(fragment, [][3]uint32{{0, 1, 2}})
	builder.Push(make([]Vertex, 4), [][3]uint32{{0, 1, 2}, {0, 2, 3}})

	assert.Equal(t, 7, builder.VertexCount())
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5, 3, 5, 6}, builder.Indices())
	for _, index := range builder.Indices() {
		assert.Less(t, index, uint32(builder.VertexCount()))
	}
}

func TestMeshBuilderClearKeepsCapacity(t *testing.T) {
	builder := NewMeshBuilder()
	builder.PushQuad(Up, UnitQuad(Up, Point3{}), 1)
	vertexCap, faceCap := cap(builder.vertices), cap(builder.faces)

	builder.Clear()
	assert.Zero(t, builder.VertexCount())
	assert.Zero(t, builder.QuadCount())
	assert.Nil(t, builder.Indices())
	assert.Equal(t, vertexCap, cap(builder.vertices))
	assert.Equal(t, faceCap, cap(builder.faces))

	builder.PushQuad(Up, UnitQuad(Up, Point3{}), 1)
	assert.Equal(t, []uint32{2, 1, 0, 3, 2, 0}, builder.Indices())
}

func TestVertexLayout(t *testing.T) {
	assert.Equal(t, 48, VertexSize)
}

type unitFace struct {
	face    BlockFace
	cell    Point3
	texture uint32
}

// coveredFaces expands every quad of a mesh back into the unit faces it covers.
func coveredFaces(t *testing.T, builder *MeshBuilder) map[unitFace]int {
	result := make(map[unitFace]int)
	vertices := builder.Vertices()
	require.Zero(t, len(vertices)%4)
	for q := 0; q < len(vertices); q += 4 {
		var face BlockFace
		for _, f := range AllFaces {
			if f.Normal().Vec4(0) == vertices[q].Normal {
				face = f
			}
		}
		lo := vertices[q].Position.Vec3()
		hi := lo
		for _, v := range vertices[q : q+4] {
			for axis := 0; axis < 3; axis++ {
				if v.Position[axis] < lo[axis] {
					lo[axis] = v.Position[axis]
				}
				if v.Position[axis] > hi[axis] {
					hi[axis] = v.Position[axis]
				}
			}
		}
		i, j, k := face.Axes()
		depth := uint16(lo[k])
		if face.Positive() {
			depth--
		}
		for a := uint16(lo[i]); a < uint16(hi[i]); a++ {
			for b := uint16(lo[j]); b < uint16(hi[j]); b++ {
				var cell Point3
				cell[i], cell[j], cell[k] = a, b, depth
				result[unitFace{face: face, cell: cell, texture: vertices[q].TextureID}]++
			}
		}
	}
	return result
}

func TestGreedyMesherCoversSameFaces(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, shape := range []Shape{NewMortonShape(8), NewLinearShape(5, 3, 7)} {
		chunk := ChunkFromFunc(shape, func(p Point3) testVoxel {
			if rng.Intn(3) == 0 {
				return air
			}
			return testVoxel{solid: true, texture: AtlasID(rng.Intn(2))}
		})
		data := &testData{hidden: map[BlockFace]bool{Down: true}}

		naive := NewMeshBuilder()
		NaiveMesher[testVoxel, *testData]{}.MeshChunk(chunk, naive, data)
		greedy := NewMeshBuilder()
		NewGreedyMesher[testVoxel, *testData]().MeshChunk(chunk, greedy, data)

		naiveFaces := coveredFaces(t, naive)
		assert.Len(t, naiveFaces, naive.QuadCount())
		assert.Equal(t, naiveFaces, coveredFaces(t, greedy))
		assert.LessOrEqual(t, greedy.TriangleCount(), naive.TriangleCount())
	}
}

func TestGreedyMesherMergesSolidChunk(t *testing.T) {
	chunk := NewChunk(NewMortonShape(4), stone)

	builder := NewMeshBuilder()
	NewGreedyMesher[testVoxel, *testData]().MeshChunk(chunk, builder, nil)

	// one 4x4 quad per face and layer
	assert.Equal(t, 6*4, builder.QuadCount())
	assert.Equal(t, 6*4*2, builder.TriangleCount())
}

func TestGreedyMesherReusesMasks(t *testing.T) {
	mesher := NewGreedyMesher[testVoxel, *testData]()
	builder := NewMeshBuilder()
	for _, shape := range []Shape{NewMortonShape(4), NewLinearShape(9, 2, 5), NewMortonShape(4)} {
		builder.Clear()
		mesher.MeshChunk(NewChunk(shape, stone), builder, nil)
	}

	info := mesher.PoolInfo()
	assert.Equal(t, "greedy masks", info.Name)
	assert.Equal(t, 1, info.Created)
	assert.Equal(t, 3, info.Acquired)
	assert.Zero(t, info.InUse())
}

func TestNewMesher(t *testing.T) {
	m, ok := NewMesher[testVoxel, *testData]("greedy")
	require.True(t, ok)
	assert.IsType(t, &GreedyMesher[testVoxel, *testData]{}, m)
	m, ok = NewMesher[testVoxel, *testData]("naive")
	require.True(t, ok)
	assert.IsType(t, NaiveMesher[testVoxel, *testData]{}, m)
	_, ok = NewMesher[testVoxel, *testData]("marching")
	assert.False(t, ok)
}

func BenchmarkNaiveMesher(b *testing.B) {
	chunk := ChunkFromFunc(NewMortonShape(32), func(p Point3) testVoxel {
		if (p[0]+p[1]+p[2])%3 == 0 {
			return stone
		}
		return air
	})
	builder := NewMeshBuilder()
	mesher := NaiveMesher[testVoxel, *testData]{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		builder.Clear()
		mesher.MeshChunk(chunk, builder, nil)
	}
}

func BenchmarkGreedyMesher(b *testing.B) {
	chunk := ChunkFromFunc(NewMortonShape(32), func(p Point3) testVoxel {
		if p[1] < 16 {
			return stone
		}
		return air
	})
	builder := NewMeshBuilder()
	mesher := NewGreedyMesher[testVoxel, *testData]()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		builder.Clear()
		mesher.MeshChunk(chunk, builder, nil)
	}
}
