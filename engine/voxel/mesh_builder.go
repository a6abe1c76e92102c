package voxel

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is the GPU vertex layout: 48 bytes, vec4 aligned.
type Vertex struct {
	Position  mgl32.Vec4
	Normal    mgl32.Vec4
	UV        mgl32.Vec2
	TextureID uint32
	_         uint32
}

const VertexSize = int(unsafe.Sizeof(Vertex{}))

// MeshBuilder accumulates vertices and triangles across many quads.
// Clear keeps the allocated capacity so a pooled builder stops allocating once warm.
type MeshBuilder struct {
	vertices []Vertex
	faces    [][3]uint32
	quads    int
}

func NewMeshBuilder() *MeshBuilder {
	return &MeshBuilder{}
}

// Push appends a fragment whose face indices are relative to its own vertices.
func (m *MeshBuilder) Push(vertices []Vertex, faces [][3]uint32) {
	base := uint32(len(m.vertices))
	m.vertices = append(m.vertices, vertices...)
	for _, f := range faces {
		m.faces = append(m.faces, [3]uint32{f[0] + base, f[1] + base, f[2] + base})
	}
}

func (m *MeshBuilder) PushQuad(face BlockFace, quad UnorientedQuad, texture AtlasID) {
	vertices, faces := quad.Mesh(face, texture)
	m.Push(vertices[:], faces[:])
	m.quads++
}

func (m *MeshBuilder) Clear() {
	m.vertices = m.vertices[:0]
	m.faces = m.faces[:0]
	m.quads = 0
}

func (m *MeshBuilder) Vertices() []Vertex {
	return m.vertices
}

func (m *MeshBuilder) Faces() [][3]uint32 {
	return m.faces
}

// Indices views the triangles as a flat index list without copying.
func (m *MeshBuilder) Indices() []uint32 {
	if len(m.faces) == 0 {
		return nil
	}
	return unsafe.Slice(&m.faces[0][0], len(m.faces)*3)
}

func (m *MeshBuilder) VertexCount() int {
	return len(m.vertices)
}

func (m *MeshBuilder) TriangleCount() int {
	return len(m.faces)
}

func (m *MeshBuilder) QuadCount() int {
	return m.quads
}

func (m *MeshBuilder) IsEmpty() bool {
	return len(m.faces) == 0
}
