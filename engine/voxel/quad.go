package voxel

import "github.com/go-gl/mathgl/mgl32"

// UnorientedQuad is a rectangle in face-local coordinates: IJ0..IJ1 spans the two
// in-plane axes of the face and K is the cell layer along its depth axis.
type UnorientedQuad struct {
	IJ0 [2]uint16
	IJ1 [2]uint16
	K   uint16
}

// UnitQuad returns the 1x1 quad covering the given face of the cell at p.
func UnitQuad(face BlockFace, p Point3) UnorientedQuad {
	i, j, k := face.Axes()
	return UnorientedQuad{
		IJ0: [2]uint16{p[i], p[j]},
		IJ1: [2]uint16{p[i] + 1, p[j] + 1},
		K:   p[k],
	}
}

func (q UnorientedQuad) Width() uint16  { return q.IJ1[0] - q.IJ0[0] }
func (q UnorientedQuad) Height() uint16 { return q.IJ1[1] - q.IJ0[1] }

// Index tables for the two triangles. Both produce triangles whose geometric normal
// points against the face normal; the renderer treats clockwise as front facing.
var (
	frontIndices = [2][3]uint32{{0, 1, 2}, {0, 2, 3}}
	backIndices  = [2][3]uint32{{2, 1, 0}, {3, 2, 0}}
)

// Mesh lowers the quad into four vertices and two triangles placed on the given face.
func (q UnorientedQuad) Mesh(face BlockFace, texture AtlasID) ([4]Vertex, [2][3]uint32) {
	i0, j0 := float32(q.IJ0[0]), float32(q.IJ0[1])
	i1, j1 := float32(q.IJ1[0]), float32(q.IJ1[1])
	k := float32(q.K)
	if face.Positive() {
		k++
	}

	var corners [4]mgl32.Vec3
	switch face {
	case Left, Right:
		// i = z, j = y
		corners = [4]mgl32.Vec3{{k, j1, i0}, {k, j1, i1}, {k, j0, i1}, {k, j0, i0}}
	case Down, Up:
		// i = x, j = z
		corners = [4]mgl32.Vec3{{i0, k, j1}, {i1, k, j1}, {i1, k, j0}, {i0, k, j0}}
	default:
		corners = [4]mgl32.Vec3{{i0, j0, k}, {i1, j0, k}, {i1, j1, k}, {i0, j1, k}}
	}

	dx, dy := i1-i0, j1-j0
	uvs := [4]mgl32.Vec2{{0, dy}, {dx, dy}, {dx, 0}, {0, 0}}
	normal := face.Normal().Vec4(0)

	var vertices [4]Vertex
	for n := range vertices {
		vertices[n] = Vertex{
			Position:  corners[n].Vec4(1),
			Normal:    normal,
			UV:        uvs[n],
			TextureID: uint32(texture),
		}
	}

	indices := frontIndices
	if face.Positive() {
		indices = backIndices
	}
	return vertices, indices
}
