package util

import (
	"github.com/go-gl/mathgl/mgl32"
)

type Camera interface {
	GetViewMatrix() mgl32.Mat4
	GetProjectionMatrix() mgl32.Mat4
	GetPosition() mgl32.Vec3
}

// Frustum holds the six clip planes of a projection-view matrix as (normal, distance), with
// normals pointing inwards.
type Frustum [6]mgl32.Vec4

// NewFrustum extracts the planes with the Gribb/Hartmann method.
func NewFrustum(projView mgl32.Mat4) Frustum {
	row := func(i int) mgl32.Vec4 {
		return projView.Row(i)
	}
	planes := Frustum{
		row(3).Add(row(0)), // left
		row(3).Sub(row(0)), // right
		row(3).Add(row(1)), // bottom
		row(3).Sub(row(1)), // top
		row(3).Add(row(2)), // near
		row(3).Sub(row(2)), // far
	}
	for i, plane := range planes {
		length := plane.Vec3().Len()
		if length > 0 {
			planes[i] = plane.Mul(1 / length)
		}
	}
	return planes
}

// ContainsBox reports whether the axis aligned box [min, max] is at least partly inside.
func (f Frustum) ContainsBox(min, max mgl32.Vec3) bool {
	for _, plane := range f {
		// the corner furthest along the plane normal
		corner := min
		if plane.X() >= 0 {
			corner[0] = max.X()
		}
		if plane.Y() >= 0 {
			corner[1] = max.Y()
		}
		if plane.Z() >= 0 {
			corner[2] = max.Z()
		}
		if plane.Vec3().Dot(corner)+plane.W() < 0 {
			return false
		}
	}
	return true
}

func GetFrustum(cam Camera) Frustum {
	return NewFrustum(cam.GetProjectionMatrix().Mul4(cam.GetViewMatrix()))
}
