package voxel

import "github.com/go-gl/mathgl/mgl32"

type BlockFace uint8

const (
	Left BlockFace = iota
	Right
	Down
	Up
	Front
	Back
)

// AllFaces is the order in which meshers visit the faces of a cell.
var AllFaces = [6]BlockFace{Left, Right, Down, Up, Front, Back}

const (
	AxisX = 0
	AxisY = 1
	AxisZ = 2
)

func (f BlockFace) String() string {
	switch f {
	case Left:
		return "Left"
	case Right:
		return "Right"
	case Down:
		return "Down"
	case Up:
		return "Up"
	case Front:
		return "Front"
	case Back:
		return "Back"
	}
	return "BlockFace(?)"
}

// Axes returns the in-plane axes (i, j) and the depth axis k of the face.
func (f BlockFace) Axes() (i, j, k int) {
	switch f {
	case Left, Right:
		return AxisZ, AxisY, AxisX
	case Down, Up:
		return AxisX, AxisZ, AxisY
	default:
		return AxisX, AxisY, AxisZ
	}
}

// Positive is true for the faces pointing along +x, +y or +z.
func (f BlockFace) Positive() bool {
	return f == Right || f == Up || f == Back
}

func (f BlockFace) Direction() Int3 {
	switch f {
	case Left:
		return Int3{X: -1}
	case Right:
		return Int3{X: 1}
	case Down:
		return Int3{Y: -1}
	case Up:
		return Int3{Y: 1}
	case Front:
		return Int3{Z: -1}
	default:
		return Int3{Z: 1}
	}
}

func (f BlockFace) Normal() mgl32.Vec3 {
	return f.Direction().ToVec3()
}

func (f BlockFace) Opposite() BlockFace {
	if f.Positive() {
		return f - 1
	}
	return f + 1
}
