package voxel

import (
	"fmt"
	"math/bits"

	"github.com/memmaker/sandvox/engine/morton"
)

// Point3 is a chunk-local cell coordinate.
type Point3 [3]uint16

func (p Point3) X() uint16 { return p[0] }
func (p Point3) Y() uint16 { return p[1] }
func (p Point3) Z() uint16 { return p[2] }

func (p Point3) ToInt3() Int3 {
	return Int3{int32(p[0]), int32(p[1]), int32(p[2])}
}

// Shape maps chunk-local coordinates to storage offsets and back.
// Offset and Delinearize are inverse bijections over [0, Len()).
type Shape interface {
	Size() Point3
	Len() int
	Offset(p Point3) int
	Delinearize(offset int) Point3
}

// LinearShape stores cells x-major: x + y*X + z*X*Y.
type LinearShape struct {
	size Point3
}

func NewLinearShape(x, y, z uint16) LinearShape {
	if x == 0 || y == 0 || z == 0 {
		panic(fmt.Sprintf("failed to create linear shape with size %d,%d,%d", x, y, z))
	}
	return LinearShape{size: Point3{x, y, z}}
}

func (s LinearShape) Size() Point3 { return s.size }

func (s LinearShape) Len() int {
	return int(s.size[0]) * int(s.size[1]) * int(s.size[2])
}

func (s LinearShape) Offset(p Point3) int {
	if p[0] >= s.size[0] || p[1] >= s.size[1] || p[2] >= s.size[2] {
		panic(fmt.Sprintf("failed to index chunk: %v outside of %v", p, s.size))
	}
	sx, sy := int(s.size[0]), int(s.size[1])
	return int(p[0]) + int(p[1])*sx + int(p[2])*sx*sy
}

func (s LinearShape) Delinearize(offset int) Point3 {
	sx, sy := int(s.size[0]), int(s.size[1])
	x := offset % sx
	y := (offset / sx) % sy
	z := offset / (sx * sy)
	return Point3{uint16(x), uint16(y), uint16(z)}
}

// MortonShape is a cube with a power-of-two side whose cells are stored in Z-order.
// A component past the side sets a code bit at or above 3*log2(side), so the offset
// lands past the end of the storage instead of on another cell.
type MortonShape struct {
	side uint16
	len  int
}

func NewMortonShape(side uint16) MortonShape {
	if side == 0 || side&(side-1) != 0 {
		panic(fmt.Sprintf("failed to create morton shape: side %d is not a power of two", side))
	}
	b := bits.TrailingZeros16(side)
	return MortonShape{side: side, len: 1 << (3 * b)}
}

func (s MortonShape) Size() Point3 { return Point3{s.side, s.side, s.side} }

func (s MortonShape) Len() int { return s.len }

func (s MortonShape) Offset(p Point3) int {
	return int(morton.Encode3(p))
}

func (s MortonShape) Delinearize(offset int) Point3 {
	return morton.Decode3(uint64(offset))
}

// IsPowerOfTwo reports whether side can back a MortonShape.
func IsPowerOfTwo(side int) bool {
	return side > 0 && side&(side-1) == 0
}
