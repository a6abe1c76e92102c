// Package morton interleaves the bits of 2 and 3 component coordinates into a single
// Z-order index.
//
// Component 0 always lands on the most significant bit of each group, so for
// 3 components the bits of a code read ...x2y2z2 x1y1z1 x0y0z0.
package morton

const (
	// Bit positions owned by each component.
	mask2X uint32 = 0xaaaaaaaa
	mask2Y uint32 = 0x55555555

	// 16 bits per component, 48 bits in total.
	mask3X uint64 = 0x924924924924
	mask3Y uint64 = 0x492492492492
	mask3Z uint64 = 0x249249249249

	Code3Bits = 48
	Code3Mask = uint64(1)<<Code3Bits - 1
)

// Encode2 interleaves two 16 bit components into a 32 bit code.
func Encode2(p [2]uint16) uint32 {
	return part1By1(uint32(p[0]))<<1 | part1By1(uint32(p[1]))
}

// Decode2 is the inverse of Encode2.
func Decode2(code uint32) [2]uint16 {
	return [2]uint16{
		uint16(compact1By1(code >> 1)),
		uint16(compact1By1(code)),
	}
}

// Encode3 interleaves three 16 bit components into the lower 48 bits of a code.
func Encode3(p [3]uint16) uint64 {
	return part1By2(uint64(p[0]))<<2 | part1By2(uint64(p[1]))<<1 | part1By2(uint64(p[2]))
}

// Decode3 is the inverse of Encode3. Bits above Code3Bits are ignored.
func Decode3(code uint64) [3]uint16 {
	code &= Code3Mask
	return [3]uint16{
		uint16(compact1By2(code >> 2)),
		uint16(compact1By2(code >> 1)),
		uint16(compact1By2(code)),
	}
}

// part1By1 spreads the lower 16 bits of x onto the even bit positions.
func part1By1(x uint32) uint32 {
	x &= 0x0000ffff
	x = (x | (x << 8)) & 0x00ff00ff
	x = (x | (x << 4)) & 0x0f0f0f0f
	x = (x | (x << 2)) & 0x33333333
	x = (x | (x << 1)) & 0x55555555
	return x
}

func compact1By1(x uint32) uint32 {
	x &= 0x55555555
	x = (x ^ (x >> 1)) & 0x33333333
	x = (x ^ (x >> 2)) & 0x0f0f0f0f
	x = (x ^ (x >> 4)) & 0x00ff00ff
	x = (x ^ (x >> 8)) & 0x0000ffff
	return x
}

// part1By2 spreads the lower 16 bits of x onto every third bit position.
func part1By2(x uint64) uint64 {
	x &= 0xffff
	x = (x | (x << 32)) & 0x1f00000000ffff
	x = (x | (x << 16)) & 0x1f0000ff0000ff
	x = (x | (x << 8)) & 0x100f00f00f00f00f
	x = (x | (x << 4)) & 0x10c30c30c30c30c3
	x = (x | (x << 2)) & 0x1249249249249249
	return x
}

func compact1By2(x uint64) uint64 {
	x &= 0x1249249249249249
	x = (x ^ (x >> 2)) & 0x10c30c30c30c30c3
	x = (x ^ (x >> 4)) & 0x100f00f00f00f00f
	x = (x ^ (x >> 8)) & 0x1f0000ff0000ff
	x = (x ^ (x >> 16)) & 0x1f00000000ffff
	x = (x ^ (x >> 32)) & 0xffff
	return x
}
