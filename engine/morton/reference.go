package morton

// The naive implementations below walk the bit masks one bit at a time. They are kept as
// the reference the fast versions are tested and benchmarked against.

// deposit scatters the low bits of v onto the set bits of mask, lowest first.
func deposit(v, mask uint64) uint64 {
	var result uint64
	for bit := uint64(1); mask != 0; bit <<= 1 {
		lowest := mask & -mask
		if v&bit != 0 {
			result |= lowest
		}
		mask &^= lowest
	}
	return result
}

// extract gathers the bits of v at the set bits of mask into the low bits of the result.
func extract(v, mask uint64) uint64 {
	var result uint64
	for bit := uint64(1); mask != 0; bit <<= 1 {
		lowest := mask & -mask
		if v&lowest != 0 {
			result |= bit
		}
		mask &^= lowest
	}
	return result
}

func EncodeNaive2(p [2]uint16) uint32 {
	return uint32(deposit(uint64(p[0]), uint64(mask2X)) | deposit(uint64(p[1]), uint64(mask2Y)))
}

func DecodeNaive2(code uint32) [2]uint16 {
	return [2]uint16{
		uint16(extract(uint64(code), uint64(mask2X))),
		uint16(extract(uint64(code), uint64(mask2Y))),
	}
}

func EncodeNaive3(p [3]uint16) uint64 {
	return deposit(uint64(p[0]), mask3X) | deposit(uint64(p[1]), mask3Y) | deposit(uint64(p[2]), mask3Z)
}

func DecodeNaive3(code uint64) [3]uint16 {
	return [3]uint16{
		uint16(extract(code, mask3X)),
		uint16(extract(code, mask3Y)),
		uint16(extract(code, mask3Z)),
	}
}
