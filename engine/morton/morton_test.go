package morton

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode2KnownValue(t *testing.T) {
	// 123 = 0b001111011, 456 = 0b111001000
	assert.Equal(t, uint32(96970), Encode2([2]uint16{123, 456}))
	assert.Equal(t, uint32(96970), EncodeNaive2([2]uint16{123, 456}))
}

func TestEncode3KnownValue(t *testing.T) {
	assert.Equal(t, uint64(190471269), Encode3([3]uint16{123, 456, 789}))
	assert.Equal(t, uint64(190471269), EncodeNaive3([3]uint16{123, 456, 789}))
}

func TestEncodeExtremes(t *testing.T) {
	assert.Equal(t, uint32(0), Encode2([2]uint16{0, 0}))
	assert.Equal(t, uint32(0xffffffff), Encode2([2]uint16{0xffff, 0xffff}))
	assert.Equal(t, uint64(0), Encode3([3]uint16{0, 0, 0}))
	assert.Equal(t, Code3Mask, Encode3([3]uint16{0xffff, 0xffff, 0xffff}))
	assert.Equal(t, uint64(0x924924924924), Encode3([3]uint16{0xffff, 0, 0}))
	assert.Equal(t, uint64(0x249249249249), Encode3([3]uint16{0, 0, 0xffff}))
}

func TestRoundTrip2Exhaustive(t *testing.T) {
	// every x for a spread of y values, and every y for a spread of x values
	for a := 0; a <= 0xffff; a++ {
		for _, b := range []uint16{0, 1, 2, 0x5555, 0xaaaa, 0x8000, 0xffff} {
			p := [2]uint16{uint16(a), b}
			require.Equal(t, p, Decode2(Encode2(p)))
			q := [2]uint16{b, uint16(a)}
			require.Equal(t, q, Decode2(Encode2(q)))
		}
	}
}

func TestRoundTrip3Random(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100000; i++ {
		p := [3]uint16{uint16(rng.Intn(1 << 16)), uint16(rng.Intn(1 << 16)), uint16(rng.Intn(1 << 16))}
		code := Encode3(p)
		require.Equal(t, p, Decode3(code))
		require.Equal(t, EncodeNaive3(p), code)
		require.Equal(t, DecodeNaive3(code), Decode3(code))
	}
}

func TestRoundTrip3SmallCube(t *testing.T) {
	seen := make(map[uint64]bool)
	for x := uint16(0); x < 32; x++ {
		for y := uint16(0); y < 32; y++ {
			for z := uint16(0); z < 32; z++ {
				p := [3]uint16{x, y, z}
				code := Encode3(p)
				require.Less(t, code, uint64(32*32*32))
				require.False(t, seen[code], "duplicate code %d for %v", code, p)
				seen[code] = true
				require.Equal(t, p, Decode3(code))
			}
		}
	}
	assert.Len(t, seen, 32*32*32)
}

func TestDecode3IgnoresHighBits(t *testing.T) {
	p := [3]uint16{3, 9, 27}
	assert.Equal(t, p, Decode3(Encode3(p)|^Code3Mask))
}

// Stepping a component from an even value to the next one flips exactly that component's
// lowest bit, so the code moves by a fixed power of two.
func TestLocality(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10000; i++ {
		p := [3]uint16{uint16(rng.Intn(1<<15)) * 2, uint16(rng.Intn(1<<15)) * 2, uint16(rng.Intn(1<<15)) * 2}
		base := Encode3(p)
		for axis, delta := range []uint64{4, 2, 1} {
			q := p
			q[axis]++
			require.Equal(t, base+delta, Encode3(q))
		}

		p2 := [2]uint16{p[0], p[1]}
		base2 := Encode2(p2)
		assert.Equal(t, base2+2, Encode2([2]uint16{p2[0] + 1, p2[1]}))
		assert.Equal(t, base2+1, Encode2([2]uint16{p2[0], p2[1] + 1}))
	}
}

// Codes of a 2x2x2 block aligned on an even corner are consecutive.
func TestOctantsAreContiguous(t *testing.T) {
	for _, corner := range [][3]uint16{{0, 0, 0}, {2, 4, 6}, {30, 30, 30}} {
		base := Encode3(corner)
		require.Zero(t, base%8)
		codes := make(map[uint64]bool)
		for dx := uint16(0); dx < 2; dx++ {
			for dy := uint16(0); dy < 2; dy++ {
				for dz := uint16(0); dz < 2; dz++ {
					codes[Encode3([3]uint16{corner[0] + dx, corner[1] + dy, corner[2] + dz})] = true
				}
			}
		}
		for c := base; c < base+8; c++ {
			assert.True(t, codes[c])
		}
	}
}

var (
	sink2 uint32
	sink3 uint64
	sinkP [3]uint16
)

// execute with: go test -bench=. -test.benchmem ./engine/morton
func BenchmarkEncode2(b *testing.B) {
	p := [2]uint16{64402, 690}
	for i := 0; i < b.N; i++ {
		sink2 = Encode2(p)
	}
}

func BenchmarkEncode2Naive(b *testing.B) {
	p := [2]uint16{64402, 690}
	for i := 0; i < b.N; i++ {
		sink2 = EncodeNaive2(p)
	}
}

func BenchmarkEncode3(b *testing.B) {
	p := [3]uint16{64402, 690, 14508}
	for i := 0; i < b.N; i++ {
		sink3 = Encode3(p)
	}
}

func BenchmarkEncode3Naive(b *testing.B) {
	p := [3]uint16{64402, 690, 14508}
	for i := 0; i < b.N; i++ {
		sink3 = EncodeNaive3(p)
	}
}

func BenchmarkDecode3(b *testing.B) {
	code := Encode3([3]uint16{64402, 690, 14508})
	for i := 0; i < b.N; i++ {
		sinkP = Decode3(code)
	}
}

func BenchmarkDecode3Naive(b *testing.B) {
	code := Encode3([3]uint16{64402, 690, 14508})
	for i := 0; i < b.N; i++ {
		sinkP = DecodeNaive3(code)
	}
}
