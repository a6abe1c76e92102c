package game

import (
	"fmt"
	"math/rand"

	"github.com/aquilax/go-perlin"
	"github.com/cespare/xxhash/v2"
	"github.com/memmaker/sandvox/engine/util"
	"github.com/memmaker/sandvox/engine/voxel"
	"github.com/pkg/errors"
)

// Generator fills chunks that are not stored in the world file. Discard reports chunks that
// stay empty without being generated.
type Generator interface {
	voxel.ChunkGenerator[Block]
	Discard(chunkPos voxel.Int3) bool
}

// SeedFromString hashes a textual seed.
func SeedFromString(seed string) int64 {
	return int64(xxhash.Sum64String(seed))
}

// noiseLayer is fractal perlin noise scaled to world units.
type noiseLayer struct {
	noise     *perlin.Perlin
	frequency float64
	amplitude float64
	bias      float64
}

// newNoiseLayer sums octaves, each with twice the frequency and half the amplitude of the last.
func newNoiseLayer(rng *rand.Rand, octaves int32, frequency, amplitude, bias float64) noiseLayer {
	return noiseLayer{
		noise:     perlin.NewPerlin(2, 2, octaves, rng.Int63()),
		frequency: frequency,
		amplitude: amplitude,
		bias:      bias,
	}
}

func (n noiseLayer) at(x, z float64) float64 {
	return n.amplitude*n.noise.Noise2D(x*n.frequency, z*n.frequency) + n.bias
}

type TerrainGenerator struct {
	surfaceHeight noiseLayer
	dirtDepth     noiseLayer

	air, dirt, grass, stone Block
}

func NewTerrainGenerator(seed int64, types *BlockTypes) (*TerrainGenerator, error) {
	blocks, err := lookupBlocks(types, "air", "dirt", "grass", "stone")
	if err != nil {
		return nil, err
	}
	// each layer gets its own seed derived from the world seed
	rng := rand.New(rand.NewSource(seed))
	return &TerrainGenerator{
		surfaceHeight: newNoiseLayer(rng, 4, 1.0/128, 32, 0),
		dirtDepth:     newNoiseLayer(rng, 2, 1.0/32, 2, 2),
		air:           blocks[0],
		dirt:          blocks[1],
		grass:         blocks[2],
		stone:         blocks[3],
	}, nil
}

func lookupBlocks(types *BlockTypes, names ...string) ([]Block, error) {
	result := make([]Block, len(names))
	for i, name := range names {
		t, ok := types.Lookup(name)
		if !ok {
			return nil, errors.Errorf("terrain needs block type %q", name)
		}
		result[i] = Block{Type: t}
	}
	return result, nil
}

// Discard skips everything deep below the surface range.
func (g *TerrainGenerator) Discard(chunkPos voxel.Int3) bool {
	return chunkPos.Y < -4
}

type column struct {
	surface int64
	dirt    int64
}

// SurfaceHeight is the world y of the topmost solid block in the column.
func (g *TerrainGenerator) SurfaceHeight(x, z int32) int64 {
	return int64(g.surfaceHeight.at(float64(x), float64(z)))
}

func (g *TerrainGenerator) column(x, z int32) column {
	return column{
		surface: g.SurfaceHeight(x, z),
		dirt:    int64(g.dirtDepth.at(float64(x), float64(z))),
	}
}

func (g *TerrainGenerator) blockAt(y int64, c column) Block {
	switch {
	case y > c.surface:
		return g.air
	case y == c.surface && c.dirt >= 1:
		return g.grass
	case y < c.surface && y >= c.surface-c.dirt:
		return g.dirt
	default:
		return g.stone
	}
}

func (g *TerrainGenerator) Generate(chunkPos voxel.Int3, chunk *voxel.Chunk[Block]) {
	size := chunk.Size()
	origin := chunkPos.MulInt3(size.ToInt3())
	width := int(size.X())

	columns := make([]column, width*int(size.Z()))
	top := int64(origin.Y)
	anyBlocks := false
	for z := 0; z < int(size.Z()); z++ {
		for x := 0; x < width; x++ {
			c := g.column(origin.X+int32(x), origin.Z+int32(z))
			columns[z*width+x] = c
			if top <= c.surface {
				anyBlocks = true
			}
		}
	}
	if !anyBlocks {
		chunk.Fill(g.air)
		return
	}

	chunk.Each(func(p voxel.Point3, v *Block) {
		*v = g.blockAt(top+int64(p.Y()), columns[int(p.Z())*width+int(p.X())])
	})
	util.LogWorldDebug(fmt.Sprintf("[Terrain] chunk %d,%d,%d", chunkPos.X, chunkPos.Y, chunkPos.Z))
}

// FlatGenerator fills everything below Height with one block.
type FlatGenerator struct {
	Fill   Block
	Empty  Block
	Height int32
}

func (g FlatGenerator) Discard(chunkPos voxel.Int3) bool {
	return false
}

func (g FlatGenerator) Generate(chunkPos voxel.Int3, chunk *voxel.Chunk[Block]) {
	originY := chunkPos.Y * int32(chunk.Size().Y())
	chunk.Each(func(p voxel.Point3, v *Block) {
		if originY+int32(p.Y()) < g.Height {
			*v = g.Fill
		} else {
			*v = g.Empty
		}
	})
}
