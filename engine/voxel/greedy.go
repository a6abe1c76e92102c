package voxel

import "github.com/memmaker/sandvox/engine/workspace"

// adapted from: https://github.com/roboleary/GreedyMesh/blob/master/src/mygame/Main.java

type maskCell struct {
	texture AtlasID
	set     bool
}

// GreedyMesher merges coplanar, adjacent faces carrying the same texture into larger
// rectangles. It covers exactly the unit faces the naive mesher would emit.
type GreedyMesher[V Voxel[D], D any] struct {
	masks *workspace.Workspaces[[]maskCell]
}

func NewGreedyMesher[V Voxel[D], D any]() *GreedyMesher[V, D] {
	return &GreedyMesher[V, D]{
		masks: workspace.New[[]maskCell]("greedy masks", nil, nil),
	}
}

// PoolInfo reports the pool of layer masks shared by concurrent MeshChunk calls.
func (g *GreedyMesher[V, D]) PoolInfo() workspace.Info {
	return g.masks.Info()
}

func (g *GreedyMesher[V, D]) MeshChunk(chunk *Chunk[V], builder *MeshBuilder, data D) {
	size := chunk.Size()
	guard := g.masks.Get()
	defer guard.Release()
	maskPtr := guard.Value()

	for _, face := range AllFaces {
		u, v, d := face.Axes()
		width, height := int(size[u]), int(size[v])
		if cap(*maskPtr) < width*height {
			*maskPtr = make([]maskCell, width*height)
		}
		mask := (*maskPtr)[:width*height]

		var p Point3
		for k := 0; k < int(size[d]); k++ {
			p[d] = uint16(k)
			n := 0
			for j := 0; j < height; j++ {
				p[v] = uint16(j)
				for i := 0; i < width; i++ {
					p[u] = uint16(i)
					texture, ok := (*chunk.Get(p)).Texture(face, data)
					mask[n] = maskCell{texture: texture, set: ok}
					n++
				}
			}
			g.mergeLayer(builder, face, uint16(k), mask, width, height)
		}
	}
}

func (g *GreedyMesher[V, D]) mergeLayer(builder *MeshBuilder, face BlockFace, k uint16, mask []maskCell, width, height int) {
	n := 0
	for j := 0; j < height; j++ {
		for i := 0; i < width; {
			if !mask[n].set {
				i++
				n++
				continue
			}
			current := mask[n]

			w := 1
			for i+w < width && mask[n+w] == current {
				w++
			}

			h := 1
			done := false
			for j+h < height {
				for l := 0; l < w; l++ {
					if mask[n+l+h*width] != current {
						done = true
						break
					}
				}
				if done {
					break
				}
				h++
			}

			builder.PushQuad(face, UnorientedQuad{
				IJ0: [2]uint16{uint16(i), uint16(j)},
				IJ1: [2]uint16{uint16(i + w), uint16(j + h)},
				K:   k,
			}, current.texture)

			for l := 0; l < h; l++ {
				for m := 0; m < w; m++ {
					mask[n+m+l*width] = maskCell{}
				}
			}
			i += w
			n += w
		}
	}
}
