package voxel

// ChunkMesher turns the faces of a chunk into triangles appended to builder.
// Implementations only read the chunk and data and only write the builder, so
// different chunks can be meshed concurrently with separate builders.
type ChunkMesher[V Voxel[D], D any] interface {
	MeshChunk(chunk *Chunk[V], builder *MeshBuilder, data D)
}

// NaiveMesher emits one unit quad for every face a voxel has a texture for.
// It performs no neighbour culling; hiding faces is left to the Voxel implementation.
type NaiveMesher[V Voxel[D], D any] struct{}

func (NaiveMesher[V, D]) MeshChunk(chunk *Chunk[V], builder *MeshBuilder, data D) {
	chunk.Each(func(p Point3, v *V) {
		for _, face := range AllFaces {
			texture, ok := (*v).Texture(face, data)
			if !ok {
				continue
			}
			builder.PushQuad(face, UnitQuad(face, p), texture)
		}
	})
}

// NewMesher returns the mesher registered under name ("naive" or "greedy").
func NewMesher[V Voxel[D], D any](name string) (ChunkMesher[V, D], bool) {
	switch name {
	case "naive", "":
		return NaiveMesher[V, D]{}, true
	case "greedy":
		return NewGreedyMesher[V, D](), true
	}
	return nil, false
}
