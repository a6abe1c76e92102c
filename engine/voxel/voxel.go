package voxel

// AtlasID references a tile in the block texture atlas. The meshers pass it through unchanged.
type AtlasID uint32

// Voxel resolves the texture of one face of a cell. D carries the per-type data
// the lookup needs; returning false means the face is not drawn.
type Voxel[D any] interface {
	Texture(face BlockFace, data D) (AtlasID, bool)
}
