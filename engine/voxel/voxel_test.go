package voxel

type testVoxel struct {
	solid   bool
	texture AtlasID
}

type testData struct {
	hidden map[BlockFace]bool
}

func (v testVoxel) Texture(face BlockFace, data *testData) (AtlasID, bool) {
	if !v.solid {
		return 0, false
	}
	if data != nil && data.hidden[face] {
		return 0, false
	}
	return v.texture, true
}

var (
	air   = testVoxel{}
	stone = testVoxel{solid: true, texture: 7}
)
