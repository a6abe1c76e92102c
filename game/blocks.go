// Package game holds the concrete voxel world: block types loaded from YAML, the block voxel,
// terrain generation and import of Amulet construction files.
package game

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/memmaker/sandvox/engine/util"
	"github.com/memmaker/sandvox/engine/voxel"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// BlockType indexes BlockTypes in definition order.
type BlockType uint16

type BlockTypeData struct {
	Name string
	// Textures is indexed by voxel.BlockFace. Blocks without textures are never drawn.
	Textures *[6]voxel.AtlasID
	Opaque   bool
}

func (d *BlockTypeData) FaceTexture(face voxel.BlockFace) (voxel.AtlasID, bool) {
	if d.Textures == nil {
		return 0, false
	}
	return d.Textures[face], true
}

// BlockTypes is immutable after loading and shared by all mesh workers.
type BlockTypes struct {
	blocks []BlockTypeData
	byName map[string]BlockType
}

func (b *BlockTypes) Lookup(name string) (BlockType, bool) {
	t, ok := b.byName[name]
	return t, ok
}

func (b *BlockTypes) Get(t BlockType) *BlockTypeData {
	return &b.blocks[t]
}

func (b *BlockTypes) Len() int {
	return len(b.blocks)
}

func (b *BlockTypes) Names() []string {
	names := make([]string, len(b.blocks))
	for i := range b.blocks {
		names[i] = b.blocks[i].Name
	}
	return names
}

// Block is the voxel stored in world chunks.
type Block struct {
	Type BlockType
}

func (b Block) Texture(face voxel.BlockFace, types *BlockTypes) (voxel.AtlasID, bool) {
	return types.Get(b.Type).FaceTexture(face)
}

// TextureDef is either a single path used for all faces or a mapping of face names to paths
// with an optional default.
type TextureDef struct {
	Default string
	Faces   map[voxel.BlockFace]string
}

var faceKeys = map[string]voxel.BlockFace{
	"left":   voxel.Left,
	"right":  voxel.Right,
	"down":   voxel.Down,
	"bottom": voxel.Down,
	"up":     voxel.Up,
	"top":    voxel.Up,
	"front":  voxel.Front,
	"back":   voxel.Back,
}

func (t *TextureDef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		t.Faces = nil
		return value.Decode(&t.Default)
	}
	var raw map[string]string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	t.Faces = make(map[voxel.BlockFace]string)
	for key, path := range raw {
		if key == "default" {
			t.Default = path
			continue
		}
		face, ok := faceKeys[key]
		if !ok {
			return errors.Errorf("line %d: unknown face %q", value.Line, key)
		}
		t.Faces[face] = path
	}
	return nil
}

// Paths resolves the texture path of every face in voxel.AllFaces order.
func (t *TextureDef) Paths() ([6]string, error) {
	var paths [6]string
	for _, face := range voxel.AllFaces {
		path, ok := t.Faces[face]
		if !ok {
			path = t.Default
		}
		if path == "" {
			return paths, errors.Errorf("missing face %s and no default specified", face)
		}
		paths[face] = path
	}
	return paths, nil
}

type blockDef struct {
	Texture *TextureDef `yaml:"texture"`
	Opaque  *bool       `yaml:"opaque"`
}

// ParseBlockTypes reads a YAML mapping of block name to definition. Block types are numbered
// in file order. loadTexture is called once per distinct texture path.
func ParseBlockTypes(data []byte, loadTexture func(path string) (voxel.AtlasID, error)) (*BlockTypes, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse block definitions")
	}
	if len(doc.Content) == 0 {
		return nil, errors.New("no block definitions")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.Errorf("line %d: block definitions must be a mapping", root.Line)
	}

	types := &BlockTypes{byName: make(map[string]BlockType)}
	cache := make(map[string]voxel.AtlasID)
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		if _, exists := types.byName[name]; exists {
			return nil, errors.Errorf("line %d: block %q defined twice", root.Content[i].Line, name)
		}
		var def blockDef
		if err := root.Content[i+1].Decode(&def); err != nil {
			return nil, errors.Wrapf(err, "block %q", name)
		}

		entry := BlockTypeData{Name: name, Opaque: def.Opaque == nil || *def.Opaque}
		if def.Texture == nil && entry.Opaque {
			util.LogVoxelInfo(fmt.Sprintf("[Blocks] %s has no texture, treating it as transparent", name))
			entry.Opaque = false
		}
		if def.Texture != nil {
			paths, err := def.Texture.Paths()
			if err != nil {
				return nil, errors.Wrapf(err, "block %q", name)
			}
			var textures [6]voxel.AtlasID
			for face, path := range paths {
				id, ok := cache[path]
				if !ok {
					id, err = loadTexture(path)
					if err != nil {
						return nil, errors.Wrapf(err, "block %q", name)
					}
					cache[path] = id
				}
				textures[face] = id
			}
			entry.Textures = &textures
		}

		if len(types.blocks) > 0xffff {
			return nil, errors.New("too many block types")
		}
		types.byName[name] = BlockType(len(types.blocks))
		types.blocks = append(types.blocks, entry)
		util.LogVoxelDebug(fmt.Sprintf("[Blocks] %d => %s", len(types.blocks)-1, name))
	}
	return types, nil
}

// LoadBlockTypes reads the definition file and adds the referenced textures to atlas. Texture
// paths are relative to textureDir, or to the definition file when textureDir is empty.
func LoadBlockTypes(path, textureDir string, atlas *util.TextureAtlas) (*BlockTypes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read block definitions")
	}
	if textureDir == "" {
		textureDir = filepath.Dir(path)
	}
	types, err := ParseBlockTypes(data, func(texture string) (voxel.AtlasID, error) {
		index, err := atlas.AddFile(filepath.Join(textureDir, texture))
		return voxel.AtlasID(index), err
	})
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	util.LogVoxelInfo(fmt.Sprintf("[Blocks] loaded %d block types with %d textures", types.Len(), atlas.Len()))
	return types, nil
}
