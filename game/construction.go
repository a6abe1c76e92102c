package game

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/gzip"
	"github.com/memmaker/sandvox/engine/util"
	"github.com/memmaker/sandvox/engine/voxel"
	"github.com/pkg/errors"
)

/*
An Amulet .construction file is

	"constrct" | gzipped NBT section entries ... | gzipped NBT metadata | int32 BE metadata offset | "constrct"

Each section entry is a compound

	TAG_Compound({
	    "entities": TAG_List(...),
	    "block_entities": TAG_List([TAG_Compound({"namespace", "base_name", "x", "y", "z", "nbt"}) ...]),
	    "blocks_array_type": TAG_Byte(),   // 7 for TAG_Byte_Array, 11 for TAG_Int_Array
	    "blocks": <array of palette indices in x, y, z order, z fastest>
	})

and the metadata's section_index_table holds 23 bytes per section entry, little endian:
int32 min x, y, z | uint8 shape x, y, z | uint32 offset | uint32 length.
*/

const (
	constructionMagic  = "constrct"
	sectionEntrySize   = 23
	blocksTypeBytes    = 7
	blocksTypeInts     = 11
	constructionFooter = 4 + len(constructionMagic)
)

var ErrNotConstruction = errors.New("not a construction file")

type sectionHeader struct {
	BlocksArrayType int8 `nbt:"blocks_array_type"`
}

type byteSection struct {
	BlockEntities   []BlockEntity `nbt:"block_entities"`
	BlocksArrayType int8          `nbt:"blocks_array_type"`
	Blocks          []byte        `nbt:"blocks"`
}

type intSection struct {
	BlockEntities   []BlockEntity `nbt:"block_entities"`
	BlocksArrayType int8          `nbt:"blocks_array_type"`
	Blocks          []int32       `nbt:"blocks"`
}

type BlockEntity struct {
	Namespace string `nbt:"namespace"`
	Name      string `nbt:"base_name"`
	X         int32  `nbt:"x"`
	Y         int32  `nbt:"y"`
	Z         int32  `nbt:"z"`
}

type ExportVersion struct {
	Edition string  `nbt:"edition"`
	Version []int32 `nbt:"version"`
}

type constructionMetadata struct {
	SelectionBoxes    []int32            `nbt:"selection_boxes"`
	SectionIndexTable []byte             `nbt:"section_index_table"`
	SectionVersion    int8               `nbt:"section_version"`
	ExportVersion     ExportVersion      `nbt:"export_version"`
	BlockPalette      []*BlockDefinition `nbt:"block_palette"`
	CreatedWith       string             `nbt:"created_with"`
}

type BlockDefinition struct {
	Name       string         `nbt:"blockname"`
	Namespace  string         `nbt:"namespace"`
	Properties map[string]any `nbt:"properties"`
}

func (d *BlockDefinition) String() string {
	return d.Namespace + ":" + d.Name
}

type Construction struct {
	Version  ExportVersion
	Creator  string
	Sections []*ConstructionSection
}

// ConstructionSection is a box of blocks. Blocks is indexed (x*ShapeY+y)*ShapeZ+z.
type ConstructionSection struct {
	Min           voxel.Int3
	ShapeX        uint8
	ShapeY        uint8
	ShapeZ        uint8
	Blocks        []*BlockDefinition
	BlockEntities []BlockEntity
}

func (s *ConstructionSection) index(x, y, z int) int {
	return (x*int(s.ShapeY)+y)*int(s.ShapeZ) + z
}

// Block returns the block at the section-local position.
func (s *ConstructionSection) Block(x, y, z int) *BlockDefinition {
	return s.Blocks[s.index(x, y, z)]
}

// BlockCount sums the cells of all sections.
func (c *Construction) BlockCount() int {
	count := 0
	for _, s := range c.Sections {
		count += len(s.Blocks)
	}
	return count
}

type sectionIndex struct {
	min    voxel.Int3
	shape  [3]uint8
	offset uint32
	size   uint32
}

func decodeSectionTable(table []byte) ([]sectionIndex, error) {
	if len(table)%sectionEntrySize != 0 {
		return nil, errors.Errorf("section index table of %d bytes is not a multiple of %d", len(table), sectionEntrySize)
	}
	sections := make([]sectionIndex, len(table)/sectionEntrySize)
	for i := range sections {
		entry := table[i*sectionEntrySize : (i+1)*sectionEntrySize]
		sections[i] = sectionIndex{
			min: voxel.Int3{
				X: int32(binary.LittleEndian.Uint32(entry[0:4])),
				Y: int32(binary.LittleEndian.Uint32(entry[4:8])),
				Z: int32(binary.LittleEndian.Uint32(entry[8:12])),
			},
			shape:  [3]uint8{entry[12], entry[13], entry[14]},
			offset: binary.LittleEndian.Uint32(entry[15:19]),
			size:   binary.LittleEndian.Uint32(entry[19:23]),
		}
	}
	return sections, nil
}

func encodeSectionTable(sections []sectionIndex) []byte {
	table := make([]byte, len(sections)*sectionEntrySize)
	for i, s := range sections {
		entry := table[i*sectionEntrySize : (i+1)*sectionEntrySize]
		binary.LittleEndian.PutUint32(entry[0:4], uint32(s.min.X))
		binary.LittleEndian.PutUint32(entry[4:8], uint32(s.min.Y))
		binary.LittleEndian.PutUint32(entry[8:12], uint32(s.min.Z))
		copy(entry[12:15], s.shape[:])
		binary.LittleEndian.PutUint32(entry[15:19], s.offset)
		binary.LittleEndian.PutUint32(entry[19:23], s.size)
	}
	return table
}

func gunzip(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func decodeNBT(data []byte, v any) error {
	raw, err := gunzip(data)
	if err != nil {
		return err
	}
	_, err = nbt.NewDecoder(bytes.NewReader(raw)).Decode(v)
	return err
}

func LoadConstruction(filename string) (*Construction, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read construction")
	}
	c, err := ParseConstruction(data)
	if err != nil {
		return nil, errors.Wrap(err, filename)
	}
	util.LogIOInfo(fmt.Sprintf("[Construction] %s: %d sections, %d blocks, created with %s", filename, len(c.Sections), c.BlockCount(), c.Creator))
	return c, nil
}

func ParseConstruction(data []byte) (*Construction, error) {
	magic := []byte(constructionMagic)
	if len(data) < len(magic)+constructionFooter ||
		!bytes.Equal(data[:len(magic)], magic) ||
		!bytes.Equal(data[len(data)-len(magic):], magic) {
		return nil, ErrNotConstruction
	}
	metaOffset := int64(int32(binary.BigEndian.Uint32(data[len(data)-constructionFooter:])))
	metaEnd := int64(len(data) - constructionFooter)
	if metaOffset < int64(len(magic)) || metaOffset >= metaEnd {
		return nil, errors.Errorf("metadata offset %d out of range", metaOffset)
	}

	var meta constructionMetadata
	if err := decodeNBT(data[metaOffset:metaEnd], &meta); err != nil {
		return nil, errors.Wrap(err, "failed to decode construction metadata")
	}
	table, err := decodeSectionTable(meta.SectionIndexTable)
	if err != nil {
		return nil, err
	}

	result := &Construction{
		Version:  meta.ExportVersion,
		Creator:  meta.CreatedWith,
		Sections: make([]*ConstructionSection, 0, len(table)),
	}
	for i, entry := range table {
		end := int64(entry.offset) + int64(entry.size)
		if int64(entry.offset) < int64(len(magic)) || end > metaOffset {
			return nil, errors.Errorf("section %d at %d+%d out of range", i, entry.offset, entry.size)
		}
		section, err := decodeSection(data[entry.offset:end], entry, meta.BlockPalette)
		if err != nil {
			return nil, errors.Wrapf(err, "section %d", i)
		}
		result.Sections = append(result.Sections, section)
	}
	return result, nil
}

func decodeSection(data []byte, entry sectionIndex, palette []*BlockDefinition) (*ConstructionSection, error) {
	section := &ConstructionSection{
		Min:    entry.min,
		ShapeX: entry.shape[0],
		ShapeY: entry.shape[1],
		ShapeZ: entry.shape[2],
	}
	raw, err := gunzip(data)
	if err != nil {
		return nil, err
	}
	var header sectionHeader
	if _, err := nbt.NewDecoder(bytes.NewReader(raw)).Decode(&header); err != nil {
		return nil, err
	}

	switch header.BlocksArrayType {
	case blocksTypeBytes:
		var decoded byteSection
		if _, err := nbt.NewDecoder(bytes.NewReader(raw)).Decode(&decoded); err != nil {
			return nil, err
		}
		section.BlockEntities = decoded.BlockEntities
		section.Blocks, err = decodeBlocks(decoded.Blocks, section, palette)
	case blocksTypeInts:
		var decoded intSection
		if _, err := nbt.NewDecoder(bytes.NewReader(raw)).Decode(&decoded); err != nil {
			return nil, err
		}
		section.BlockEntities = decoded.BlockEntities
		section.Blocks, err = decodeBlocks(decoded.Blocks, section, palette)
	default:
		return nil, errors.Errorf("unsupported blocks array type %d", header.BlocksArrayType)
	}
	return section, err
}

func decodeBlocks[T int32 | byte](blocks []T, section *ConstructionSection, palette []*BlockDefinition) ([]*BlockDefinition, error) {
	total := int(section.ShapeX) * int(section.ShapeY) * int(section.ShapeZ)
	if len(blocks) != total {
		return nil, errors.Errorf("%d blocks for shape %dx%dx%d", len(blocks), section.ShapeX, section.ShapeY, section.ShapeZ)
	}
	result := make([]*BlockDefinition, len(blocks))
	for i, block := range blocks {
		if int(block) < 0 || int(block) >= len(palette) {
			return nil, errors.Errorf("palette index %d out of range (%d entries)", block, len(palette))
		}
		result[i] = palette[int(block)]
	}
	return result, nil
}

type paletteEntry struct {
	Name      string `nbt:"blockname"`
	Namespace string `nbt:"namespace"`
}

func gzipNBT(v any) ([]byte, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if err := nbt.NewEncoder(writer).Encode(v, ""); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteConstruction encodes c with int block arrays. Block properties are not written.
func WriteConstruction(w io.Writer, c *Construction) error {
	var palette []paletteEntry
	paletteIndex := make(map[*BlockDefinition]int32)

	var out bytes.Buffer
	out.WriteString(constructionMagic)
	table := make([]sectionIndex, 0, len(c.Sections))
	for i, s := range c.Sections {
		blocks := make([]int32, len(s.Blocks))
		for j, def := range s.Blocks {
			index, ok := paletteIndex[def]
			if !ok {
				index = int32(len(palette))
				paletteIndex[def] = index
				palette = append(palette, paletteEntry{Name: def.Name, Namespace: def.Namespace})
			}
			blocks[j] = index
		}
		entities := s.BlockEntities
		if entities == nil {
			entities = []BlockEntity{}
		}
		data, err := gzipNBT(intSection{BlockEntities: entities, BlocksArrayType: blocksTypeInts, Blocks: blocks})
		if err != nil {
			return errors.Wrapf(err, "failed to encode section %d", i)
		}
		table = append(table, sectionIndex{
			min:    s.Min,
			shape:  [3]uint8{s.ShapeX, s.ShapeY, s.ShapeZ},
			offset: uint32(out.Len()),
			size:   uint32(len(data)),
		})
		out.Write(data)
	}

	meta := struct {
		SelectionBoxes    []int32        `nbt:"selection_boxes"`
		SectionIndexTable []byte         `nbt:"section_index_table"`
		SectionVersion    int8           `nbt:"section_version"`
		ExportVersion     ExportVersion  `nbt:"export_version"`
		BlockPalette      []paletteEntry `nbt:"block_palette"`
		CreatedWith       string         `nbt:"created_with"`
	}{
		SelectionBoxes:    []int32{},
		SectionIndexTable: encodeSectionTable(table),
		SectionVersion:    1,
		ExportVersion:     c.Version,
		BlockPalette:      palette,
		CreatedWith:       c.Creator,
	}
	if meta.ExportVersion.Version == nil {
		meta.ExportVersion.Version = []int32{}
	}
	if meta.BlockPalette == nil {
		meta.BlockPalette = []paletteEntry{}
	}
	data, err := gzipNBT(meta)
	if err != nil {
		return errors.Wrap(err, "failed to encode construction metadata")
	}
	metaOffset := out.Len()
	out.Write(data)
	var footer [4]byte
	binary.BigEndian.PutUint32(footer[:], uint32(metaOffset))
	out.Write(footer[:])
	out.WriteString(constructionMagic)

	_, err = w.Write(out.Bytes())
	return err
}

// PlaceStats counts the outcome of placing a construction.
type PlaceStats struct {
	Placed  int
	Unknown int
}

// Place writes the construction into the world with its origin at origin. Blocks whose name
// has no block type are skipped and counted. Chunks are loaded or generated as needed.
func (w *World) Place(ctx context.Context, c *Construction, origin voxel.Int3) (PlaceStats, error) {
	var stats PlaceStats
	resolved := make(map[*BlockDefinition]*BlockType)
	for _, s := range c.Sections {
		base := origin.Add(s.Min)
		for x := 0; x < int(s.ShapeX); x++ {
			for y := 0; y < int(s.ShapeY); y++ {
				for z := 0; z < int(s.ShapeZ); z++ {
					def := s.Block(x, y, z)
					t, seen := resolved[def]
					if !seen {
						if found, ok := w.Types.Lookup(def.Name); ok {
							t = &found
						}
						resolved[def] = t
						if t == nil {
							util.LogVoxelInfo(fmt.Sprintf("[Construction] no block type for %s", def))
						}
					}
					if t == nil {
						stats.Unknown++
						continue
					}
					pos := base.Add(voxel.Int3{X: int32(x), Y: int32(y), Z: int32(z)})
					if err := w.SetBlock(ctx, pos, Block{Type: *t}); err != nil {
						return stats, err
					}
					stats.Placed++
				}
			}
		}
	}
	return stats, nil
}
