package util

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"

	"github.com/pkg/errors"
	xdraw "golang.org/x/image/draw"
)

// TextureAtlas packs equally sized tiles into one image, row by row from the top left.
// Images of a different size are scaled to the tile size.
type TextureAtlas struct {
	tileSize int
	columns  int
	tiles    []*image.NRGBA
	names    []string
	indices  map[string]uint32
}

func NewTextureAtlas(tileSize, columns int) *TextureAtlas {
	if tileSize <= 0 || columns <= 0 {
		panic("failed to create texture atlas: tile size and columns must be positive")
	}
	return &TextureAtlas{
		tileSize: tileSize,
		columns:  columns,
		indices:  make(map[string]uint32),
	}
}

// Add puts img into the atlas under name and returns its tile index. Adding a name twice
// returns the first index.
func (a *TextureAtlas) Add(name string, img image.Image) uint32 {
	if index, ok := a.indices[name]; ok {
		return index
	}
	tile := image.NewNRGBA(image.Rect(0, 0, a.tileSize, a.tileSize))
	if img.Bounds().Dx() == a.tileSize && img.Bounds().Dy() == a.tileSize {
		xdraw.Draw(tile, tile.Bounds(), img, img.Bounds().Min, xdraw.Src)
	} else {
		xdraw.NearestNeighbor.Scale(tile, tile.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	}
	index := uint32(len(a.tiles))
	a.tiles = append(a.tiles, tile)
	a.names = append(a.names, name)
	a.indices[name] = index
	LogTextureDebug(fmt.Sprintf("[Atlas] %d -> %s", index, name))
	return index
}

// AddFile decodes a PNG file and adds it under its path.
func (a *TextureAtlas) AddFile(path string) (uint32, error) {
	if index, ok := a.indices[path]; ok {
		return index, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "failed to open texture")
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to decode texture %s", path)
	}
	return a.Add(path, img), nil
}

func (a *TextureAtlas) Index(name string) (uint32, bool) {
	index, ok := a.indices[name]
	return index, ok
}

func (a *TextureAtlas) Name(index uint32) string {
	return a.names[index]
}

func (a *TextureAtlas) Len() int {
	return len(a.tiles)
}

func (a *TextureAtlas) TileSize() int {
	return a.tileSize
}

func (a *TextureAtlas) Columns() int {
	return a.columns
}

// Image composes all tiles. An empty atlas still yields one row.
func (a *TextureAtlas) Image() *image.NRGBA {
	rows := (len(a.tiles) + a.columns - 1) / a.columns
	if rows == 0 {
		rows = 1
	}
	atlas := image.NewNRGBA(image.Rect(0, 0, a.columns*a.tileSize, rows*a.tileSize))
	for i, tile := range a.tiles {
		x := (i % a.columns) * a.tileSize
		y := (i / a.columns) * a.tileSize
		xdraw.Draw(atlas, image.Rect(x, y, x+a.tileSize, y+a.tileSize), tile, image.Point{}, xdraw.Src)
	}
	return atlas
}

// WritePNG encodes the composed atlas, useful for debugging texture assignment.
func (a *TextureAtlas) WritePNG(w io.Writer) error {
	return png.Encode(w, a.Image())
}

// WriteIndex writes one "name index" line per tile.
func (a *TextureAtlas) WriteIndex(w io.Writer) error {
	for index, name := range a.names {
		if _, err := fmt.Fprintf(w, "%s %d\n", name, index); err != nil {
			return err
		}
	}
	return nil
}

// ReadAtlasIndex parses the output of WriteIndex.
func ReadAtlasIndex(r io.Reader) (map[string]uint32, error) {
	indices := map[string]uint32{}
	for {
		var name string
		var index uint32
		_, err := fmt.Fscanf(r, "%s %d\n", &name, &index)
		if err == io.EOF {
			return indices, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read atlas index")
		}
		indices[name] = index
	}
}
