package glhf

import (
	"runtime"

	"github.com/faiface/mainthread"
	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

// Texture is an OpenGL texture. It can be used as a block atlas: a grid of equally sized
// tiles addressed by index, row by row from the top left.
type Texture struct {
	tex           binder
	width, height int
	smooth        bool
	tileWidth     int
	tileHeight    int
}

// NewSolidColorTexture creates a 4x4 texture of a single colour. It doubles as a one-tile atlas.
func NewSolidColorTexture(color [3]uint8) *Texture {
	pixels := make([]uint8, 4*4*4)
	for i := 0; i < 4*4; i++ {
		pixels[i*4] = color[0]
		pixels[i*4+1] = color[1]
		pixels[i*4+2] = color[2]
		pixels[i*4+3] = 255
	}

	texture := NewTexture(4, 4, false, pixels)
	texture.SetAtlasItemSize(4, 4)
	return texture
}

// NewTexture creates a new texture with the specified width and height with some initial
// pixel values. The pixels must be a sequence of RGBA values (one byte per component).
func NewTexture(width, height int, smooth bool, pixels []uint8) *Texture {
	if len(pixels) != width*height*4 {
		panic("failed to create texture: wrong number of pixels")
	}
	tex := &Texture{
		tex: binder{
			restoreLoc: gl.TEXTURE_BINDING_2D,
			bindFunc: func(obj uint32) {
				gl.BindTexture(gl.TEXTURE_2D, obj)
			},
		},
		width:      width,
		height:     height,
		tileWidth:  width,
		tileHeight: height,
	}

	gl.GenTextures(1, &tex.tex.obj)

	tex.Begin()
	defer tex.End()

	gl.TexImage2D(
		gl.TEXTURE_2D,
		0,
		gl.RGBA,
		int32(width),
		int32(height),
		0,
		gl.RGBA,
		gl.UNSIGNED_BYTE,
		gl.Ptr(pixels),
	)

	tex.SetSmooth(smooth)
	// tiles repeat in the shader, sampling past the edge would bleed into the neighbour tile
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	runtime.SetFinalizer(tex, (*Texture).delete)

	return tex
}

func (t *Texture) delete() {
	mainthread.CallNonBlock(func() {
		gl.DeleteTextures(1, &t.tex.obj)
	})
}

// ID returns the OpenGL ID of this Texture.
func (t *Texture) ID() uint32 {
	return t.tex.obj
}

// Width returns the width of the Texture in pixels.
func (t *Texture) Width() int {
	return t.width
}

// Height returns the height of the Texture in pixels.
func (t *Texture) Height() int {
	return t.height
}

// SetPixels sets the content of a sub-region of the Texture. Pixels must be an RGBA byte sequence.
func (t *Texture) SetPixels(x, y, w, h int, pixels []uint8) {
	if len(pixels) != w*h*4 {
		panic("set pixels: wrong number of pixels")
	}
	gl.TexSubImage2D(
		gl.TEXTURE_2D,
		0,
		int32(x),
		int32(y),
		int32(w),
		int32(h),
		gl.RGBA,
		gl.UNSIGNED_BYTE,
		gl.Ptr(pixels),
	)
}

// SetSmooth sets whether the Texture should be drawn "smoothly" or "pixely".
func (t *Texture) SetSmooth(smooth bool) {
	t.smooth = smooth
	if smooth {
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	} else {
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	}
}

// Smooth returns whether the Texture is set to be drawn "smooth" or "pixely".
func (t *Texture) Smooth() bool {
	return t.smooth
}

// Begin binds the Texture. This is necessary before using the Texture.
func (t *Texture) Begin() {
	t.tex.bind()
}

// End unbinds the Texture and restores the previous one.
func (t *Texture) End() {
	t.tex.restore()
}

func (t *Texture) SetAtlasItemSize(width int, height int) {
	t.tileWidth = width
	t.tileHeight = height
}

func (t *Texture) GetAtlasItemSize() (int, int) {
	return t.tileWidth, t.tileHeight
}

// AtlasColumns is the number of tiles per row.
func (t *Texture) AtlasColumns() int {
	return t.width / t.tileWidth
}

// TileScale is the size of one tile in texture coordinates.
func (t *Texture) TileScale() mgl32.Vec2 {
	return mgl32.Vec2{float32(t.tileWidth) / float32(t.width), float32(t.tileHeight) / float32(t.height)}
}

// GetUV returns the top left and bottom right texture coordinates of a tile.
func (t *Texture) GetUV(index uint32) (mgl32.Vec2, mgl32.Vec2) {
	columns := uint32(t.AtlasColumns())
	scale := t.TileScale()
	topLeft := mgl32.Vec2{float32(index%columns) * scale.X(), float32(index/columns) * scale.Y()}
	return topLeft, topLeft.Add(scale)
}
