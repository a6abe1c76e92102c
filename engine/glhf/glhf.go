// Package glhf wraps the small slice of OpenGL 3.3 core the voxel renderer needs: shaders,
// textures, vertex arrays over externally managed buffers, and a staging.Device backed by
// GL buffer objects.
//
// Everything in this package must be called on the thread that owns the GL context.
package glhf

import (
	"fmt"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/memmaker/sandvox/engine/util"
)

// binder binds a GL object and remembers what was bound before, so nested Begin/End pairs
// restore the previous binding.
type binder struct {
	restoreLoc uint32
	bindFunc   func(uint32)

	obj  uint32
	prev []uint32
}

func (b *binder) bind() *binder {
	var prev int32
	gl.GetIntegerv(b.restoreLoc, &prev)
	b.prev = append(b.prev, uint32(prev))
	if b.prev[len(b.prev)-1] != b.obj {
		b.bindFunc(b.obj)
	}
	return b
}

func (b *binder) restore() *binder {
	last := b.prev[len(b.prev)-1]
	if last != b.obj {
		b.bindFunc(last)
	}
	b.prev = b.prev[:len(b.prev)-1]
	return b
}

// takeError drains the GL error queue and returns the first error code, or gl.NO_ERROR.
func takeError() uint32 {
	first := uint32(gl.NO_ERROR)
	for {
		code := gl.GetError()
		if code == gl.NO_ERROR {
			return first
		}
		if first == gl.NO_ERROR {
			first = code
		}
	}
}

func errorName(code uint32) string {
	switch code {
	case gl.INVALID_ENUM:
		return "GL_INVALID_ENUM"
	case gl.INVALID_VALUE:
		return "GL_INVALID_VALUE"
	case gl.INVALID_OPERATION:
		return "GL_INVALID_OPERATION"
	case gl.INVALID_FRAMEBUFFER_OPERATION:
		return "GL_INVALID_FRAMEBUFFER_OPERATION"
	case gl.OUT_OF_MEMORY:
		return "GL_OUT_OF_MEMORY"
	case gl.NO_ERROR:
		return "GL_NO_ERROR"
	}
	return "unknown GL error"
}

// CheckError logs any pending GL error under the given context.
func CheckError(context string) bool {
	code := takeError()
	if code == gl.NO_ERROR {
		return false
	}
	util.LogGlError(fmt.Sprintf("%s: %s (0x%x)", context, errorName(code), code))
	return true
}
