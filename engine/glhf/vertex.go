package glhf

import (
	"runtime"

	"github.com/faiface/mainthread"
	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/memmaker/sandvox/engine/staging"
)

// VertexArray describes how a shader reads vertices from a vertex buffer and indices from an
// index buffer. It does not own the buffers: the staging pipeline does, and may replace them
// when they grow, so Attach must be called before drawing whenever that can happen.
//
// Note that a vertex array is specialized for a specific shader and can't be used with another
// shader.
type VertexArray struct {
	vao           binder
	shader        *Shader
	format        AttrFormat
	offset        []int
	stride        int
	vertexBuffer  uint32
	indexBuffer   uint32
	primitiveType uint32
}

// NewVertexArray creates a vertex array for vertices of stride bytes laid out in the order of
// the shader's vertex format. The stride may exceed the format size to allow for padding.
func NewVertexArray(shader *Shader, stride int) *VertexArray {
	format := shader.VertexFormat()
	if stride < format.Size() {
		panic("failed to create vertex array: stride smaller than vertex format")
	}
	va := &VertexArray{
		primitiveType: gl.TRIANGLES,
		vao: binder{
			restoreLoc: gl.VERTEX_ARRAY_BINDING,
			bindFunc: func(obj uint32) {
				gl.BindVertexArray(obj)
			},
		},
		shader: shader,
		format: format,
		offset: make([]int, len(format)),
		stride: stride,
	}

	offset := 0
	for i, attr := range va.format {
		switch attr.Type {
		case Int, UInt, Float, Vec2, Vec3, Vec4:
		default:
			panic("failed to create vertex array: invalid attribute type " + attr.Type.String())
		}
		va.offset[i] = offset
		offset += attr.Type.Size()
	}

	gl.GenVertexArrays(1, &va.vao.obj)

	runtime.SetFinalizer(va, (*VertexArray).delete)

	return va
}

// Attach points the vertex array at the given buffers. It is a no-op if they did not change.
// Buffers that have not been allocated yet (nil) detach the array.
func (va *VertexArray) Attach(vertices, indices staging.Buffer) {
	vbo, ibo := bufferID(vertices), bufferID(indices)
	if vbo == va.vertexBuffer && ibo == va.indexBuffer {
		return
	}
	va.vertexBuffer, va.indexBuffer = vbo, ibo
	if vbo == 0 || ibo == 0 {
		return
	}

	va.vao.bind()
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	va.setAttributesForArray()
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, ibo)
	va.vao.restore()
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

func bufferID(b staging.Buffer) uint32 {
	if b == nil {
		return 0
	}
	return b.(*Buffer).ID()
}

// Attached reports whether both buffers are present.
func (va *VertexArray) Attached() bool {
	return va.vertexBuffer != 0 && va.indexBuffer != 0
}

func (va *VertexArray) setAttributesForArray() {
	for i, attr := range va.format {
		loc := gl.GetAttribLocation(va.shader.program.obj, gl.Str(attr.Name+"\x00"))
		if loc < 0 {
			// unused by the shader, the linker dropped it
			continue
		}

		var size int32
		glType := uint32(gl.FLOAT)
		isFloat := true
		switch attr.Type {
		case Int:
			size = 1
			glType = gl.INT
			isFloat = false
		case UInt:
			size = 1
			glType = gl.UNSIGNED_INT
			isFloat = false
		case Float:
			size = 1
		case Vec2:
			size = 2
		case Vec3:
			size = 3
		case Vec4:
			size = 4
		}

		if isFloat {
			gl.VertexAttribPointerWithOffset(uint32(loc), size, glType, false, int32(va.stride), uintptr(va.offset[i]))
		} else {
			gl.VertexAttribIPointerWithOffset(uint32(loc), size, glType, int32(va.stride), uintptr(va.offset[i]))
		}
		gl.EnableVertexAttribArray(uint32(loc))
	}
}

func (va *VertexArray) delete() {
	mainthread.CallNonBlock(func() {
		gl.DeleteVertexArrays(1, &va.vao.obj)
	})
}

// Begin binds the vertex array. Calling this method is necessary before drawing.
func (va *VertexArray) Begin() {
	va.vao.bind()
}

// End unbinds the vertex array and restores the previous one.
func (va *VertexArray) End() {
	va.vao.restore()
}

// Draw draws the first indexCount indices.
func (va *VertexArray) Draw(indexCount int) {
	if !va.Attached() || indexCount == 0 {
		return
	}
	gl.DrawElements(va.primitiveType, int32(indexCount), gl.UNSIGNED_INT, nil)
}

// DrawRange draws indexCount indices starting at firstIndex, adding baseVertex to each index.
func (va *VertexArray) DrawRange(baseVertex, firstIndex, indexCount int) {
	if !va.Attached() || indexCount == 0 {
		return
	}
	gl.DrawElementsBaseVertex(va.primitiveType, int32(indexCount), gl.UNSIGNED_INT, gl.PtrOffset(firstIndex*4), int32(baseVertex))
}
