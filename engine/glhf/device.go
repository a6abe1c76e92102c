package glhf

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/memmaker/sandvox/engine/staging"
	"github.com/memmaker/sandvox/engine/util"
	"github.com/pkg/errors"
)

// Buffer is a GL buffer object created by Device.
type Buffer struct {
	label  string
	size   int
	usage  staging.Usage
	obj    uint32
	mapped bool
}

func (b *Buffer) Label() string        { return b.label }
func (b *Buffer) Size() int            { return b.size }
func (b *Buffer) Usage() staging.Usage { return b.usage }

// ID returns the GL name of the buffer, 0 once destroyed.
func (b *Buffer) ID() uint32 { return b.obj }

// Device implements staging.Device on GL buffer objects. Copies are recorded with
// glCopyBufferSubData, which the driver orders before any later draw that reads the
// destination.
type Device struct {
	copyRead  binder
	copyWrite binder
	allocated int
}

func NewDevice() *Device {
	return &Device{
		copyRead: binder{
			restoreLoc: gl.COPY_READ_BUFFER,
			bindFunc: func(obj uint32) {
				gl.BindBuffer(gl.COPY_READ_BUFFER, obj)
			},
		},
		copyWrite: binder{
			restoreLoc: gl.COPY_WRITE_BUFFER,
			bindFunc: func(obj uint32) {
				gl.BindBuffer(gl.COPY_WRITE_BUFFER, obj)
			},
		},
	}
}

// Allocated returns the number of bytes held by live buffers.
func (d *Device) Allocated() int {
	return d.allocated
}

func usageHint(usage staging.Usage) uint32 {
	if usage.Has(staging.UsageMapWrite) {
		return gl.STREAM_DRAW
	}
	return gl.DYNAMIC_DRAW
}

func (d *Device) CreateBuffer(desc staging.BufferDescriptor) (staging.Buffer, error) {
	if desc.Size < 0 {
		return nil, errors.Errorf("failed to create buffer %q: negative size %d", desc.Label, desc.Size)
	}
	takeError()

	buf := &Buffer{label: desc.Label, size: desc.Size, usage: desc.Usage}
	gl.GenBuffers(1, &buf.obj)
	d.copyWrite.obj = buf.obj
	d.copyWrite.bind()
	gl.BufferData(gl.COPY_WRITE_BUFFER, desc.Size, nil, usageHint(desc.Usage))
	d.copyWrite.restore()

	if code := takeError(); code != gl.NO_ERROR {
		gl.DeleteBuffers(1, &buf.obj)
		if code == gl.OUT_OF_MEMORY {
			return nil, errors.Wrapf(staging.ErrAllocation, "gl buffer %q (%d bytes)", desc.Label, desc.Size)
		}
		return nil, errors.Errorf("failed to create gl buffer %q: %s", desc.Label, errorName(code))
	}
	d.allocated += desc.Size
	util.LogGlDebug(fmt.Sprintf("[Device] created buffer %q #%d with %d bytes", desc.Label, buf.obj, desc.Size))
	return buf, nil
}

func (d *Device) DestroyBuffer(b staging.Buffer) {
	buf := b.(*Buffer)
	if buf.obj == 0 {
		return
	}
	if buf.mapped {
		d.Unmap(buf)
	}
	gl.DeleteBuffers(1, &buf.obj)
	buf.obj = 0
	d.allocated -= buf.size
}

func (d *Device) MapWrite(b staging.Buffer) ([]byte, error) {
	buf := b.(*Buffer)
	if !buf.usage.Has(staging.UsageMapWrite) {
		return nil, errors.Errorf("failed to map buffer %q: not created with UsageMapWrite", buf.label)
	}
	if buf.mapped {
		return nil, errors.Wrapf(staging.ErrMapped, "buffer %q", buf.label)
	}
	if buf.size == 0 {
		return []byte{}, nil
	}

	d.copyWrite.obj = buf.obj
	d.copyWrite.bind()
	ptr := gl.MapBufferRange(gl.COPY_WRITE_BUFFER, 0, buf.size, gl.MAP_WRITE_BIT|gl.MAP_INVALIDATE_BUFFER_BIT)
	d.copyWrite.restore()
	if ptr == nil {
		return nil, errors.Errorf("failed to map buffer %q: %s", buf.label, errorName(takeError()))
	}
	buf.mapped = true
	return unsafe.Slice((*byte)(ptr), buf.size), nil
}

func (d *Device) Unmap(b staging.Buffer) {
	buf := b.(*Buffer)
	if !buf.mapped {
		return
	}
	buf.mapped = false
	if buf.size == 0 {
		return
	}
	d.copyWrite.obj = buf.obj
	d.copyWrite.bind()
	if !gl.UnmapBuffer(gl.COPY_WRITE_BUFFER) {
		// the data store became corrupt while mapped, e.g. after a mode switch
		util.LogGlWarning(fmt.Sprintf("[Device] buffer %q lost its contents while mapped", buf.label))
	}
	d.copyWrite.restore()
}

func (d *Device) EnqueueCopy(src staging.Buffer, srcOffset int, dst staging.Buffer, dstOffset int, size int) {
	from, to := src.(*Buffer), dst.(*Buffer)
	if !from.usage.Has(staging.UsageCopySrc) || !to.usage.Has(staging.UsageCopyDst) {
		panic("failed to enqueue copy: missing copy usage")
	}
	if from.mapped || to.mapped {
		panic("failed to enqueue copy: buffer is mapped")
	}
	if srcOffset < 0 || dstOffset < 0 || srcOffset+size > from.size || dstOffset+size > to.size {
		panic("failed to enqueue copy: range out of bounds")
	}
	if size == 0 {
		return
	}
	d.copyRead.obj = from.obj
	d.copyWrite.obj = to.obj
	d.copyRead.bind()
	d.copyWrite.bind()
	gl.CopyBufferSubData(gl.COPY_READ_BUFFER, gl.COPY_WRITE_BUFFER, srcOffset, dstOffset, size)
	d.copyWrite.restore()
	d.copyRead.restore()
}
