package staging

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

type memoryBuffer struct {
	label     string
	usage     Usage
	data      []byte
	mapped    bool
	destroyed bool
}

func (b *memoryBuffer) Label() string { return b.label }
func (b *memoryBuffer) Size() int     { return len(b.data) }
func (b *memoryBuffer) Usage() Usage  { return b.usage }

type CopyCommand struct {
	Src       Buffer
	SrcOffset int
	Dst       Buffer
	DstOffset int
	Size      int
}

// MemoryDevice keeps buffers in host memory. Copies are queued until Submit, which plays
// the role of the GPU consuming a frame. It backs headless runs and tests.
type MemoryDevice struct {
	mu        sync.Mutex
	limit     int
	allocated int
	copies    []CopyCommand
	executed  int
}

// NewMemoryDevice creates a device that fails allocations beyond limit bytes (0 = unlimited).
func NewMemoryDevice(limit int) *MemoryDevice {
	return &MemoryDevice{limit: limit}
}

func (d *MemoryDevice) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if desc.Size < 0 {
		return nil, errors.Errorf("failed to create buffer %q: negative size %d", desc.Label, desc.Size)
	}
	if d.limit > 0 && d.allocated+desc.Size > d.limit {
		return nil, errors.Wrapf(ErrAllocation, "memory device: %q needs %d bytes, %d of %d in use", desc.Label, desc.Size, d.allocated, d.limit)
	}
	d.allocated += desc.Size
	return &memoryBuffer{
		label: desc.Label,
		usage: desc.Usage,
		data:  make([]byte, desc.Size),
	}, nil
}

func (d *MemoryDevice) buffer(buf Buffer) *memoryBuffer {
	b, ok := buf.(*memoryBuffer)
	if !ok {
		panic(fmt.Sprintf("failed to use buffer %q: not created by this device", buf.Label()))
	}
	if b.destroyed {
		panic(fmt.Sprintf("failed to use buffer %q: already destroyed", b.label))
	}
	return b
}

func (d *MemoryDevice) DestroyBuffer(buf Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.buffer(buf)
	b.destroyed = true
	d.allocated -= len(b.data)
}

func (d *MemoryDevice) MapWrite(buf Buffer) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.buffer(buf)
	if !b.usage.Has(UsageMapWrite) {
		return nil, errors.Errorf("failed to map buffer %q: missing map-write usage", b.label)
	}
	if b.mapped {
		return nil, errors.Wrapf(ErrMapped, "buffer %q", b.label)
	}
	b.mapped = true
	return b.data, nil
}

func (d *MemoryDevice) Unmap(buf Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buffer(buf).mapped = false
}

func (d *MemoryDevice) EnqueueCopy(src Buffer, srcOffset int, dst Buffer, dstOffset int, size int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, t := d.buffer(src), d.buffer(dst)
	switch {
	case !s.usage.Has(UsageCopySrc):
		panic(fmt.Sprintf("failed to copy from %q: missing copy-src usage", s.label))
	case !t.usage.Has(UsageCopyDst):
		panic(fmt.Sprintf("failed to copy into %q: missing copy-dst usage", t.label))
	case srcOffset+size > len(s.data) || dstOffset+size > len(t.data):
		panic(fmt.Sprintf("failed to copy %d bytes from %q to %q: out of bounds", size, s.label, t.label))
	case s.mapped:
		panic(fmt.Sprintf("failed to copy from %q: still mapped", s.label))
	}
	d.copies = append(d.copies, CopyCommand{Src: src, SrcOffset: srcOffset, Dst: dst, DstOffset: dstOffset, Size: size})
}

// PendingCopies lists the copies queued since the last Submit.
func (d *MemoryDevice) PendingCopies() []CopyCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]CopyCommand(nil), d.copies...)
}

// Submit executes all queued copies in order. Copies touching a destroyed buffer are skipped.
func (d *MemoryDevice) Submit() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.copies)
	for _, c := range d.copies {
		s, t := c.Src.(*memoryBuffer), c.Dst.(*memoryBuffer)
		if s.destroyed || t.destroyed {
			// the destination was reallocated before the frame ran; its contents are gone anyway
			continue
		}
		copy(t.data[c.DstOffset:c.DstOffset+c.Size], s.data[c.SrcOffset:c.SrcOffset+c.Size])
	}
	d.copies = d.copies[:0]
	d.executed += n
	return n
}

// Contents returns a copy of the buffer's bytes.
func (d *MemoryDevice) Contents(buf Buffer) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.buffer(buf).data...)
}

func (d *MemoryDevice) Allocated() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocated
}

func (d *MemoryDevice) ExecutedCopies() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.executed
}

// ReadBuffer decodes the first n values of T stored in a memory device buffer.
func ReadBuffer[T any](d *MemoryDevice, buf Buffer, n int) []T {
	return FromBytes[T](d.Contents(buf), n)
}
