package staging

import (
	"fmt"

	"github.com/memmaker/sandvox/engine/util"
	"github.com/pkg/errors"
)

// TypedBuffer is a GPU-resident array of T. It only grows; growing discards the old contents.
type TypedBuffer[T any] struct {
	device   Device
	label    string
	usage    Usage
	buffer   Buffer
	capacity int
	elemSize int
}

func NewTypedBuffer[T any](device Device, label string, usage Usage) *TypedBuffer[T] {
	return &TypedBuffer[T]{
		device:   device,
		label:    label,
		usage:    usage | UsageCopyDst,
		elemSize: elementSize[T](),
	}
}

// Reserve makes room for n elements. The new capacity is max(2*capacity, n).
func (b *TypedBuffer[T]) Reserve(n int) (bool, error) {
	if n <= b.capacity && b.buffer != nil {
		return false, nil
	}
	newCapacity := n
	if 2*b.capacity > newCapacity {
		newCapacity = 2 * b.capacity
	}
	if newCapacity == 0 {
		newCapacity = 1
	}
	buffer, err := b.device.CreateBuffer(BufferDescriptor{
		Label: b.label,
		Size:  AlignSize(newCapacity * b.elemSize),
		Usage: b.usage,
	})
	if err != nil {
		return false, errors.Wrapf(err, "failed to grow %q to %d elements", b.label, newCapacity)
	}
	if b.buffer != nil {
		b.device.DestroyBuffer(b.buffer)
		util.LogStagingDebug(fmt.Sprintf("[Staging] %s grew from %d to %d elements", b.label, b.capacity, newCapacity))
	}
	b.buffer = buffer
	b.capacity = newCapacity
	return true, nil
}

// Buffer is nil until the first Reserve.
func (b *TypedBuffer[T]) Buffer() Buffer {
	return b.buffer
}

func (b *TypedBuffer[T]) Capacity() int {
	return b.capacity
}

func (b *TypedBuffer[T]) ElementSize() int {
	return b.elemSize
}

func (b *TypedBuffer[T]) SizeBytes() int {
	if b.buffer == nil {
		return 0
	}
	return b.buffer.Size()
}

func (b *TypedBuffer[T]) Release() {
	if b.buffer != nil {
		b.device.DestroyBuffer(b.buffer)
		b.buffer = nil
		b.capacity = 0
	}
}
