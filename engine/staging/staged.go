package staging

import (
	"fmt"
	"sync"

	"github.com/memmaker/sandvox/engine/util"
	"github.com/pkg/errors"
)

type State int

const (
	StateIdle State = iota
	StateStaged
	StateCommitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStaged:
		return "Staged"
	case StateCommitted:
		return "Committed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type stagingBuffer struct {
	buffer Buffer
	frame  uint64
}

// StagedBuffer pairs host-side pending data with a TypedBuffer on the device.
// Staging buffers in flight are never reused before Complete reports their frame done,
// so consecutive frames write into different staging memory.
type StagedBuffer[T any] struct {
	mu       sync.Mutex
	pipeline *Pipeline
	label    string
	typed    *TypedBuffer[T]

	host         []T
	state        State
	committed    bool
	lastFrame    uint64
	committedLen int

	free     []*stagingBuffer
	inflight []*stagingBuffer
}

// NewStagedBuffer creates a buffer driven by the pipeline's CommitFrame and CompleteFrame.
func NewStagedBuffer[T any](p *Pipeline, label string, usage Usage) *StagedBuffer[T] {
	b := &StagedBuffer[T]{
		pipeline: p,
		label:    label,
		typed:    NewTypedBuffer[T](p.device, label, usage),
	}
	p.register(b)
	return b
}

// Write replaces the staged data. Only the last Write before a Commit is uploaded.
func (b *StagedBuffer[T]) Write(data []T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.host = append(b.host[:0], data...)
	b.state = StateStaged
}

// Append stages data after what is already staged and returns its element offset.
// Writers sharing one buffer get disjoint ranges.
func (b *StagedBuffer[T]) Append(data []T) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	offset := len(b.host)
	b.host = append(b.host, data...)
	b.state = StateStaged
	return offset
}

// Pending returns a copy of the data the next Commit would upload.
func (b *StagedBuffer[T]) Pending() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]T(nil), b.host...)
}

func (b *StagedBuffer[T]) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *StagedBuffer[T]) Label() string {
	return b.label
}

// Len is the number of elements the typed buffer holds after the last commit.
func (b *StagedBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committedLen
}

// Buffer is the device buffer the render pass reads. It may change after a Commit that grew it.
func (b *StagedBuffer[T]) Buffer() Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.typed.Buffer()
}

func (b *StagedBuffer[T]) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.typed.Capacity()
}

// Commit uploads the staged data for the given frame. Without staged data it does nothing.
// A second commit in the same frame fails with ErrAlreadyCommitted.
func (b *StagedBuffer[T]) Commit(frame uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.commit(frame)
}

func (b *StagedBuffer[T]) commit(frame uint64) error {
	if b.state != StateStaged {
		return nil
	}
	if b.committed && b.lastFrame == frame {
		return errors.Wrapf(ErrAlreadyCommitted, "%q in frame %d", b.label, frame)
	}
	device := b.pipeline.device
	n := len(b.host)
	size := AlignSize(n * b.typed.ElementSize())

	if n > 0 {
		previous := b.typed.Capacity()
		grown, err := b.typed.Reserve(n)
		if err != nil {
			util.LogStagingError(fmt.Sprintf("[Staging] %s: %v", b.label, err))
			return err
		}
		if grown {
			b.pipeline.stats.allocations.Add(1)
			if previous > 0 {
				b.pipeline.stats.reallocations.Add(1)
			}
			b.dropSmallStaging()
		}

		staging, err := b.acquireStaging(size)
		if err != nil {
			util.LogStagingError(fmt.Sprintf("[Staging] %s: %v", b.label, err))
			return err
		}
		mapped, err := device.MapWrite(staging.buffer)
		if err != nil {
			b.free = append(b.free, staging)
			return errors.Wrapf(err, "failed to map staging memory for %q", b.label)
		}
		copy(mapped, AsBytes(b.host))
		device.Unmap(staging.buffer)
		device.EnqueueCopy(staging.buffer, 0, b.typed.Buffer(), 0, size)

		staging.frame = frame
		b.inflight = append(b.inflight, staging)
		b.pipeline.stats.committedBytes.Add(int64(n * b.typed.ElementSize()))
	}

	util.LogStagingDebug(fmt.Sprintf("[Staging] %s: committed %d elements in frame %d", b.label, n, frame))
	b.committedLen = n
	b.host = b.host[:0]
	b.state = StateCommitted
	b.committed = true
	b.lastFrame = frame
	return nil
}

// acquireStaging reuses a free staging buffer that fits or allocates one sized to the
// typed buffer's capacity.
func (b *StagedBuffer[T]) acquireStaging(size int) (*stagingBuffer, error) {
	for i, s := range b.free {
		if s.buffer.Size() >= size {
			b.free = append(b.free[:i], b.free[i+1:]...)
			return s, nil
		}
	}
	buffer, err := b.pipeline.device.CreateBuffer(BufferDescriptor{
		Label: b.label + " staging",
		Size:  b.typed.SizeBytes(),
		Usage: UsageMapWrite | UsageCopySrc,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to allocate staging memory for %q", b.label)
	}
	b.pipeline.stats.allocations.Add(1)
	return &stagingBuffer{buffer: buffer}, nil
}

func (b *StagedBuffer[T]) dropSmallStaging() {
	kept := b.free[:0]
	for _, s := range b.free {
		if s.buffer.Size() < b.typed.SizeBytes() {
			b.pipeline.device.DestroyBuffer(s.buffer)
			continue
		}
		kept = append(kept, s)
	}
	b.free = kept
}

// Complete recycles the staging memory of every commit up to and including frame.
func (b *StagedBuffer[T]) Complete(frame uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.complete(frame)
}

func (b *StagedBuffer[T]) complete(frame uint64) {
	remaining := b.inflight[:0]
	for _, s := range b.inflight {
		if s.frame > frame {
			remaining = append(remaining, s)
			continue
		}
		if s.buffer.Size() < b.typed.SizeBytes() {
			b.pipeline.device.DestroyBuffer(s.buffer)
			continue
		}
		b.free = append(b.free, s)
	}
	for i := len(remaining); i < len(b.inflight); i++ {
		b.inflight[i] = nil
	}
	b.inflight = remaining
	if b.state == StateCommitted && b.lastFrame <= frame {
		b.state = StateIdle
	}
}

// Release destroys all device memory. Staged data that was never committed is dropped.
func (b *StagedBuffer[T]) Release() {
	b.pipeline.unregister(b)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.free {
		b.pipeline.device.DestroyBuffer(s.buffer)
	}
	for _, s := range b.inflight {
		b.pipeline.device.DestroyBuffer(s.buffer)
	}
	b.free, b.inflight, b.host = nil, nil, nil
	b.typed.Release()
	b.committedLen = 0
	b.state = StateIdle
}

func (b *StagedBuffer[T]) collect(info *Info) {
	b.mu.Lock()
	defer b.mu.Unlock()
	info.Buffers++
	if b.state == StateStaged {
		info.Staged++
		info.StagedBytes += len(b.host) * b.typed.ElementSize()
	}
	info.InFlight += len(b.inflight)
	info.Free += len(b.free)
	info.AllocatedBytes += b.typed.SizeBytes()
	for _, s := range b.free {
		info.AllocatedBytes += s.buffer.Size()
	}
	for _, s := range b.inflight {
		info.AllocatedBytes += s.buffer.Size()
	}
}
