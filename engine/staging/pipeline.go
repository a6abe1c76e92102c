package staging

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/memmaker/sandvox/engine/util"
	"github.com/pkg/errors"
)

type frameBuffer interface {
	Label() string
	Commit(frame uint64) error
	Complete(frame uint64)
	collect(info *Info)
}

// Info summarizes the pipeline's buffers and staging memory.
type Info struct {
	Frame          uint64
	Buffers        int
	Staged         int
	InFlight       int
	Free           int
	StagedBytes    int
	AllocatedBytes int

	TotalAllocations int64
	Reallocations    int64
	CommittedBytes   int64
}

type pipelineStats struct {
	allocations    atomic.Int64
	reallocations  atomic.Int64
	committedBytes atomic.Int64
}

// Pipeline owns a set of staged buffers and commits them once per frame.
// Frames are numbered from 1.
type Pipeline struct {
	mu      sync.Mutex
	device  Device
	frame   uint64
	buffers []frameBuffer
	stats   pipelineStats

	// held for reading by Stage, for writing by CommitFrame
	staging sync.RWMutex
}

func NewPipeline(device Device) *Pipeline {
	return &Pipeline{
		device: device,
		frame:  1,
	}
}

func (p *Pipeline) Device() Device {
	return p.device
}

// Frame is the number the next CommitFrame will use.
func (p *Pipeline) Frame() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame
}

func (p *Pipeline) register(b frameBuffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffers = append(p.buffers, b)
}

func (p *Pipeline) unregister(b frameBuffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, other := range p.buffers {
		if other == b {
			p.buffers = append(p.buffers[:i], p.buffers[i+1:]...)
			return
		}
	}
}

func (p *Pipeline) snapshot() []frameBuffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]frameBuffer(nil), p.buffers...)
}

// Stage runs fn, which writes to one or more buffers of the pipeline, so that a concurrent
// CommitFrame uploads either all of those writes or none of them. Buffers that are drawn
// together, like a mesh's vertices and indices, must be written inside one Stage.
// fn must not commit.
func (p *Pipeline) Stage(fn func()) {
	p.staging.RLock()
	defer p.staging.RUnlock()
	fn()
}

// CommitFrame commits every staged buffer and advances the frame counter. It returns the
// committed frame number, to be passed to CompleteFrame once the GPU has finished it.
// Every buffer is attempted; the first failure is returned.
func (p *Pipeline) CommitFrame() (uint64, error) {
	p.staging.Lock()
	defer p.staging.Unlock()

	p.mu.Lock()
	frame := p.frame
	p.frame++
	buffers := append([]frameBuffer(nil), p.buffers...)
	p.mu.Unlock()

	var firstErr error
	failed := 0
	for _, b := range buffers {
		if err := b.Commit(frame); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		util.LogStagingError(fmt.Sprintf("[Staging] frame %d: %d of %d buffers failed to commit", frame, failed, len(buffers)))
		return frame, errors.Wrapf(firstErr, "frame %d", frame)
	}
	return frame, nil
}

// CompleteFrame recycles the staging memory of every frame up to and including frame.
func (p *Pipeline) CompleteFrame(frame uint64) {
	for _, b := range p.snapshot() {
		b.Complete(frame)
	}
}

func (p *Pipeline) Info() Info {
	info := Info{
		Frame:            p.Frame(),
		TotalAllocations: p.stats.allocations.Load(),
		Reallocations:    p.stats.reallocations.Load(),
		CommittedBytes:   p.stats.committedBytes.Load(),
	}
	for _, b := range p.snapshot() {
		b.collect(&info)
	}
	return info
}

// Release releases every buffer still registered.
func (p *Pipeline) Release() {
	for _, b := range p.snapshot() {
		if r, ok := b.(interface{ Release() }); ok {
			r.Release()
		}
	}
}
