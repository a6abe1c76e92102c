package glhf

import (
	"github.com/go-gl/gl/v3.3-core/gl"
)

// Fence marks a point in the GL command stream.
type Fence struct {
	sync uintptr
}

// NewFence inserts a fence after all commands issued so far.
func NewFence() *Fence {
	return &Fence{sync: gl.FenceSync(gl.SYNC_GPU_COMMANDS_COMPLETE, 0)}
}

// Signaled reports whether the GPU has passed the fence. It never blocks.
func (f *Fence) Signaled() bool {
	if f.sync == 0 {
		return true
	}
	switch gl.ClientWaitSync(f.sync, gl.SYNC_FLUSH_COMMANDS_BIT, 0) {
	case gl.ALREADY_SIGNALED, gl.CONDITION_SATISFIED:
		return true
	case gl.WAIT_FAILED:
		CheckError("fence wait")
		return true
	}
	return false
}

func (f *Fence) Delete() {
	if f.sync != 0 {
		gl.DeleteSync(f.sync)
		f.sync = 0
	}
}

type frameFence struct {
	frame uint64
	fence *Fence
}

// FrameFences tracks one fence per submitted frame.
type FrameFences struct {
	pending []frameFence
}

// Insert fences the commands of frame.
func (q *FrameFences) Insert(frame uint64) {
	q.pending = append(q.pending, frameFence{frame: frame, fence: NewFence()})
}

// Poll calls complete for every leading frame whose fence has signaled, oldest first, and
// returns how many frames completed.
func (q *FrameFences) Poll(complete func(frame uint64)) int {
	done := 0
	for done < len(q.pending) && q.pending[done].fence.Signaled() {
		q.pending[done].fence.Delete()
		complete(q.pending[done].frame)
		done++
	}
	q.pending = q.pending[done:]
	return done
}

func (q *FrameFences) Len() int {
	return len(q.pending)
}

// Release deletes all fences without completing their frames.
func (q *FrameFences) Release() {
	for _, p := range q.pending {
		p.fence.Delete()
	}
	q.pending = nil
}
