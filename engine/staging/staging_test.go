package staging

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vertex struct {
	X, Y, Z float32
	ID      uint32
}

func newTestPipeline(limit int) (*MemoryDevice, *Pipeline) {
	device := NewMemoryDevice(limit)
	return device, NewPipeline(device)
}

func TestAlignSize(t *testing.T) {
	assert.Equal(t, 0, AlignSize(0))
	assert.Equal(t, 4, AlignSize(1))
	assert.Equal(t, 4, AlignSize(4))
	assert.Equal(t, 8, AlignSize(6))
}

func TestBytesRoundTrip(t *testing.T) {
	data := []vertex{{1, 2, 3, 4}, {5, 6, 7, 8}}
	raw := AsBytes(data)
	assert.Len(t, raw, 32)
	assert.Equal(t, data, FromBytes[vertex](raw, 2))
	assert.Nil(t, AsBytes([]vertex{}))
}

func TestStateMachine(t *testing.T) {
	device, p := newTestPipeline(0)
	b := NewStagedBuffer[uint32](p, "indices", UsageIndex)
	assert.Equal(t, StateIdle, b.State())

	b.Write([]uint32{1, 2, 3})
	assert.Equal(t, StateStaged, b.State())

	frame, err := p.CommitFrame()
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, b.State())
	assert.Equal(t, 3, b.Len())
	assert.Empty(t, b.Pending())

	assert.Equal(t, 1, device.Submit())
	assert.Equal(t, []uint32{1, 2, 3}, ReadBuffer[uint32](device, b.Buffer(), 3))

	p.CompleteFrame(frame)
	assert.Equal(t, StateIdle, b.State())
	assert.Equal(t, 1, p.Info().Free)
}

func TestCommitWithoutWriteIsNoop(t *testing.T) {
	device, p := newTestPipeline(0)
	b := NewStagedBuffer[uint32](p, "indices", UsageIndex)

	require.NoError(t, b.Commit(1))
	assert.Equal(t, StateIdle, b.State())
	assert.Nil(t, b.Buffer())
	assert.Empty(t, device.PendingCopies())
}

func TestLastWriteWins(t *testing.T) {
	device, p := newTestPipeline(0)
	b := NewStagedBuffer[uint32](p, "indices", UsageIndex)

	b.Write([]uint32{1, 1, 1, 1})
	b.Write([]uint32{2, 2})
	assert.Equal(t, []uint32{2, 2}, b.Pending())

	_, err := p.CommitFrame()
	require.NoError(t, err)
	b.Write([]uint32{3, 3, 3})
	b.Write([]uint32{4})
	assert.Equal(t, StateStaged, b.State())
	assert.Equal(t, []uint32{4}, b.Pending())

	_, err = p.CommitFrame()
	require.NoError(t, err)
	device.Submit()
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, []uint32{4}, ReadBuffer[uint32](device, b.Buffer(), 1))
}

func TestCommitOncePerFrame(t *testing.T) {
	_, p := newTestPipeline(0)
	b := NewStagedBuffer[uint32](p, "indices", UsageIndex)

	b.Write([]uint32{1})
	require.NoError(t, b.Commit(5))
	b.Write([]uint32{2})
	err := b.Commit(5)
	assert.True(t, errors.Is(err, ErrAlreadyCommitted))
	assert.Equal(t, StateStaged, b.State())
	assert.NoError(t, b.Commit(6))
}

// A commit must not reuse staging memory the GPU may still be reading from.
func TestStageCommitsWritesTogether(t *testing.T) {
	_, p := newTestPipeline(0)
	vertices := NewStagedBuffer[vertex](p, "vertices", UsageVertex)
	indices := NewStagedBuffer[uint32](p, "indices", UsageIndex)

	committed := make(chan error, 1)
	p.Stage(func() {
		vertices.Write([]vertex{{}, {}, {}})
		go func() {
			_, err := p.CommitFrame()
			committed <- err
		}()
		select {
		case err := <-committed:
			t.Error("frame committed halfway through a stage")
			committed <- err
		case <-time.After(20 * time.Millisecond):
		}
		indices.Write([]uint32{0, 1, 2})
	})
	require.NoError(t, <-committed)

	assert.Equal(t, 3, vertices.Len())
	assert.Equal(t, 3, indices.Len())
	assert.Equal(t, StateCommitted, indices.State())
}

func TestInFlightStagingIsNotReused(t *testing.T) {
	device, p := newTestPipeline(0)
	b := NewStagedBuffer[uint32](p, "values", UsageStorage)

	b.Write([]uint32{10, 11})
	_, err := p.CommitFrame()
	require.NoError(t, err)
	b.Write([]uint32{20, 21})
	_, err = p.CommitFrame()
	require.NoError(t, err)

	copies := device.PendingCopies()
	require.Len(t, copies, 2)
	assert.NotSame(t, copies[0].Src, copies[1].Src)
	assert.Equal(t, []uint32{10, 11}, FromBytes[uint32](device.Contents(copies[0].Src), 2))
	assert.Equal(t, []uint32{20, 21}, FromBytes[uint32](device.Contents(copies[1].Src), 2))
	assert.Equal(t, 2, p.Info().InFlight)

	device.Submit()
	p.CompleteFrame(2)
	info := p.Info()
	assert.Zero(t, info.InFlight)
	assert.Equal(t, 2, info.Free)

	// once both frames are done the staging memory is recycled instead of reallocated
	allocations := info.TotalAllocations
	b.Write([]uint32{30, 31})
	_, err = p.CommitFrame()
	require.NoError(t, err)
	assert.Equal(t, allocations, p.Info().TotalAllocations)
}

func TestCompleteOnlyRecyclesFinishedFrames(t *testing.T) {
	_, p := newTestPipeline(0)
	b := NewStagedBuffer[uint32](p, "values", UsageStorage)

	b.Write([]uint32{1})
	first, err := p.CommitFrame()
	require.NoError(t, err)
	b.Write([]uint32{2})
	_, err = p.CommitFrame()
	require.NoError(t, err)

	p.CompleteFrame(first)
	info := p.Info()
	assert.Equal(t, 1, info.InFlight)
	assert.Equal(t, 1, info.Free)
	assert.Equal(t, StateCommitted, b.State())
}

func TestGrowthDoublesCapacity(t *testing.T) {
	device, p := newTestPipeline(0)
	b := NewStagedBuffer[uint32](p, "values", UsageStorage)

	b.Write(make([]uint32, 10))
	frame, err := p.CommitFrame()
	require.NoError(t, err)
	assert.Equal(t, 10, b.Capacity())
	device.Submit()
	p.CompleteFrame(frame)

	b.Write(make([]uint32, 12))
	frame, err = p.CommitFrame()
	require.NoError(t, err)
	assert.Equal(t, 20, b.Capacity())

	b.Write(make([]uint32, 100))
	_, err = p.CommitFrame()
	require.NoError(t, err)
	assert.Equal(t, 100, b.Capacity())

	b.Write(make([]uint32, 3))
	_, err = p.CommitFrame()
	require.NoError(t, err)
	assert.Equal(t, 100, b.Capacity(), "never shrinks")
	assert.Equal(t, int64(2), p.Info().Reallocations)

	device.Submit()
	p.CompleteFrame(frame + 3)
	// staging buffers sized for the old capacities are dropped once they come back
	for _, s := range b.free {
		assert.GreaterOrEqual(t, s.buffer.Size(), b.typed.SizeBytes())
	}
}

func TestAppendOffsets(t *testing.T) {
	device, p := newTestPipeline(0)
	b := NewStagedBuffer[vertex](p, "vertices", UsageVertex)

	assert.Equal(t, 0, b.Append([]vertex{{ID: 1}, {ID: 2}}))
	assert.Equal(t, 2, b.Append([]vertex{{ID: 3}}))
	assert.Equal(t, 3, b.Append(nil))

	_, err := p.CommitFrame()
	require.NoError(t, err)
	device.Submit()
	got := ReadBuffer[vertex](device, b.Buffer(), 3)
	assert.Equal(t, []uint32{1, 2, 3}, []uint32{got[0].ID, got[1].ID, got[2].ID})
}

func TestAllocationFailure(t *testing.T) {
	_, p := newTestPipeline(64)
	b := NewStagedBuffer[uint32](p, "values", UsageStorage)

	b.Write(make([]uint32, 100))
	_, err := p.CommitFrame()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllocation))
	assert.Equal(t, StateStaged, b.State(), "data stays staged for a later retry")
	assert.Len(t, b.Pending(), 100)
}

func TestStagingAllocationFailure(t *testing.T) {
	// room for the typed buffer but not for its staging twin
	_, p := newTestPipeline(48)
	b := NewStagedBuffer[uint32](p, "values", UsageStorage)

	b.Write(make([]uint32, 8))
	err := b.Commit(1)
	assert.True(t, errors.Is(err, ErrAllocation))
}

func TestReleaseDropsEverything(t *testing.T) {
	device, p := newTestPipeline(0)
	b := NewStagedBuffer[uint32](p, "values", UsageStorage)
	other := NewStagedBuffer[uint32](p, "other", UsageStorage)

	b.Write([]uint32{1, 2, 3})
	_, err := p.CommitFrame()
	require.NoError(t, err)
	b.Write([]uint32{4})
	require.NotZero(t, device.Allocated())

	b.Release()
	assert.Zero(t, device.Allocated())
	assert.Equal(t, 1, p.Info().Buffers)

	other.Write([]uint32{1})
	p.Release()
	assert.Zero(t, p.Info().Buffers)
}

func TestInfo(t *testing.T) {
	_, p := newTestPipeline(0)
	a := NewStagedBuffer[uint32](p, "a", UsageStorage)
	NewStagedBuffer[vertex](p, "b", UsageVertex)

	a.Write([]uint32{1, 2})
	info := p.Info()
	assert.Equal(t, uint64(1), info.Frame)
	assert.Equal(t, 2, info.Buffers)
	assert.Equal(t, 1, info.Staged)
	assert.Equal(t, 8, info.StagedBytes)

	_, err := p.CommitFrame()
	require.NoError(t, err)
	info = p.Info()
	assert.Equal(t, uint64(2), info.Frame)
	assert.Zero(t, info.Staged)
	assert.Equal(t, int64(8), info.CommittedBytes)
	assert.Equal(t, int64(2), info.TotalAllocations)
	assert.Equal(t, 16, info.AllocatedBytes)
}

func TestMemoryDeviceRejectsDoubleMap(t *testing.T) {
	device := NewMemoryDevice(0)
	buf, err := device.CreateBuffer(BufferDescriptor{Label: "s", Size: 8, Usage: UsageMapWrite | UsageCopySrc})
	require.NoError(t, err)
	_, err = device.MapWrite(buf)
	require.NoError(t, err)
	_, err = device.MapWrite(buf)
	assert.True(t, errors.Is(err, ErrMapped))
	device.Unmap(buf)

	dst, err := device.CreateBuffer(BufferDescriptor{Label: "d", Size: 4, Usage: UsageStorage})
	require.NoError(t, err)
	assert.Panics(t, func() { device.EnqueueCopy(buf, 0, dst, 0, 4) }, "missing copy-dst usage")
}
