// Package staging uploads CPU-built data into GPU buffers through mapped staging memory.
//
// A StagedBuffer moves through three states. Write and Append stage host data (Idle or
// Committed to Staged). Commit copies the staged data into a mapped staging buffer and
// enqueues a GPU copy into the typed destination (Staged to Committed). Complete, called
// once the GPU finished the frame, recycles the staging memory (Committed to Idle).
package staging

type Usage uint32

const (
	UsageMapWrite Usage = 1 << iota
	UsageCopySrc
	UsageCopyDst
	UsageVertex
	UsageIndex
	UsageStorage
)

func (u Usage) Has(flag Usage) bool {
	return u&flag == flag
}

// CopyBufferAlignment is the granularity of buffer sizes and copy ranges.
const CopyBufferAlignment = 4

func AlignSize(n int) int {
	return (n + CopyBufferAlignment - 1) &^ (CopyBufferAlignment - 1)
}

type BufferDescriptor struct {
	Label string
	Size  int
	Usage Usage
}

type Buffer interface {
	Label() string
	Size() int
	Usage() Usage
}

// Device is the part of a graphics API the pipeline needs.
// CreateBuffer failures caused by exhausted memory must satisfy errors.Is(err, ErrAllocation).
type Device interface {
	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	DestroyBuffer(buf Buffer)
	// MapWrite maps the whole buffer for writing. The slice is only valid until Unmap.
	MapWrite(buf Buffer) ([]byte, error)
	Unmap(buf Buffer)
	// EnqueueCopy records a copy that executes when the GPU processes the frame.
	EnqueueCopy(src Buffer, srcOffset int, dst Buffer, dstOffset int, size int)
}
