package world

import (
	"fmt"

	"github.com/memmaker/sandvox/engine/util"
	"github.com/memmaker/sandvox/engine/voxel"
)

// ChunkLoader decides which chunks around a moving center should be loaded, nearest first.
// It is not safe for concurrent use; the render loop owns it and hands positions to workers.
type ChunkLoader struct {
	radius voxel.Int3
	center voxel.Int3
	fresh  bool
	queue  priorityQueue[voxel.Int3]
	queued map[voxel.Int3]*pqItem[voxel.Int3]
}

// NewChunkLoader loads every chunk within radius (per axis, in chunks) of the center.
func NewChunkLoader(radius voxel.Int3) *ChunkLoader {
	return &ChunkLoader{
		radius: radius,
		fresh:  true,
		queued: make(map[voxel.Int3]*pqItem[voxel.Int3]),
	}
}

func (l *ChunkLoader) Radius() voxel.Int3 {
	return l.radius
}

func (l *ChunkLoader) Center() voxel.Int3 {
	return l.center
}

// ChunksInRange lists all chunk positions in the box of the given radius around center, in
// z, y, x order.
func ChunksInRange(center, radius voxel.Int3) []voxel.Int3 {
	result := make([]voxel.Int3, 0, int((2*radius.X+1)*(2*radius.Y+1)*(2*radius.Z+1)))
	for z := -radius.Z; z <= radius.Z; z++ {
		for y := -radius.Y; y <= radius.Y; y++ {
			for x := -radius.X; x <= radius.X; x++ {
				result = append(result, center.Add(voxel.Int3{X: x, Y: y, Z: z}))
			}
		}
	}
	return result
}

func (l *ChunkLoader) InRange(pos voxel.Int3) bool {
	d := pos.Sub(l.center)
	return abs32(d.X) <= l.radius.X && abs32(d.Y) <= l.radius.Y && abs32(d.Z) <= l.radius.Z
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func (l *ChunkLoader) distance(pos voxel.Int3) int {
	d := pos.Sub(l.center)
	return int(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}

// Update moves the center. When it changed (or on the first call) every chunk in range that
// is neither loaded nor queued is queued, queued chunks that left the range are dropped and
// the rest are reprioritized. It returns the number of newly queued chunks.
func (l *ChunkLoader) Update(center voxel.Int3, loaded func(voxel.Int3) bool) int {
	if !l.fresh && center == l.center {
		return 0
	}
	l.center = center
	l.fresh = false

	for pos, item := range l.queued {
		if !l.InRange(pos) {
			l.queue.remove(item)
			delete(l.queued, pos)
			continue
		}
		l.queue.update(item, l.distance(pos))
	}

	added := 0
	for _, pos := range ChunksInRange(center, l.radius) {
		if _, ok := l.queued[pos]; ok || loaded(pos) {
			continue
		}
		l.queued[pos] = l.queue.push(pos, l.distance(pos))
		added++
	}
	if added > 0 {
		util.LogWorldDebug(fmt.Sprintf("[Loader] center %d,%d,%d queued %d chunks (%d pending)", center.X, center.Y, center.Z, added, len(l.queued)))
	}
	return added
}

// Next pops the queued chunk nearest to the center.
func (l *ChunkLoader) Next() (voxel.Int3, bool) {
	if l.queue.Len() == 0 {
		return voxel.Int3{}, false
	}
	item := l.queue.pop()
	delete(l.queued, item.value)
	return item.value, true
}

// Len is the number of queued chunks.
func (l *ChunkLoader) Len() int {
	return l.queue.Len()
}

// OutOfRange lists the given loaded positions that fall outside the current range.
func (l *ChunkLoader) OutOfRange(loaded []voxel.Int3) []voxel.Int3 {
	var result []voxel.Int3
	for _, pos := range loaded {
		if !l.InRange(pos) {
			result = append(result, pos)
		}
	}
	return result
}
