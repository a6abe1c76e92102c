package game

import (
	"context"
	"fmt"
	"sync"

	"github.com/memmaker/sandvox/engine/util"
	"github.com/memmaker/sandvox/engine/voxel"
	"github.com/memmaker/sandvox/engine/world"
	"github.com/pkg/errors"
)

// World keeps the loaded chunks. Chunks come from the world file when stored there and from
// the generator otherwise. Only chunks changed after loading are written back.
type World struct {
	Chunks *voxel.ChunkMap[Block]
	Types  *BlockTypes

	file      *world.File
	generator Generator
	air       Block

	mu       sync.Mutex
	modified map[voxel.Int3]struct{}
}

func NewWorld(file *world.File, shape voxel.Shape, types *BlockTypes, generator Generator) (*World, error) {
	air, ok := types.Lookup("air")
	if !ok {
		return nil, errors.New("block type air is not defined")
	}
	return &World{
		Chunks:    voxel.NewChunkMap(shape, Block{Type: air}),
		Types:     types,
		file:      file,
		generator: generator,
		air:       Block{Type: air},
		modified:  make(map[voxel.Int3]struct{}),
	}, nil
}

func (w *World) Air() Block {
	return w.air
}

func (w *World) IsLoaded(pos voxel.Int3) bool {
	return w.Chunks.ChunkExists(pos)
}

func blockID(b Block) uint16 {
	return uint16(b.Type)
}

func (w *World) blockFromID(id uint16) Block {
	if int(id) >= w.Types.Len() {
		return w.air
	}
	return Block{Type: BlockType(id)}
}

// LoadChunk returns the chunk at pos, reading or generating it when it is not loaded yet.
func (w *World) LoadChunk(ctx context.Context, pos voxel.Int3) (*voxel.Chunk[Block], error) {
	if chunk := w.Chunks.GetChunk(pos); chunk != nil {
		return chunk, nil
	}
	chunk := w.Chunks.NewChunk()
	stored, err := world.LoadChunkData(ctx, w.file, pos, chunk, w.blockFromID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load chunk %d,%d,%d", pos.X, pos.Y, pos.Z)
	}
	if !stored && w.generator != nil && !w.generator.Discard(pos) {
		w.generator.Generate(pos, chunk)
	}
	w.Chunks.Insert(pos, chunk)
	return chunk, nil
}

// SetBlock loads the containing chunk if needed and marks it for saving.
func (w *World) SetBlock(ctx context.Context, pos voxel.Int3, b Block) error {
	chunkPos, _ := w.Chunks.ToChunkPos(pos)
	if _, err := w.LoadChunk(ctx, chunkPos); err != nil {
		return err
	}
	if !w.Chunks.SetBlock(pos, b) {
		return errors.Errorf("chunk %d,%d,%d was unloaded", chunkPos.X, chunkPos.Y, chunkPos.Z)
	}
	w.mu.Lock()
	w.modified[chunkPos] = struct{}{}
	w.mu.Unlock()
	return nil
}

// GetBlock returns air for positions in chunks that are not loaded.
func (w *World) GetBlock(pos voxel.Int3) Block {
	if b := w.Chunks.GetGlobalBlock(pos); b != nil {
		return *b
	}
	return w.air
}

func (w *World) takeModified(pos voxel.Int3) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.modified[pos]
	delete(w.modified, pos)
	return ok
}

func (w *World) saveChunk(ctx context.Context, pos voxel.Int3) error {
	chunk := w.Chunks.GetChunk(pos)
	if chunk == nil {
		return nil
	}
	return world.SaveChunkData(ctx, w.file, pos, chunk, blockID)
}

// Unload saves the chunk when it was modified and drops it.
func (w *World) Unload(ctx context.Context, pos voxel.Int3) error {
	if w.takeModified(pos) {
		if err := w.saveChunk(ctx, pos); err != nil {
			w.mu.Lock()
			w.modified[pos] = struct{}{}
			w.mu.Unlock()
			return err
		}
	}
	w.Chunks.Remove(pos)
	return nil
}

// Save writes all modified chunks and returns how many were written.
func (w *World) Save(ctx context.Context) (int, error) {
	w.mu.Lock()
	positions := make([]voxel.Int3, 0, len(w.modified))
	for pos := range w.modified {
		positions = append(positions, pos)
	}
	w.mu.Unlock()

	saved := 0
	for _, pos := range positions {
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		if !w.takeModified(pos) {
			continue
		}
		if err := w.saveChunk(ctx, pos); err != nil {
			w.mu.Lock()
			w.modified[pos] = struct{}{}
			w.mu.Unlock()
			return saved, err
		}
		saved++
	}
	if saved > 0 {
		util.LogWorldInfo(fmt.Sprintf("[World] saved %d chunks", saved))
	}
	return saved, nil
}

// Modified is the number of chunks waiting to be saved.
func (w *World) Modified() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.modified)
}
