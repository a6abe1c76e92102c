package main

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/memmaker/sandvox/engine/config"
	"github.com/memmaker/sandvox/engine/render"
	"github.com/memmaker/sandvox/engine/staging"
	"github.com/memmaker/sandvox/engine/util"
	"github.com/memmaker/sandvox/engine/voxel"
	"github.com/memmaker/sandvox/engine/world"
	"github.com/memmaker/sandvox/game"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type jobKind int

const (
	loadJob jobKind = iota
	meshJob
)

type chunkJob struct {
	kind jobKind
	pos  voxel.Int3
}

// session is everything between the world file and the staged chunk meshes. The render loop
// owns the loader and schedules; loading and meshing run on the worker goroutines.
type session struct {
	cfg      config.Config
	file     *world.File
	world    *game.World
	atlas    *util.TextureAtlas
	loader   *world.ChunkLoader
	renderer *render.ChunkRenderer[game.Block, *game.BlockTypes]
	terrain  *game.TerrainGenerator
	timer    *util.Timer

	jobs    chan chunkJob
	workers *errgroup.Group
	// done once a worker failed or the session is closing
	workerCtx context.Context
	ctx       context.Context
	cancel    context.CancelFunc
	busy      atomic.Int64

	mu      sync.Mutex
	loading map[voxel.Int3]struct{}

	meshBacklog []voxel.Int3
	center      voxel.Int3
	started     bool
}

func newSession(cfg config.Config, seed int64, device staging.Device) (*session, error) {
	file, err := world.OpenOrCreate(cfg.World.Path, seed, cfg.Chunk.Shape, cfg.Chunk.Side)
	if err != nil {
		return nil, err
	}
	// an existing world keeps the chunk layout it was written with
	meta := file.Metadata()
	if meta.Shape != cfg.Chunk.Shape || meta.Side != cfg.Chunk.Side {
		util.LogWorldInfo(fmt.Sprintf("[World] using stored chunk shape %s/%d instead of %s/%d", meta.Shape, meta.Side, cfg.Chunk.Shape, cfg.Chunk.Side))
		cfg.Chunk.Shape, cfg.Chunk.Side = meta.Shape, meta.Side
	}

	s, err := buildSession(cfg, file, device)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return s, nil
}

func buildSession(cfg config.Config, file *world.File, device staging.Device) (*session, error) {
	atlas := util.NewTextureAtlas(cfg.Blocks.TileSize, 16)
	types, err := game.LoadBlockTypes(cfg.Blocks.Definitions, cfg.Blocks.Textures, atlas)
	if err != nil {
		return nil, err
	}
	generator, err := game.NewTerrainGenerator(file.Seed(), types)
	if err != nil {
		return nil, err
	}
	w, err := game.NewWorld(file, cfg.ChunkShape(), types, generator)
	if err != nil {
		return nil, err
	}
	mesher, ok := voxel.NewMesher[game.Block, *game.BlockTypes](cfg.Mesher.Strategy)
	if !ok {
		return nil, errors.Errorf("unknown mesher %q", cfg.Mesher.Strategy)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		cfg:      cfg,
		file:     file,
		world:    w,
		atlas:    atlas,
		loader:   world.NewChunkLoader(voxel.Int3{X: int32(cfg.World.Radius), Y: int32(cfg.World.Height), Z: int32(cfg.World.Radius)}),
		renderer: render.NewChunkRenderer(mesher, staging.NewPipeline(device)),
		terrain:  generator,
		timer:    util.NewTimer(),
		jobs:     make(chan chunkJob, 4*cfg.Mesher.Workers),
		ctx:      ctx,
		cancel:   cancel,
		loading:  make(map[voxel.Int3]struct{}),
	}
	s.startWorkers()
	return s, nil
}

func (s *session) startWorkers() {
	group, ctx := errgroup.WithContext(s.ctx)
	for i := 0; i < s.cfg.Mesher.Workers; i++ {
		group.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case job, ok := <-s.jobs:
					if !ok {
						return nil
					}
					err := s.run(ctx, job)
					s.busy.Add(-1)
					if err != nil {
						return err
					}
				}
			}
		})
	}
	s.workers = group
	s.workerCtx = ctx
	util.LogMeshInfo(fmt.Sprintf("[Mesher] %d workers, %s meshing", s.cfg.Mesher.Workers, s.cfg.Mesher.Strategy))
}

func (s *session) run(ctx context.Context, job chunkJob) error {
	switch job.kind {
	case loadJob:
		defer s.doneLoading(job.pos)
		stop := s.timer.Start("load chunk")
		_, err := s.world.LoadChunk(ctx, job.pos)
		stop()
		return err
	case meshJob:
		chunk := s.world.Chunks.GetChunk(job.pos)
		if chunk == nil {
			return nil
		}
		stop := s.timer.Start("mesh chunk")
		s.renderer.MeshChunk(job.pos, chunk, s.world.Types)
		stop()
	}
	return nil
}

func (s *session) isLoading(pos voxel.Int3) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.loading[pos]
	return ok
}

func (s *session) doneLoading(pos voxel.Int3) {
	s.mu.Lock()
	delete(s.loading, pos)
	s.mu.Unlock()
}

func (s *session) known(pos voxel.Int3) bool {
	return s.world.IsLoaded(pos) || s.isLoading(pos)
}

func (s *session) trySend(job chunkJob) bool {
	s.busy.Add(1)
	select {
	case s.jobs <- job:
		return true
	default:
		s.busy.Add(-1)
		return false
	}
}

// update runs once per frame on the render thread: it follows the center, unloads chunks that
// left the range and hands queued loads and dirty chunks to the workers.
func (s *session) update(center voxel.Int3) error {
	if !s.started || center != s.center {
		s.loader.Update(center, s.known)
		s.center, s.started = center, true
		for _, pos := range s.loader.OutOfRange(s.world.Chunks.Positions()) {
			if s.isLoading(pos) {
				continue
			}
			if err := s.world.Unload(s.ctx, pos); err != nil {
				return err
			}
			s.renderer.Remove(pos)
		}
	}

	// a mesh job can finish after its chunk was unloaded
	for _, mesh := range s.renderer.Meshes() {
		if !s.world.IsLoaded(mesh.Position) {
			s.renderer.Remove(mesh.Position)
		}
	}

	s.meshBacklog = append(s.meshBacklog, s.world.Chunks.TakeDirty()...)
	sent := 0
	for _, pos := range s.meshBacklog {
		if !s.trySend(chunkJob{kind: meshJob, pos: pos}) {
			break
		}
		sent++
	}
	s.meshBacklog = s.meshBacklog[sent:]

	for len(s.jobs) < cap(s.jobs) {
		pos, ok := s.loader.Next()
		if !ok {
			break
		}
		s.mu.Lock()
		s.loading[pos] = struct{}{}
		s.mu.Unlock()
		if !s.trySend(chunkJob{kind: loadJob, pos: pos}) {
			s.doneLoading(pos)
			break
		}
	}
	return nil
}

// failed returns the first worker error once the workers stopped because of it.
func (s *session) failed() error {
	if s.workerCtx.Err() == nil || s.ctx.Err() != nil {
		return nil
	}
	return s.workers.Wait()
}

// idle reports whether every queued chunk is loaded and meshed.
func (s *session) idle() bool {
	return s.loader.Len() == 0 && len(s.meshBacklog) == 0 && s.busy.Load() == 0 && !s.hasDirty()
}

func (s *session) hasDirty() bool {
	dirty := s.world.Chunks.TakeDirty()
	s.meshBacklog = append(s.meshBacklog, dirty...)
	return len(dirty) > 0
}

// placeConstruction loads an Amulet construction into the world at origin.
func (s *session) placeConstruction(path string, origin voxel.Int3) error {
	c, err := game.LoadConstruction(path)
	if err != nil {
		return err
	}
	stats, err := s.world.Place(s.ctx, c, origin)
	if err != nil {
		return err
	}
	util.LogWorldInfo(fmt.Sprintf("[Construction] placed %d blocks at %d,%d,%d, %d without a block type", stats.Placed, origin.X, origin.Y, origin.Z, stats.Unknown))
	return nil
}

// close stops the workers, saves modified chunks and closes the world file.
func (s *session) close() error {
	s.cancel()
	workerErr := s.workers.Wait()
	s.renderer.Release()

	saved, saveErr := s.world.Save(context.Background())
	if saveErr == nil {
		util.LogWorldInfo(fmt.Sprintf("[World] %d chunks written on exit", saved))
	}
	closeErr := s.file.Close()
	util.LogMeshInfo(s.timer.String())
	for _, err := range []error{workerErr, saveErr, closeErr} {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

// spawnPoint is a few blocks above the terrain at x, z.
func (s *session) spawnPoint(x, z int32) mgl32.Vec3 {
	return mgl32.Vec3{float32(x) + 0.5, float32(s.terrain.SurfaceHeight(x, z)) + 3, float32(z) + 0.5}
}

func chunkCenter(w *game.World, pos mgl32.Vec3) voxel.Int3 {
	block := voxel.Int3{
		X: int32(math.Floor(float64(pos.X()))),
		Y: int32(math.Floor(float64(pos.Y()))),
		Z: int32(math.Floor(float64(pos.Z()))),
	}
	chunkPos, _ := w.Chunks.ToChunkPos(block)
	return chunkPos
}
