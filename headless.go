package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/memmaker/sandvox/engine/staging"
	"github.com/memmaker/sandvox/engine/util"
	"github.com/memmaker/sandvox/engine/voxel"
	"github.com/pkg/errors"
)

// runHeadless loads and meshes everything around center on a host memory device. Every
// committed frame is executed right away, which stands in for the GPU.
func runHeadless(s *session, device *staging.MemoryDevice, center voxel.Int3, exportPath string) error {
	start := time.Now()
	frames := 0
	for {
		if err := s.failed(); err != nil {
			return err
		}
		if err := s.update(center); err != nil {
			return err
		}
		frame, err := s.renderer.CommitFrame()
		if err != nil {
			return err
		}
		device.Submit()
		s.renderer.CompleteFrame(frame)
		frames++

		if s.idle() {
			break
		}
		time.Sleep(time.Millisecond)
	}
	// the last meshes were staged after the final commit
	frame, err := s.renderer.CommitFrame()
	if err != nil {
		return err
	}
	device.Submit()
	s.renderer.CompleteFrame(frame)

	stats := s.renderer.Stats()
	info := s.renderer.Pipeline().Info()
	util.LogMeshInfo(fmt.Sprintf("[Headless] %d chunks in %d frames (%s): %d meshes, %d quads, %d triangles, %d empty",
		s.world.Chunks.Len(), frames+1, time.Since(start).Round(time.Millisecond), stats.Meshes, stats.Quads, stats.Triangles, stats.EmptyChunks))
	util.LogStagingInfo(fmt.Sprintf("[Headless] %s on the device, %s committed in %d copies, %d allocations, %d reallocations",
		humanize.Bytes(uint64(device.Allocated())), humanize.Bytes(uint64(info.CommittedBytes)), device.ExecutedCopies(), info.TotalAllocations, info.Reallocations))

	if exportPath == "" {
		return nil
	}
	return exportMeshes(s, device, exportPath)
}

// exportMeshes reads the committed chunk meshes back from the device and writes them in
// world space.
func exportMeshes(s *session, device *staging.MemoryDevice, path string) error {
	var meshes []util.ExportMesh
	for _, mesh := range s.renderer.Meshes() {
		if mesh.IndexCount() == 0 {
			continue
		}
		vertices := staging.ReadBuffer[voxel.Vertex](device, mesh.Vertices.Buffer(), mesh.Vertices.Len())
		indices := staging.ReadBuffer[uint32](device, mesh.Indices.Buffer(), mesh.Indices.Len())
		origin := s.world.Chunks.ChunkOrigin(mesh.Position)

		export := util.ExportMesh{
			Name:      fmt.Sprintf("chunk %d,%d,%d", mesh.Position.X, mesh.Position.Y, mesh.Position.Z),
			Positions: make([][3]float32, len(vertices)),
			Normals:   make([][3]float32, len(vertices)),
			UVs:       make([][2]float32, len(vertices)),
			Indices:   indices,
		}
		for i, v := range vertices {
			p := v.Position.Vec3().Add(origin)
			export.Positions[i] = [3]float32{p.X(), p.Y(), p.Z()}
			export.Normals[i] = [3]float32{v.Normal.X(), v.Normal.Y(), v.Normal.Z()}
			export.UVs[i] = [2]float32{v.UV.X(), v.UV.Y()}
		}
		meshes = append(meshes, export)
	}
	if len(meshes) == 0 {
		return errors.New("nothing to export, all chunks are empty")
	}
	if err := util.ExportGLB(path, meshes); err != nil {
		return errors.Wrapf(err, "failed to export %s", path)
	}
	util.LogIOInfo(fmt.Sprintf("[Export] wrote %d chunk meshes to %s", len(meshes), path))
	return nil
}
