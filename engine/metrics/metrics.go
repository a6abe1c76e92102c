// Package metrics exports staging, workspace and meshing statistics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/memmaker/sandvox/engine/render"
	"github.com/memmaker/sandvox/engine/staging"
	"github.com/memmaker/sandvox/engine/util"
	"github.com/memmaker/sandvox/engine/workspace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sandvox"

// Sources are read on every scrape. Nil sources are skipped. Every workspace pool is
// labelled with its name, so names must be unique.
type Sources struct {
	Staging    func() staging.Info
	Workspaces []func() workspace.Info
	Renderer   func() render.Stats
}

// Register adds collectors for the given sources to reg.
func Register(reg prometheus.Registerer, src Sources) error {
	var collectors []prometheus.Collector
	var labels prometheus.Labels
	gauge := func(subsystem, name, help string, fn func() float64) {
		collectors = append(collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, fn))
	}
	counter := func(subsystem, name, help string, fn func() float64) {
		collectors = append(collectors, prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, fn))
	}

	if src.Staging != nil {
		info := src.Staging
		gauge("staging", "frame", "Next frame number to be committed.", func() float64 { return float64(info().Frame) })
		gauge("staging", "buffers", "Staged buffers owned by the pipeline.", func() float64 { return float64(info().Buffers) })
		gauge("staging", "in_flight", "Staging buffers waiting for the GPU to finish their frame.", func() float64 { return float64(info().InFlight) })
		gauge("staging", "free", "Staging buffers ready for reuse.", func() float64 { return float64(info().Free) })
		gauge("staging", "staged_bytes", "Bytes written but not committed yet.", func() float64 { return float64(info().StagedBytes) })
		gauge("staging", "allocated_bytes", "Device bytes held by typed and staging buffers.", func() float64 { return float64(info().AllocatedBytes) })
		counter("staging", "allocations_total", "Device buffer allocations.", func() float64 { return float64(info().TotalAllocations) })
		counter("staging", "reallocations_total", "Typed buffers grown and reallocated.", func() float64 { return float64(info().Reallocations) })
		counter("staging", "committed_bytes_total", "Bytes copied into typed buffers.", func() float64 { return float64(info().CommittedBytes) })
	}
	for _, info := range src.Workspaces {
		labels = prometheus.Labels{"pool": info().Name}
		gauge("workspace", "created", "Workspace instances ever constructed.", func() float64 { return float64(info().Created) })
		gauge("workspace", "free", "Workspace instances in the free list.", func() float64 { return float64(info().Free) })
		counter("workspace", "acquired_total", "Workspace acquisitions.", func() float64 { return float64(info().Acquired) })
	}
	labels = nil
	if src.Renderer != nil {
		stats := src.Renderer
		gauge("mesh", "chunks", "Chunks with a mesh.", func() float64 { return float64(stats().Meshes) })
		counter("mesh", "chunks_meshed_total", "Chunk meshing runs.", func() float64 { return float64(stats().ChunksMeshed) })
		counter("mesh", "empty_chunks_total", "Meshing runs that produced no geometry.", func() float64 { return float64(stats().EmptyChunks) })
		counter("mesh", "quads_total", "Quads emitted by the mesher.", func() float64 { return float64(stats().Quads) })
		counter("mesh", "triangles_total", "Triangles emitted by the mesher.", func() float64 { return float64(stats().Triangles) })
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Serve exposes the registry on addr in a background goroutine.
func Serve(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		util.LogIOInfo("[Metrics] Prometheus /metrics available at " + addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.LogIOError("[Metrics] HTTP server failed: " + err.Error())
		}
	}()
	return server
}
