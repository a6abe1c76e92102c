package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/faiface/mainthread"
	"github.com/memmaker/sandvox/engine/config"
	"github.com/memmaker/sandvox/engine/metrics"
	"github.com/memmaker/sandvox/engine/staging"
	"github.com/memmaker/sandvox/engine/util"
	"github.com/memmaker/sandvox/engine/voxel"
	"github.com/memmaker/sandvox/game"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	var (
		configPath   = flag.String("config", "", "path to the config file (default: $"+config.EnvConfigPath+" or built-in defaults)")
		headless     = flag.Bool("headless", false, "load and mesh the area around -at without opening a window")
		exportPath   = flag.String("export", "", "write the meshed chunks as .glb (headless only)")
		construction = flag.String("construction", "", "Amulet .construction file to place into the world")
		at           = flag.String("at", "0,0,0", "block position as x,y,z for -construction and the headless center")
		seed         = flag.String("seed", "", "world seed; numbers are used as is, other text is hashed (new worlds only)")
		atlasPath    = flag.String("atlas", "", "write the composed block texture atlas as PNG plus a name index")
	)
	flag.Parse()

	if err := run(*configPath, *headless, *exportPath, *construction, *at, *seed, *atlasPath); err != nil {
		util.LogIOError(err.Error())
		os.Exit(1)
	}
}

func run(configPath string, headless bool, exportPath, construction, at, seedText, atlasPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := util.ConfigureLogging(cfg.Log.Level, cfg.Log.Categories); err != nil {
		return err
	}
	origin, err := parseInt3(at)
	if err != nil {
		return errors.Wrap(err, "-at")
	}
	seed := parseSeed(seedText, cfg.World.Seed)
	if exportPath != "" && !headless {
		return errors.New("-export needs -headless")
	}

	if !headless {
		var viewerErr error
		mainthread.Run(func() {
			mainthread.Call(func() {
				viewerErr = runViewer(cfg, seed, construction, origin, atlasPath)
			})
		})
		return viewerErr
	}

	device := staging.NewMemoryDevice(cfg.Staging.MemoryLimit)
	s, err := newSession(cfg, seed, device)
	if err != nil {
		return err
	}
	stopMetrics := serveMetrics(cfg, s)
	defer stopMetrics()

	if err := writeAtlas(s.atlas, atlasPath); err != nil {
		_ = s.close()
		return err
	}
	center := chunkCenter(s.world, s.spawnPoint(origin.X, origin.Z))
	if construction != "" {
		if err := s.placeConstruction(construction, origin); err != nil {
			_ = s.close()
			return err
		}
		center, _ = s.world.Chunks.ToChunkPos(origin)
	}
	runErr := runHeadless(s, device, center, exportPath)
	closeErr := s.close()
	if runErr != nil {
		return runErr
	}
	return closeErr
}

// parseSeed keeps numeric seeds and hashes everything else.
func parseSeed(text string, fallback int64) int64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return fallback
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n
	}
	return game.SeedFromString(text)
}

func parseInt3(text string) (voxel.Int3, error) {
	parts := strings.Split(text, ",")
	if len(parts) != 3 {
		return voxel.Int3{}, errors.Errorf("expected x,y,z, got %q", text)
	}
	var coords [3]int32
	for i, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 32)
		if err != nil {
			return voxel.Int3{}, errors.Wrapf(err, "invalid coordinate %q", part)
		}
		coords[i] = int32(n)
	}
	return voxel.Int3{X: coords[0], Y: coords[1], Z: coords[2]}, nil
}

// serveMetrics exposes the session's pipeline, workspace and renderer numbers when enabled.
// The returned func shuts the server down.
func serveMetrics(cfg config.Config, s *session) func() {
	if !cfg.Metrics.Enabled {
		return func() {}
	}
	reg := prometheus.NewRegistry()
	err := metrics.Register(reg, metrics.Sources{
		Staging:    s.renderer.Pipeline().Info,
		Workspaces: s.renderer.Pools(),
		Renderer:   s.renderer.Stats,
	})
	if err != nil {
		util.LogIOError("[Metrics] " + err.Error())
		return func() {}
	}
	server := metrics.Serve(cfg.Metrics.Address, reg)
	return func() { shutdown(server) }
}

func shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		util.LogIOError("[Metrics] shutdown: " + err.Error())
	}
}

func writeAtlas(atlas *util.TextureAtlas, path string) error {
	if path == "" {
		return nil
	}
	image, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create atlas image")
	}
	defer image.Close()
	if err := atlas.WritePNG(image); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}

	index, err := os.Create(path + ".index")
	if err != nil {
		return errors.Wrap(err, "failed to create atlas index")
	}
	defer index.Close()
	if err := atlas.WriteIndex(index); err != nil {
		return errors.Wrapf(err, "failed to write %s.index", path)
	}
	util.LogTextureDebug(fmt.Sprintf("[Atlas] wrote %d textures to %s", atlas.Len(), path))
	return nil
}
