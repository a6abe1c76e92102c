package main

import (
	_ "embed"
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/memmaker/sandvox/engine/config"
	"github.com/memmaker/sandvox/engine/glhf"
	"github.com/memmaker/sandvox/engine/util"
	"github.com/memmaker/sandvox/engine/voxel"
)

var (
	//go:embed shader/chunk.vert
	chunkVertexShaderSource string

	//go:embed shader/chunk.frag
	chunkFragmentShaderSource string
)

const (
	uniformProjection = iota
	uniformView
	uniformChunkOrigin
	uniformAtlasColumns
	uniformTileScale
	uniformLightDirection
)

const moveSpeed = 12

type Viewer struct {
	*util.GlApplication
	session *session
	camera  *util.FPSCamera
	shader  *glhf.Shader
	atlas   *glhf.Texture
	arrays  map[voxel.Int3]*glhf.VertexArray
	fences  glhf.FrameFences

	mouseCaptured bool
	firstMouse    bool
	lastMouseX    float64
	lastMouseY    float64
	err           error
}

// runViewer opens the window and drives the render loop. It must run on the main thread.
func runViewer(cfg config.Config, seed int64, construction string, at voxel.Int3, atlasPath string) error {
	window, terminate := util.InitOpenGL(cfg.Window.Title, cfg.Window.Width, cfg.Window.Height, cfg.Window.VSync)
	glApp := &util.GlApplication{
		Window:        window,
		Title:         cfg.Window.Title,
		TerminateFunc: terminate,
		WindowWidth:   cfg.Window.Width,
		WindowHeight:  cfg.Window.Height,
	}

	s, err := newSession(cfg, seed, glhf.NewDevice())
	if err != nil {
		terminate()
		return err
	}
	stopMetrics := serveMetrics(cfg, s)
	defer stopMetrics()
	if err := writeAtlas(s.atlas, atlasPath); err != nil {
		_ = s.close()
		terminate()
		return err
	}

	spawn := s.spawnPoint(0, 0)
	if construction != "" {
		if err := s.placeConstruction(construction, at); err != nil {
			_ = s.close()
			terminate()
			return err
		}
		spawn = s.spawnPoint(at.X, at.Z)
	}

	v := &Viewer{
		GlApplication: glApp,
		session:       s,
		camera:        util.NewFPSCamera(spawn, cfg.Window.Width, cfg.Window.Height, 0.1),
		arrays:        make(map[voxel.Int3]*glhf.VertexArray),
		firstMouse:    true,
	}
	v.atlas = v.loadAtlas()
	v.shader = v.loadChunkShader()
	v.UpdateFunc = v.Update
	v.DrawFunc = v.Draw
	v.KeyHandler = v.handleKeyEvents
	v.MousePosHandler = v.handleMousePosEvents
	v.captureMouse()

	// GL objects have to go before the context does
	v.TerminateFunc = func() {
		v.fences.Release()
		if err := s.close(); err != nil && v.err == nil {
			v.err = err
		}
		terminate()
	}
	v.Run()
	return v.err
}

func (v *Viewer) loadAtlas() *glhf.Texture {
	atlas := v.session.atlas
	if atlas.Len() == 0 {
		util.LogTextureError("[Atlas] no block textures, drawing everything in one colour")
		return glhf.NewSolidColorTexture([3]uint8{200, 0, 200})
	}
	img := atlas.Image()
	texture := glhf.NewTexture(img.Rect.Dx(), img.Rect.Dy(), false, img.Pix)
	texture.SetAtlasItemSize(atlas.TileSize(), atlas.TileSize())
	util.LogTextureDebug(fmt.Sprintf("[Atlas] %d textures in a %dx%d texture", atlas.Len(), texture.Width(), texture.Height()))
	return texture
}

func (v *Viewer) loadChunkShader() *glhf.Shader {
	var (
		vertexFormat = glhf.AttrFormat{
			{Name: "position", Type: glhf.Vec4},
			{Name: "normal", Type: glhf.Vec4},
			{Name: "uv", Type: glhf.Vec2},
			{Name: "textureID", Type: glhf.UInt},
		}
		uniformFormat = glhf.AttrFormat{
			uniformProjection:     {Name: "projection", Type: glhf.Mat4},
			uniformView:           {Name: "view", Type: glhf.Mat4},
			uniformChunkOrigin:    {Name: "chunkOrigin", Type: glhf.Vec3},
			uniformAtlasColumns:   {Name: "atlasColumns", Type: glhf.Int},
			uniformTileScale:      {Name: "tileScale", Type: glhf.Vec2},
			uniformLightDirection: {Name: "lightDirection", Type: glhf.Vec3},
		}
	)
	shader, err := glhf.NewShader(vertexFormat, uniformFormat, chunkVertexShaderSource, chunkFragmentShaderSource)
	if err != nil {
		panic(err)
	}

	shader.Begin()
	shader.SetUniformAttr(uniformAtlasColumns, int32(v.atlas.AtlasColumns()))
	shader.SetUniformAttr(uniformTileScale, v.atlas.TileScale())
	shader.SetUniformAttr(uniformLightDirection, mgl32.Vec3{-0.4, -1, -0.25}.Normalize())
	shader.End()
	return shader
}

func (v *Viewer) Update(elapsed float64) {
	if v.err != nil {
		return
	}
	if err := v.session.failed(); err != nil {
		v.fail(err)
		return
	}

	moved, direction := v.pollInput()
	if moved {
		v.camera.MoveInDirection(float32(elapsed)*moveSpeed, direction)
	}
	if v.Window.GetKey(glfw.KeySpace) == glfw.Press {
		v.camera.SetPosition(v.camera.GetPosition().Add(v.camera.UpDown(float32(elapsed) * moveSpeed)))
	}
	if v.Window.GetKey(glfw.KeyLeftShift) == glfw.Press {
		v.camera.SetPosition(v.camera.GetPosition().Add(v.camera.UpDown(-float32(elapsed) * moveSpeed)))
	}

	if err := v.session.update(chunkCenter(v.session.world, v.camera.GetPosition())); err != nil {
		v.fail(err)
	}
}

func (v *Viewer) fail(err error) {
	util.LogIOError(err.Error())
	v.err = err
	v.Window.SetShouldClose(true)
}

// Draw recycles finished frames, uploads this frame's staged meshes and draws every visible
// chunk. Copies and draws go into the same command stream, so the draws see the new data.
func (v *Viewer) Draw(elapsed float64) {
	renderer := v.session.renderer
	v.fences.Poll(renderer.CompleteFrame)

	stop := v.session.timer.Start("commit frame")
	frame, err := renderer.CommitFrame()
	stop()
	if err != nil {
		v.fail(err)
		return
	}

	frustum := util.GetFrustum(v.camera)
	size := v.session.world.Chunks.Shape().Size().ToInt3().ToVec3()

	v.shader.Begin()
	v.atlas.Begin()
	v.shader.SetUniformAttr(uniformProjection, v.camera.GetProjectionMatrix())
	v.shader.SetUniformAttr(uniformView, v.camera.GetViewMatrix())

	seen := make(map[voxel.Int3]struct{}, len(v.arrays))
	for _, mesh := range renderer.Meshes() {
		seen[mesh.Position] = struct{}{}
		if mesh.IndexCount() == 0 {
			continue
		}
		origin := v.session.world.Chunks.ChunkOrigin(mesh.Position)
		if !frustum.ContainsBox(origin, origin.Add(size)) {
			continue
		}
		array, ok := v.arrays[mesh.Position]
		if !ok {
			array = glhf.NewVertexArray(v.shader, voxel.VertexSize)
			v.arrays[mesh.Position] = array
		}
		array.Attach(mesh.Vertices.Buffer(), mesh.Indices.Buffer())

		v.shader.SetUniformAttr(uniformChunkOrigin, origin)
		array.Begin()
		array.Draw(mesh.IndexCount())
		array.End()
	}
	v.atlas.End()
	v.shader.End()

	for pos := range v.arrays {
		if _, ok := seen[pos]; !ok {
			delete(v.arrays, pos)
		}
	}
	v.fences.Insert(frame)
	glhf.CheckError("draw chunks")
}

func (v *Viewer) pollInput() (bool, [2]int) {
	moved := false
	direction := [2]int{0, 0}
	if v.Window.GetKey(glfw.KeyW) == glfw.Press {
		direction[1]++
		moved = true
	}
	if v.Window.GetKey(glfw.KeyS) == glfw.Press {
		direction[1]--
		moved = true
	}
	if v.Window.GetKey(glfw.KeyA) == glfw.Press {
		direction[0]--
		moved = true
	}
	if v.Window.GetKey(glfw.KeyD) == glfw.Press {
		direction[0]++
		moved = true
	}
	return moved, direction
}

func (v *Viewer) handleKeyEvents(key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	switch key {
	case glfw.KeyEscape:
		v.Window.SetShouldClose(true)
	case glfw.KeyTab:
		if v.mouseCaptured {
			v.freeMouse()
		} else {
			v.captureMouse()
		}
	case glfw.KeyF5:
		saved, err := v.session.world.Save(v.session.ctx)
		if err != nil {
			util.LogIOError("[World] save failed: " + err.Error())
			return
		}
		util.LogWorldInfo(fmt.Sprintf("[World] saved %d chunks", saved))
	case glfw.KeyF3:
		pos := v.camera.GetPosition()
		info := v.session.renderer.Pipeline().Info()
		util.LogStagingInfo(fmt.Sprintf("[Viewer] at %.1f,%.1f,%.1f (%s), frame %d, %d buffers, %d in flight, %d staged bytes",
			pos.X(), pos.Y(), pos.Z(), v.camera.DebugAim(), info.Frame, info.Buffers, info.InFlight, info.StagedBytes))
		util.LogMeshInfo(v.session.timer.String())
	}
}

func (v *Viewer) handleMousePosEvents(xpos float64, ypos float64) {
	if !v.mouseCaptured {
		return
	}
	if v.firstMouse {
		v.lastMouseX, v.lastMouseY = xpos, ypos
		v.firstMouse = false
		return
	}
	dx, dy := xpos-v.lastMouseX, ypos-v.lastMouseY
	v.lastMouseX, v.lastMouseY = xpos, ypos
	v.camera.ChangeAngles(float32(dx), float32(dy))
}

func (v *Viewer) captureMouse() {
	v.Window.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
	if glfw.RawMouseMotionSupported() {
		v.Window.SetInputMode(glfw.RawMouseMotion, glfw.True)
	}
	v.mouseCaptured = true
	v.firstMouse = true
}

func (v *Viewer) freeMouse() {
	v.Window.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
	if glfw.RawMouseMotionSupported() {
		v.Window.SetInputMode(glfw.RawMouseMotion, glfw.False)
	}
	v.mouseCaptured = false
}
