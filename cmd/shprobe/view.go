package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/harmonica"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/spf13/cobra"
	"github.com/taigrr/shprobe/pkg/cubemap"
	"github.com/taigrr/shprobe/pkg/math3d"
	"github.com/taigrr/shprobe/pkg/models"
	"github.com/taigrr/shprobe/pkg/probe"
	"github.com/taigrr/shprobe/pkg/render"
)

// Viewer controls:
//
//	W/A/S/D     - Move the sphere in the ground plane, relative to the camera
//	Q/E         - Move the sphere down/up
//	Mouse drag  - Orbit the camera
//	Scroll, +/- - Zoom
//	M           - Cycle update policy (every frame, every 10 frames, on move)
//	C           - Toggle clamp/reject outside the volume
//	G           - Toggle spring smoothing
//	P           - Toggle probe markers
//	B           - Toggle volume bounds
//	L           - Toggle live capture (with --scene)
//	R           - Reset sphere and camera
//	?           - Toggle HUD overlay
//	Esc         - Quit

type viewOptions struct {
	scenePath string
	fps       int
	policy    string
	noSmooth  bool
	exposure  float64
	live      bool
	liveRes   int
}

func newViewCmd() *cobra.Command {
	opts := &viewOptions{}

	cmd := &cobra.Command{
		Use:   "view <volume>",
		Short: "Fly a probe-lit sphere through a volume in the terminal",
		Long: "View draws a sphere lit only by the volume's interpolated probes. " +
			"Move it with WASD and QE, orbit with the mouse, Esc quits.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd.Context(), args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.scenePath, "scene", "", "glTF scene drawn around the sphere")
	f.IntVar(&opts.fps, "fps", 60, "Target FPS")
	f.StringVar(&opts.policy, "policy", "frame", "Update policy: frame, frames:N or move:DIST")
	f.BoolVar(&opts.noSmooth, "no-smooth", false, "Snap to each sample instead of easing")
	f.Float64Var(&opts.exposure, "exposure", 1, "Display exposure")
	f.BoolVar(&opts.live, "live", false, "Light the sphere from live captures of --scene instead of the volume")
	f.IntVar(&opts.liveRes, "live-res", 16, "Face size of live captures, a power of two")

	return cmd
}

// MotionAxis tracks position and velocity along one axis, with the velocity
// decaying to rest on a spring.
type MotionAxis struct {
	Position  float64
	Velocity  float64
	velSpring harmonica.Spring
	velAccel  float64
}

// NewMotionAxis creates a critically damped axis starting at pos.
func NewMotionAxis(fps int, pos float64) MotionAxis {
	return MotionAxis{
		Position:  pos,
		velSpring: harmonica.NewSpring(harmonica.FPS(fps), 4.0, 1.0),
	}
}

// Update applies the velocity and eases it toward zero.
func (a *MotionAxis) Update() {
	a.Position += a.Velocity
	a.Velocity, a.velAccel = a.velSpring.Update(a.Velocity, a.velAccel, 0)
}

// Motion moves the lit sphere with spring-damped velocity, confined to a box.
type Motion struct {
	X, Y, Z MotionAxis
	home    math3d.Vec3
	limits  probe.AABB
	fps     int
}

// NewMotion places the object at home. Positions are kept inside limits.
func NewMotion(fps int, home math3d.Vec3, limits probe.AABB) *Motion {
	m := &Motion{home: home, limits: limits, fps: fps}
	m.Reset()
	return m
}

func (m *Motion) Reset() {
	m.X = NewMotionAxis(m.fps, m.home.X)
	m.Y = NewMotionAxis(m.fps, m.home.Y)
	m.Z = NewMotionAxis(m.fps, m.home.Z)
}

func (m *Motion) ApplyImpulse(d math3d.Vec3) {
	m.X.Velocity += d.X
	m.Y.Velocity += d.Y
	m.Z.Velocity += d.Z
}

func (m *Motion) Update() {
	m.X.Update()
	m.Y.Update()
	m.Z.Update()
	p := m.limits.Clamp(m.Position())
	m.X.Position, m.Y.Position, m.Z.Position = p.X, p.Y, p.Z
}

func (m *Motion) Position() math3d.Vec3 {
	return math3d.V3(m.X.Position, m.Y.Position, m.Z.Position)
}

// policyChoice is an update policy the viewer can cycle through.
type policyChoice struct {
	name   string
	policy probe.UpdatePolicy
}

// parsePolicy reads frame, frames:N or move:DIST.
func parsePolicy(s string) (policyChoice, error) {
	kind, arg, hasArg := strings.Cut(s, ":")
	switch kind {
	case "frame":
		return policyChoice{"every frame", probe.UpdateEveryFrame()}, nil
	case "frames":
		n, err := strconv.Atoi(arg)
		if !hasArg || err != nil || n < 1 {
			return policyChoice{}, fmt.Errorf("policy %q: want frames:N with N >= 1", s)
		}
		return policyChoice{fmt.Sprintf("every %d frames", n), probe.UpdateEveryNFrames(n)}, nil
	case "move":
		d, err := strconv.ParseFloat(arg, 64)
		if !hasArg || err != nil || d < 0 {
			return policyChoice{}, fmt.Errorf("policy %q: want move:DIST with DIST >= 0", s)
		}
		return policyChoice{fmt.Sprintf("on move > %g", d), probe.UpdateOnMove(d)}, nil
	}
	return policyChoice{}, fmt.Errorf("unknown policy %q (frame, frames:N, move:DIST)", s)
}

// cyclePolicies lists the policies M cycles through, starting with initial.
func cyclePolicies(initial policyChoice, density float64) []policyChoice {
	out := []policyChoice{initial}
	for _, c := range []policyChoice{
		{"every frame", probe.UpdateEveryFrame()},
		{"every 10 frames", probe.UpdateEveryNFrames(10)},
		{fmt.Sprintf("on move > %g", density/2), probe.UpdateOnMove(density / 2)},
	} {
		if c.name != initial.name {
			out = append(out, c)
		}
	}
	return out
}

// probeObject names the lit sphere in the scene so live captures hide it.
const probeObject = "probe"

// liveSource is what a live follower captures with.
type liveSource struct {
	renderer cubemap.SceneRenderer
	params   cubemap.CaptureParams
}

// ViewState holds the toggles of the viewer (UI state, not library code).
type ViewState struct {
	Policies    []policyChoice
	PolicyIndex int
	Reject      bool
	Smooth      bool
	ShowProbes  bool
	ShowBounds  bool
	ShowHUD     bool

	Live    *liveSource // nil without a scene
	UseLive bool
}

func (v *ViewState) Policy() policyChoice {
	return v.Policies[v.PolicyIndex]
}

// Source names where the sphere's lighting comes from.
func (v *ViewState) Source() string {
	if v.UseLive && v.Live != nil {
		return "live"
	}
	return "volume"
}

// NewFollower builds a follower for the current toggles.
func (v *ViewState) NewFollower(vol *probe.Volume, fps int) (*probe.Follower, error) {
	opts := []probe.FollowerOption{}
	if v.Reject {
		opts = append(opts, probe.WithLookup(probe.Lookup{Policy: probe.PolicyReject}))
	}
	if v.Smooth {
		opts = append(opts, probe.WithSmoothing(fps, 6.0, 1.0))
	}
	if v.Source() == "live" {
		return probe.NewLiveFollower(v.Live.renderer, probeObject, v.Live.params, v.Policy().policy, opts...)
	}
	return probe.NewFollower(vol, v.Policy().policy, opts...), nil
}

// HUD renders an overlay with volume info and viewer state.
type HUD struct {
	filename   string
	probeCount int
	fps        float64
	fpsFrames  int
	fpsTime    time.Time
	queries    int
}

func NewHUD(filename string, probeCount int) *HUD {
	return &HUD{
		filename:   filename,
		probeCount: probeCount,
		fpsTime:    time.Now(),
	}
}

// UpdateFPS updates the FPS counter (call once per frame)
func (h *HUD) UpdateFPS() {
	h.fpsFrames++
	elapsed := time.Since(h.fpsTime)
	if elapsed >= time.Second {
		h.fps = float64(h.fpsFrames) / elapsed.Seconds()
		h.fpsFrames = 0
		h.fpsTime = time.Now()
	}
}

// Render draws the HUD overlay directly to the terminal
func (h *HUD) Render(width, height int, state *ViewState, pos math3d.Vec3, inside bool, ambient math3d.RGB) {
	const (
		reset     = "\x1b[0m"
		bold      = "\x1b[1m"
		dim       = "\x1b[2m"
		bgBlack   = "\x1b[40m"
		fgWhite   = "\x1b[97m"
		fgGreen   = "\x1b[92m"
		fgYellow  = "\x1b[93m"
		fgRed     = "\x1b[91m"
		fgCyan    = "\x1b[96m"
		clearLine = "\x1b[2K"
	)

	moveTo := func(row, col int) string {
		return fmt.Sprintf("\x1b[%d;%dH", row, col)
	}

	// Always clear the HUD rows (so toggling off works)
	fmt.Print(moveTo(1, 1) + clearLine)
	fmt.Print(moveTo(height, 1) + clearLine)

	if !state.ShowHUD {
		return
	}

	// Top left: FPS
	fmt.Printf("%s%s%s %.0f FPS %s", moveTo(1, 1), bgBlack, fgGreen, h.fps, reset)

	// Top middle: filename
	titleStr := fmt.Sprintf("%s%s%s %s %s", bold, bgBlack, fgWhite, h.filename, reset)
	titleCol := max((width-len(h.filename)-2)/2, 1)
	fmt.Print(moveTo(1, titleCol) + titleStr)

	// Top right: probe count and queries
	countStr := fmt.Sprintf(" %d probes, %d queries ", h.probeCount, h.queries)
	countCol := max(width-len(countStr), 1)
	fmt.Print(moveTo(1, countCol) + bgBlack + fgCyan + bold + countStr + reset)

	// Bottom: position, policy and toggles
	where := fgGreen + "inside"
	if !inside {
		where = fgRed + "outside"
	}
	bounds := "clamp"
	if state.Reject {
		bounds = "reject"
	}
	smooth := "[ ]"
	if state.Smooth {
		smooth = "[✓]"
	}
	status := fmt.Sprintf("%s%s %s %s%s %s| %s | %s | %s | %s spring | L00 %.3f %.3f %.3f %s",
		bgBlack, fgWhite, fmtVec(pos), where, fgWhite, dim,
		state.Source(), state.Policy().name, bounds, smooth, ambient.R, ambient.G, ambient.B, reset)
	fmt.Print(moveTo(height, 1) + status)

	hint := fmt.Sprintf("%s%s%s M/C/G/L/P/B %s", bgBlack, dim, fgYellow, reset)
	fmt.Print(moveTo(height, max(width-14, 1)) + hint)
}

func runView(ctx context.Context, volumePath string, opts *viewOptions) error {
	if opts.fps < 1 {
		return fmt.Errorf("--fps %d: must be positive", opts.fps)
	}
	vol, err := probe.LoadFile(volumePath)
	if err != nil {
		return err
	}
	initial, err := parsePolicy(opts.policy)
	if err != nil {
		return err
	}

	var scene *render.Scene
	if opts.scenePath != "" {
		insts, err := loadInstances(opts.scenePath)
		if err != nil {
			return err
		}
		scene = buildScene(insts)
	}
	if opts.live && scene == nil {
		return errors.New("--live needs --scene")
	}

	state := &ViewState{
		Policies:   cyclePolicies(initial, vol.Density),
		Smooth:     !opts.noSmooth,
		ShowBounds: true,
		ShowHUD:    true,
		UseLive:    opts.live,
	}

	// The sphere may leave the volume by two probe spacings.
	margin := math3d.V3(1, 1, 1).Scale(2 * vol.Density)
	limits := probe.AABB{Min: vol.Bounds.Min.Sub(margin), Max: vol.Bounds.Max.Add(margin)}
	center := vol.Bounds.Center()
	motion := NewMotion(opts.fps, center, limits)

	radius := math.Max(vol.Density*0.35, 0.05)
	sphere := models.NewSphere(probeObject, 1, 24, 12)
	sphereMat := render.Material{Albedo: math3d.Gray(0.9)}
	sphereTransform := func(pos math3d.Vec3) math3d.Mat4 {
		return math3d.Translate(pos).Mul(math3d.Scale(math3d.V3(radius, radius, radius)))
	}

	// With a scene the sphere is one of its objects, hidden from live
	// captures by name.
	sphereIndex := -1
	if scene != nil {
		var err error
		state.Live, sphereIndex, err = attachLiveSource(scene, sphere, sphereMat, sphereTransform(center), opts.liveRes)
		if err != nil {
			return err
		}
	}

	follower, err := state.NewFollower(vol, opts.fps)
	if err != nil {
		return err
	}
	light := func(_, n math3d.Vec3) math3d.RGB {
		return follower.Irradiance(n)
	}
	rebuild := func() {
		if f, err := state.NewFollower(vol, opts.fps); err == nil {
			follower = f
		}
	}

	extent := vol.Bounds.Size()
	defaultDist := math.Max(3, 1.2*math.Max(extent.X, math.Max(extent.Y, extent.Z)))
	yaw, pitch, dist := 0.0, 0.35, defaultDist

	// Create terminal
	term := uv.DefaultTerminal()

	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}

	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}

	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	// Enable mouse mode
	fmt.Fprint(os.Stdout, "\x1b[?1003h") // Enable any-event mouse tracking
	fmt.Fprint(os.Stdout, "\x1b[?1006h") // Enable SGR extended mouse mode

	cleanup := func() {
		fmt.Fprint(os.Stdout, "\x1b[?1003l")
		fmt.Fprint(os.Stdout, "\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}
	defer cleanup()

	camera := render.NewCamera()
	camera.SetFOV(math.Pi / 3)
	camera.SetClipPlanes(0.05, 4*defaultDist+100)

	var (
		fb         *render.Framebuffer
		rasterizer *render.Rasterizer
		wire       *render.Wireframe
	)
	resize := func() {
		fb = render.NewFramebuffer(width, height*2)
		fb.Exposure = opts.exposure
		rasterizer = render.NewRasterizer(camera, fb)
		wire = render.NewWireframe(camera, fb)
		camera.SetAspectRatio(float64(fb.Width) / float64(fb.Height))
	}
	resize()

	hud := NewHUD(filepath.Base(volumePath), vol.Len())

	// Input state
	var input math3d.Vec3
	const moveStrength = 4.0

	var mouseDown bool
	var lastMouseX, lastMouseY int
	background := math3d.RGB{R: 0.012, G: 0.012, B: 0.02}

	// handle applies one event and reports whether the viewer should quit.
	handle := func(ev uv.Event) bool {
		switch ev := ev.(type) {
		case uv.WindowSizeEvent:
			width, height = ev.Width, ev.Height
			term.Erase()
			term.Resize(width, height)
			resize()

		case uv.KeyPressEvent:
			forward := math3d.V3(-math.Sin(yaw), 0, -math.Cos(yaw))
			right := math3d.V3(math.Cos(yaw), 0, -math.Sin(yaw))
			step := moveStrength * vol.Density
			switch {
			case ev.MatchString("escape"), ev.MatchString("ctrl+c"):
				return true
			case ev.MatchString("w", "up"):
				input = forward.Scale(step)
			case ev.MatchString("s", "down"):
				input = forward.Scale(-step)
			case ev.MatchString("a", "left"):
				input = right.Scale(-step)
			case ev.MatchString("d", "right"):
				input = right.Scale(step)
			case ev.MatchString("e"):
				input = math3d.V3(0, step, 0)
			case ev.MatchString("q"):
				input = math3d.V3(0, -step, 0)
			case ev.MatchString("r"):
				motion.Reset()
				yaw, pitch, dist = 0, 0.35, defaultDist
			case ev.MatchString("m"):
				state.PolicyIndex = (state.PolicyIndex + 1) % len(state.Policies)
				rebuild()
			case ev.MatchString("c"):
				state.Reject = !state.Reject
				rebuild()
			case ev.MatchString("g"):
				state.Smooth = !state.Smooth
				rebuild()
			case ev.MatchString("l"):
				if state.Live != nil {
					state.UseLive = !state.UseLive
					rebuild()
				}
			case ev.MatchString("p"):
				state.ShowProbes = !state.ShowProbes
			case ev.MatchString("b"):
				state.ShowBounds = !state.ShowBounds
			case ev.MatchString("+", "="):
				dist = math.Max(0.5, dist*0.9)
			case ev.MatchString("-", "_"):
				dist = math.Min(4*defaultDist, dist/0.9)
			case ev.MatchString("?"), ev.MatchString("shift+/"):
				state.ShowHUD = !state.ShowHUD
			}

		case uv.KeyReleaseEvent:
			input = math3d.Vec3{}

		case uv.MouseClickEvent:
			mouseDown = true
			lastMouseX, lastMouseY = ev.X, ev.Y

		case uv.MouseReleaseEvent:
			mouseDown = false

		case uv.MouseMotionEvent:
			if mouseDown {
				yaw -= float64(ev.X-lastMouseX) * 0.03
				pitch = math.Max(-1.4, math.Min(1.4, pitch+float64(ev.Y-lastMouseY)*0.03))
				lastMouseX, lastMouseY = ev.X, ev.Y
			}

		case uv.MouseWheelEvent:
			switch ev.Button {
			case uv.MouseWheelUp:
				dist = math.Max(0.5, dist*0.9)
			case uv.MouseWheelDown:
				dist = math.Min(4*defaultDist, dist/0.9)
			}
		}
		return false
	}

	// Main loop
	targetDuration := time.Second / time.Duration(opts.fps)
	lastFrame := time.Now()
	events := term.Events()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

	drain:
		for {
			select {
			case ev, ok := <-events:
				if !ok || handle(ev) {
					return nil
				}
			default:
				break drain
			}
		}

		now := time.Now()
		dt := math.Min(now.Sub(lastFrame).Seconds(), 0.1)
		lastFrame = now

		// Apply input and decay it (key release events unreliable)
		motion.ApplyImpulse(input.Scale(dt))
		input = input.Scale(0.9)
		motion.Update()

		pos := motion.Position()
		transform := sphereTransform(pos)
		if sphereIndex >= 0 {
			scene.Objects[sphereIndex].Transform = transform
		}
		if follower.UpdateContext(ctx, pos) {
			hud.queries++
		}

		camera.Orbit(center, dist, yaw, pitch)

		fb.Clear(background)
		rasterizer.ClearDepth()

		if scene != nil {
			for i := range scene.Objects {
				if i == sphereIndex {
					continue
				}
				obj := &scene.Objects[i]
				rasterizer.DrawMesh(obj.Mesh, obj.Transform, &obj.Material, scene.Light)
			}
		}

		rasterizer.DrawMesh(sphere, transform, &sphereMat, light)

		if state.ShowBounds {
			wire.DrawBox(render.AABB{Min: vol.Bounds.Min, Max: vol.Bounds.Max}, math3d.RGB{R: 0.2, G: 0.8, B: 0.4})
		}
		if state.ShowProbes {
			size := vol.Density * 0.15
			for i := range vol.Probes {
				p := &vol.Probes[i]
				wire.DrawPoint(p.Position, size, p.Coefficients.Ambient())
			}
		}

		// Display
		fb.Draw(term, term.Bounds())
		if err := term.Display(); err != nil {
			return fmt.Errorf("display: %w", err)
		}

		hud.UpdateFPS()
		hud.Render(width, height, state, pos, vol.Bounds.Contains(pos), follower.Coefficients().Ambient())

		// Frame timing
		elapsed := time.Since(now)
		if elapsed < targetDuration {
			time.Sleep(targetDuration - elapsed)
		}
	}
}

// attachLiveSource adds the sphere to scene and returns the capture setup
// live followers use, with the sphere's index in scene.Objects.
func attachLiveSource(scene *render.Scene, sphere *models.Mesh, mat render.Material, transform math3d.Mat4, resolution int) (*liveSource, int, error) {
	params := cubemap.DefaultCaptureParams()
	params.Resolution = resolution
	if err := params.Validate(); err != nil {
		return nil, -1, fmt.Errorf("--live-res: %w", err)
	}

	sphere.CalculateBounds()
	scene.Add(render.Object{Name: probeObject, Mesh: sphere, Transform: transform, Material: mat})
	return &liveSource{renderer: scene.NewRenderer(), params: params}, len(scene.Objects) - 1, nil
}
