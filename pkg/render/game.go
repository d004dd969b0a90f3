package render

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/lao-tseu-is-alive/go-flock-events/pkg/flock"
	"github.com/lao-tseu-is-alive/go-flock-events/pkg/geometry"
)

// Ticker advances the world by dt without waiting for it.
type Ticker interface {
	Tick(ctx context.Context, dt time.Duration) error
}

var (
	whiteImage = ebiten.NewImage(3, 3)

	background   = color.RGBA{R: 10, G: 10, B: 30, A: 255}
	cheaterColor = [4]float32{1, 0.2, 0.2, 1}
	flockColor   = [4]float32{0.4, 0.8, 1, 1}
)

func init() {
	whiteImage.Fill(color.White)
}

// Game draws the latest snapshot of a flock and drives its ticks from ebiten's update loop.
type Game struct {
	ctx        context.Context
	world      Ticker
	snapshotCh <-chan *flock.Snapshot
	lastState  *flock.Snapshot
	width      int
	height     int
	showBoxes  bool
	paused     bool

	boxesToggle *Toggle
	pauseButton *Button

	boids *triangleBatch

	// Timing instrumentation
	updateAvg float64 // Rolling average in ms
	drawAvg   float64 // Rolling average in ms
}

func NewGame(ctx context.Context, world Ticker, snapshots <-chan *flock.Snapshot, width, height int) *Game {
	g := &Game{
		ctx:        ctx,
		world:      world,
		snapshotCh: snapshots,
		lastState:  &flock.Snapshot{}, // Avoid nil pointer
		width:      width,
		height:     height,
		boids:      &triangleBatch{},
	}
	right := float64(width) - 150
	g.boxesToggle = NewToggle(right, 14, "Bounding boxes", &g.showBoxes)
	g.pauseButton = NewButton(right, 38, 110, 26,
		func() string {
			if g.paused {
				return "Resume"
			}
			return "Pause"
		},
		func() { g.paused = !g.paused })
	return g
}

func (g *Game) Update() error {
	start := time.Now()
	defer func() {
		g.updateAvg = g.updateAvg*0.95 + float64(time.Since(start).Microseconds())/1000.0*0.05
	}()

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyQ) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyB) {
		g.showBoxes = !g.showBoxes
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.paused = !g.paused
	}
	g.boxesToggle.Update()
	g.pauseButton.Update()

	// Retrieve Latest State (Non-blocking)
	select {
	case snap := <-g.snapshotCh:
		g.lastState = snap
	default:
		// Use previous state if new one isn't ready
	}

	if g.paused {
		return nil
	}
	dt := frameDuration(ebiten.TPS())
	if err := g.world.Tick(g.ctx, dt); err != nil {
		return fmt.Errorf("tick failed: %w", err)
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	start := time.Now()
	defer func() {
		g.drawAvg = g.drawAvg*0.95 + float64(time.Since(start).Microseconds())/1000.0*0.05
	}()

	screen.Fill(background)

	// batched draw calls for the whole flock
	g.boids.flush = func(vertices []ebiten.Vertex, indices []uint16) {
		screen.DrawTriangles(vertices, indices, whiteImage, &ebiten.DrawTrianglesOptions{})
	}
	for _, a := range g.lastState.Agents {
		g.boids.add(boidTriangle(a))
		if g.showBoxes {
			strokeBox(screen, a.Bounds, a.Cheater)
		}
	}
	g.boids.Flush()

	msg := fmt.Sprintf("FPS: %.2f\nTPS: %.2f\nTick: %d\nGame time: %.1fs\n\nUpdate: %.2fms\nDraw:   %.2fms",
		ebiten.ActualFPS(),
		ebiten.ActualTPS(),
		g.lastState.Tick,
		float64(g.lastState.GameTime)/1000,
		g.updateAvg,
		g.drawAvg)
	ebitenutil.DebugPrintAt(screen, msg, 10, 10)

	g.boxesToggle.Draw(screen)
	g.pauseButton.Draw(screen)
}

// boidTriangle returns one triangle pointing along the agent's heading.
func boidTriangle(a flock.AgentView) [3]ebiten.Vertex {
	angle := geometry.Radians(a.Heading)
	clr := flockColor
	if a.Cheater {
		clr = cheaterColor
	}

	points := [3][2]float64{
		{a.Pos.X + math.Cos(angle)*9, a.Pos.Y + math.Sin(angle)*9},
		{a.Pos.X + math.Cos(angle+2.5)*7, a.Pos.Y + math.Sin(angle+2.5)*7},
		{a.Pos.X + math.Cos(angle-2.5)*7, a.Pos.Y + math.Sin(angle-2.5)*7},
	}
	var tri [3]ebiten.Vertex
	for i, p := range points {
		tri[i] = ebiten.Vertex{
			DstX: float32(p[0]),
			DstY: float32(p[1]),
			SrcX: 1, SrcY: 1,
			ColorR: clr[0], ColorG: clr[1], ColorB: clr[2], ColorA: clr[3],
		}
	}
	return tri
}

// maxBatchVertices is how many vertices uint16 indices can address.
const maxBatchVertices = math.MaxUint16 + 1

// triangleBatch collects triangles and hands them to flush before the indices overflow.
type triangleBatch struct {
	vertices []ebiten.Vertex
	indices  []uint16
	flush    func(vertices []ebiten.Vertex, indices []uint16)
}

func (b *triangleBatch) add(tri [3]ebiten.Vertex) {
	if len(b.vertices)+len(tri) > maxBatchVertices {
		b.Flush()
	}
	base := uint16(len(b.vertices))
	b.vertices = append(b.vertices, tri[:]...)
	b.indices = append(b.indices, base, base+1, base+2)
}

// Flush draws what is pending and empties the batch.
func (b *triangleBatch) Flush() {
	if len(b.vertices) > 0 && b.flush != nil {
		b.flush(b.vertices, b.indices)
	}
	b.vertices = b.vertices[:0]
	b.indices = b.indices[:0]
}

// frameDuration is the simulated time of one update at tps updates per second.
func frameDuration(tps int) time.Duration {
	return time.Second / time.Duration(max(1, tps))
}

func strokeBox(screen *ebiten.Image, box geometry.Rect, cheater bool) {
	clr := color.RGBA{R: 50, G: 100, B: 255, A: 90}
	if cheater {
		clr = color.RGBA{R: 255, G: 50, B: 50, A: 120}
	}
	vector.StrokeRect(screen, float32(box.Left), float32(box.Top), float32(box.Width), float32(box.Height), 1, clr, false)
}

func (g *Game) Layout(w, h int) (int, int) { return g.width, g.height }
