package render

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

var (
	widgetBorder = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	widgetFill   = color.RGBA{R: 100, G: 200, B: 100, A: 255}
	buttonBG     = color.RGBA{R: 80, G: 120, B: 180, A: 255}
	buttonHover  = color.RGBA{R: 100, G: 150, B: 220, A: 255}
)

// region is a screen rectangle that reacts to the mouse.
type region struct {
	X, Y, W, H float64
	pressed    bool // held since the last click
}

func (r *region) hovered() bool {
	mx, my := ebiten.CursorPosition()
	return float64(mx) >= r.X && float64(mx) <= r.X+r.W &&
		float64(my) >= r.Y && float64(my) <= r.Y+r.H
}

// clicked reports a press that started this frame over the region.
func (r *region) clicked() bool {
	if r.hovered() && ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		if r.pressed {
			return false
		}
		r.pressed = true
		return true
	}
	r.pressed = false
	return false
}

// Toggle is a labelled checkbox bound to a bool.
type Toggle struct {
	region
	Label string
	Value *bool
}

func NewToggle(x, y float64, label string, value *bool) *Toggle {
	return &Toggle{region: region{X: x, Y: y, W: 14, H: 14}, Label: label, Value: value}
}

func (t *Toggle) Update() {
	if t.clicked() {
		*t.Value = !*t.Value
	}
}

func (t *Toggle) Draw(screen *ebiten.Image) {
	vector.StrokeRect(screen, float32(t.X), float32(t.Y), float32(t.W), float32(t.H), 2, widgetBorder, true)
	if *t.Value {
		vector.FillRect(screen, float32(t.X+3), float32(t.Y+3), float32(t.W-6), float32(t.H-6), widgetFill, true)
	}
	ebitenutil.DebugPrintAt(screen, t.Label, int(t.X+t.W+6), int(t.Y))
}

// Button runs OnClick once per click.
type Button struct {
	region
	Label   func() string
	OnClick func()
}

func NewButton(x, y, w, h float64, label func() string, onClick func()) *Button {
	return &Button{region: region{X: x, Y: y, W: w, H: h}, Label: label, OnClick: onClick}
}

func (b *Button) Update() {
	if b.clicked() && b.OnClick != nil {
		b.OnClick()
	}
}

func (b *Button) Draw(screen *ebiten.Image) {
	bg := buttonBG
	if b.hovered() {
		bg = buttonHover
	}
	vector.FillRect(screen, float32(b.X), float32(b.Y), float32(b.W), float32(b.H), bg, true)
	vector.StrokeRect(screen, float32(b.X), float32(b.Y), float32(b.W), float32(b.H), 2, widgetBorder, true)
	ebitenutil.DebugPrintAt(screen, b.Label(), int(b.X+8), int(b.Y+(b.H-16)/2))
}
