// Package signature captures a freehand signature drawn with a mouse or a
// finger and exports it as a PNG data URI.
package signature

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sync"

	"golang.org/x/image/vector"
)

const (
	DefaultWidth  = 400
	DefaultHeight = 200

	lineWidth = 2
	capSteps  = 8

	dataURIPrefix = "data:image/png;base64,"
)

// Handle is what a parent form may do with a pad.
type Handle interface {
	Clear()
	Signature() string
	IsEmpty() bool
}

var _ Handle = (*Pad)(nil)

// Source is the kind of pointer that produced an event.
type Source int

const (
	SourceMouse Source = iota
	SourceTouch
)

// Point is a position in canvas or client coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Event is a pointer event as observed by the drawing surface. RectLeft and
// RectTop are the surface's bounding rectangle origin in client coordinates.
type Event struct {
	Source   Source
	ClientX  float64
	ClientY  float64
	RectLeft float64
	RectTop  float64
	Touches  []Point
}

// position returns the canvas-relative coordinate, reading the first touch
// point when one is present.
func (e Event) position() Point {
	x, y := e.ClientX, e.ClientY
	if len(e.Touches) > 0 {
		x, y = e.Touches[0].X, e.Touches[0].Y
	}
	return Point{X: x - e.RectLeft, Y: y - e.RectTop}
}

// Option configures a Pad.
type Option func(*Pad)

// WithSize overrides the default 400x200 surface.
func WithSize(width, height int) Option {
	return func(p *Pad) {
		if width > 0 && height > 0 {
			p.width, p.height = width, height
		}
	}
}

// WithOnChange registers the callback receiving the encoded raster whenever a
// stroke ends, and "" when the pad is cleared.
func WithOnChange(fn func(string)) Option {
	return func(p *Pad) { p.onChange = fn }
}

// Pad is a fixed-size drawing surface. The raster is owned by the pad and is
// only reachable through its methods.
type Pad struct {
	mu       sync.Mutex
	width    int
	height   int
	img      *image.RGBA
	z        *vector.Rasterizer
	drawing  bool
	last     Point
	onChange func(string)
}

// New creates an empty, transparent pad.
func New(opts ...Option) *Pad {
	p := &Pad{width: DefaultWidth, height: DefaultHeight}
	for _, opt := range opts {
		opt(p)
	}
	p.img = image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	p.z = vector.NewRasterizer(p.width, p.height)
	p.z.DrawOp = draw.Over
	return p
}

// Size returns the surface dimensions.
func (p *Pad) Size() (int, int) {
	return p.width, p.height
}

// PointerDown begins a path at the event position.
func (p *Pad) PointerDown(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drawing = true
	p.last = ev.position()
}

// PointerMove extends the active path to the event position and strokes the
// new segment. Moves without an active stroke are ignored.
func (p *Pad) PointerMove(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.drawing {
		return
	}
	next := ev.position()
	p.strokeSegment(p.last, next)
	p.last = next
}

// PointerUp ends the active stroke and emits the current signature.
func (p *Pad) PointerUp() {
	p.endStroke()
}

// PointerLeave behaves like PointerUp.
func (p *Pad) PointerLeave() {
	p.endStroke()
}

func (p *Pad) endStroke() {
	p.mu.Lock()
	if !p.drawing {
		p.mu.Unlock()
		return
	}
	p.drawing = false
	sig := ""
	if !p.isEmptyLocked() {
		sig = p.encodeLocked()
	}
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb(sig)
	}
}

// Clear wipes the surface and emits "".
func (p *Pad) Clear() {
	p.mu.Lock()
	for i := range p.img.Pix {
		p.img.Pix[i] = 0
	}
	p.drawing = false
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb("")
	}
}

// Signature returns the surface as a PNG data URI.
func (p *Pad) Signature() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encodeLocked()
}

// IsEmpty reports whether every channel of every pixel is zero.
func (p *Pad) IsEmpty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isEmptyLocked()
}

func (p *Pad) isEmptyLocked() bool {
	for _, c := range p.img.Pix {
		if c != 0 {
			return false
		}
	}
	return true
}

func (p *Pad) encodeLocked() string {
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.img); err != nil {
		return ""
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// clamp keeps pt within one surface size of the canvas on every side. The
// rasterizer's fixed-point math breaks down on far-away coordinates.
func (p *Pad) clamp(pt Point) Point {
	w, h := float64(p.width), float64(p.height)
	return Point{
		X: math.Min(math.Max(pt.X, -w), 2*w),
		Y: math.Min(math.Max(pt.Y, -h), 2*h),
	}
}

// strokeSegment fills a capsule around a->b, which gives round caps and round
// joins between consecutive segments.
func (p *Pad) strokeSegment(a, b Point) {
	const r = lineWidth / 2.0

	a, b = p.clamp(a), p.clamp(b)

	p.z.Reset(p.width, p.height)
	p.z.DrawOp = draw.Over

	theta := math.Atan2(b.Y-a.Y, b.X-a.X)
	arc := func(c Point, from float64, first bool) {
		for i := 0; i <= capSteps; i++ {
			t := from + math.Pi*float64(i)/capSteps
			x := float32(c.X + r*math.Cos(t))
			y := float32(c.Y + r*math.Sin(t))
			if first && i == 0 {
				p.z.MoveTo(x, y)
				continue
			}
			p.z.LineTo(x, y)
		}
	}
	arc(b, theta-math.Pi/2, true)
	arc(a, theta+math.Pi/2, false)
	p.z.ClosePath()

	p.z.Draw(p.img, p.img.Bounds(), image.NewUniform(color.Black), image.Point{})
}
