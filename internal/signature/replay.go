package signature

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// MaxPoints bounds the total number of points accepted by ParseStrokes.
const MaxPoints = 20000

// ErrTooManyPoints is returned when a stroke list exceeds MaxPoints.
var ErrTooManyPoints = errors.New("signature: too many points")

// Stroke is one pen-down..pen-up path in canvas-relative coordinates.
type Stroke []Point

// ParseStrokes decodes the JSON stroke list posted by the browser canvas, for
// example [[{"x":1,"y":2},{"x":3,"y":4}]].
func ParseStrokes(raw string) ([]Stroke, error) {
	if raw == "" {
		return nil, nil
	}
	var strokes []Stroke
	if err := json.Unmarshal([]byte(raw), &strokes); err != nil {
		return nil, fmt.Errorf("decode strokes: %w", err)
	}
	total := 0
	for _, s := range strokes {
		total += len(s)
		for _, pt := range s {
			if math.IsNaN(pt.X) || math.IsNaN(pt.Y) || math.IsInf(pt.X, 0) || math.IsInf(pt.Y, 0) {
				return nil, errors.New("signature: invalid coordinate")
			}
		}
	}
	if total > MaxPoints {
		return nil, ErrTooManyPoints
	}
	return strokes, nil
}

// Replay drives pad through the pointer events that would have produced
// strokes. Each stroke ends with a pointer-up, so the change callback fires
// once per stroke.
func Replay(pad *Pad, strokes []Stroke) {
	for _, s := range strokes {
		if len(s) == 0 {
			continue
		}
		pad.PointerDown(Event{Source: SourceMouse, ClientX: s[0].X, ClientY: s[0].Y})
		for _, pt := range s[1:] {
			pad.PointerMove(Event{Source: SourceMouse, ClientX: pt.X, ClientY: pt.Y})
		}
		pad.PointerUp()
	}
}
