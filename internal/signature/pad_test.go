package signature

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"strconv"
	"strings"
	"testing"
)

func TestNewPadIsEmpty(t *testing.T) {
	p := New()
	if !p.IsEmpty() {
		t.Fatal("fresh pad should be empty")
	}
	if w, h := p.Size(); w != 400 || h != 200 {
		t.Fatalf("size = %dx%d", w, h)
	}
}

func TestStrokeMakesPadNonEmpty(t *testing.T) {
	var emitted []string
	p := New(WithOnChange(func(s string) { emitted = append(emitted, s) }))

	p.PointerDown(Event{ClientX: 110, ClientY: 60, RectLeft: 100, RectTop: 50})
	p.PointerMove(Event{ClientX: 150, ClientY: 90, RectLeft: 100, RectTop: 50})
	p.PointerUp()

	if p.IsEmpty() {
		t.Fatal("pad should not be empty after a stroke")
	}
	if len(emitted) != 1 || !strings.HasPrefix(emitted[0], "data:image/png;base64,") {
		t.Fatalf("expected one data URI emission, got %d", len(emitted))
	}
	if emitted[0] != p.Signature() {
		t.Fatal("emitted value should match Signature()")
	}
}

func TestClearEmitsEmptyString(t *testing.T) {
	var last = "unset"
	p := New(WithOnChange(func(s string) { last = s }))
	Replay(p, []Stroke{{{X: 10, Y: 10}, {X: 80, Y: 40}}})

	p.Clear()

	if last != "" {
		t.Fatalf("clear emitted %q", last)
	}
	if !p.IsEmpty() {
		t.Fatal("pad should be empty after clear")
	}
}

func TestMoveWithoutDownDrawsNothing(t *testing.T) {
	p := New()
	p.PointerMove(Event{ClientX: 10, ClientY: 10})
	p.PointerMove(Event{ClientX: 50, ClientY: 50})
	p.PointerUp()
	if !p.IsEmpty() {
		t.Fatal("moves without an active stroke must not draw")
	}
}

func TestTouchUsesFirstTouchPoint(t *testing.T) {
	p := New()
	p.PointerDown(Event{Source: SourceTouch, RectLeft: 20, RectTop: 20, Touches: []Point{{X: 30, Y: 30}, {X: 999, Y: 999}}})
	p.PointerMove(Event{Source: SourceTouch, RectLeft: 20, RectTop: 20, Touches: []Point{{X: 60, Y: 30}}})
	p.PointerLeave()

	img := decode(t, p.Signature())
	_, _, _, a := img.At(25, 10).RGBA()
	if a == 0 {
		t.Fatal("expected ink on the touched segment")
	}
	_, _, _, a = img.At(200, 150).RGBA()
	if a != 0 {
		t.Fatal("unexpected ink away from the stroke")
	}
}

func TestPointerDownOnlyEmitsEmpty(t *testing.T) {
	last := "unset"
	p := New(WithOnChange(func(s string) { last = s }))
	p.PointerDown(Event{ClientX: 10, ClientY: 10})
	p.PointerUp()
	if last != "" {
		t.Fatalf("a click without movement should emit an empty signature, got %q", last)
	}
}

func TestParseStrokes(t *testing.T) {
	strokes, err := ParseStrokes(`[[{"x":1,"y":2},{"x":3,"y":4}],[{"x":5,"y":6}]]`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(strokes) != 2 || len(strokes[0]) != 2 || strokes[1][0].X != 5 {
		t.Fatalf("unexpected strokes %+v", strokes)
	}
	if _, err := ParseStrokes(`not json`); err == nil {
		t.Fatal("expected decode error")
	}
	if s, err := ParseStrokes(""); err != nil || s != nil {
		t.Fatalf("empty input: %v %v", s, err)
	}
}

func decode(t *testing.T, uri string) image.Image {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	return img
}

func TestFarAwayCoordinatesAreClamped(t *testing.T) {
	for _, x := range []float64{1e5, 1e9, 1e300, -1e300} {
		strokes, err := ParseStrokes(`[[{"x":10,"y":10},{"x":` + strconv.FormatFloat(x, 'g', -1, 64) + `,"y":20}]]`)
		if err != nil {
			t.Fatalf("x=%g: parse: %v", x, err)
		}
		var got string
		pad := New(WithOnChange(func(sig string) { got = sig }))
		Replay(pad, strokes)
		if pad.IsEmpty() || !strings.HasPrefix(got, "data:image/png;base64,") {
			t.Errorf("x=%g: stroke into the canvas edge was not drawn", x)
		}
	}
}
