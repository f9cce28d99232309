package geom

import (
	"math"
	"testing"
)

func TestScreenToImage_CenterInvariantUnderZoom(t *testing.T) {
	surface := Size{Width: 512, Height: 512}

	for _, zoom := range []float64{0.5, 1.0, 2.0, 4.0} {
		tr := Transform{Mode: ModeDirect, Zoom: zoom}
		ix, iy := ScreenToImage(256, 256, surface, 256, 256, tr)
		if ix != 128 || iy != 128 {
			t.Errorf("zoom=%v: expected center (128,128), got (%d,%d)", zoom, ix, iy)
		}
	}
}

func TestScreenToImage_BoundedMode(t *testing.T) {
	tr := Bounded(50, 20, 200, 200)
	surface := Size{Width: 800, Height: 600}

	ix, iy := ScreenToImage(150, 120, surface, 256, 256, tr)
	if ix != 128 || iy != 128 {
		t.Errorf("expected (128,128), got (%d,%d)", ix, iy)
	}

	// Box origin maps to the image origin.
	ix, iy = ScreenToImage(50, 20, surface, 256, 256, tr)
	if ix != 0 || iy != 0 {
		t.Errorf("expected (0,0), got (%d,%d)", ix, iy)
	}
}

func TestScreenToImage_Clamped(t *testing.T) {
	surface := Size{Width: 512, Height: 512}
	tr := Identity()

	tests := []struct {
		name   string
		sx, sy float64
		ix, iy int
	}{
		{"negative", -40, -1000, 0, 0},
		{"pastMax", 2000, 513, 255, 255},
		{"rightEdge", 512, 0, 255, 0},
		{"bottomEdge", 0, 512, 0, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix, iy := ScreenToImage(tt.sx, tt.sy, surface, 256, 256, tr)
			if ix != tt.ix || iy != tt.iy {
				t.Errorf("got (%d,%d), want (%d,%d)", ix, iy, tt.ix, tt.iy)
			}
		})
	}
}

func TestRoundTrip_DirectMode(t *testing.T) {
	surface := Size{Width: 640, Height: 480}
	transforms := []Transform{
		Identity(),
		{Mode: ModeDirect, Zoom: 2.0},
		{Mode: ModeDirect, Zoom: 0.75, Pan: Point{X: 33, Y: -17}},
		{Mode: ModeDirect, Zoom: 3.5, Pan: Point{X: -120, Y: 48}},
	}

	for _, tr := range transforms {
		for _, p := range [][2]int{{0, 0}, {1, 1}, {127, 200}, {255, 255}, {64, 3}} {
			sx, sy := ImageToScreen(p[0], p[1], surface, 256, 256, tr)
			ix, iy := ScreenToImage(sx+0.5, sy+0.5, surface, 256, 256, tr)
			if ix != p[0] || iy != p[1] {
				t.Errorf("transform %+v: round trip of (%d,%d) gave (%d,%d)", tr, p[0], p[1], ix, iy)
			}
		}
	}
}

func TestScreenToImage_PanShiftsOrigin(t *testing.T) {
	surface := Size{Width: 512, Height: 512}
	tr := Transform{Mode: ModeDirect, Zoom: 1, Pan: Point{X: 100, Y: 0}}

	// Panning right by 100 means screen x=100 now shows image x=0.
	ix, _ := ScreenToImage(100, 256, surface, 256, 256, tr)
	if ix != 0 {
		t.Errorf("expected 0, got %d", ix)
	}
}

func TestScaleOnScreen(t *testing.T) {
	surface := Size{Width: 512, Height: 512}

	sx, sy := ScaleOnScreen(surface, 256, 256, Transform{Mode: ModeDirect, Zoom: 2})
	if sx != 4 || sy != 4 {
		t.Errorf("direct: expected (4,4), got (%v,%v)", sx, sy)
	}

	sx, sy = ScaleOnScreen(surface, 256, 256, Bounded(0, 0, 128, 128))
	if sx != 0.5 || sy != 0.5 {
		t.Errorf("bounded: expected (0.5,0.5), got (%v,%v)", sx, sy)
	}
}

func TestScreenToImage_ZeroZoomFallsBackToIdentity(t *testing.T) {
	surface := Size{Width: 512, Height: 512}
	tr := Transform{Mode: ModeDirect}

	ix, iy := ScreenToImage(256, 256, surface, 256, 256, tr)
	if ix != 128 || iy != 128 {
		t.Errorf("expected (128,128), got (%d,%d)", ix, iy)
	}
	if v := math.Floor(-0.5); v != -1 {
		t.Fatalf("floor sanity: %v", v)
	}
}
