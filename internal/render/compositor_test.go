package render

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/slicepaint/slicepaint/internal/geom"
	"github.com/slicepaint/slicepaint/internal/paint"
	"github.com/slicepaint/slicepaint/pkg/labels"
)

func testTable(t *testing.T) *labels.Table {
	t.Helper()
	tbl := labels.NewTable()
	tbl.Add("tumor")
	return tbl
}

// identityInput maps image pixels 1:1 onto surface pixels.
func identityInput(t *testing.T, strokes []paint.Stroke) OverlayInput {
	t.Helper()
	return OverlayInput{
		Strokes:   strokes,
		Brush:     paint.Brush{Label: 1, Size: 3},
		Table:     testTable(t),
		ImageW:    256,
		ImageH:    256,
		Transform: geom.Identity(),
		ShowMask:  true,
	}
}

func alphaAt(img *image.RGBA, x, y int) uint8 {
	return img.Pix[img.PixOffset(x, y)+3]
}

func TestDrawOverlay_BrushSquareCoverage(t *testing.T) {
	c := NewCompositor(Config{SurfaceW: 256, SurfaceH: 256})
	c.DrawOverlay(identityInput(t, []paint.Stroke{{X: 10, Y: 10, Label: 1, Size: 3}}))

	ov := c.Overlay()
	for y := 9; y <= 11; y++ {
		for x := 9; x <= 11; x++ {
			if alphaAt(ov, x, y) == 0 {
				t.Errorf("pixel (%d,%d) inside the 3x3 brush square is empty", x, y)
			}
		}
	}
	for _, p := range [][2]int{{8, 10}, {12, 10}, {10, 8}, {10, 12}} {
		if alphaAt(ov, p[0], p[1]) != 0 {
			t.Errorf("pixel (%d,%d) outside the brush square is painted", p[0], p[1])
		}
	}
}

func TestDrawOverlay_EraseTintedDifferently(t *testing.T) {
	c := NewCompositor(Config{SurfaceW: 256, SurfaceH: 256})

	c.DrawOverlay(identityInput(t, []paint.Stroke{{X: 10, Y: 10, Label: 1, Size: 1}}))
	paintPix := c.Overlay().RGBAAt(10, 10)

	c.DrawOverlay(identityInput(t, []paint.Stroke{{X: 10, Y: 10, Label: 1, Size: 1, Erase: true}}))
	erasePix := c.Overlay().RGBAAt(10, 10)

	if paintPix == erasePix {
		t.Error("erase strokes must be tinted differently from paint strokes")
	}
	if erasePix.A == 0 {
		t.Error("pending erase must stay visible in the overlay")
	}
}

func TestDrawOverlay_Idempotent(t *testing.T) {
	c := NewCompositor(Config{SurfaceW: 128, SurfaceH: 128})
	in := OverlayInput{
		Strokes:   []paint.Stroke{{X: 20, Y: 30, Label: 1, Size: 5}},
		Cursor:    paint.Cursor{Valid: true, X: 64, Y: 64},
		Brush:     paint.Brush{Label: 1, Size: 5},
		Table:     testTable(t),
		ImageW:    128,
		ImageH:    128,
		Transform: geom.Transform{Mode: geom.ModeDirect, Zoom: 2, Pan: geom.Point{X: 10, Y: -5}},
		ShowMask:  true,
	}

	c.DrawOverlay(in)
	first := append([]uint8(nil), c.Overlay().Pix...)
	c.DrawOverlay(in)

	if !bytes.Equal(first, c.Overlay().Pix) {
		t.Error("redraw with unchanged inputs must be pixel-identical")
	}
}

func TestDrawOverlay_ServerMaskScaledIntoBoundedBox(t *testing.T) {
	mask := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(mask.Pix); i += 4 {
		mask.Pix[i] = 255
		mask.Pix[i+3] = 255
	}

	c := NewCompositor(Config{SurfaceW: 300, SurfaceH: 300})
	in := OverlayInput{
		ServerMask: mask,
		Table:      testTable(t),
		ImageW:     4,
		ImageH:     4,
		Transform:  geom.Bounded(50, 20, 200, 200),
		ShowMask:   true,
	}
	c.DrawOverlay(in)

	ov := c.Overlay()
	if alphaAt(ov, 150, 120) == 0 {
		t.Error("mask missing inside the bounding box")
	}
	if alphaAt(ov, 10, 10) != 0 {
		t.Error("mask drawn outside the bounding box")
	}
}

func TestDrawOverlay_MaskHiddenWhenShowMaskOff(t *testing.T) {
	mask := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	mask.SetNRGBA(4, 4, color.NRGBA{R: 255, A: 255})

	c := NewCompositor(Config{SurfaceW: 8, SurfaceH: 8})
	c.DrawOverlay(OverlayInput{
		ServerMask: mask,
		Table:      testTable(t),
		ImageW:     8,
		ImageH:     8,
		Transform:  geom.Identity(),
		ShowMask:   false,
	})

	for i := 3; i < len(c.Overlay().Pix); i += 4 {
		if c.Overlay().Pix[i] != 0 {
			t.Fatal("overlay must be empty when the mask is hidden")
		}
	}
}

func TestDrawBase_NeverReflectsPaintState(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range src.Pix {
		src.Pix[i] = 100
	}

	c := NewCompositor(Config{SurfaceW: 16, SurfaceH: 16})
	c.DrawBase(src, 16, 16, geom.Identity())
	before := append([]uint8(nil), c.Base().Pix...)

	c.DrawOverlay(identityInput(t, []paint.Stroke{{X: 5, Y: 5, Label: 1, Size: 9}}))

	if !bytes.Equal(before, c.Base().Pix) {
		t.Error("overlay redraw must not touch the base layer")
	}
}

func TestFrame_CompositesOverlayOverBase(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 32, 32))
	c := NewCompositor(Config{SurfaceW: 32, SurfaceH: 32})
	c.DrawBase(src, 32, 32, geom.Identity())
	c.DrawOverlay(OverlayInput{
		Strokes:   []paint.Stroke{{X: 16, Y: 16, Label: 1, Size: 1}},
		Brush:     paint.Brush{Label: 1, Size: 3},
		Table:     testTable(t),
		ImageW:    32,
		ImageH:    32,
		Transform: geom.Identity(),
		ShowMask:  true,
	})

	frame := c.Frame()
	px := frame.RGBAAt(16, 16)
	if px.R == 0 && px.G == 0 && px.B == 0 {
		t.Error("stroke not visible in composited frame")
	}
}
