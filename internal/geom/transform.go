// Package geom maps between screen and image (voxel) coordinates.
package geom

import "math"

// Mode selects how the painting surface is placed over the rendered image.
type Mode int

const (
	// ModeDirect scales and pans the image about the surface center.
	ModeDirect Mode = iota
	// ModeBounded pins the image 1:1 inside a fixed rectangle supplied by an
	// external renderer; no additional zoom or pan is applied here.
	ModeBounded
)

// Point is a position in screen coordinates.
type Point struct {
	X float64
	Y float64
}

// Size is a surface size in screen pixels.
type Size struct {
	Width  float64
	Height float64
}

// Rect is the bounding box used by ModeBounded, in screen coordinates.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Transform describes the active view transform for one render pass.
// Zoom and Pan are only meaningful in ModeDirect; BBox only in ModeBounded.
type Transform struct {
	Mode Mode
	Zoom float64
	Pan  Point
	BBox Rect
}

// Identity returns a direct-mode transform with no zoom or pan.
func Identity() Transform {
	return Transform{Mode: ModeDirect, Zoom: 1}
}

// Bounded returns a bounded-mode transform for the given box.
func Bounded(left, top, width, height float64) Transform {
	return Transform{Mode: ModeBounded, BBox: Rect{Left: left, Top: top, Width: width, Height: height}}
}

// ScreenToImage converts a screen position to image pixel coordinates.
// The result is floored, not rounded, and clamped to [0,imgW-1]x[0,imgH-1].
func ScreenToImage(sx, sy float64, surface Size, imgW, imgH int, t Transform) (int, int) {
	var ux, uy float64

	switch t.Mode {
	case ModeBounded:
		bw, bh := t.BBox.Width, t.BBox.Height
		if bw <= 0 {
			bw = surface.Width
		}
		if bh <= 0 {
			bh = surface.Height
		}
		ux = (sx - t.BBox.Left) / bw * float64(imgW)
		uy = (sy - t.BBox.Top) / bh * float64(imgH)
	default:
		zoom := t.Zoom
		if zoom <= 0 {
			zoom = 1
		}
		cx := surface.Width / 2
		cy := surface.Height / 2
		// Undo pan, then undo the centered scale.
		px := (sx-t.Pan.X-cx)/zoom + cx
		py := (sy-t.Pan.Y-cy)/zoom + cy
		ux = px / surface.Width * float64(imgW)
		uy = py / surface.Height * float64(imgH)
	}

	return clampPixel(ux, imgW), clampPixel(uy, imgH)
}

// ImageToScreen converts an image pixel coordinate back to a screen position.
// It is the inverse of ScreenToImage up to flooring.
func ImageToScreen(ix, iy int, surface Size, imgW, imgH int, t Transform) (float64, float64) {
	fx := float64(ix)
	fy := float64(iy)

	switch t.Mode {
	case ModeBounded:
		sx := fx/float64(imgW)*t.BBox.Width + t.BBox.Left
		sy := fy/float64(imgH)*t.BBox.Height + t.BBox.Top
		return sx, sy
	default:
		zoom := t.Zoom
		if zoom <= 0 {
			zoom = 1
		}
		cx := surface.Width / 2
		cy := surface.Height / 2
		px := fx / float64(imgW) * surface.Width
		py := fy / float64(imgH) * surface.Height
		sx := (px-cx)*zoom + cx + t.Pan.X
		sy := (py-cy)*zoom + cy + t.Pan.Y
		return sx, sy
	}
}

// ScaleOnScreen returns how many screen pixels one image pixel spans under t.
// Used to size the brush preview.
func ScaleOnScreen(surface Size, imgW, imgH int, t Transform) (float64, float64) {
	switch t.Mode {
	case ModeBounded:
		return t.BBox.Width / float64(imgW), t.BBox.Height / float64(imgH)
	default:
		zoom := t.Zoom
		if zoom <= 0 {
			zoom = 1
		}
		return surface.Width / float64(imgW) * zoom, surface.Height / float64(imgH) * zoom
	}
}

// clampPixel floors v and clamps it into [0, n-1]. Flooring avoids the
// off-by-one bias at pixel boundaries that rounding would introduce.
func clampPixel(v float64, n int) int {
	p := int(math.Floor(v))
	if p < 0 {
		return 0
	}
	if p >= n {
		return n - 1
	}
	return p
}
