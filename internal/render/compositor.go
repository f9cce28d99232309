// Package render composites the painting surface: a base slice layer, the
// authoritative mask, unconfirmed local strokes, and the brush preview.
package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"github.com/slicepaint/slicepaint/internal/geom"
	"github.com/slicepaint/slicepaint/internal/paint"
	"github.com/slicepaint/slicepaint/pkg/labels"
)

// Config contains compositor configuration.
type Config struct {
	SurfaceW int
	SurfaceH int
	// PaintAlpha is the overlay opacity for local paint strokes.
	PaintAlpha uint8
	// EraseTint is the fill used for unconfirmed erase strokes, tinted
	// differently from paint so pending erases stay visible.
	EraseTint color.NRGBA
	// CursorColor strokes the brush-preview square.
	CursorColor color.NRGBA
}

func (c *Config) applyDefaults() {
	if c.PaintAlpha == 0 {
		c.PaintAlpha = 160
	}
	if c.EraseTint == (color.NRGBA{}) {
		c.EraseTint = color.NRGBA{R: 230, G: 230, B: 230, A: 120}
	}
	if c.CursorColor == (color.NRGBA{}) {
		c.CursorColor = color.NRGBA{R: 255, G: 255, B: 0, A: 255}
	}
}

// OverlayInput is everything one overlay redraw depends on. Treated as an
// immutable snapshot per pass so redraws are idempotent.
type OverlayInput struct {
	ServerMask image.Image    // trusted snapshot, nil if absent or untrusted
	Strokes    []paint.Stroke // unconfirmed strokes for the active slice
	Cursor     paint.Cursor
	Brush      paint.Brush
	Table      *labels.Table
	ImageW     int
	ImageH     int
	Transform  geom.Transform
	ShowMask   bool
}

// Compositor maintains the two raster layers. The base layer is redrawn only
// when the slice image, transform, or surface size changes; the overlay is
// redrawn on every paint-relevant state change. Both layers apply the same
// transform so they never drift relative to each other.
type Compositor struct {
	cfg     Config
	base    *image.RGBA
	overlay *image.RGBA
}

// NewCompositor creates a compositor for the given surface size.
func NewCompositor(cfg Config) *Compositor {
	cfg.applyDefaults()
	return &Compositor{
		cfg:     cfg,
		base:    image.NewRGBA(image.Rect(0, 0, cfg.SurfaceW, cfg.SurfaceH)),
		overlay: image.NewRGBA(image.Rect(0, 0, cfg.SurfaceW, cfg.SurfaceH)),
	}
}

// Resize reallocates both layers for a new surface size. The caller must
// redraw base and overlay afterwards.
func (c *Compositor) Resize(w, h int) {
	c.cfg.SurfaceW = w
	c.cfg.SurfaceH = h
	c.base = image.NewRGBA(image.Rect(0, 0, w, h))
	c.overlay = image.NewRGBA(image.Rect(0, 0, w, h))
}

// SurfaceSize returns the current surface size in screen pixels.
func (c *Compositor) SurfaceSize() geom.Size {
	return geom.Size{Width: float64(c.cfg.SurfaceW), Height: float64(c.cfg.SurfaceH)}
}

// DrawBase redraws the base layer from the source slice image under t.
func (c *Compositor) DrawBase(src image.Image, imgW, imgH int, t geom.Transform) {
	clear(c.base.Pix)
	if src == nil {
		return
	}
	dst := c.layerRect(imgW, imgH, t)
	xdraw.NearestNeighbor.Scale(c.base, dst, src, src.Bounds(), xdraw.Src, nil)
}

// DrawOverlay redraws the overlay layer: trusted server mask first, then every
// cached stroke as a filled square, then the brush preview.
func (c *Compositor) DrawOverlay(in OverlayInput) {
	clear(c.overlay.Pix)

	if in.ServerMask != nil && in.ShowMask {
		dst := c.layerRect(in.ImageW, in.ImageH, in.Transform)
		xdraw.NearestNeighbor.Scale(c.overlay, dst, in.ServerMask, in.ServerMask.Bounds(), xdraw.Over, nil)
	}

	if len(in.Strokes) > 0 {
		dc := gg.NewContextForRGBA(c.overlay)
		c.pushTransform(dc, in.ImageW, in.ImageH, in.Transform)
		for _, s := range in.Strokes {
			half := s.Size / 2
			side := float64(2*half + 1)
			x := float64(s.X - half)
			y := float64(s.Y - half)
			if s.Erase {
				dc.SetColor(c.cfg.EraseTint)
			} else {
				dc.SetColor(in.Table.Color(s.Label, c.cfg.PaintAlpha))
			}
			dc.DrawRectangle(x, y, side, side)
			dc.Fill()
		}
	}

	if in.Cursor.Valid {
		c.drawCursor(in)
	}
}

// Frame composites base and overlay into a fresh RGBA frame.
func (c *Compositor) Frame() *image.RGBA {
	out := image.NewRGBA(c.base.Bounds())
	copy(out.Pix, c.base.Pix)
	draw.Draw(out, out.Bounds(), c.overlay, image.Point{}, draw.Over)
	return out
}

// Overlay exposes the overlay layer for tests and direct blitting.
func (c *Compositor) Overlay() *image.RGBA { return c.overlay }

// Base exposes the base layer for tests and direct blitting.
func (c *Compositor) Base() *image.RGBA { return c.base }

// layerRect returns the destination rectangle of the full image under t.
func (c *Compositor) layerRect(imgW, imgH int, t geom.Transform) image.Rectangle {
	surface := c.SurfaceSize()
	switch t.Mode {
	case geom.ModeBounded:
		return image.Rect(
			int(t.BBox.Left), int(t.BBox.Top),
			int(t.BBox.Left+t.BBox.Width), int(t.BBox.Top+t.BBox.Height),
		)
	default:
		x0, y0 := geom.ImageToScreen(0, 0, surface, imgW, imgH, t)
		x1, y1 := geom.ImageToScreen(imgW, imgH, surface, imgW, imgH, t)
		return image.Rect(int(x0), int(y0), int(x1), int(y1))
	}
}

// pushTransform applies t to a gg context so that drawing in image
// coordinates lands on the right screen pixels.
func (c *Compositor) pushTransform(dc *gg.Context, imgW, imgH int, t geom.Transform) {
	surface := c.SurfaceSize()
	switch t.Mode {
	case geom.ModeBounded:
		dc.Translate(t.BBox.Left, t.BBox.Top)
		dc.Scale(t.BBox.Width/float64(imgW), t.BBox.Height/float64(imgH))
	default:
		zoom := t.Zoom
		if zoom <= 0 {
			zoom = 1
		}
		cx := surface.Width / 2
		cy := surface.Height / 2
		dc.Translate(t.Pan.X+cx, t.Pan.Y+cy)
		dc.Scale(zoom, zoom)
		dc.Translate(-cx, -cy)
		dc.Scale(surface.Width/float64(imgW), surface.Height/float64(imgH))
	}
}

// drawCursor strokes the brush-preview square in screen space so the outline
// width stays constant under zoom.
func (c *Compositor) drawCursor(in OverlayInput) {
	surface := c.SurfaceSize()
	half := in.Brush.Size / 2
	side := 2*half + 1

	sx, sy := geom.ImageToScreen(in.Cursor.X-half, in.Cursor.Y-half, surface, in.ImageW, in.ImageH, in.Transform)
	scaleX, scaleY := geom.ScaleOnScreen(surface, in.ImageW, in.ImageH, in.Transform)

	dc := gg.NewContextForRGBA(c.overlay)
	dc.SetColor(c.cfg.CursorColor)
	dc.SetLineWidth(1.5)
	dc.DrawRectangle(sx, sy, float64(side)*scaleX, float64(side)*scaleY)
	dc.Stroke()
}
