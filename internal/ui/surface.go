// Package ui provides the Fyne painting surface bound to a session.
package ui

import (
	"image"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"github.com/slicepaint/slicepaint/internal/geom"
	"github.com/slicepaint/slicepaint/internal/paint"
	"github.com/slicepaint/slicepaint/internal/session"
)

const (
	minZoom  = 0.25
	maxZoom  = 16.0
	zoomStep = 1.25
)

// PaintSurface is the interactive painting area. It forwards pointer events
// to the session and blits the session's composited frame.
type PaintSurface struct {
	widget.BaseWidget

	session *session.Session
	raster  *fynecanvas.Raster

	zoom         float64
	pan          geom.Point
	lastW, lastH int
}

// NewPaintSurface creates a surface over the given session.
func NewPaintSurface(s *session.Session) *PaintSurface {
	ps := &PaintSurface{session: s, zoom: 1}
	ps.raster = fynecanvas.NewRaster(ps.draw)
	ps.raster.ScaleMode = fynecanvas.ImageScalePixels
	ps.ExtendBaseWidget(ps)
	return ps
}

// draw is the raster drawing function.
func (ps *PaintSurface) draw(w, h int) image.Image {
	if w != ps.lastW || h != ps.lastH {
		ps.lastW, ps.lastH = w, h
		ps.session.Resize(w, h)
	}
	return ps.session.Frame()
}

// CreateRenderer implements fyne.Widget.
func (ps *PaintSurface) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(ps.raster)
}

// MouseDown implements desktop.Mouseable.
func (ps *PaintSurface) MouseDown(ev *desktop.MouseEvent) {
	ps.forward(paint.PointerDown, ev.Position)
}

// MouseUp implements desktop.Mouseable.
func (ps *PaintSurface) MouseUp(ev *desktop.MouseEvent) {
	ps.forward(paint.PointerUp, ev.Position)
}

// MouseIn implements desktop.Hoverable.
func (ps *PaintSurface) MouseIn(ev *desktop.MouseEvent) {
	ps.forward(paint.PointerMove, ev.Position)
}

// MouseMoved implements desktop.Hoverable. Fyne delivers motion here both
// hovering and mid-drag, so this single path covers drag painting.
func (ps *PaintSurface) MouseMoved(ev *desktop.MouseEvent) {
	ps.forward(paint.PointerMove, ev.Position)
}

// MouseOut implements desktop.Hoverable.
func (ps *PaintSurface) MouseOut() {
	ps.session.Pointer(paint.PointerEvent{Kind: paint.PointerLeave})
	ps.raster.Refresh()
}

func (ps *PaintSurface) forward(kind paint.EventKind, pos fyne.Position) {
	ps.session.Pointer(paint.PointerEvent{
		Kind: kind,
		X:    float64(pos.X),
		Y:    float64(pos.Y),
	})
	ps.raster.Refresh()
}

// Scrolled implements fyne.Scrollable: the wheel zooms about the surface
// center.
func (ps *PaintSurface) Scrolled(ev *fyne.ScrollEvent) {
	if ev.Scrolled.DY > 0 {
		ps.zoom *= zoomStep
	} else if ev.Scrolled.DY < 0 {
		ps.zoom /= zoomStep
	}
	if ps.zoom < minZoom {
		ps.zoom = minZoom
	}
	if ps.zoom > maxZoom {
		ps.zoom = maxZoom
	}
	ps.session.SetTransform(geom.Transform{Mode: geom.ModeDirect, Zoom: ps.zoom, Pan: ps.pan})
	ps.raster.Refresh()
}

// SetPan shifts the view and reapplies the transform.
func (ps *PaintSurface) SetPan(dx, dy float64) {
	ps.pan.X += dx
	ps.pan.Y += dy
	ps.session.SetTransform(geom.Transform{Mode: geom.ModeDirect, Zoom: ps.zoom, Pan: ps.pan})
	ps.raster.Refresh()
}

// Refresh redraws the surface.
func (ps *PaintSurface) Refresh() {
	ps.raster.Refresh()
}
