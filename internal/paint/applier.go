package paint

import (
	"github.com/slicepaint/slicepaint/internal/geom"
)

// EventKind identifies a pointer event.
type EventKind int

const (
	PointerDown EventKind = iota
	PointerMove
	PointerUp
	PointerLeave
)

// PointerEvent is a pointer input in screen coordinates.
type PointerEvent struct {
	Kind EventKind
	X    float64
	Y    float64
}

// Context carries the inputs the reducer reads at the moment an event fires.
// Slice must be the slice index current at event time, not a value captured
// earlier; async slice changes racing an in-flight drag resolve to whatever
// was active when the pointer event fired.
type Context struct {
	Slice     int
	Brush     Brush
	Surface   geom.Size
	ImageW    int
	ImageH    int
	Transform geom.Transform
	Enabled   bool
}

// State is the applier's explicit state between events.
type State struct {
	Painting bool
	Cursor   Cursor
}

// Effects lists the side effects a step requests. The session executes them:
// Record appends to the cache, Persist goes fire-and-forget to the backend,
// Render triggers a synchronous overlay redraw, ArmReconcile resets the
// debounced reconciliation timer.
type Effects struct {
	Record       *Placed
	Persist      *Placed
	Render       bool
	ArmReconcile bool
}

// Step is the pointer-event reducer: (state, event) -> (state, effects).
// It is pure so stroke handling can be tested without a live surface.
func Step(st State, ev PointerEvent, ctx Context) (State, Effects) {
	var fx Effects

	switch ev.Kind {
	case PointerDown:
		st.Cursor = cursorAt(ev, ctx)
		fx.Render = true
		if !ctx.Enabled {
			return st, fx
		}
		st.Painting = true
		placed := place(ev, ctx)
		fx.Record = &placed
		fx.Persist = &placed

	case PointerMove:
		st.Cursor = cursorAt(ev, ctx)
		fx.Render = true
		if st.Painting && ctx.Enabled {
			placed := place(ev, ctx)
			fx.Record = &placed
			fx.Persist = &placed
		}

	case PointerUp:
		if st.Painting {
			fx.ArmReconcile = true
		}
		st.Painting = false
		fx.Render = true

	case PointerLeave:
		if st.Painting {
			fx.ArmReconcile = true
		}
		st.Painting = false
		st.Cursor = Cursor{}
		fx.Render = true
	}

	return st, fx
}

func cursorAt(ev PointerEvent, ctx Context) Cursor {
	x, y := geom.ScreenToImage(ev.X, ev.Y, ctx.Surface, ctx.ImageW, ctx.ImageH, ctx.Transform)
	return Cursor{Valid: true, X: x, Y: y}
}

func place(ev PointerEvent, ctx Context) Placed {
	x, y := geom.ScreenToImage(ev.X, ev.Y, ctx.Surface, ctx.ImageW, ctx.ImageH, ctx.Transform)
	return Placed{
		Slice: ctx.Slice,
		Stroke: Stroke{
			X:     x,
			Y:     y,
			Label: ctx.Brush.Label,
			Size:  ctx.Brush.Size,
			Erase: ctx.Brush.Erase,
		},
	}
}
