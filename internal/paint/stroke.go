// Package paint holds the optimistic per-slice paint state: the stroke model,
// the unconfirmed-stroke cache, and the pointer-event reducer.
package paint

// Stroke is one discrete brush application at a single image coordinate.
// A drag gesture emits many strokes, one per pointer tick. X and Y are image
// (voxel) coordinates, already clamped into the slice bounds.
type Stroke struct {
	X     int  `json:"x"`
	Y     int  `json:"y"`
	Label int  `json:"label_id"`
	Size  int  `json:"brush_size"`
	Erase bool `json:"erase"`
}

// Placed is a stroke bound to the slice it was painted on.
type Placed struct {
	Slice  int    `json:"slice_index"`
	Stroke Stroke `json:"stroke"`
}

// Brush is the active painting tool configuration, supplied by the host shell.
type Brush struct {
	Label int
	Size  int
	Erase bool
}

// Cursor is the last known pointer position in image coordinates. Valid is
// false once the pointer has left the surface.
type Cursor struct {
	Valid bool
	X     int
	Y     int
}
