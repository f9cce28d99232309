// Package labels provides the ordered label table for a segmentation.
package labels

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Background is the reserved label rendered fully transparent.
const Background = 0

// Label is one entry of a segmentation's label table.
type Label struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"` // #rrggbb
}

// Table is an ordered label table. ID 0 is always the transparent background.
type Table struct {
	labels []Label
	byID   map[int]int
}

// NewTable creates a table holding only the background label.
func NewTable() *Table {
	t := &Table{byID: make(map[int]int)}
	t.labels = append(t.labels, Label{ID: Background, Name: "background", Color: "#000000"})
	t.byID[Background] = 0
	return t
}

// FromLabels rebuilds a table from a stored label list. The background label
// is inserted if the list does not carry it.
func FromLabels(list []Label) *Table {
	t := NewTable()
	for _, l := range list {
		if l.ID == Background {
			continue
		}
		t.byID[l.ID] = len(t.labels)
		t.labels = append(t.labels, l)
	}
	return t
}

// Add appends a label with the next free ID and a palette color, returning it.
func (t *Table) Add(name string) Label {
	id := 0
	for _, l := range t.labels {
		if l.ID > id {
			id = l.ID
		}
	}
	id++
	l := Label{ID: id, Name: name, Color: paletteHex(len(t.labels) - 1)}
	t.byID[id] = len(t.labels)
	t.labels = append(t.labels, l)
	return l
}

// Get returns the label with the given ID.
func (t *Table) Get(id int) (Label, bool) {
	idx, ok := t.byID[id]
	if !ok {
		return Label{}, false
	}
	return t.labels[idx], true
}

// List returns all labels in table order, background first.
func (t *Table) List() []Label {
	out := make([]Label, len(t.labels))
	copy(out, t.labels)
	return out
}

// Color returns the render color for a label ID with the given overlay alpha.
// The background label and unknown IDs are fully transparent.
func (t *Table) Color(id int, alpha uint8) color.NRGBA {
	if id == Background {
		return color.NRGBA{}
	}
	l, ok := t.Get(id)
	if !ok {
		return color.NRGBA{}
	}
	c, err := ParseHex(l.Color)
	if err != nil {
		return color.NRGBA{}
	}
	c.A = alpha
	return c
}

// ParseHex parses a #rrggbb color string.
func ParseHex(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 255,
	}, nil
}

// palette holds distinct colors assigned to new labels in order; wraps around.
var palette = []color.NRGBA{
	{227, 26, 28, 255},   // red
	{31, 120, 180, 255},  // blue
	{51, 160, 44, 255},   // green
	{255, 127, 0, 255},   // orange
	{106, 61, 154, 255},  // purple
	{177, 89, 40, 255},   // brown
	{251, 154, 153, 255}, // light red
	{166, 206, 227, 255}, // light blue
	{178, 223, 138, 255}, // light green
	{253, 191, 111, 255}, // light orange
	{202, 178, 214, 255}, // light purple
	{255, 255, 153, 255}, // yellow
}

func paletteHex(i int) string {
	if i < 0 {
		i = 0
	}
	c := palette[i%len(palette)]
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
