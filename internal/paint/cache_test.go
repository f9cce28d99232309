package paint

import (
	"reflect"
	"testing"
)

func TestCache_SurvivesSliceNavigation(t *testing.T) {
	c := NewCache()

	strokes := []Stroke{
		{X: 10, Y: 10, Label: 1, Size: 3},
		{X: 11, Y: 10, Label: 1, Size: 3},
		{X: 11, Y: 10, Label: 1, Size: 5, Erase: true},
	}
	for _, s := range strokes {
		c.Record(4, s)
	}

	before := append([]Stroke(nil), c.Get(4)...)

	// Simulate scrubbing to other slices and painting there.
	c.Record(5, Stroke{X: 1, Y: 1, Label: 2, Size: 1})
	c.Record(6, Stroke{X: 2, Y: 2, Label: 2, Size: 1})

	after := c.Get(4)
	if !reflect.DeepEqual(before, after) {
		t.Errorf("strokes for slice 4 changed across navigation: before=%v after=%v", before, after)
	}
}

func TestCache_NoDeduplication(t *testing.T) {
	c := NewCache()
	s := Stroke{X: 7, Y: 7, Label: 1, Size: 9, Erase: true}
	c.Record(0, s)
	c.Record(0, s)

	if got := len(c.Get(0)); got != 2 {
		t.Errorf("expected 2 strokes, got %d", got)
	}
}

func TestCache_ClearSlice(t *testing.T) {
	c := NewCache()
	c.Record(1, Stroke{X: 1, Y: 1, Label: 1, Size: 1})
	c.Record(2, Stroke{X: 2, Y: 2, Label: 1, Size: 1})

	c.ClearSlice(1)

	if c.Has(1) {
		t.Error("slice 1 should be empty after ClearSlice")
	}
	if !c.Has(2) {
		t.Error("slice 2 should be untouched")
	}
}

func TestCache_ClearAll(t *testing.T) {
	c := NewCache()
	c.Record(1, Stroke{X: 1, Y: 1, Label: 1, Size: 1})
	c.Record(9, Stroke{X: 2, Y: 2, Label: 1, Size: 1})

	c.ClearAll()

	if len(c.DirtySlices()) != 0 {
		t.Errorf("expected no dirty slices, got %v", c.DirtySlices())
	}
}

func TestCache_GetEmptySlice(t *testing.T) {
	c := NewCache()
	if got := c.Get(42); len(got) != 0 {
		t.Errorf("expected empty list, got %v", got)
	}
}
