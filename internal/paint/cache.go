package paint

// Cache maps slice index -> ordered list of unconfirmed strokes. Strokes
// survive navigation to other slices and back; they are only removed when a
// trusted server snapshot supersedes them (ClearSlice) or when the active
// segmentation changes (ClearAll). A naive single-slice cache loses strokes on
// rapid slice scrubbing before the server confirms a save; this structure is
// the fix.
//
// Cache is not safe for concurrent use; the owning session serializes access.
type Cache struct {
	strokes map[int][]Stroke
}

// NewCache creates an empty paint cache.
func NewCache() *Cache {
	return &Cache{strokes: make(map[int][]Stroke)}
}

// Record appends a stroke for a slice. Repeated strokes at the same pixel are
// kept; deduplicating would break larger erase passes.
func (c *Cache) Record(slice int, s Stroke) {
	c.strokes[slice] = append(c.strokes[slice], s)
}

// Get returns the unconfirmed strokes for a slice in paint order. The returned
// slice is the cache's own backing array; callers must not mutate it.
func (c *Cache) Get(slice int) []Stroke {
	return c.strokes[slice]
}

// Has reports whether a slice has unconfirmed strokes.
func (c *Cache) Has(slice int) bool {
	return len(c.strokes[slice]) > 0
}

// ClearSlice drops the strokes for one slice. Called only once a trusted
// server snapshot for that slice has been received.
func (c *Cache) ClearSlice(slice int) {
	delete(c.strokes, slice)
}

// ClearAll drops every slice's strokes. Called on segmentation identity
// change; a different segmentation has unrelated data.
func (c *Cache) ClearAll() {
	c.strokes = make(map[int][]Stroke)
}

// DirtySlices returns the indices that currently hold unconfirmed strokes.
func (c *Cache) DirtySlices() []int {
	out := make([]int, 0, len(c.strokes))
	for idx, list := range c.strokes {
		if len(list) > 0 {
			out = append(out, idx)
		}
	}
	return out
}
