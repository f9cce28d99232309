// Package service provides business logic for the mask backend.
package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/slicepaint/slicepaint/internal/cache"
	"github.com/slicepaint/slicepaint/internal/maskstore"
	"github.com/slicepaint/slicepaint/internal/paint"
	"github.com/slicepaint/slicepaint/internal/render"
	"github.com/slicepaint/slicepaint/pkg/labels"
)

var (
	// ErrNotFound indicates the segmentation does not exist.
	ErrNotFound = errors.New("segmentation not found")
	// ErrInvalidSlice indicates a slice index outside [0, total_slices).
	ErrInvalidSlice = errors.New("slice index out of range")
)

// Config contains mask service configuration.
type Config struct {
	Store      *maskstore.Store
	Cache      *cache.Manager
	Rasterizer *render.Rasterizer
}

// MaskService serves authoritative mask snapshots and accepts strokes. A
// snapshot is rasterized from the journal on demand, keyed in cache by the
// slice's journal revision so it never needs explicit invalidation.
type MaskService struct {
	store      *maskstore.Store
	cache      *cache.Manager
	rasterizer *render.Rasterizer
}

// NewMaskService creates a new mask service.
func NewMaskService(cfg Config) *MaskService {
	return &MaskService{
		store:      cfg.Store,
		cache:      cfg.Cache,
		rasterizer: cfg.Rasterizer,
	}
}

// CreateSegmentation creates a segmentation with a fresh identity and a label
// table holding the background plus the given label names.
func (s *MaskService) CreateSegmentation(name string, width, height, slices int, labelNames []string) (*maskstore.Segmentation, error) {
	if width <= 0 || height <= 0 || slices <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%dx%d", width, height, slices)
	}

	tbl := labels.NewTable()
	for _, n := range labelNames {
		tbl.Add(n)
	}

	seg := &maskstore.Segmentation{
		ID:     uuid.NewString(),
		Name:   name,
		Width:  width,
		Height: height,
		Slices: slices,
		Status: maskstore.StatusDraft,
		Labels: tbl.List(),
	}
	if err := s.store.CreateSegmentation(seg); err != nil {
		return nil, fmt.Errorf("failed to create segmentation: %w", err)
	}
	return seg, nil
}

// GetSegmentation returns a segmentation by ID.
func (s *MaskService) GetSegmentation(id string) (*maskstore.Segmentation, error) {
	seg, err := s.store.GetSegmentation(id)
	if err != nil {
		return nil, err
	}
	if seg == nil {
		return nil, ErrNotFound
	}
	return seg, nil
}

// ListSegmentations returns all segmentations.
func (s *MaskService) ListSegmentations() ([]*maskstore.Segmentation, error) {
	return s.store.ListSegmentations()
}

// UpdateStatus updates a segmentation's workflow status.
func (s *MaskService) UpdateStatus(id string, status maskstore.Status) error {
	if _, err := s.GetSegmentation(id); err != nil {
		return err
	}
	return s.store.UpdateStatus(id, status)
}

// AddLabel appends a label to a segmentation's table and returns it.
func (s *MaskService) AddLabel(id, name string) (labels.Label, error) {
	seg, err := s.GetSegmentation(id)
	if err != nil {
		return labels.Label{}, err
	}
	tbl := labels.FromLabels(seg.Labels)
	l := tbl.Add(name)
	if err := s.store.UpdateLabels(id, tbl.List()); err != nil {
		return labels.Label{}, err
	}
	return l, nil
}

// DeleteSegmentation removes a segmentation and everything derived from it.
func (s *MaskService) DeleteSegmentation(id string) error {
	if _, err := s.GetSegmentation(id); err != nil {
		return err
	}
	return s.store.DeleteSegmentation(id)
}

// RecordStroke validates and journals one stroke. The stroke's coordinates
// are clamped into the slice bounds; a bad slice index is rejected.
func (s *MaskService) RecordStroke(segID string, p paint.Placed) error {
	seg, err := s.GetSegmentation(segID)
	if err != nil {
		return err
	}
	if p.Slice < 0 || p.Slice >= seg.Slices {
		return fmt.Errorf("%w: %d (total %d)", ErrInvalidSlice, p.Slice, seg.Slices)
	}

	p.Stroke.X = clamp(p.Stroke.X, seg.Width)
	p.Stroke.Y = clamp(p.Stroke.Y, seg.Height)
	if p.Stroke.Size < 1 {
		p.Stroke.Size = 1
	}

	if _, err := s.store.AppendStroke(segID, p); err != nil {
		return fmt.Errorf("failed to journal stroke: %w", err)
	}
	return nil
}

// Snapshot returns the encoded authoritative mask for a slice. A slice with
// no journaled strokes yields a fully transparent image of the declared
// dimensions, which is the "no data" signal clients key off.
func (s *MaskService) Snapshot(segID string, slice int) ([]byte, error) {
	seg, err := s.GetSegmentation(segID)
	if err != nil {
		return nil, err
	}
	if slice < 0 || slice >= seg.Slices {
		return nil, fmt.Errorf("%w: %d (total %d)", ErrInvalidSlice, slice, seg.Slices)
	}

	rev, err := s.store.SliceRevision(segID, slice)
	if err != nil {
		return nil, err
	}

	key := cache.SnapshotKey(segID, slice, rev)
	if data, ok := s.cache.GetSnapshot(key); ok {
		return data, nil
	}

	data, err := s.renderSnapshot(seg, slice, rev)
	if err != nil {
		return nil, err
	}
	s.cache.SetSnapshot(key, data)
	return data, nil
}

// EmptySnapshot returns a transparent snapshot without consulting the
// journal, mimicking an instance that has no record of the paint. Exists for
// the client-side reconciliation tests.
func (s *MaskService) EmptySnapshot(segID string) ([]byte, error) {
	seg, err := s.GetSegmentation(segID)
	if err != nil {
		return nil, err
	}
	return s.rasterizer.TransparentSnapshot(seg.Width, seg.Height)
}

func (s *MaskService) renderSnapshot(seg *maskstore.Segmentation, slice int, rev int64) ([]byte, error) {
	if rev == 0 {
		return s.rasterizer.TransparentSnapshot(seg.Width, seg.Height)
	}

	// Reuse the stored blob when it is still at the journal head.
	if blob, blobRev, err := s.store.LoadSliceBlob(seg.ID, slice); err == nil && blobRev == rev && blob != nil {
		return blob, nil
	}

	ckey := cache.CanvasKey(seg.ID, slice, rev)
	img, ok := s.cache.GetCanvas(ckey)
	if !ok {
		strokes, err := s.store.SliceStrokes(seg.ID, slice)
		if err != nil {
			return nil, err
		}
		tbl := labels.FromLabels(seg.Labels)
		img = s.rasterizer.Rasterize(seg.Width, seg.Height, strokes, tbl)
		s.cache.SetCanvas(ckey, img)
	}

	data, err := s.rasterizer.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := s.store.SaveSliceBlob(seg.ID, slice, rev, data); err != nil {
		// Blob is derived state; failing to persist it is not fatal.
		return data, nil
	}
	return data, nil
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}
