// Package session owns one viewer's painting state: the optimistic stroke
// cache, the pointer reducer, the reconciliation schedule, and the composited
// surface. All entry points are serialized by one mutex; the backend is only
// touched from the fetch worker and fire-and-forget stroke submits, so no
// caller ever blocks on the network.
package session

import (
	"context"
	"image"
	"log"
	"sync"
	"time"

	"github.com/slicepaint/slicepaint/internal/client"
	"github.com/slicepaint/slicepaint/internal/geom"
	"github.com/slicepaint/slicepaint/internal/paint"
	"github.com/slicepaint/slicepaint/internal/reconcile"
	"github.com/slicepaint/slicepaint/internal/render"
	"github.com/slicepaint/slicepaint/pkg/labels"
)

// SyncState tracks where the slice's paint stands relative to the backend.
type SyncState int

const (
	// Clean means the backend is believed to hold everything local.
	Clean SyncState = iota
	// Dirty means unconfirmed strokes exist for the active slice.
	Dirty
	// Reconciling means a snapshot fetch for the active slice is in flight.
	Reconciling
)

func (s SyncState) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Reconciling:
		return "reconciling"
	}
	return "unknown"
}

// Submitter persists one stroke on the backend.
type Submitter interface {
	PostStroke(ctx context.Context, segID string, slice int, labelID, x, y, size int, erase bool) error
}

// Config contains session configuration.
type Config struct {
	Fetcher   client.Fetcher
	Submitter Submitter
	Labels    *labels.Table
	// Quiet overrides the reconciliation quiet period; zero uses the default.
	Quiet time.Duration
	// Clock overrides timer creation, for tests.
	Clock reconcile.Clock
	// OnFrame is invoked after every redraw so the host can blit. May be nil.
	OnFrame func()

	SurfaceW int
	SurfaceH int
}

// inflightFetch records what the cache looked like when a reconciliation was
// requested, so a snapshot only clears the strokes it could have contained.
type inflightFetch struct {
	gen   uint64
	count int
}

// Session is the painting engine for one viewer.
type Session struct {
	worker    *client.Worker
	submitter Submitter
	sched     *reconcile.Scheduler
	onFrame   func()

	mu       sync.Mutex
	cache    *paint.Cache
	comp     *render.Compositor
	table    *labels.Table
	state    paint.State
	sync     SyncState
	inflight map[int]inflightFetch
	closed   bool

	segID      string
	slice      int
	imgW, imgH int
	transform  geom.Transform
	brush      paint.Brush
	enabled    bool
	showMask   bool
	baseImage  image.Image
	serverMask image.Image

	// gen invalidates in-flight reconciliations after slice or segmentation
	// changes; a stale fetch result must never clear the wrong cache entry.
	gen uint64
}

// New creates a session. It is idle until SetSegmentation is called.
func New(cfg Config) *Session {
	s := &Session{
		submitter: cfg.Submitter,
		onFrame:   cfg.OnFrame,
		cache:     paint.NewCache(),
		table:     cfg.Labels,
		showMask:  true,
		inflight:  make(map[int]inflightFetch),
		comp: render.NewCompositor(render.Config{
			SurfaceW: cfg.SurfaceW,
			SurfaceH: cfg.SurfaceH,
		}),
		transform: geom.Identity(),
	}
	if s.table == nil {
		s.table = labels.NewTable()
	}
	s.sched = reconcile.NewScheduler(cfg.Quiet, cfg.Clock, s.reconcile)
	if cfg.Fetcher != nil {
		s.worker = client.NewWorker(cfg.Fetcher)
		go s.drainResults()
	}
	return s
}

// SetSegmentation switches to a different segmentation. Local strokes belong
// to the old identity and are dropped wholesale, then the authoritative state
// for the first visible slice is pulled immediately.
func (s *Session) SetSegmentation(id string, imgW, imgH int) {
	s.mu.Lock()
	s.segID = id
	s.imgW = imgW
	s.imgH = imgH
	s.slice = 0
	s.gen++
	s.cache.ClearAll()
	s.serverMask = nil
	s.baseImage = nil
	s.state = paint.State{}
	s.sync = Clean
	s.redrawBaseLocked()
	s.redrawOverlayLocked()
	s.mu.Unlock()

	s.sched.FireNow()
}

// SetSlice navigates to another slice, carrying the new slice's base raster.
// The stroke cache is untouched: strokes for other slices stay parked until
// their own reconciliation confirms them.
func (s *Session) SetSlice(index int, base image.Image) {
	s.mu.Lock()
	if index == s.slice && base == s.baseImage {
		s.mu.Unlock()
		return
	}
	s.slice = index
	s.gen++
	s.baseImage = base
	s.serverMask = nil
	s.state.Cursor = paint.Cursor{}
	if s.cache.Has(index) {
		s.sync = Dirty
	} else {
		s.sync = Clean
	}
	s.redrawBaseLocked()
	s.redrawOverlayLocked()
	s.mu.Unlock()

	s.sched.FireNow()
}

// SetBaseImage swaps the active slice's raster without navigating.
func (s *Session) SetBaseImage(base image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseImage = base
	s.redrawBaseLocked()
	s.redrawOverlayLocked()
}

// SetTransform applies a new view transform. Both layers move together.
func (s *Session) SetTransform(t geom.Transform) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transform = t
	s.redrawBaseLocked()
	s.redrawOverlayLocked()
}

// SetBrush changes the active tool.
func (s *Session) SetBrush(b paint.Brush) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brush = b
	s.redrawOverlayLocked()
}

// SetEnabled toggles painting. Cursor tracking continues either way.
func (s *Session) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// SetShowMask toggles the server-mask layer of the overlay.
func (s *Session) SetShowMask(show bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showMask = show
	s.redrawOverlayLocked()
}

// Resize adapts the surface to a new size and redraws both layers.
func (s *Session) Resize(w, h int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comp.Resize(w, h)
	s.redrawBaseLocked()
	s.redrawOverlayLocked()
}

// Pointer feeds one pointer event through the reducer and executes its
// effects. The slice index bound into a recorded stroke is whatever is active
// right now, so a slice change racing a drag never misfiles paint.
func (s *Session) Pointer(ev paint.PointerEvent) {
	s.mu.Lock()
	ctx := paint.Context{
		Slice:     s.slice,
		Brush:     s.brush,
		Surface:   s.comp.SurfaceSize(),
		ImageW:    s.imgW,
		ImageH:    s.imgH,
		Transform: s.transform,
		Enabled:   s.enabled,
	}
	st, fx := paint.Step(s.state, ev, ctx)
	s.state = st

	if fx.Record != nil {
		s.cache.Record(fx.Record.Slice, fx.Record.Stroke)
		s.sync = Dirty
	}
	if fx.Render {
		s.redrawOverlayLocked()
	}
	segID := s.segID
	s.mu.Unlock()

	if fx.Persist != nil && s.submitter != nil && segID != "" {
		p := *fx.Persist
		go func() {
			err := s.submitter.PostStroke(context.Background(), segID,
				p.Slice, p.Stroke.Label, p.Stroke.X, p.Stroke.Y, p.Stroke.Size, p.Stroke.Erase)
			if err != nil {
				// The stroke stays in the cache; reconciliation will keep it
				// alive until a snapshot proves the backend has it.
				log.Printf("[Session] stroke submit failed: %v", err)
			}
		}()
	}
	if fx.ArmReconcile {
		s.sched.Schedule()
	}
}

// Frame returns the current composited frame.
func (s *Session) Frame() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comp.Frame()
}

// State reports the active slice's sync state.
func (s *Session) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sync
}

// DirtySlices lists slices still holding unconfirmed strokes.
func (s *Session) DirtySlices() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.DirtySlices()
}

// Close stops the reconciliation timer and the fetch worker. The session must
// not be used after.
func (s *Session) Close() {
	s.sched.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if s.worker != nil {
		s.worker.Stop()
	}
}

// reconcile queues a fetch of the active slice's authoritative snapshot. It
// only enqueues; the worker fetches and drainResults applies the verdict, so
// firing never blocks on the network.
func (s *Session) reconcile() {
	s.mu.Lock()
	if s.closed || s.segID == "" || s.worker == nil {
		s.mu.Unlock()
		return
	}
	segID, slice := s.segID, s.slice
	s.inflight[slice] = inflightFetch{gen: s.gen, count: len(s.cache.Get(slice))}
	s.sync = Reconciling
	s.mu.Unlock()

	if !s.worker.Request(segID, slice) {
		s.mu.Lock()
		delete(s.inflight, slice)
		if s.cache.Has(slice) {
			s.sync = Dirty
		} else {
			s.sync = Clean
		}
		s.mu.Unlock()
		s.sched.Schedule()
	}
}

// drainResults applies fetched snapshots as they arrive from the worker.
func (s *Session) drainResults() {
	for res := range s.worker.Results {
		s.applyResult(res)
	}
}

// applyResult runs the asymmetric trust policy on one fetched snapshot.
func (s *Session) applyResult(res client.SnapshotResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.inflight[res.Slice]
	if ok {
		delete(s.inflight, res.Slice)
	}
	if s.closed || !ok || req.gen != s.gen || res.Segmentation != s.segID || res.Slice != s.slice {
		// The viewer moved on while the fetch was in flight.
		return
	}

	verdict := reconcile.Verify(res.Image, res.Err, req.count > 0)
	if verdict.Trust {
		s.serverMask = res.Image
		// Strokes painted after the fetch was requested are not in this
		// snapshot; keep them and let their own timer re-reconcile.
		if len(s.cache.Get(res.Slice)) == req.count {
			s.cache.ClearSlice(res.Slice)
			s.sync = Clean
		} else {
			s.sync = Dirty
			s.sched.Schedule()
		}
	} else {
		log.Printf("[Session] snapshot for %s/%d not trusted (%s), keeping local strokes", res.Segmentation, res.Slice, verdict.Reason)
		if s.cache.Has(res.Slice) {
			s.sync = Dirty
		} else {
			s.sync = Clean
		}
	}
	s.redrawOverlayLocked()
}

func (s *Session) redrawBaseLocked() {
	s.comp.DrawBase(s.baseImage, s.imgW, s.imgH, s.transform)
}

func (s *Session) redrawOverlayLocked() {
	s.comp.DrawOverlay(render.OverlayInput{
		ServerMask: s.serverMask,
		Strokes:    s.cache.Get(s.slice),
		Cursor:     s.state.Cursor,
		Brush:      s.brush,
		Table:      s.table,
		ImageW:     s.imgW,
		ImageH:     s.imgH,
		Transform:  s.transform,
		ShowMask:   s.showMask,
	})
	if s.onFrame != nil {
		s.onFrame()
	}
}
