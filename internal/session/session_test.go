package session

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/slicepaint/slicepaint/internal/paint"
	"github.com/slicepaint/slicepaint/internal/reconcile"
	"github.com/slicepaint/slicepaint/pkg/labels"
)

type fakeTimer struct {
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := t.stopped
	t.stopped = true
	return !was
}

// fakeClock hands out timers whose callbacks only run when the test fires
// them, making the debounce fully deterministic.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
	fns    []func()
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) reconcile.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{}
	c.timers = append(c.timers, t)
	c.fns = append(c.fns, f)
	return t
}

// firePending runs the latest non-stopped timer callback.
func (c *fakeClock) firePending(t *testing.T) {
	t.Helper()
	c.mu.Lock()
	var fn func()
	for i := len(c.timers) - 1; i >= 0; i-- {
		if !c.timers[i].stopped {
			c.timers[i].stopped = true
			fn = c.fns[i]
			break
		}
	}
	c.mu.Unlock()
	if fn == nil {
		t.Fatal("no pending timer to fire")
	}
	fn()
}

type fakeFetcher struct {
	mu    sync.Mutex
	img   image.Image
	err   error
	calls int
}

func (f *fakeFetcher) FetchMask(ctx context.Context, segID string, slice int, cacheBust string) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.img, nil
}

func (f *fakeFetcher) respond(img image.Image, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.img, f.err = img, err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSubmitter struct {
	strokes chan paint.Placed
}

func (s *fakeSubmitter) PostStroke(ctx context.Context, segID string, slice int, labelID, x, y, size int, erase bool) error {
	s.strokes <- paint.Placed{
		Slice:  slice,
		Stroke: paint.Stroke{X: x, Y: y, Label: labelID, Size: size, Erase: erase},
	}
	return nil
}

func transparent(w, h int) image.Image {
	return image.NewNRGBA(image.Rect(0, 0, w, h))
}

func painted(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.SetNRGBA(1, 1, color.NRGBA{R: 255, A: 255})
	return img
}

// waitFor polls until cond holds; fetches apply asynchronously.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestSession(t *testing.T) (*Session, *fakeFetcher, *fakeClock, *fakeSubmitter) {
	t.Helper()

	fetcher := &fakeFetcher{img: transparent(256, 256)}
	clock := &fakeClock{}
	submitter := &fakeSubmitter{strokes: make(chan paint.Placed, 64)}

	tbl := labels.NewTable()
	tbl.Add("tumor")

	s := New(Config{
		Fetcher:   fetcher,
		Submitter: submitter,
		Labels:    tbl,
		Clock:     clock,
		SurfaceW:  256,
		SurfaceH:  256,
	})
	t.Cleanup(s.Close)

	s.SetSegmentation("seg-1", 256, 256)
	// Let the navigation fetch settle so tests start from a known state.
	waitFor(t, "initial reconcile", func() bool {
		return fetcher.callCount() >= 1 && s.State() == Clean
	})
	s.SetBrush(paint.Brush{Label: 1, Size: 3})
	s.SetEnabled(true)
	return s, fetcher, clock, submitter
}

func down(x, y float64) paint.PointerEvent {
	return paint.PointerEvent{Kind: paint.PointerDown, X: x, Y: y}
}
func move(x, y float64) paint.PointerEvent {
	return paint.PointerEvent{Kind: paint.PointerMove, X: x, Y: y}
}
func up(x, y float64) paint.PointerEvent {
	return paint.PointerEvent{Kind: paint.PointerUp, X: x, Y: y}
}

func TestPaintRecordsAndSubmits(t *testing.T) {
	s, _, _, submitter := newTestSession(t)

	s.Pointer(down(10, 10))
	s.Pointer(move(11, 10))
	s.Pointer(up(11, 10))

	if got := s.State(); got != Dirty {
		t.Errorf("state = %v, want Dirty", got)
	}
	if dirty := s.DirtySlices(); len(dirty) != 1 || dirty[0] != 0 {
		t.Errorf("dirty slices = %v, want [0]", dirty)
	}

	// Down and move both submit, asynchronously.
	for i := 0; i < 2; i++ {
		select {
		case p := <-submitter.strokes:
			if p.Slice != 0 || p.Stroke.Label != 1 {
				t.Errorf("unexpected submitted stroke: %+v", p)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("stroke never submitted")
		}
	}

	// The overlay shows the unconfirmed paint.
	frame := s.Frame()
	if _, _, _, a := frame.At(10, 10).RGBA(); a == 0 {
		t.Error("painted pixel missing from frame")
	}
}

func TestReconcile_TrustedSnapshotClearsCache(t *testing.T) {
	s, fetcher, clock, _ := newTestSession(t)

	s.Pointer(down(10, 10))
	s.Pointer(up(10, 10))

	fetcher.respond(painted(256, 256), nil)
	clock.firePending(t)

	waitFor(t, "trusted snapshot applied", func() bool {
		return s.State() == Clean && len(s.DirtySlices()) == 0
	})
}

func TestReconcile_FalseEmptyKeepsCache(t *testing.T) {
	s, fetcher, clock, _ := newTestSession(t)

	s.Pointer(down(10, 10))
	s.Pointer(up(10, 10))

	fetcher.respond(transparent(256, 256), nil)
	clock.firePending(t)

	// firePending marks the slice reconciling; the verdict arrives async.
	waitFor(t, "false-empty verdict", func() bool {
		return s.State() == Dirty
	})
	if len(s.DirtySlices()) != 1 {
		t.Error("false-empty snapshot must not clear local strokes")
	}

	// The local paint is still on the overlay.
	frame := s.Frame()
	if _, _, _, a := frame.At(10, 10).RGBA(); a == 0 {
		t.Error("local paint vanished after untrusted snapshot")
	}
}

func TestReconcile_FetchFailureKeepsCache(t *testing.T) {
	s, fetcher, clock, _ := newTestSession(t)

	s.Pointer(down(10, 10))
	s.Pointer(up(10, 10))

	fetcher.respond(nil, errors.New("backend down"))
	clock.firePending(t)

	waitFor(t, "fetch-failure verdict", func() bool {
		return s.State() == Dirty
	})
	if len(s.DirtySlices()) != 1 {
		t.Error("fetch failure must not clear local strokes")
	}
}

func TestSetSlice_StrokesSurviveNavigation(t *testing.T) {
	s, fetcher, _, _ := newTestSession(t)

	s.Pointer(down(10, 10))
	s.Pointer(up(10, 10))
	before := fetcher.callCount()

	// Navigation issues an immediate reconciliation for the new slice, but
	// the server has no record of slice 0's paint yet.
	s.SetSlice(5, nil)
	waitFor(t, "navigation fetch", func() bool {
		return fetcher.callCount() == before+1
	})
	if dirty := s.DirtySlices(); len(dirty) != 1 || dirty[0] != 0 {
		t.Errorf("slice 0 strokes lost on navigation: %v", dirty)
	}

	// Coming back, the parked strokes render again.
	s.SetSlice(0, nil)
	frame := s.Frame()
	if _, _, _, a := frame.At(10, 10).RGBA(); a == 0 {
		t.Error("parked strokes not rendered after returning to the slice")
	}
}

func TestSetSlice_DoesNotBlockOnFetch(t *testing.T) {
	release := make(chan struct{})
	fetcher := &gatedFetcher{release: release}

	s := New(Config{
		Fetcher:  fetcher,
		Clock:    &fakeClock{},
		SurfaceW: 256,
		SurfaceH: 256,
	})
	t.Cleanup(s.Close)

	s.SetSegmentation("seg-1", 256, 256)

	// The first fetch is now parked on the gate; navigation must still
	// return immediately.
	start := time.Now()
	s.SetSlice(3, nil)
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("slice change blocked for %v waiting on the network", elapsed)
	}

	close(release)
	waitFor(t, "gated fetches to settle", func() bool {
		return s.State() == Clean
	})
}

// gatedFetcher parks every fetch until the gate opens.
type gatedFetcher struct {
	release chan struct{}
}

func (f *gatedFetcher) FetchMask(ctx context.Context, segID string, slice int, cacheBust string) (image.Image, error) {
	select {
	case <-f.release:
		return transparent(256, 256), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestSetSlice_ResolvesToSliceAtEventTime(t *testing.T) {
	s, _, _, _ := newTestSession(t)

	s.Pointer(down(10, 10))
	s.SetSlice(7, nil)
	// The drag continues after the async slice change.
	s.Pointer(move(12, 10))
	s.Pointer(up(12, 10))

	dirty := s.DirtySlices()
	if len(dirty) != 2 {
		t.Fatalf("expected strokes on both slices, got %v", dirty)
	}
}

func TestSetSegmentation_DropsEverything(t *testing.T) {
	s, _, _, _ := newTestSession(t)

	s.Pointer(down(10, 10))
	s.Pointer(up(10, 10))
	s.SetSlice(3, nil)
	s.Pointer(down(20, 20))
	s.Pointer(up(20, 20))

	s.SetSegmentation("seg-2", 256, 256)
	if len(s.DirtySlices()) != 0 {
		t.Errorf("strokes survived a segmentation change: %v", s.DirtySlices())
	}
	waitFor(t, "post-switch reconcile", func() bool {
		return s.State() == Clean
	})
}

func TestDisabledPaintingStillTracksCursor(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	s.SetEnabled(false)

	s.Pointer(down(10, 10))
	s.Pointer(up(10, 10))

	if len(s.DirtySlices()) != 0 {
		t.Error("disabled session recorded strokes")
	}
}

func TestTrustedMaskRendersInOverlay(t *testing.T) {
	s, fetcher, clock, _ := newTestSession(t)

	mask := image.NewNRGBA(image.Rect(0, 0, 256, 256))
	mask.SetNRGBA(40, 40, color.NRGBA{G: 200, A: 255})
	fetcher.respond(mask, nil)

	s.Pointer(down(10, 10))
	s.Pointer(up(10, 10))
	clock.firePending(t)

	waitFor(t, "mask applied", func() bool {
		return s.State() == Clean
	})
	frame := s.Frame()
	if _, _, _, a := frame.At(40, 40).RGBA(); a == 0 {
		t.Error("trusted server mask not composited")
	}

	s.SetShowMask(false)
	frame = s.Frame()
	if _, g, _, _ := frame.At(40, 40).RGBA(); g > 0x1000 {
		t.Error("mask still visible with ShowMask off")
	}
}
