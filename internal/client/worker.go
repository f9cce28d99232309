package client

import (
	"context"
	"image"
	"log"
	"sync"
)

// Fetcher downloads one slice's authoritative mask snapshot.
type Fetcher interface {
	FetchMask(ctx context.Context, segID string, slice int, cacheBust string) (image.Image, error)
}

var _ Fetcher = (*Client)(nil)

// SnapshotResult is one completed mask fetch.
type SnapshotResult struct {
	Segmentation string
	Slice        int
	Image        image.Image
	Err          error
}

type fetchJob struct {
	segmentation string
	slice        int
}

// Worker fetches and decodes mask snapshots off the caller's goroutine, so a
// slow backend never stalls pointer handling or navigation. Results arrive on
// Results in completion order; a new request for a slice does not cancel an
// in-flight one, callers drop results they no longer care about.
type Worker struct {
	fetcher Fetcher
	Results chan SnapshotResult
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	jobs    chan fetchJob
	stopped bool
}

// NewWorker starts the fetch loop.
func NewWorker(f Fetcher) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		fetcher: f,
		jobs:    make(chan fetchJob, 16),
		Results: make(chan SnapshotResult, 16),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go w.loop(ctx)
	return w
}

// Request queues a snapshot fetch. Returns false if the queue is full or the
// worker is stopped, in which case the caller retries on the next
// reconciliation.
func (w *Worker) Request(segID string, slice int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return false
	}
	select {
	case w.jobs <- fetchJob{segmentation: segID, slice: slice}:
		return true
	default:
		log.Printf("[Fetch] queue full, dropping request for %s/%d", segID, slice)
		return false
	}
}

// Stop shuts the worker down and closes Results.
func (w *Worker) Stop() {
	w.cancel()
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.jobs)
	}
	w.mu.Unlock()
	<-w.done
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)
	defer close(w.Results)

	for job := range w.jobs {
		img, err := w.fetcher.FetchMask(ctx, job.segmentation, job.slice, CacheBustToken())
		select {
		case w.Results <- SnapshotResult{Segmentation: job.segmentation, Slice: job.slice, Image: img, Err: err}:
		case <-ctx.Done():
			return
		}
	}
}
