// Package cache provides caching for encoded mask snapshots and decoded
// canvases. It is constructed explicitly and injected; consumers receive an
// instance with an explicit lifecycle instead of importing shared state.
package cache

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Config contains cache configuration.
type Config struct {
	SnapshotSizeMB int
	SnapshotTTL    time.Duration
	CanvasPoolSize int
}

// Manager manages the snapshot byte cache and the decoded canvas pool.
type Manager struct {
	snapshots *bigcache.BigCache
	canvases  *lru.Cache[string, *image.NRGBA]
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	snapshotConfig := bigcache.Config{
		Shards:             1024,
		LifeWindow:         cfg.SnapshotTTL,
		CleanWindow:        cfg.SnapshotTTL / 2,
		MaxEntriesInWindow: 100000,
		MaxEntrySize:       256 * 1024, // encoded slice mask
		HardMaxCacheSize:   cfg.SnapshotSizeMB,
		Verbose:            false,
	}

	snapshots, err := bigcache.New(context.Background(), snapshotConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot cache: %w", err)
	}

	canvases, err := lru.New[string, *image.NRGBA](cfg.CanvasPoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create canvas pool: %w", err)
	}

	return &Manager{snapshots: snapshots, canvases: canvases}, nil
}

// GetSnapshot retrieves an encoded snapshot from cache.
func (m *Manager) GetSnapshot(key string) ([]byte, bool) {
	data, err := m.snapshots.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetSnapshot stores an encoded snapshot in cache.
func (m *Manager) SetSnapshot(key string, data []byte) error {
	return m.snapshots.Set(key, data)
}

// GetCanvas retrieves a decoded canvas from the pool.
func (m *Manager) GetCanvas(key string) (*image.NRGBA, bool) {
	return m.canvases.Get(key)
}

// SetCanvas stores a decoded canvas in the pool.
func (m *Manager) SetCanvas(key string, img *image.NRGBA) {
	m.canvases.Add(key, img)
}

// SnapshotKey generates the cache key for a slice's mask snapshot. Including
// the journal revision makes stale entries unreachable instead of requiring
// invalidation.
func SnapshotKey(segID string, slice int, revision int64) string {
	return fmt.Sprintf("mask:%s/%d@%d", segID, slice, revision)
}

// CanvasKey generates the pool key for a decoded slice canvas at a journal
// revision.
func CanvasKey(segID string, slice int, revision int64) string {
	return fmt.Sprintf("canvas:%s/%d@%d", segID, slice, revision)
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"snapshot_cache_len": m.snapshots.Len(),
		"snapshot_cache_cap": m.snapshots.Capacity(),
		"canvas_pool_len":    m.canvases.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.snapshots.Close()
}
