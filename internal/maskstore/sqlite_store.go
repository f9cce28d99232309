// Package maskstore persists segmentations, the per-slice stroke journal, and
// rasterized mask blobs using SQLite.
package maskstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/slicepaint/slicepaint/internal/paint"
	"github.com/slicepaint/slicepaint/pkg/labels"
)

// Status is a segmentation's workflow status.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Segmentation is the stored identity of one editing target: an ordered label
// table, slice geometry, and workflow status.
type Segmentation struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Slices    int            `json:"total_slices"`
	Status    Status         `json:"status"`
	Labels    []labels.Label `json:"labels"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store provides persistent storage for segmentations and strokes. The stroke
// journal is the source of truth; snapshot blobs are derived and rebuildable.
type Store struct {
	db *sql.DB
	mu sync.Mutex

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewStore creates a SQLite-backed mask store.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// WAL for better concurrency between stroke writes and snapshot reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	s := &Store{db: db, enc: enc, dec: dec}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS segmentations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		slices INTEGER NOT NULL,
		status TEXT NOT NULL,
		labels_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS strokes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		segmentation_id TEXT NOT NULL,
		slice_index INTEGER NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		label_id INTEGER NOT NULL,
		brush_size INTEGER NOT NULL,
		erase INTEGER NOT NULL,
		revision INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (segmentation_id) REFERENCES segmentations(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_strokes_slice ON strokes(segmentation_id, slice_index, id);

	CREATE TABLE IF NOT EXISTS mask_blobs (
		segmentation_id TEXT NOT NULL,
		slice_index INTEGER NOT NULL,
		revision INTEGER NOT NULL,
		blob BLOB NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (segmentation_id, slice_index),
		FOREIGN KEY (segmentation_id) REFERENCES segmentations(id) ON DELETE CASCADE
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateSegmentation inserts a new segmentation record.
func (s *Store) CreateSegmentation(seg *Segmentation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	labelsJSON, err := json.Marshal(seg.Labels)
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}

	now := time.Now()
	seg.CreatedAt = now
	seg.UpdatedAt = now
	if seg.Status == "" {
		seg.Status = StatusDraft
	}

	_, err = s.db.Exec(`
		INSERT INTO segmentations (id, name, width, height, slices, status, labels_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		seg.ID,
		seg.Name,
		seg.Width,
		seg.Height,
		seg.Slices,
		string(seg.Status),
		string(labelsJSON),
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	return err
}

// GetSegmentation retrieves a segmentation by ID. Returns (nil, nil) when it
// does not exist.
func (s *Store) GetSegmentation(id string) (*Segmentation, error) {
	row := s.db.QueryRow(`
		SELECT id, name, width, height, slices, status, labels_json, created_at, updated_at
		FROM segmentations WHERE id = ?
	`, id)
	return scanSegmentation(row)
}

// ListSegmentations returns all segmentations ordered by creation time.
func (s *Store) ListSegmentations() ([]*Segmentation, error) {
	rows, err := s.db.Query(`
		SELECT id, name, width, height, slices, status, labels_json, created_at, updated_at
		FROM segmentations ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Segmentation
	for rows.Next() {
		seg, err := scanSegmentation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSegmentation(row rowScanner) (*Segmentation, error) {
	var seg Segmentation
	var status, labelsJSON, createdAt, updatedAt string

	err := row.Scan(&seg.ID, &seg.Name, &seg.Width, &seg.Height, &seg.Slices, &status, &labelsJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	seg.Status = Status(status)
	if err := json.Unmarshal([]byte(labelsJSON), &seg.Labels); err != nil {
		return nil, fmt.Errorf("failed to unmarshal labels: %w", err)
	}
	seg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	seg.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &seg, nil
}

// UpdateStatus updates a segmentation's workflow status.
func (s *Store) UpdateStatus(id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE segmentations SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), time.Now().Format(time.RFC3339), id)
	return err
}

// UpdateLabels replaces a segmentation's label table.
func (s *Store) UpdateLabels(id string, list []labels.Label) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	labelsJSON, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}
	_, err = s.db.Exec(`
		UPDATE segmentations SET labels_json = ?, updated_at = ? WHERE id = ?
	`, string(labelsJSON), time.Now().Format(time.RFC3339), id)
	return err
}

// DeleteSegmentation removes a segmentation, its journal, and its blobs.
func (s *Store) DeleteSegmentation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM mask_blobs WHERE segmentation_id = ?`,
		`DELETE FROM strokes WHERE segmentation_id = ?`,
		`DELETE FROM segmentations WHERE id = ?`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AppendStroke appends one stroke to the journal and returns the new revision
// for its slice. Revisions are monotonic per (segmentation, slice).
func (s *Store) AppendStroke(segID string, p paint.Placed) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var rev int64
	err = tx.QueryRow(`
		SELECT COALESCE(MAX(revision), 0) FROM strokes
		WHERE segmentation_id = ? AND slice_index = ?
	`, segID, p.Slice).Scan(&rev)
	if err != nil {
		return 0, err
	}
	rev++

	erase := 0
	if p.Stroke.Erase {
		erase = 1
	}
	_, err = tx.Exec(`
		INSERT INTO strokes (segmentation_id, slice_index, x, y, label_id, brush_size, erase, revision, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, segID, p.Slice, p.Stroke.X, p.Stroke.Y, p.Stroke.Label, p.Stroke.Size, erase, rev, time.Now().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}

	return rev, tx.Commit()
}

// SliceRevision returns the current journal revision for a slice; 0 means no
// strokes were ever recorded.
func (s *Store) SliceRevision(segID string, slice int) (int64, error) {
	var rev int64
	err := s.db.QueryRow(`
		SELECT COALESCE(MAX(revision), 0) FROM strokes
		WHERE segmentation_id = ? AND slice_index = ?
	`, segID, slice).Scan(&rev)
	return rev, err
}

// SliceStrokes returns the journal for a slice in application order.
func (s *Store) SliceStrokes(segID string, slice int) ([]paint.Stroke, error) {
	rows, err := s.db.Query(`
		SELECT x, y, label_id, brush_size, erase FROM strokes
		WHERE segmentation_id = ? AND slice_index = ?
		ORDER BY id
	`, segID, slice)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []paint.Stroke
	for rows.Next() {
		var st paint.Stroke
		var erase int
		if err := rows.Scan(&st.X, &st.Y, &st.Label, &st.Size, &erase); err != nil {
			return nil, err
		}
		st.Erase = erase != 0
		out = append(out, st)
	}
	return out, rows.Err()
}

// SaveSliceBlob stores the rasterized mask for a slice at a revision,
// replacing any older blob. Blobs are zstd-compressed.
func (s *Store) SaveSliceBlob(segID string, slice int, rev int64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	compressed := s.enc.EncodeAll(data, nil)
	_, err := s.db.Exec(`
		INSERT INTO mask_blobs (segmentation_id, slice_index, revision, blob, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (segmentation_id, slice_index) DO UPDATE SET
			revision = excluded.revision,
			blob = excluded.blob,
			created_at = excluded.created_at
	`, segID, slice, rev, compressed, time.Now().Format(time.RFC3339))
	return err
}

// LoadSliceBlob returns the stored mask blob and its revision, or (nil, 0,
// nil) when no blob exists for the slice.
func (s *Store) LoadSliceBlob(segID string, slice int) ([]byte, int64, error) {
	var compressed []byte
	var rev int64
	err := s.db.QueryRow(`
		SELECT blob, revision FROM mask_blobs
		WHERE segmentation_id = ? AND slice_index = ?
	`, segID, slice).Scan(&compressed, &rev)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	data, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("zstd decompress failed: %w", err)
	}
	return data, rev, nil
}
