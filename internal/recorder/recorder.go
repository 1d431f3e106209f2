// Package recorder keeps a SQLite log of decoded codes so a roll can be
// looked up again without rescanning it.
package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/zeebo/xxh3"
	"golang.org/x/text/unicode/norm"

	_ "modernc.org/sqlite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrClosed is returned by every method once Close was called.
var ErrClosed = errors.New("recorder: closed")

// Entry is one decoded code.
type Entry struct {
	ID              int64          `json:"id"`
	RunID           string         `json:"run_id"`
	Source          string         `json:"source"`
	ImageHash       string         `json:"image_hash"`
	Text            string         `json:"text"`
	Product         int            `json:"product"`
	Generation      int            `json:"generation"`
	HasHalfFrame    bool           `json:"has_half_frame"`
	Frame           int            `json:"frame,omitempty"`
	HalfFrameLetter bool           `json:"half_frame_letter,omitempty"`
	LineCount       int            `json:"line_count"`
	Rotation        int            `json:"rotation"`
	Extra           map[string]any `json:"extra,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// ProductCount is the number of entries seen for one product.
type ProductCount struct {
	Product int `json:"product"`
	Count   int `json:"count"`
}

// Stats summarizes the log.
type Stats struct {
	Entries  int            `json:"entries"`
	Images   int            `json:"images"`
	Runs     int            `json:"runs"`
	Products []ProductCount `json:"products"`
	First    time.Time      `json:"first,omitzero"`
	Last     time.Time      `json:"last,omitzero"`
}

// Recorder writes entries into SQLite. It is safe for concurrent use.
type Recorder struct {
	db    *sql.DB
	runID string

	mu     sync.RWMutex
	closed bool
	now    func() time.Time
}

// Open opens (or creates) the database at path. ":memory:" keeps the log
// in memory for the lifetime of the Recorder.
func Open(path string) (*Recorder, error) {
	if path == "" {
		return nil, errors.New("recorder: empty database path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("recorder: ensure dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("recorder: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("recorder: schema: %w", err)
	}
	return &Recorder{db: db, runID: uuid.NewString(), now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS decodes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    source TEXT NOT NULL,
    image_hash TEXT NOT NULL,
    text TEXT NOT NULL,
    product INTEGER NOT NULL,
    generation INTEGER NOT NULL,
    has_half_frame INTEGER NOT NULL,
    frame INTEGER NOT NULL,
    half_frame_letter INTEGER NOT NULL,
    line_count INTEGER NOT NULL,
    rotation INTEGER NOT NULL,
    extra TEXT,
    created_at INTEGER NOT NULL,
    UNIQUE (image_hash, text)
);
CREATE INDEX IF NOT EXISTS decodes_product ON decodes (product);`
	_, err := db.Exec(schema)
	return err
}

// RunID identifies this Recorder's entries.
func (r *Recorder) RunID() string { return r.runID }

// Close closes the underlying database.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}

// Record stores e. The same text found again in the same image is ignored
// and reported as false.
func (r *Recorder) Record(ctx context.Context, e Entry) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false, ErrClosed
	}
	if e.ImageHash == "" || e.Text == "" {
		return false, errors.New("recorder: entry needs image hash and text")
	}

	var extra sql.NullString
	if len(e.Extra) > 0 {
		b, err := json.Marshal(e.Extra)
		if err != nil {
			return false, fmt.Errorf("recorder: encode extra: %w", err)
		}
		extra = sql.NullString{String: string(b), Valid: true}
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = r.now()
	}

	res, err := r.db.ExecContext(ctx, `
INSERT OR IGNORE INTO decodes (
    run_id, source, image_hash, text, product, generation, has_half_frame,
    frame, half_frame_letter, line_count, rotation, extra, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.runID,
		NormalizePath(e.Source),
		e.ImageHash,
		e.Text,
		e.Product,
		e.Generation,
		boolToInt(e.HasHalfFrame),
		e.Frame,
		boolToInt(e.HalfFrameLetter),
		e.LineCount,
		e.Rotation,
		extra,
		created.UTC().UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("recorder: insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("recorder: insert: %w", err)
	}
	return n > 0, nil
}

const selectEntries = `
SELECT id, run_id, source, image_hash, text, product, generation, has_half_frame,
       frame, half_frame_letter, line_count, rotation, extra, created_at
FROM decodes`

// Recent returns up to limit entries, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.query(ctx, selectEntries+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
}

// ByProduct returns all entries of one film product, oldest first.
func (r *Recorder) ByProduct(ctx context.Context, product int) ([]Entry, error) {
	return r.query(ctx, selectEntries+` WHERE product = ? ORDER BY created_at, id`, product)
}

func (r *Recorder) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("recorder: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e               Entry
			hasHalf, letter int
			extra           sql.NullString
			createdAt       int64
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Source, &e.ImageHash, &e.Text, &e.Product, &e.Generation,
			&hasHalf, &e.Frame, &letter, &e.LineCount, &e.Rotation, &extra, &createdAt); err != nil {
			return nil, fmt.Errorf("recorder: scan: %w", err)
		}
		e.HasHalfFrame = hasHalf != 0
		e.HalfFrameLetter = letter != 0
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		if extra.Valid {
			if err := json.Unmarshal([]byte(extra.String), &e.Extra); err != nil {
				return nil, fmt.Errorf("recorder: decode extra of entry %d: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats summarizes all entries. Products are ordered by count, most
// frequent first.
func (r *Recorder) Stats(ctx context.Context) (Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return Stats{}, ErrClosed
	}

	var (
		s           Stats
		first, last sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*), COUNT(DISTINCT image_hash), COUNT(DISTINCT run_id), MIN(created_at), MAX(created_at)
FROM decodes`).Scan(&s.Entries, &s.Images, &s.Runs, &first, &last)
	if err != nil {
		return Stats{}, fmt.Errorf("recorder: stats: %w", err)
	}
	if first.Valid {
		s.First = time.Unix(0, first.Int64).UTC()
		s.Last = time.Unix(0, last.Int64).UTC()
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT product, COUNT(*) AS n FROM decodes GROUP BY product ORDER BY n DESC, product`)
	if err != nil {
		return Stats{}, fmt.Errorf("recorder: stats: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var pc ProductCount
		if err := rows.Scan(&pc.Product, &pc.Count); err != nil {
			return Stats{}, fmt.Errorf("recorder: stats: %w", err)
		}
		s.Products = append(s.Products, pc)
	}
	return s, rows.Err()
}

// HashImage hashes the decoded pixels, so the same scan saved in two file
// formats maps to one key.
func HashImage(img image.Image) string {
	if img == nil {
		return ""
	}
	n := imaging.Clone(img)
	h := xxh3.New()
	b := n.Bounds()
	_, _ = h.WriteString(strconv.Itoa(b.Dx()) + "x" + strconv.Itoa(b.Dy()) + ":")
	_, _ = h.Write(n.Pix)
	return strconv.FormatUint(h.Sum64(), 16)
}

// NormalizePath cleans p and brings it into NFC, so names typed on macOS
// and Linux compare equal.
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	return norm.NFC.String(filepath.Clean(p))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
