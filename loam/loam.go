// Package loam implements the on-disk spatial index: a bulk writer that
// accepts a layer's features once, in any order, and a reader that
// answers bounding-box queries against the result.
//
// The index is a SQLite database using the R*Tree virtual table module:
// a plain `features` table joined against the `rtree_index` virtual table
// via mattn/go-sqlite3 answers bbox queries without any external index
// service.
package loam

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"os"

	"github.com/paulmach/orb"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/openwyrm/wyrm/pattern"
	"github.com/openwyrm/wyrm/provider"
)

func init() {
	gob.Register(orb.Point{})
	gob.Register(orb.LineString{})
	gob.Register(provider.Rings{})
}

const schema = `
CREATE TABLE features (
	id   INTEGER PRIMARY KEY,
	blob BLOB NOT NULL
);
CREATE VIRTUAL TABLE rtree_index USING rtree(
	id,
	minx, maxx,
	miny, maxy
);
`

// Writer bulk-loads one layer's features into a new .loam file.
type Writer struct {
	path         string
	db           *sql.DB
	tx           *sql.Tx
	insFeature   *sql.Stmt
	insRtree     *sql.Stmt
	n            int
}

// NewWriter creates a fresh .loam file at path, overwriting any existing
// file, ready to accept Push calls.
func NewWriter(path string) (*Writer, error) {
	_ = os.Remove(path)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "loam: open")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "loam: schema")
	}
	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "loam: begin")
	}
	insFeature, err := tx.Prepare(`INSERT INTO features (id, blob) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		db.Close()
		return nil, errors.Wrap(err, "loam: prepare features")
	}
	insRtree, err := tx.Prepare(`INSERT INTO rtree_index (id, minx, maxx, miny, maxy) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		db.Close()
		return nil, errors.Wrap(err, "loam: prepare rtree")
	}
	return &Writer{path: path, db: db, tx: tx, insFeature: insFeature, insRtree: insRtree}, nil
}

// Push adds one feature to the index.
func (w *Writer) Push(f provider.Feature) error {
	bbox, ok := BBoxOf(f.Geom)
	if !ok {
		return nil
	}
	blob, err := encodeFeature(f)
	if err != nil {
		return errors.Wrap(err, "loam: encode")
	}
	if _, err := w.insFeature.Exec(f.ID, blob); err != nil {
		return errors.Wrap(err, "loam: insert feature")
	}
	if _, err := w.insRtree.Exec(f.ID, bbox.MinX, bbox.MaxX, bbox.MinY, bbox.MaxY); err != nil {
		return errors.Wrap(err, "loam: insert rtree")
	}
	w.n++
	return nil
}

// Count returns the number of features pushed so far.
func (w *Writer) Count() int { return w.n }

// Finish commits the index. If nothing was pushed, it cancels instead, so
// an empty layer never leaves behind a useless .loam file.
func (w *Writer) Finish() error {
	if w.n == 0 {
		return w.Cancel()
	}
	if err := w.tx.Commit(); err != nil {
		w.db.Close()
		return errors.Wrap(err, "loam: commit")
	}
	return w.db.Close()
}

// Cancel discards the index and removes its file.
func (w *Writer) Cancel() error {
	w.tx.Rollback()
	w.db.Close()
	return os.Remove(w.path)
}

// Tree is a read-only handle on a finished .loam file.
type Tree struct {
	db *sql.DB
}

// Open opens an existing .loam file for querying.
func Open(path string) (*Tree, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, errors.Wrap(err, "loam: open")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "loam: open")
	}
	return &Tree{db: db}, nil
}

// Close releases the underlying SQLite connection.
func (t *Tree) Close() error {
	return t.db.Close()
}

// Query streams every feature whose bounding box intersects bbox to fn, in
// no particular order.
func (t *Tree) Query(ctx context.Context, bbox provider.BBox, fn func(provider.Feature) error) error {
	const q = `
	SELECT f.blob FROM features f
	JOIN rtree_index r ON f.id = r.id
	WHERE r.minx <= ? AND r.maxx >= ? AND r.miny <= ? AND r.maxy >= ?`

	rows, err := t.db.QueryContext(ctx, q, bbox.MaxX, bbox.MinX, bbox.MaxY, bbox.MinY)
	if err != nil {
		return errors.Wrap(err, "loam: query")
	}
	defer rows.Close()

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return errors.Wrap(err, "loam: scan")
		}
		f, err := decodeFeature(blob)
		if err != nil {
			return errors.Wrap(err, "loam: decode")
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return errors.Wrap(rows.Err(), "loam: rows")
}

func encodeFeature(f provider.Feature) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wireFeature{ID: f.ID, Geom: f.Geom, Values: f.Values}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeFeature(blob []byte) (provider.Feature, error) {
	var wf wireFeature
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&wf); err != nil {
		return provider.Feature{}, err
	}
	return provider.Feature{ID: wf.ID, Geom: wf.Geom, Values: wf.Values}, nil
}

// wireFeature is the on-disk encoding of a provider.Feature.
type wireFeature struct {
	ID     int64
	Geom   any
	Values pattern.Values
}

// BBoxOf computes the Web Mercator bounding box of a builder-produced
// geometry value.
func BBoxOf(g any) (provider.BBox, bool) {
	switch g := g.(type) {
	case orb.Point:
		return provider.BBox{MinX: g[0], MinY: g[1], MaxX: g[0], MaxY: g[1]}, true
	case orb.LineString:
		return bboxOfPoints(g), len(g) > 0
	case provider.Rings:
		var pts []orb.Point
		for _, r := range g {
			pts = append(pts, r.Points...)
		}
		return bboxOfPoints(pts), len(pts) > 0
	default:
		return provider.BBox{}, false
	}
}

func bboxOfPoints(pts []orb.Point) provider.BBox {
	if len(pts) == 0 {
		return provider.BBox{}
	}
	b := provider.BBox{MinX: pts[0][0], MinY: pts[0][1], MaxX: pts[0][0], MaxY: pts[0][1]}
	for _, p := range pts[1:] {
		if p[0] < b.MinX {
			b.MinX = p[0]
		}
		if p[0] > b.MaxX {
			b.MaxX = p[0]
		}
		if p[1] < b.MinY {
			b.MinY = p[1]
		}
		if p[1] > b.MaxY {
			b.MaxY = p[1]
		}
	}
	return b
}
