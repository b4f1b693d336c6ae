// Package store persists annotation records and flattened captures in an
// embedded SQLite database. It is the authoritative side of the review
// workflow: it assigns ids, versions, and box numbers, and enforces
// optimistic concurrency against stale clients.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"thermal-tracer/internal/annotation"
)

type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the database at path.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer at a time.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS annotations (
			id TEXT PRIMARY KEY,
			inspection_id TEXT NOT NULL,
			box_number INTEGER NOT NULL,
			version INTEGER NOT NULL,
			x1 DOUBLE NOT NULL,
			y1 DOUBLE NOT NULL,
			x2 DOUBLE NOT NULL,
			y2 DOUBLE NOT NULL,
			class_id INTEGER NOT NULL,
			class_name TEXT NOT NULL,
			confidence DOUBLE NOT NULL,
			source TEXT NOT NULL,
			status TEXT NOT NULL,
			action_type TEXT NOT NULL,
			predecessor_id TEXT,
			created_by TEXT,
			created_at TIMESTAMP,
			modified_by TEXT,
			modified_at TIMESTAMP,
			comments TEXT
		);
		CREATE TABLE IF NOT EXISTS deleted_boxes (
			inspection_id TEXT NOT NULL,
			box_number INTEGER NOT NULL,
			deleted_by TEXT,
			deleted_at TIMESTAMP,
			PRIMARY KEY (inspection_id, box_number)
		);
		CREATE TABLE IF NOT EXISTS captures (
			id TEXT PRIMARY KEY,
			inspection_id TEXT NOT NULL,
			created_at TIMESTAMP,
			png BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_annotations_box
			ON annotations (inspection_id, box_number);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_annotations_chain
			ON annotations (inspection_id, box_number, version, action_type);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

const annotationColumns = `id, inspection_id, box_number, version,
	x1, y1, x2, y2, class_id, class_name, confidence,
	source, status, action_type, predecessor_id,
	created_by, created_at, modified_by, modified_at, comments`

// Save persists a new logical box (predecessorID empty) or a new version of
// an existing one. The returned record carries the authoritative id,
// version, and boxNumber; the caller's optimistic copy should be replaced
// with it. A predecessor that is no longer the latest version of its box
// fails with ErrConcurrentModification.
func (db *DB) Save(a *annotation.Annotation, predecessorID string) (*annotation.Annotation, error) {
	if err := a.BBox.Validate(); err != nil {
		return nil, err
	}

	confirmed := *a
	confirmed.ID = uuid.NewString()
	now := time.Now().UTC()

	err := db.withTx(func(tx *sql.Tx) error {
		if predecessorID == "" {
			boxNumber, err := nextBoxNumber(tx, a.InspectionID)
			if err != nil {
				return err
			}

			confirmed.BoxNumber = boxNumber
			confirmed.Version = 1
			confirmed.Status = annotation.StatusPending
			confirmed.ActionType = annotation.ActionCreated
			confirmed.PredecessorID = ""
			confirmed.CreatedAt = now
		} else {
			prev, err := latest(tx, predecessorID)
			if err != nil {
				return err
			}

			confirmed.InspectionID = prev.InspectionID
			confirmed.BoxNumber = prev.BoxNumber
			confirmed.Version = prev.Version + 1
			confirmed.Status = annotation.StatusPending
			confirmed.ActionType = annotation.ActionEdited
			confirmed.PredecessorID = prev.ID
			confirmed.Source = prev.Source
			confirmed.CreatedBy = prev.CreatedBy
			confirmed.CreatedAt = prev.CreatedAt
			confirmed.ModifiedAt = now
		}
		return insert(tx, &confirmed)
	})
	if err != nil {
		return nil, err
	}
	return &confirmed, nil
}

// SaveBatch persists a detection run as new logical boxes in a single
// transaction. Every candidate is validated before the first insert, and any
// failure rolls the whole batch back, so a bad run leaves the store
// untouched.
func (db *DB) SaveBatch(anns []*annotation.Annotation) ([]*annotation.Annotation, error) {
	for _, a := range anns {
		if err := a.BBox.Validate(); err != nil {
			return nil, err
		}
	}
	if len(anns) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	confirmed := make([]*annotation.Annotation, 0, len(anns))
	err := db.withTx(func(tx *sql.Tx) error {
		boxNumber, err := nextBoxNumber(tx, anns[0].InspectionID)
		if err != nil {
			return err
		}
		for _, a := range anns {
			c := *a
			c.ID = uuid.NewString()
			c.BoxNumber = boxNumber
			c.Version = 1
			c.Status = annotation.StatusPending
			c.ActionType = annotation.ActionCreated
			c.PredecessorID = ""
			c.CreatedAt = now
			if err := insert(tx, &c); err != nil {
				return err
			}
			confirmed = append(confirmed, &c)
			boxNumber++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

// Approve moves the pending record to approved, recorded as a new row.
func (db *DB) Approve(id, actor string) (*annotation.Annotation, error) {
	return db.review(id, actor, annotation.StatusApproved, annotation.ActionApproved, "")
}

// Reject moves the pending record to rejected, recorded as a new row.
func (db *DB) Reject(id, actor, reason string) (*annotation.Annotation, error) {
	if reason == "" {
		reason = "User rejected"
	}
	return db.review(id, actor, annotation.StatusRejected, annotation.ActionRejected, reason)
}

func (db *DB) review(id, actor string, status annotation.Status, action annotation.ActionType, reason string) (*annotation.Annotation, error) {
	var next annotation.Annotation
	err := db.withTx(func(tx *sql.Tx) error {
		prev, err := latest(tx, id)
		if err != nil {
			return err
		}
		if prev.Status != annotation.StatusPending {
			return fmt.Errorf("%w: cannot %s a %s annotation", annotation.ErrInvalidTransition, action, prev.Status)
		}

		next = *prev
		next.ID = uuid.NewString()
		next.PredecessorID = prev.ID
		next.Status = status
		next.ActionType = action
		next.ModifiedBy = actor
		next.ModifiedAt = time.Now().UTC()
		if reason != "" {
			next.Comments = reason
		}
		return insert(tx, &next)
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// Delete removes the logical box from the visible set permanently. Boxes
// whose latest version came from the detector are rejected instead of
// deleted, so the refusal here keeps the audit signal intact.
func (db *DB) Delete(id, actor string) error {
	return db.withTx(func(tx *sql.Tx) error {
		prev, err := latest(tx, id)
		if err != nil {
			return err
		}
		if prev.Source == annotation.SourceAI {
			return fmt.Errorf("%w: AI detections are rejected, not deleted", annotation.ErrInvalidTransition)
		}

		_, err = tx.Exec(
			`INSERT OR IGNORE INTO deleted_boxes (inspection_id, box_number, deleted_by, deleted_at)
			 VALUES (?, ?, ?, ?)`,
			prev.InspectionID, prev.BoxNumber, actor, time.Now().UTC(),
		)
		return err
	})
}

// History returns the full version chain of a logical box in ascending
// version order, including rows from deleted boxes.
func (db *DB) History(inspectionID string, boxNumber int) ([]*annotation.Annotation, error) {
	rows, err := db.Query(
		`SELECT `+annotationColumns+` FROM annotations
		 WHERE inspection_id = ? AND box_number = ?
		 ORDER BY version ASC, rowid ASC`,
		inspectionID, boxNumber,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows)
}

// Visible returns the latest version of each non-deleted logical box,
// ordered by box number.
func (db *DB) Visible(inspectionID string) ([]*annotation.Annotation, error) {
	rows, err := db.Query(
		`SELECT `+annotationColumns+` FROM annotations
		 WHERE inspection_id = ?
		   AND box_number NOT IN (SELECT box_number FROM deleted_boxes WHERE inspection_id = ?)
		 ORDER BY box_number ASC, version ASC, rowid ASC`,
		inspectionID, inspectionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	all, err := scanAll(rows)
	if err != nil {
		return nil, err
	}

	// Rows arrive chain-ordered per box, so the last row of each box number
	// is its latest version.
	var visible []*annotation.Annotation
	for _, a := range all {
		if n := len(visible); n > 0 && visible[n-1].BoxNumber == a.BoxNumber {
			visible[n-1] = a
		} else {
			visible = append(visible, a)
		}
	}
	return visible, nil
}

// ByID fetches a single record.
func (db *DB) ByID(id string) (*annotation.Annotation, error) {
	return byID(db.DB, id)
}

// SaveCapture stores a flattened snapshot as a new image resource and
// returns its id.
func (db *DB) SaveCapture(inspectionID string, png []byte) (string, error) {
	if len(png) == 0 {
		return "", fmt.Errorf("%w: empty capture", annotation.ErrCaptureFailure)
	}
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO captures (id, inspection_id, created_at, png) VALUES (?, ?, ?, ?)`,
		id, inspectionID, time.Now().UTC(), png,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Capture fetches a stored snapshot by id.
func (db *DB) Capture(id string) ([]byte, error) {
	var png []byte
	err := db.QueryRow(`SELECT png FROM captures WHERE id = ?`, id).Scan(&png)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: capture %s", annotation.ErrNotFound, id)
	}
	return png, err
}

// querier is satisfied by both *sql.DB and *sql.Tx, so reads used inside
// mutations can run on the mutation's transaction.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

// withTx runs fn inside a transaction, rolling back on any error.
func (db *DB) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func byID(q querier, id string) (*annotation.Annotation, error) {
	row := q.QueryRow(`SELECT `+annotationColumns+` FROM annotations WHERE id = ?`, id)
	a, err := scanOne(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: annotation %s", annotation.ErrNotFound, id)
	}
	return a, err
}

// nextBoxNumber claims the next box number for the inspection. Must run on
// the same transaction as the insert that uses it, or two saves could claim
// the same number.
func nextBoxNumber(q querier, inspectionID string) (int, error) {
	var maxBox sql.NullInt64
	err := q.QueryRow(
		`SELECT MAX(box_number) FROM annotations WHERE inspection_id = ?`,
		inspectionID,
	).Scan(&maxBox)
	if err != nil {
		return 0, fmt.Errorf("failed to assign box number: %w", err)
	}
	return int(maxBox.Int64) + 1, nil
}

// latest loads the record and verifies it is still the head of its box's
// version chain and the box has not been deleted.
func latest(q querier, id string) (*annotation.Annotation, error) {
	a, err := byID(q, id)
	if err != nil {
		return nil, err
	}

	var deleted int
	err = q.QueryRow(
		`SELECT COUNT(*) FROM deleted_boxes WHERE inspection_id = ? AND box_number = ?`,
		a.InspectionID, a.BoxNumber,
	).Scan(&deleted)
	if err != nil {
		return nil, err
	}
	if deleted > 0 {
		return nil, fmt.Errorf("%w: box #%d was deleted", annotation.ErrNotFound, a.BoxNumber)
	}

	var headID string
	err = q.QueryRow(
		`SELECT id FROM annotations WHERE inspection_id = ? AND box_number = ?
		 ORDER BY version DESC, rowid DESC LIMIT 1`,
		a.InspectionID, a.BoxNumber,
	).Scan(&headID)
	if err != nil {
		return nil, err
	}
	if headID != a.ID {
		return nil, fmt.Errorf("%w: %s is not the latest version of box #%d",
			annotation.ErrConcurrentModification, id, a.BoxNumber)
	}
	return a, nil
}

func insert(q querier, a *annotation.Annotation) error {
	_, err := q.Exec(
		`INSERT INTO annotations (`+annotationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.InspectionID, a.BoxNumber, a.Version,
		a.BBox.X1, a.BBox.Y1, a.BBox.X2, a.BBox.Y2,
		a.ClassID, a.ClassName, a.Confidence,
		string(a.Source), string(a.Status), string(a.ActionType), a.PredecessorID,
		a.CreatedBy, a.CreatedAt, a.ModifiedBy, a.ModifiedAt, a.Comments,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("%w: box #%d version %d was written by another request",
				annotation.ErrConcurrentModification, a.BoxNumber, a.Version)
		}
		return fmt.Errorf("failed to insert annotation: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanOne(row scannable) (*annotation.Annotation, error) {
	var a annotation.Annotation
	var source, status, action string
	var predecessor, comments sql.NullString
	var createdAt, modifiedAt sql.NullTime

	err := row.Scan(
		&a.ID, &a.InspectionID, &a.BoxNumber, &a.Version,
		&a.BBox.X1, &a.BBox.Y1, &a.BBox.X2, &a.BBox.Y2,
		&a.ClassID, &a.ClassName, &a.Confidence,
		&source, &status, &action, &predecessor,
		&a.CreatedBy, &createdAt, &a.ModifiedBy, &modifiedAt, &comments,
	)
	if err != nil {
		return nil, err
	}

	a.Source = annotation.Source(source)
	a.Status = annotation.Status(status)
	a.ActionType = annotation.ActionType(action)
	a.PredecessorID = predecessor.String
	a.Comments = comments.String
	a.CreatedAt = createdAt.Time
	a.ModifiedAt = modifiedAt.Time
	return &a, nil
}

func scanAll(rows *sql.Rows) ([]*annotation.Annotation, error) {
	var out []*annotation.Annotation
	for rows.Next() {
		a, err := scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
