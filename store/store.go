// Package store persists pipeline records in sqlite. It implements
// recovery.Store; the engine itself never sees SQL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/benbc/recovery"
)

const schema = `
CREATE TABLE IF NOT EXISTS photos (
    id TEXT PRIMARY KEY,           -- sha256 of content
    mime_type TEXT NOT NULL,
    file_size INTEGER NOT NULL,
    width INTEGER,
    height INTEGER,
    date_taken DATETIME,
    date_source TEXT,              -- 'exif', 'filename', 'mtime'
    has_exif BOOLEAN DEFAULT 0,
    primary_hash INTEGER,          -- filled exactly once by the hash stage
    secondary_hash INTEGER,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Append-only: paths survive even when their photo is rejected.
CREATE TABLE IF NOT EXISTS photo_paths (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    photo_id TEXT NOT NULL REFERENCES photos(id),
    source_path TEXT NOT NULL,
    filename TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS individual_decisions (
    photo_id TEXT PRIMARY KEY REFERENCES photos(id),
    decision TEXT NOT NULL,        -- 'reject' or 'separate'
    rule_name TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS duplicate_groups (
    photo_id TEXT PRIMARY KEY REFERENCES photos(id),
    group_id INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS group_rejections (
    photo_id TEXT PRIMARY KEY REFERENCES photos(id),
    group_id INTEGER NOT NULL,
    rule_name TEXT NOT NULL,
    kept_photo_id TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS aggregated_paths (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kept_photo_id TEXT NOT NULL REFERENCES photos(id),
    source_path TEXT NOT NULL,
    from_photo_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pipeline_state (
    stage TEXT PRIMARY KEY,
    completed_at DATETIME,
    record_count INTEGER,
    notes TEXT
);

CREATE INDEX IF NOT EXISTS idx_photo_paths_photo_id ON photo_paths(photo_id);
CREATE INDEX IF NOT EXISTS idx_individual_decisions_decision ON individual_decisions(decision);
CREATE INDEX IF NOT EXISTS idx_duplicate_groups_group_id ON duplicate_groups(group_id);
CREATE INDEX IF NOT EXISTS idx_group_rejections_group_id ON group_rejections(group_id);
CREATE INDEX IF NOT EXISTS idx_aggregated_paths_kept ON aggregated_paths(kept_photo_id);
`

// DB wraps a sqlite database holding the pipeline's records.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and
// applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{db: db}, nil
}

func (s *DB) Close() error {
	return s.db.Close()
}

// InsertPhoto records a newly ingested photo. Photos are content
// addressed: inserting an id that already exists is a no-op, reporting
// inserted=false.
func (s *DB) InsertPhoto(ctx context.Context, p *recovery.Photo) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO photos
			(id, mime_type, file_size, width, height, date_taken, date_source, has_exif)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.MIME, p.FileSize, p.Width, p.Height,
		nullTime(p.DateTaken), string(p.DateSource), p.HasEXIF)
	if err != nil {
		return false, fmt.Errorf("insert photo %s: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertPath appends one observed source location for a photo.
// Duplicate (photo, path) observations are ignored.
func (s *DB) InsertPath(ctx context.Context, p recovery.PhotoPath) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM photo_paths WHERE photo_id = ? AND source_path = ?)`,
		p.PhotoID, p.SourcePath).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check path: %w", err)
	}
	if exists == 1 {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO photo_paths (photo_id, source_path, filename) VALUES (?, ?, ?)`,
		p.PhotoID, p.SourcePath, p.Filename)
	if err != nil {
		return fmt.Errorf("insert path for %s: %w", p.PhotoID, err)
	}
	return nil
}

// Photos returns every photo with its hash fields when present.
func (s *DB) Photos(ctx context.Context) ([]*recovery.Photo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mime_type, file_size, width, height,
		       date_taken, date_source, has_exif, primary_hash, secondary_hash
		FROM photos ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer rows.Close()

	var out []*recovery.Photo
	for rows.Next() {
		var (
			p          recovery.Photo
			width      sql.NullInt64
			height     sql.NullInt64
			taken      sql.NullTime
			dateSource sql.NullString
			primary    sql.NullInt64
			secondary  sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.MIME, &p.FileSize, &width, &height,
			&taken, &dateSource, &p.HasEXIF, &primary, &secondary); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		p.Width = int(width.Int64)
		p.Height = int(height.Int64)
		if taken.Valid {
			p.DateTaken = taken.Time
		}
		p.DateSource = recovery.DateSource(dateSource.String)
		if primary.Valid && secondary.Valid {
			p.PrimaryHash = recovery.Hash64(uint64(primary.Int64))
			p.SecondaryHash = recovery.Hash64(uint64(secondary.Int64))
			p.HasHashes = true
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Paths returns every observed source location.
func (s *DB) Paths(ctx context.Context) ([]recovery.PhotoPath, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT photo_id, source_path, filename FROM photo_paths ORDER BY photo_id, source_path`)
	if err != nil {
		return nil, fmt.Errorf("query paths: %w", err)
	}
	defer rows.Close()

	var out []recovery.PhotoPath
	for rows.Next() {
		var p recovery.PhotoPath
		if err := rows.Scan(&p.PhotoID, &p.SourcePath, &p.Filename); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveHashes stores a batch of computed hash pairs. Incremental by
// design: the hash stage checkpoints as it goes and re-runs skip photos
// whose hashes are already set. Unknown photo ids are ignored.
func (s *DB) SaveHashes(ctx context.Context, hashes map[string]recovery.HashPair) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save hashes: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE photos SET primary_hash = ?, secondary_hash = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("save hashes: %w", err)
	}
	defer stmt.Close()

	for id, pair := range hashes {
		if _, err := stmt.ExecContext(ctx,
			int64(uint64(pair.Primary)), int64(uint64(pair.Secondary)), id); err != nil {
			return fmt.Errorf("save hash for %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// ReplaceIndividualDecisions overwrites the classify stage's output in
// one transaction.
func (s *DB) ReplaceIndividualDecisions(ctx context.Context, decisions []recovery.IndividualDecision) error {
	return s.replace(ctx, "individual_decisions", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO individual_decisions (photo_id, decision, rule_name) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, d := range decisions {
			if _, err := stmt.ExecContext(ctx, d.PhotoID, string(d.Decision), d.RuleName); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *DB) IndividualDecisions(ctx context.Context) ([]recovery.IndividualDecision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT photo_id, decision, rule_name FROM individual_decisions ORDER BY photo_id`)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []recovery.IndividualDecision
	for rows.Next() {
		var d recovery.IndividualDecision
		var decision string
		if err := rows.Scan(&d.PhotoID, &decision, &d.RuleName); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Decision = recovery.Decision(decision)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ReplaceGroups overwrites the clustering output in one transaction.
func (s *DB) ReplaceGroups(ctx context.Context, groups []recovery.DuplicateGroup) error {
	return s.replace(ctx, "duplicate_groups", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO duplicate_groups (photo_id, group_id) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, g := range groups {
			if _, err := stmt.ExecContext(ctx, g.PhotoID, g.GroupID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *DB) Groups(ctx context.Context) ([]recovery.DuplicateGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT photo_id, group_id FROM duplicate_groups ORDER BY group_id, photo_id`)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var out []recovery.DuplicateGroup
	for rows.Next() {
		var g recovery.DuplicateGroup
		if err := rows.Scan(&g.PhotoID, &g.GroupID); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ReplaceGroupRejections overwrites the group-rule output in one
// transaction.
func (s *DB) ReplaceGroupRejections(ctx context.Context, rejections []recovery.GroupRejection) error {
	return s.replace(ctx, "group_rejections", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO group_rejections (photo_id, group_id, rule_name, kept_photo_id)
			VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rejections {
			if _, err := stmt.ExecContext(ctx, r.PhotoID, r.GroupID, r.RuleName, r.KeptPhotoID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *DB) GroupRejections(ctx context.Context) ([]recovery.GroupRejection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT photo_id, group_id, rule_name, kept_photo_id
		FROM group_rejections ORDER BY group_id, photo_id`)
	if err != nil {
		return nil, fmt.Errorf("query rejections: %w", err)
	}
	defer rows.Close()

	var out []recovery.GroupRejection
	for rows.Next() {
		var r recovery.GroupRejection
		if err := rows.Scan(&r.PhotoID, &r.GroupID, &r.RuleName, &r.KeptPhotoID); err != nil {
			return nil, fmt.Errorf("scan rejection: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceAggregatedPaths overwrites the path-aggregation output in one
// transaction.
func (s *DB) ReplaceAggregatedPaths(ctx context.Context, paths []recovery.AggregatedPath) error {
	return s.replace(ctx, "aggregated_paths", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO aggregated_paths (kept_photo_id, source_path, from_photo_id)
			VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, p := range paths {
			if _, err := stmt.ExecContext(ctx, p.KeptPhotoID, p.SourcePath, p.FromPhotoID); err != nil {
				return err
			}
		}
		return nil
	})
}

// AggregatedPaths returns the provenance re-attached to survivors.
func (s *DB) AggregatedPaths(ctx context.Context) ([]recovery.AggregatedPath, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kept_photo_id, source_path, from_photo_id
		FROM aggregated_paths ORDER BY kept_photo_id, source_path`)
	if err != nil {
		return nil, fmt.Errorf("query aggregated paths: %w", err)
	}
	defer rows.Close()

	var out []recovery.AggregatedPath
	for rows.Next() {
		var p recovery.AggregatedPath
		if err := rows.Scan(&p.KeptPhotoID, &p.SourcePath, &p.FromPhotoID); err != nil {
			return nil, fmt.Errorf("scan aggregated path: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecordStage upserts a stage completion record with its output count
// and notes (e.g. the active linkage mode).
func (s *DB) RecordStage(ctx context.Context, stage string, count int, notes string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_state (stage, completed_at, record_count, notes)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(stage) DO UPDATE SET
			completed_at = excluded.completed_at,
			record_count = excluded.record_count,
			notes = excluded.notes`,
		stage, time.Now().UTC(), count, notes)
	if err != nil {
		return fmt.Errorf("record stage %s: %w", stage, err)
	}
	return nil
}

// StageRun is one recorded stage completion.
type StageRun struct {
	Stage       string
	CompletedAt time.Time
	RecordCount int
	Notes       string
}

// Stages returns the recorded stage completions.
func (s *DB) Stages(ctx context.Context) ([]StageRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, completed_at, record_count, notes FROM pipeline_state ORDER BY stage`)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	var out []StageRun
	for rows.Next() {
		var r StageRun
		if err := rows.Scan(&r.Stage, &r.CompletedAt, &r.RecordCount, &r.Notes); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// replace deletes a table's contents and refills them inside one
// transaction, so a failed stage never leaves partial output behind.
func (s *DB) replace(ctx context.Context, table string, fill func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace %s: %w", table, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("replace %s: %w", table, err)
	}
	if err := fill(tx); err != nil {
		return fmt.Errorf("replace %s: %w", table, err)
	}
	return tx.Commit()
}

// nullTime maps the zero time to NULL.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
