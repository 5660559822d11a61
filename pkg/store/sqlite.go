package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/user/sentinel-adk/pkg/engine"
)

var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS scans (
	id         TEXT PRIMARY KEY,
	target     TEXT NOT NULL,
	status     TEXT NOT NULL,
	mode       TEXT NOT NULL,
	consent    INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS scan_logs (
	scan_id TEXT NOT NULL REFERENCES scans(id),
	seq     INTEGER NOT NULL,
	ts      INTEGER NOT NULL,
	text    TEXT NOT NULL,
	PRIMARY KEY (scan_id, seq)
);
CREATE TABLE IF NOT EXISTS findings (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	scan_id     TEXT NOT NULL REFERENCES scans(id),
	finding_id  TEXT NOT NULL,
	type        TEXT NOT NULL,
	severity    TEXT NOT NULL,
	description TEXT NOT NULL,
	evidence    TEXT NOT NULL,
	location    TEXT NOT NULL,
	remediation TEXT NOT NULL,
	source      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS findings_scan ON findings(scan_id);
`

// SQLiteStore persists scans in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) CreateScan(ctx context.Context, target, mode string, consent bool) (*Scan, error) {
	now := time.Now().UTC()
	scan := &Scan{
		ID:        newScanID(),
		Target:    target,
		Status:    StatusPending,
		Mode:      mode,
		Consent:   consent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO scans (id, target, status, mode, consent, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		scan.ID, scan.Target, string(scan.Status), scan.Mode, consent, now.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert scan: %w", err)
	}
	return scan, nil
}

func (s *SQLiteStore) GetScan(ctx context.Context, id string) (*Scan, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, target, status, mode, consent, created_at, updated_at FROM scans WHERE id = ?", id)
	scan, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read scan: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, ts, text FROM scan_logs WHERE scan_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, fmt.Errorf("read logs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			l  LogLine
			ts int64
		)
		if err := rows.Scan(&l.Seq, &ts, &l.Text); err != nil {
			return nil, fmt.Errorf("read logs: %w", err)
		}
		l.Time = time.Unix(0, ts).UTC()
		scan.Logs = append(scan.Logs, l)
	}
	return scan, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(r rowScanner) (*Scan, error) {
	var (
		scan             Scan
		status           string
		created, updated int64
	)
	if err := r.Scan(&scan.ID, &scan.Target, &status, &scan.Mode, &scan.Consent, &created, &updated); err != nil {
		return nil, err
	}
	scan.Status = Status(status)
	scan.CreatedAt = time.Unix(0, created).UTC()
	scan.UpdatedAt = time.Unix(0, updated).UTC()
	return &scan, nil
}

func (s *SQLiteStore) ListScans(ctx context.Context) ([]Scan, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, target, status, mode, consent, created_at, updated_at FROM scans ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()
	var out []Scan
	for rows.Next() {
		scan, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("list scans: %w", err)
		}
		out = append(out, *scan)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetStatus(ctx context.Context, id string, status Status) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM scans WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	if err := checkTransition(Status(current), status); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE scans SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC().UnixNano(), id,
	); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) AppendLogs(ctx context.Context, id string, lines ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var seq int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(l.seq), 0) FROM scans s LEFT JOIN scan_logs l ON l.scan_id = s.id WHERE s.id = ? GROUP BY s.id", id,
	).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read log sequence: %w", err)
	}

	now := time.Now().UTC().UnixNano()
	for _, l := range lines {
		seq++
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO scan_logs (scan_id, seq, ts, text) VALUES (?, ?, ?, ?)", id, seq, now, l,
		); err != nil {
			return fmt.Errorf("insert log: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, "UPDATE scans SET updated_at = ? WHERE id = ?", now, id); err != nil {
		return fmt.Errorf("touch scan: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) CreateFinding(ctx context.Context, scanID string, f engine.Finding) error {
	if _, err := s.GetScan(ctx, scanID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO findings (scan_id, finding_id, type, severity, description, evidence, location, remediation, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		scanID, f.ID, f.Issue, f.Severity.String(), f.Description, f.Evidence, string(f.Category), f.Remediation, f.Source,
	)
	if err != nil {
		return fmt.Errorf("insert finding: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListFindings(ctx context.Context, scanID string) ([]engine.Finding, error) {
	if _, err := s.GetScan(ctx, scanID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT finding_id, type, severity, description, evidence, location, remediation, source
		 FROM findings WHERE scan_id = ? ORDER BY id`, scanID)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	defer rows.Close()

	var out []engine.Finding
	for rows.Next() {
		var (
			f             engine.Finding
			sev, location string
		)
		if err := rows.Scan(&f.ID, &f.Issue, &sev, &f.Description, &f.Evidence, &location, &f.Remediation, &f.Source); err != nil {
			return nil, fmt.Errorf("list findings: %w", err)
		}
		f.Severity, _ = engine.ParseSeverity(sev)
		f.Category = engine.Category(location)
		out = append(out, f)
	}
	return out, rows.Err()
}
