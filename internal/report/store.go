package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	filePrefix = "audit_"
	fileSuffix = ".json"
	latestName = "latest.json"
)

var (
	ErrNotFound  = errors.New("report not found")
	ErrBadName   = errors.New("invalid report name")
	ErrNoReports = errors.New("no reports recorded")
)

// Run is one row of the run index.
type Run struct {
	ID               int64     `json:"id"`
	Filename         string    `json:"filename"`
	GeneratedAt      time.Time `json:"generated_at"`
	TotalSites       int       `json:"total_sites"`
	SuccessfulAudits int       `json:"successful_audits"`
}

// Store writes report documents to a directory and records each run in a
// sqlite index so listings survive restarts.
type Store struct {
	dir    string
	db     *sql.DB
	logger *zap.Logger
}

// NewStore prepares the output directory and the run index schema.
func NewStore(dir string, db *sql.DB, logger *zap.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT NOT NULL UNIQUE,
			generated_at TEXT NOT NULL,
			total_sites INTEGER NOT NULL,
			successful_audits INTEGER NOT NULL
		)
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create runs table: %w", err)
	}

	return &Store{dir: dir, db: db, logger: logger.Named("report-store")}, nil
}

// Save writes the report document, repoints latest.json at it and records
// the run. Returns the report filename.
func (s *Store) Save(ctx context.Context, r *Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	filename := filePrefix + r.Metadata.GeneratedAt.Format("20060102_150405") + fileSuffix
	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	s.linkLatest(filename, data)

	const insert = `
		INSERT INTO runs (filename, generated_at, total_sites, successful_audits)
		VALUES (?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, insert,
		filename,
		r.Metadata.GeneratedAt.UTC().Format(time.RFC3339),
		r.Metadata.TotalSites,
		r.Metadata.SuccessfulAudits)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}

	s.logger.Info("report saved",
		zap.String("file", filename),
		zap.Int("total_sites", r.Metadata.TotalSites),
		zap.Int("successful_audits", r.Metadata.SuccessfulAudits))
	return filename, nil
}

// linkLatest keeps latest.json pointing at the newest report. Symlinks are
// preferred; filesystems without them get a plain copy.
func (s *Store) linkLatest(filename string, data []byte) {
	latest := filepath.Join(s.dir, latestName)
	_ = os.Remove(latest)
	if err := os.Symlink(filename, latest); err != nil {
		if err := os.WriteFile(latest, data, 0o644); err != nil {
			s.logger.Warn("failed to update latest.json", zap.Error(err))
		}
	}
}

// List returns the recorded runs, newest first.
func (s *Store) List(ctx context.Context) ([]Run, error) {
	const query = `
		SELECT id, filename, generated_at, total_sites, successful_audits
		FROM runs
		ORDER BY generated_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var generatedAt string
		if err := rows.Scan(&r.ID, &r.Filename, &generatedAt, &r.TotalSites, &r.SuccessfulAudits); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		r.GeneratedAt, err = time.Parse(time.RFC3339, generatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Latest returns the raw bytes of the newest report.
func (s *Store) Latest(ctx context.Context) ([]byte, error) {
	const query = `SELECT filename FROM runs ORDER BY generated_at DESC, id DESC LIMIT 1`

	var filename string
	err := s.db.QueryRowContext(ctx, query).Scan(&filename)
	if err == sql.ErrNoRows {
		return nil, ErrNoReports
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	return s.Get(ctx, filename)
}

// Get returns the raw bytes of one report by filename.
func (s *Store) Get(_ context.Context, name string) ([]byte, error) {
	if name != filepath.Base(name) ||
		!strings.HasPrefix(name, filePrefix) ||
		!strings.HasSuffix(name, fileSuffix) {
		return nil, ErrBadName
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", name, err)
	}
	return data, nil
}
