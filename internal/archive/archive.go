// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive persists finished runs and their quality reports to a
// SQLite database so past runs can be listed and exported.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/report-writer/pkg/types"
)

const (
	indexDir   = "index"
	dbFile     = "runs.db"
	exportFile = "export.yaml"
)

// Store manages the run archive SQLite database.
type Store struct {
	db  *sql.DB
	dir string
}

// NewStore opens or creates the archive database at dir/index/runs.db,
// creating the schema if it does not exist.
func NewStore(cfg types.ArchiveConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.Dir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: cfg.Dir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			overall_score REAL,
			gates_passed INTEGER,
			gates_total INTEGER,
			recommendation TEXT,
			report_path TEXT,
			started_at TEXT,
			finished_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS stage_reports (
			run_id TEXT NOT NULL REFERENCES runs(id),
			stage_name TEXT NOT NULL,
			overall_score REAL,
			passed INTEGER,
			recommendations TEXT,
			created_at TEXT,
			PRIMARY KEY (run_id, stage_name)
		)`,
		`CREATE TABLE IF NOT EXISTS metrics (
			run_id TEXT NOT NULL,
			stage_name TEXT NOT NULL,
			name TEXT NOT NULL,
			score REAL,
			threshold REAL,
			passed INTEGER,
			details TEXT,
			created_at TEXT,
			PRIMARY KEY (run_id, stage_name, name),
			FOREIGN KEY (run_id, stage_name) REFERENCES stage_reports(run_id, stage_name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_topic ON runs(topic)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SaveRun persists a finished quality report and the path of the written
// report document. Saving the same workflow ID again replaces the run.
func (s *Store) SaveRun(ctx context.Context, report *types.SystemQualityReport, reportPath string) error {
	if report == nil {
		return fmt.Errorf("nil quality report")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM metrics WHERE run_id = ?`, report.WorkflowID); err != nil {
		return fmt.Errorf("clearing old metrics: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM stage_reports WHERE run_id = ?`, report.WorkflowID); err != nil {
		return fmt.Errorf("clearing old stage reports: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, topic, overall_score, gates_passed, gates_total, recommendation, report_path, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			topic=excluded.topic, overall_score=excluded.overall_score,
			gates_passed=excluded.gates_passed, gates_total=excluded.gates_total,
			recommendation=excluded.recommendation, report_path=excluded.report_path,
			started_at=excluded.started_at, finished_at=excluded.finished_at`,
		report.WorkflowID, report.Topic, report.OverallScore,
		report.GatesPassed, report.GatesTotal, report.Recommendation, reportPath,
		report.StartedAt.Format(time.RFC3339Nano), report.FinishedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting run: %w", err)
	}

	stageStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO stage_reports (run_id, stage_name, overall_score, passed, recommendations, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing stage insert: %w", err)
	}
	defer stageStmt.Close()

	metricStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO metrics (run_id, stage_name, name, score, threshold, passed, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing metric insert: %w", err)
	}
	defer metricStmt.Close()

	for _, sr := range report.StageReports {
		recsJSON, _ := json.Marshal(sr.Recommendations)
		if _, err := stageStmt.ExecContext(ctx,
			report.WorkflowID, sr.StageName, sr.OverallScore, sr.Passed,
			string(recsJSON), sr.CreatedAt.Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("inserting stage report %s: %w", sr.StageName, err)
		}

		for _, m := range sr.Metrics {
			detailsJSON, _ := json.Marshal(m.Details)
			if _, err := metricStmt.ExecContext(ctx,
				report.WorkflowID, sr.StageName, m.Name, m.Score, m.Threshold, m.Passed,
				string(detailsJSON), m.CreatedAt.Format(time.RFC3339Nano),
			); err != nil {
				return fmt.Errorf("inserting metric %s/%s: %w", sr.StageName, m.Name, err)
			}
		}
	}

	return tx.Commit()
}

// RunSummary is one archived run as listed by ListRuns.
type RunSummary struct {
	ID             string  `yaml:"id"`
	Topic          string  `yaml:"topic"`
	OverallScore   float64 `yaml:"overall_score"`
	GatesPassed    int     `yaml:"gates_passed"`
	GatesTotal     int     `yaml:"gates_total"`
	Recommendation string  `yaml:"recommendation"`
	ReportPath     string  `yaml:"report_path"`
	FinishedAt     string  `yaml:"finished_at"`
}

// ListRuns returns archived runs, most recently finished first.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, overall_score, gates_passed, gates_total, recommendation, report_path, finished_at
		 FROM runs ORDER BY finished_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Topic, &r.OverallScore, &r.GatesPassed,
			&r.GatesTotal, &r.Recommendation, &r.ReportPath, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ExportYAML writes dir/export.yaml with every archived run summary.
func (s *Store) ExportYAML(ctx context.Context) error {
	runs, err := s.ListRuns(ctx)
	if err != nil {
		return err
	}

	doc := struct {
		ExportedAt string       `yaml:"exported_at"`
		Runs       []RunSummary `yaml:"runs"`
	}{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Runs:       runs,
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling export: %w", err)
	}
	return os.WriteFile(filepath.Join(s.dir, exportFile), data, 0o644)
}
