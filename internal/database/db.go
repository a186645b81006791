package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sqlite connection with pooling configured for the engine's
// mixed read/write load.
type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the engine database under dataDir and runs
// migrations.
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "contrib_engine.db")
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=ON&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &DB{DB: db}
	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("Database initialized", "path", dbPath)
	return database, nil
}

// migrate creates the necessary tables and indexes
func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS project_settings (
			project_id TEXT PRIMARY KEY,
			task_weight REAL NOT NULL,
			peer_review_weight REAL NOT NULL,
			commit_weight REAL NOT NULL,
			late_penalty_weight REAL NOT NULL,
			detection_threshold REAL NOT NULL,
			exclude_leads BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS group_members (
			group_id TEXT NOT NULL,
			project_id TEXT NOT NULL,
			student_id TEXT NOT NULL,
			is_lead BOOLEAN NOT NULL DEFAULT FALSE,
			is_excluded BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (project_id, student_id)
		)`,

		`CREATE TABLE IF NOT EXISTS task_stats (
			student_id TEXT NOT NULL,
			project_id TEXT NOT NULL,
			total_tasks INTEGER NOT NULL DEFAULT 0,
			completed_tasks INTEGER NOT NULL DEFAULT 0,
			late_tasks INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (project_id, student_id)
		)`,

		`CREATE TABLE IF NOT EXISTS commit_stats (
			student_id TEXT NOT NULL,
			project_id TEXT NOT NULL,
			commit_count INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (project_id, student_id)
		)`,

		`CREATE TABLE IF NOT EXISTS peer_reviews (
			id TEXT PRIMARY KEY,
			reviewer_id TEXT NOT NULL,
			reviewee_id TEXT NOT NULL,
			project_id TEXT NOT NULL,
			review_week INTEGER NOT NULL,
			completion_score REAL NOT NULL,
			cooperation_score REAL NOT NULL,
			score REAL NOT NULL,
			comment TEXT,
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			is_valid BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL,
			UNIQUE(reviewer_id, reviewee_id, project_id, review_week)
		)`,

		`CREATE TABLE IF NOT EXISTS contribution_scores (
			id TEXT PRIMARY KEY,
			student_id TEXT NOT NULL,
			project_id TEXT NOT NULL,
			calculated_score REAL NOT NULL DEFAULT 0,
			adjusted_score REAL,
			adjustment_reason TEXT,
			is_final BOOLEAN NOT NULL DEFAULT FALSE,
			task_completion_score REAL NOT NULL DEFAULT 0,
			peer_review_score REAL NOT NULL DEFAULT 0,
			commit_count INTEGER NOT NULL DEFAULT 0,
			late_task_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE(student_id, project_id)
		)`,

		`CREATE TABLE IF NOT EXISTS score_adjustments (
			id TEXT PRIMARY KEY,
			score_id TEXT NOT NULL,
			previous_value REAL,
			new_value REAL NOT NULL,
			reason TEXT NOT NULL,
			adjusted_by TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (score_id) REFERENCES contribution_scores(id)
		)`,

		`CREATE TABLE IF NOT EXISTS free_rider_cases (
			id TEXT PRIMARY KEY,
			student_id TEXT NOT NULL,
			group_id TEXT NOT NULL,
			project_id TEXT NOT NULL,
			status TEXT NOT NULL,
			evidence TEXT NOT NULL,
			detected_at DATETIME NOT NULL,
			resolved_at DATETIME,
			resolution TEXT,
			notes TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		// The uniqueness invariant lives here, not in application code: at
		// most one non-resolved case per (student, project) survives any
		// interleaving of concurrent writers.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_cases_one_open
			ON free_rider_cases(student_id, project_id)
			WHERE status != 'resolved'`,

		`CREATE INDEX IF NOT EXISTS idx_cases_project ON free_rider_cases(project_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_cases_resolved ON free_rider_cases(student_id, project_id, resolved_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_project ON contribution_scores(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_reviewee ON peer_reviews(reviewee_id, project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_reviewer ON peer_reviews(reviewer_id, project_id, review_week)`,
		`CREATE INDEX IF NOT EXISTS idx_members_group ON group_members(group_id, project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_adjustments_score ON score_adjustments(score_id, created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
