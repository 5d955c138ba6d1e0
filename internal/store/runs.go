package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StartRun records the start of an import command and returns its run.
func (s *Store) StartRun(command string) (*Run, error) {
	r := &Run{
		ID:        uuid.NewString(),
		Command:   command,
		StartedAt: time.Now().UTC(),
		Status:    "running",
	}
	if _, err := s.db.Exec(
		"INSERT INTO import_runs (id, command, started_at, status) VALUES (?, ?, ?, ?)",
		r.ID, r.Command, r.StartedAt, r.Status,
	); err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	return r, nil
}

// FinishRun records the outcome of a run with its JSON report.
func (s *Store) FinishRun(r *Run, status, report string) error {
	now := time.Now().UTC()
	if _, err := s.db.Exec(
		"UPDATE import_runs SET finished_at = ?, status = ?, report = ? WHERE id = ?",
		now, status, report, r.ID,
	); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	r.FinishedAt = &now
	r.Status = status
	r.Report = report
	return nil
}

// RunByID returns a recorded run, or nil if it does not exist.
func (s *Store) RunByID(id string) (*Run, error) {
	r := &Run{}
	var report sql.NullString
	err := s.db.QueryRow(
		"SELECT id, command, started_at, finished_at, status, report FROM import_runs WHERE id = ?", id,
	).Scan(&r.ID, &r.Command, &r.StartedAt, &r.FinishedAt, &r.Status, &report)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("run by id: %w", err)
	}
	r.Report = report.String
	return r, nil
}
