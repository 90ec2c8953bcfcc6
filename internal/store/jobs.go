package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// JobStatus is the ingestion job state.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobUnpacking JobStatus = "unpacking"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// Job tracks the lifecycle of one archive ingestion run.
type Job struct {
	ID          string    `json:"id"`
	Status      JobStatus `json:"status"`
	Message     string    `json:"message"`
	AlbumsAdded int       `json:"albumsAdded"`
	TracksAdded int       `json:"tracksAdded"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateJob inserts a new pending job with the given id.
func (s *Store) CreateJob(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO ingestion_jobs (id, status, message)
		VALUES ($1, $2, '')
	`, id, string(JobPending)); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJobProgress moves a live job to the given status and message.
// Terminal rows are excluded in the WHERE clause, so a finished job can
// never be rewritten.
func (s *Store) UpdateJobProgress(ctx context.Context, id string, status JobStatus, message string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE ingestion_jobs
		SET status = $2, message = $3, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('succeeded', 'failed')
	`, id, string(status), message)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// FinishJob moves a live job to a terminal status with its result summary.
func (s *Store) FinishJob(ctx context.Context, id string, status JobStatus, message string, albumsAdded, tracksAdded int) error {
	if !status.Terminal() {
		return fmt.Errorf("finish job: %q is not a terminal status", status)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE ingestion_jobs
		SET status = $2, message = $3, albums_added = $4, tracks_added = $5, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('succeeded', 'failed')
	`, id, string(status), message, albumsAdded, tracksAdded)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// JobByID returns the job's current status.
func (s *Store) JobByID(ctx context.Context, id string) (Job, error) {
	var j Job
	err := s.db.QueryRowContext(ctx, `
		SELECT id, status, message, albums_added, tracks_added, created_at, updated_at
		FROM ingestion_jobs
		WHERE id = $1
	`, id).Scan(&j.ID, &j.Status, &j.Message, &j.AlbumsAdded, &j.TracksAdded, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrJobNotFound
		}
		return Job{}, fmt.Errorf("select job: %w", err)
	}
	return j, nil
}
