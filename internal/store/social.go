package store

import (
	"context"
	"fmt"
)

// SetLike records that the account likes the track, at most once.
func (s *Store) SetLike(ctx context.Context, accountID, trackID int64) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO likes (account_id, track_id)
		VALUES ($1, $2)
	`, accountID, trackID); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyLiked
		}
		return fmt.Errorf("insert like: %w", err)
	}
	return nil
}

// RemoveLike deletes the like if present. Removing an absent like is a no-op.
func (s *Store) RemoveLike(ctx context.Context, accountID, trackID int64) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM likes
		WHERE account_id = $1 AND track_id = $2
	`, accountID, trackID); err != nil {
		return fmt.Errorf("delete like: %w", err)
	}
	return nil
}

// RecordListen appends a listen event for the track.
func (s *Store) RecordListen(ctx context.Context, accountID, trackID int64) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO listens (account_id, track_id)
		VALUES ($1, $2)
	`, accountID, trackID); err != nil {
		return fmt.Errorf("insert listen: %w", err)
	}
	return nil
}

// ListenCount returns the total number of listens recorded for the track.
func (s *Store) ListenCount(ctx context.Context, trackID int64) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM listens
		WHERE track_id = $1
	`, trackID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count listens: %w", err)
	}
	return count, nil
}
