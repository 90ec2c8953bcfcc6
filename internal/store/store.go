package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrAccountNotFound signals a missing account record.
	ErrAccountNotFound = errors.New("account not found")
	// ErrPaymentNotFound indicates the payment method is absent or owned by another account.
	ErrPaymentNotFound = errors.New("payment method not found")
	// ErrInsufficientFunds indicates the account balance cannot cover a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrItemNotFound signals a missing catalog item.
	ErrItemNotFound = errors.New("item not found")
	// ErrAlreadyBought indicates a purchase already exists for the (account, item) pair.
	ErrAlreadyBought = errors.New("item already bought")
	// ErrAlreadyLiked indicates the account already likes the track.
	ErrAlreadyLiked = errors.New("track already liked")
	// ErrJobNotFound signals an unknown ingestion job id.
	ErrJobNotFound = errors.New("job not found")
)

// Store provides persistence backed by Postgres.
type Store struct {
	db *sql.DB
}

// New sets up a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// WithinTx runs fn inside a transaction, committing only if fn returns nil.
// Every other exit path, including a panic unwinding through the defer,
// rolls the transaction back.
func (s *Store) WithinTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	tx = nil

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
