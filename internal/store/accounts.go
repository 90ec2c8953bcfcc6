package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Account holds a user's spendable balance in the smallest currency unit.
type Account struct {
	ID              int64  `json:"id"`
	Balance         int64  `json:"balance"`
	DefaultMethodID *int64 `json:"defaultMethodId,omitempty"`
}

// PaymentMethod is a named payment instrument owned by an account.
type PaymentMethod struct {
	ID        int64  `json:"id"`
	AccountID int64  `json:"accountId"`
	Title     string `json:"title"`
}

// CreateAccount inserts a new account with an opening balance.
func (s *Store) CreateAccount(ctx context.Context, openingBalance int64) (int64, error) {
	if openingBalance < 0 {
		return 0, fmt.Errorf("opening balance must not be negative")
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (balance)
		VALUES ($1)
		RETURNING id
	`, openingBalance).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	return id, nil
}

// AccountByID returns a single account by its identifier.
func (s *Store) AccountByID(ctx context.Context, id int64) (Account, error) {
	var a Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, balance, default_method_id
		FROM accounts
		WHERE id = $1
	`, id).Scan(&a.ID, &a.Balance, &a.DefaultMethodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("select account: %w", err)
	}
	return a, nil
}

// AddPaymentMethod registers a payment method for the account.
func (s *Store) AddPaymentMethod(ctx context.Context, accountID int64, title string) (int64, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, fmt.Errorf("payment method title is required")
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO payment_methods (account_id, title)
		VALUES ($1, $2)
		RETURNING id
	`, accountID, title).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert payment method: %w", err)
	}
	return id, nil
}

// PaymentMethodForAccount resolves a method id that must belong to the account.
func (s *Store) PaymentMethodForAccount(ctx context.Context, accountID, methodID int64) (PaymentMethod, error) {
	var m PaymentMethod
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, title
		FROM payment_methods
		WHERE id = $1 AND account_id = $2
	`, methodID, accountID).Scan(&m.ID, &m.AccountID, &m.Title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PaymentMethod{}, ErrPaymentNotFound
		}
		return PaymentMethod{}, fmt.Errorf("select payment method: %w", err)
	}
	return m, nil
}

// SetDefaultMethod marks one of the account's own methods as the default.
func (s *Store) SetDefaultMethod(ctx context.Context, accountID, methodID int64) error {
	if _, err := s.PaymentMethodForAccount(ctx, accountID, methodID); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET default_method_id = $2
		WHERE id = $1
	`, accountID, methodID)
	if err != nil {
		return fmt.Errorf("update default method: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update default method: %w", err)
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// RemovePaymentMethod deletes the method and clears it as default if needed.
func (s *Store) RemovePaymentMethod(ctx context.Context, accountID, methodID int64) error {
	return s.WithinTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE accounts
			SET default_method_id = NULL
			WHERE id = $1 AND default_method_id = $2
		`, accountID, methodID); err != nil {
			return fmt.Errorf("clear default method: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			DELETE FROM payment_methods
			WHERE id = $1 AND account_id = $2
		`, methodID, accountID)
		if err != nil {
			return fmt.Errorf("delete payment method: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete payment method: %w", err)
		}
		if affected == 0 {
			return ErrPaymentNotFound
		}
		return nil
	})
}

// Debit decrements the balance inside the caller's transaction.
// The conditional UPDATE both locks the row and enforces the non-negative
// balance invariant; zero affected rows means either a missing account or
// insufficient funds, distinguished by a follow-up probe.
func (s *Store) Debit(ctx context.Context, tx *sql.Tx, accountID, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("debit amount must not be negative")
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance - $2
		WHERE id = $1 AND balance >= $2
	`, accountID, amount)
	if err != nil {
		return fmt.Errorf("debit account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit account: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists int64
	err = tx.QueryRowContext(ctx, `
		SELECT id
		FROM accounts
		WHERE id = $1
	`, accountID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}
	return ErrInsufficientFunds
}

// AppendLedgerEntry records a balance mutation inside the caller's transaction.
func (s *Store) AppendLedgerEntry(ctx context.Context, tx *sql.Tx, accountID, delta int64, reason string, itemKind ItemKind, itemID int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (account_id, delta, reason, item_kind, item_id)
		VALUES ($1, $2, $3, $4, $5)
	`, accountID, delta, reason, string(itemKind), itemID); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}
