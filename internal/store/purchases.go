package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Purchase records that an account owns an item. Rows are append-only.
type Purchase struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"accountId"`
	ItemKind  ItemKind  `json:"itemKind"`
	ItemID    int64     `json:"itemId"`
	MethodID  int64     `json:"methodId"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreatePurchase creates the purchase row inside the caller's transaction.
// The unique index on (account_id, item_kind, item_id) is the authoritative
// double-purchase guard; a violation surfaces as ErrAlreadyBought.
func (s *Store) CreatePurchase(ctx context.Context, tx *sql.Tx, accountID int64, kind ItemKind, itemID, methodID int64) (Purchase, error) {
	p := Purchase{
		AccountID: accountID,
		ItemKind:  kind,
		ItemID:    itemID,
		MethodID:  methodID,
	}

	err := tx.QueryRowContext(ctx, `
		INSERT INTO purchases (account_id, item_kind, item_id, method_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, accountID, string(kind), itemID, methodID).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Purchase{}, ErrAlreadyBought
		}
		return Purchase{}, fmt.Errorf("insert purchase: %w", err)
	}
	return p, nil
}

// HasPurchased reports whether the account already owns the item.
func (s *Store) HasPurchased(ctx context.Context, accountID int64, kind ItemKind, itemID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM purchases
			WHERE account_id = $1 AND item_kind = $2 AND item_id = $3
		)
	`, accountID, string(kind), itemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return exists, nil
}

// PurchasesByAccount lists the account's purchases, newest first.
func (s *Store) PurchasesByAccount(ctx context.Context, accountID int64) ([]Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, item_kind, item_id, method_id, created_at
		FROM purchases
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("select purchases: %w", err)
	}
	defer rows.Close()

	var purchases []Purchase
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.AccountID, &p.ItemKind, &p.ItemID, &p.MethodID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchases: %w", err)
	}

	return purchases, nil
}
