package purchase

import (
	"context"
	"database/sql"

	"musicstore/internal/store"
)

// LedgerStore is the transactional persistence surface the Ledger drives.
type LedgerStore interface {
	Debit(ctx context.Context, tx *sql.Tx, accountID, amount int64) error
	AppendLedgerEntry(ctx context.Context, tx *sql.Tx, accountID, delta int64, reason string, itemKind store.ItemKind, itemID int64) error
	CreatePurchase(ctx context.Context, tx *sql.Tx, accountID int64, kind store.ItemKind, itemID, methodID int64) (store.Purchase, error)
}

// Ledger enforces atomic balance debiting and purchase recording. Both
// operations run against the caller's transaction so they commit or roll
// back together.
type Ledger struct {
	store LedgerStore
}

// NewLedger constructs a Ledger over the given store.
func NewLedger(s LedgerStore) *Ledger {
	return &Ledger{store: s}
}

// Debit takes item.PriceCents off the account and appends the matching
// ledger entry. Returns store.ErrInsufficientFunds when the balance cannot
// cover the price.
func (l *Ledger) Debit(ctx context.Context, tx *sql.Tx, accountID int64, item store.Item) error {
	if err := l.store.Debit(ctx, tx, accountID, item.PriceCents); err != nil {
		return err
	}
	return l.store.AppendLedgerEntry(ctx, tx, accountID, -item.PriceCents, "purchase", item.Kind, item.ID)
}

// RecordPurchase creates the purchase row. Returns store.ErrAlreadyBought
// when the account already owns the item; the storage-level unique
// constraint makes this safe under concurrent buyers.
func (l *Ledger) RecordPurchase(ctx context.Context, tx *sql.Tx, accountID int64, item store.Item, methodID int64) (store.Purchase, error) {
	return l.store.CreatePurchase(ctx, tx, accountID, item.Kind, item.ID, methodID)
}
