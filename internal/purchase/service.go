package purchase

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"musicstore/internal/store"
)

// Store is the persistence surface the purchase service depends on.
type Store interface {
	LedgerStore
	WithinTx(ctx context.Context, fn func(*sql.Tx) error) error
	ItemByID(ctx context.Context, kind store.ItemKind, id int64) (store.Item, error)
	PaymentMethodForAccount(ctx context.Context, accountID, methodID int64) (store.PaymentMethod, error)
	PurchasesByAccount(ctx context.Context, accountID int64) ([]store.Purchase, error)
}

// Service exposes the purchase flow.
type Service interface {
	// Buy debits the account by the item's price and records ownership,
	// atomically. Sentinel failures: store.ErrItemNotFound,
	// store.ErrPaymentNotFound, store.ErrInsufficientFunds,
	// store.ErrAlreadyBought.
	Buy(ctx context.Context, accountID int64, kind store.ItemKind, itemID, methodID int64) (store.Purchase, error)

	// History lists the account's purchases, newest first.
	History(ctx context.Context, accountID int64) ([]store.Purchase, error)
}

type service struct {
	store  Store
	ledger *Ledger
	log    zerolog.Logger
}

// New constructs the purchase Service backed by the provided store.
func New(s Store, log zerolog.Logger) Service {
	return &service{
		store:  s,
		ledger: NewLedger(s),
		log:    log,
	}
}

func (s *service) Buy(ctx context.Context, accountID int64, kind store.ItemKind, itemID, methodID int64) (store.Purchase, error) {
	item, err := s.store.ItemByID(ctx, kind, itemID)
	if err != nil {
		return store.Purchase{}, err
	}

	if _, err := s.store.PaymentMethodForAccount(ctx, accountID, methodID); err != nil {
		return store.Purchase{}, err
	}

	var purchase store.Purchase
	err = s.store.WithinTx(ctx, func(tx *sql.Tx) error {
		// Record first: a duplicate buy must fail on the unique index
		// before any balance is touched.
		purchase, err = s.ledger.RecordPurchase(ctx, tx, accountID, item, methodID)
		if err != nil {
			return err
		}
		return s.ledger.Debit(ctx, tx, accountID, item)
	})
	if err != nil {
		return store.Purchase{}, err
	}

	s.log.Info().
		Int64("account_id", accountID).
		Str("item_kind", string(kind)).
		Int64("item_id", itemID).
		Int64("price_cents", item.PriceCents).
		Msg("purchase completed")

	return purchase, nil
}

func (s *service) History(ctx context.Context, accountID int64) ([]store.Purchase, error) {
	return s.store.PurchasesByAccount(ctx, accountID)
}
