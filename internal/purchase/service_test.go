package purchase

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"musicstore/internal/store"
)

func newServiceWithMock(t *testing.T) (Service, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}

	svc := New(store.New(db), zerolog.Nop())
	return svc, mock, func() { db.Close() }
}

func expectItemLookup(mock sqlmock.Sqlmock, itemID, priceCents int64) {
	mock.ExpectQuery(regexp.QuoteMeta(`
			SELECT author, title, price_cents
			FROM tracks
			WHERE id = $1
		`)).
		WithArgs(itemID).
		WillReturnRows(sqlmock.NewRows([]string{"author", "title", "price_cents"}).
			AddRow("Artist", "Title", priceCents))
}

func expectMethodLookup(mock sqlmock.Sqlmock, accountID, methodID int64) {
	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, account_id, title
		FROM payment_methods
		WHERE id = $1 AND account_id = $2
	`)).
		WithArgs(methodID, accountID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "title"}).
			AddRow(methodID, accountID, "Visa"))
}

func TestBuySuccess(t *testing.T) {
	svc, mock, closeDB := newServiceWithMock(t)
	defer closeDB()

	expectItemLookup(mock, 7, 10)
	expectMethodLookup(mock, 42, 3)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`
		INSERT INTO purchases (account_id, item_kind, item_id, method_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`)).
		WithArgs(int64(42), "track", int64(7), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(int64(99), time.Now()))
	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE accounts
		SET balance = balance - $2
		WHERE id = $1 AND balance >= $2
	`)).
		WithArgs(int64(42), int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`
		INSERT INTO ledger_entries (account_id, delta, reason, item_kind, item_id)
		VALUES ($1, $2, $3, $4, $5)
	`)).
		WithArgs(int64(42), int64(-10), "purchase", "track", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p, err := svc.Buy(context.Background(), 42, store.KindTrack, 7, 3)
	if err != nil {
		t.Fatalf("Buy error: %v", err)
	}
	if p.ID != 99 || p.AccountID != 42 || p.ItemID != 7 {
		t.Fatalf("unexpected purchase: %+v", p)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBuyItemNotFound(t *testing.T) {
	svc, mock, closeDB := newServiceWithMock(t)
	defer closeDB()

	mock.ExpectQuery(regexp.QuoteMeta(`
			SELECT author, title, price_cents
			FROM tracks
			WHERE id = $1
		`)).
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)

	if _, err := svc.Buy(context.Background(), 42, store.KindTrack, 7, 3); !errors.Is(err, store.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBuyPaymentMethodNotOwned(t *testing.T) {
	svc, mock, closeDB := newServiceWithMock(t)
	defer closeDB()

	expectItemLookup(mock, 7, 10)
	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, account_id, title
		FROM payment_methods
		WHERE id = $1 AND account_id = $2
	`)).
		WithArgs(int64(3), int64(42)).
		WillReturnError(sql.ErrNoRows)

	if _, err := svc.Buy(context.Background(), 42, store.KindTrack, 7, 3); !errors.Is(err, store.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBuyAlreadyBoughtRollsBack(t *testing.T) {
	svc, mock, closeDB := newServiceWithMock(t)
	defer closeDB()

	expectItemLookup(mock, 7, 10)
	expectMethodLookup(mock, 42, 3)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`
		INSERT INTO purchases (account_id, item_kind, item_id, method_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`)).
		WithArgs(int64(42), "track", int64(7), int64(3)).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	if _, err := svc.Buy(context.Background(), 42, store.KindTrack, 7, 3); !errors.Is(err, store.ErrAlreadyBought) {
		t.Fatalf("expected ErrAlreadyBought, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBuyInsufficientFundsRollsBack(t *testing.T) {
	svc, mock, closeDB := newServiceWithMock(t)
	defer closeDB()

	expectItemLookup(mock, 7, 500)
	expectMethodLookup(mock, 42, 3)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`
		INSERT INTO purchases (account_id, item_kind, item_id, method_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`)).
		WithArgs(int64(42), "track", int64(7), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(int64(99), time.Now()))
	// Balance guard fails, then the probe finds the account exists.
	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE accounts
		SET balance = balance - $2
		WHERE id = $1 AND balance >= $2
	`)).
		WithArgs(int64(42), int64(500)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id
		FROM accounts
		WHERE id = $1
	`)).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectRollback()

	if _, err := svc.Buy(context.Background(), 42, store.KindTrack, 7, 3); !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBuyAlbumUsesAlbumLookup(t *testing.T) {
	svc, mock, closeDB := newServiceWithMock(t)
	defer closeDB()

	mock.ExpectQuery(regexp.QuoteMeta(`
			SELECT author, title, price_cents
			FROM albums
			WHERE id = $1
		`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"author", "title", "price_cents"}).
			AddRow("Artist", "Album", int64(0)))
	expectMethodLookup(mock, 42, 3)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`
		INSERT INTO purchases (account_id, item_kind, item_id, method_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`)).
		WithArgs(int64(42), "album", int64(5), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(int64(100), time.Now()))
	// A free item still debits zero and records the ledger entry.
	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE accounts
		SET balance = balance - $2
		WHERE id = $1 AND balance >= $2
	`)).
		WithArgs(int64(42), int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`
		INSERT INTO ledger_entries (account_id, delta, reason, item_kind, item_id)
		VALUES ($1, $2, $3, $4, $5)
	`)).
		WithArgs(int64(42), int64(0), "purchase", "album", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p, err := svc.Buy(context.Background(), 42, store.KindAlbum, 5, 3)
	if err != nil {
		t.Fatalf("Buy error: %v", err)
	}
	if p.ItemKind != store.KindAlbum || p.ID != 100 {
		t.Fatalf("unexpected purchase: %+v", p)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
