package main

import (
	"context"
	"database/sql"
	"fmt"

	"musicstore/internal/store"
)

// seedDemoData populates an empty database with a couple of accounts and a
// small catalog so the purchase flow can be exercised right away. Re-running
// against a seeded database is a no-op.
func seedDemoData(ctx context.Context, db *sql.DB, dataStore *store.Store) error {
	var count int
	if err := db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM accounts
	`).Scan(&count); err != nil {
		return fmt.Errorf("count accounts: %w", err)
	}
	if count > 0 {
		return nil
	}

	type seedAccount struct {
		Balance int64
		Methods []string
	}

	accounts := []seedAccount{
		{Balance: 5000, Methods: []string{"Visa •••• 4242", "Store credit"}},
		{Balance: 150, Methods: []string{"Mastercard •••• 4444"}},
	}

	for _, acc := range accounts {
		accountID, err := dataStore.CreateAccount(ctx, acc.Balance)
		if err != nil {
			return fmt.Errorf("seed account: %w", err)
		}
		for i, title := range acc.Methods {
			methodID, err := dataStore.AddPaymentMethod(ctx, accountID, title)
			if err != nil {
				return fmt.Errorf("seed payment method %q: %w", title, err)
			}
			if i == 0 {
				if err := dataStore.SetDefaultMethod(ctx, accountID, methodID); err != nil {
					return fmt.Errorf("seed default method: %w", err)
				}
			}
		}
	}

	type seedTrack struct {
		Title string
		Price int64
	}
	type seedAlbum struct {
		Author string
		Title  string
		Price  int64
		Tracks []seedTrack
	}

	albums := []seedAlbum{
		{
			Author: "Boards of Canada",
			Title:  "Music Has the Right to Children",
			Price:  799,
			Tracks: []seedTrack{
				{Title: "Turquoise Hexagon Sun", Price: 99},
				{Title: "Roygbiv", Price: 99},
				{Title: "Aquarius", Price: 99},
			},
		},
		{
			Author: "Portishead",
			Title:  "Dummy",
			Price:  899,
			Tracks: []seedTrack{
				{Title: "Mysterons", Price: 129},
				{Title: "Sour Times", Price: 129},
				{Title: "Glory Box", Price: 129},
			},
		},
	}

	for _, album := range albums {
		albumID, _, err := dataStore.GetOrCreateAlbum(ctx, album.Author, album.Title, album.Price)
		if err != nil {
			return fmt.Errorf("seed album %q: %w", album.Title, err)
		}
		for _, track := range album.Tracks {
			if _, err := dataStore.CreateTrack(ctx, store.Track{
				Author:     album.Author,
				Title:      track.Title,
				PriceCents: track.Price,
				AlbumID:    &albumID,
			}, nil); err != nil {
				return fmt.Errorf("seed track %q: %w", track.Title, err)
			}
		}
	}

	return nil
}
