package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ItemKind discriminates the two purchasable catalog types.
type ItemKind string

const (
	KindTrack ItemKind = "track"
	KindAlbum ItemKind = "album"
)

// Album groups tracks under one author and carries its own price.
type Album struct {
	ID         int64  `json:"id"`
	Author     string `json:"author"`
	Title      string `json:"title"`
	PriceCents int64  `json:"priceCents"`
}

// Track is a single purchasable recording, optionally belonging to an album.
type Track struct {
	ID         int64  `json:"id"`
	Author     string `json:"author"`
	Title      string `json:"title"`
	PriceCents int64  `json:"priceCents"`
	AlbumID    *int64 `json:"albumId,omitempty"`
}

// Item is the purchasable view over a track or album.
type Item struct {
	Kind       ItemKind `json:"kind"`
	ID         int64    `json:"id"`
	Author     string   `json:"author"`
	Title      string   `json:"title"`
	PriceCents int64    `json:"priceCents"`
}

// ItemByID resolves a purchasable item of the given kind.
func (s *Store) ItemByID(ctx context.Context, kind ItemKind, id int64) (Item, error) {
	var (
		query string
		item  = Item{Kind: kind, ID: id}
	)

	switch kind {
	case KindTrack:
		query = `
			SELECT author, title, price_cents
			FROM tracks
			WHERE id = $1
		`
	case KindAlbum:
		query = `
			SELECT author, title, price_cents
			FROM albums
			WHERE id = $1
		`
	default:
		return Item{}, fmt.Errorf("%w: unknown item kind %q", ErrItemNotFound, kind)
	}

	err := s.db.QueryRowContext(ctx, query, id).Scan(&item.Author, &item.Title, &item.PriceCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, fmt.Errorf("select %s: %w", kind, err)
	}
	return item, nil
}

// GetOrCreateAlbum returns the id of the album with the given author and
// title, creating it with the default price when absent. ON CONFLICT DO
// NOTHING returns no row when the pair exists, so concurrent callers racing
// on the same pair all land on one row; albums are never deleted, making
// the fallback select safe.
func (s *Store) GetOrCreateAlbum(ctx context.Context, author, title string, defaultPriceCents int64) (int64, bool, error) {
	author = strings.TrimSpace(author)
	title = strings.TrimSpace(title)
	if author == "" || title == "" {
		return 0, false, fmt.Errorf("album author and title are required")
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO albums (author, title, price_cents)
		VALUES ($1, $2, $3)
		ON CONFLICT (author, title) DO NOTHING
		RETURNING id
	`, author, title, defaultPriceCents).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("insert album: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT id
		FROM albums
		WHERE author = $1 AND title = $2
	`, author, title).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("select album: %w", err)
	}
	return id, false, nil
}

// FindTrack looks up a track by its (author, title) pair.
// A nil result with nil error means no such track exists.
func (s *Store) FindTrack(ctx context.Context, author, title string) (*Track, error) {
	var t Track
	err := s.db.QueryRowContext(ctx, `
		SELECT id, author, title, price_cents, album_id
		FROM tracks
		WHERE author = $1 AND title = $2
	`, author, title).Scan(&t.ID, &t.Author, &t.Title, &t.PriceCents, &t.AlbumID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select track: %w", err)
	}
	return &t, nil
}

// CreateTrack inserts a new track together with its audio content.
func (s *Store) CreateTrack(ctx context.Context, track Track, content []byte) (int64, error) {
	track.Author = strings.TrimSpace(track.Author)
	track.Title = strings.TrimSpace(track.Title)

	switch {
	case track.Author == "":
		return 0, fmt.Errorf("track author is required")
	case track.Title == "":
		return 0, fmt.Errorf("track title is required")
	case track.PriceCents < 0:
		return 0, fmt.Errorf("track price must not be negative")
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tracks (author, title, price_cents, album_id, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, track.Author, track.Title, track.PriceCents, track.AlbumID, content).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert track: %w", err)
	}
	return id, nil
}

// TracksByAlbum lists the album's tracks in insertion order.
func (s *Store) TracksByAlbum(ctx context.Context, albumID int64) ([]Track, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author, title, price_cents, album_id
		FROM tracks
		WHERE album_id = $1
		ORDER BY id ASC
	`, albumID)
	if err != nil {
		return nil, fmt.Errorf("select album tracks: %w", err)
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		var t Track
		if err := rows.Scan(&t.ID, &t.Author, &t.Title, &t.PriceCents, &t.AlbumID); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracks: %w", err)
	}

	return tracks, nil
}
