package ingest

import (
	"context"
	"fmt"
	"io"
	"strings"

	"musicstore/internal/store"
)

// UnknownArtist is substituted when an entry path names no author.
const UnknownArtist = "Unknown artist"

// Catalog is the persistence surface the unpacker writes through.
type Catalog interface {
	GetOrCreateAlbum(ctx context.Context, author, title string, defaultPriceCents int64) (id int64, created bool, err error)
	FindTrack(ctx context.Context, author, title string) (*store.Track, error)
	CreateTrack(ctx context.Context, track store.Track, content []byte) (int64, error)
}

// Config carries explicit unpacker settings.
type Config struct {
	// DefaultPriceCents is assigned to every album and track the
	// ingestion creates.
	DefaultPriceCents int64
}

// ProgressFunc is invoked after each processed entry.
type ProgressFunc func(processed, total int, name string)

// Summary reports what one ingestion run created.
type Summary struct {
	AlbumsAdded int
	TracksAdded int
}

// Unpacker turns archive entries into catalog rows.
type Unpacker struct {
	catalog Catalog
	cfg     Config
}

// NewUnpacker constructs an Unpacker writing through the given catalog.
func NewUnpacker(catalog Catalog, cfg Config) *Unpacker {
	return &Unpacker{catalog: catalog, cfg: cfg}
}

// Unpack validates every entry name, then ingests the archive's files.
// Validation is total before the first write, so a malformed archive leaves
// no partial state. A failure during ingestion keeps earlier entries: each
// entry's creation is independent and a re-run skips what already exists.
func (u *Unpacker) Unpack(ctx context.Context, a Archive, onEntry ProgressFunc) (Summary, error) {
	entries := a.Entries()

	if err := validateEntries(entries); err != nil {
		return Summary{}, err
	}

	var summary Summary
	total := len(entries)

	for i, name := range entries {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if !strings.HasSuffix(name, "/") {
			if err := u.ingestEntry(ctx, a, name, &summary); err != nil {
				return summary, err
			}
		}

		if onEntry != nil {
			onEntry(i+1, total, name)
		}
	}

	return summary, nil
}

// validateEntries rejects the whole archive when any entry is malformed.
func validateEntries(entries []string) error {
	for _, name := range entries {
		if strings.Count(name, "/") > 1 {
			return fmt.Errorf("%w: %q", ErrNestedPath, name)
		}
		if strings.HasSuffix(name, "/") {
			continue
		}
		if _, err := ParsePath(name); err != nil {
			return err
		}
	}
	return nil
}

func (u *Unpacker) ingestEntry(ctx context.Context, a Archive, name string, summary *Summary) error {
	entry, err := ParsePath(name)
	if err != nil {
		return err
	}

	author := entry.Author
	if author == "" {
		author = UnknownArtist
	}

	var albumID *int64
	if entry.Album != "" {
		id, created, err := u.catalog.GetOrCreateAlbum(ctx, author, entry.Album, u.cfg.DefaultPriceCents)
		if err != nil {
			return fmt.Errorf("entry %q: %w", name, err)
		}
		if created {
			summary.AlbumsAdded++
		}
		albumID = &id
	}

	existing, err := u.catalog.FindTrack(ctx, author, entry.Title)
	if err != nil {
		return fmt.Errorf("entry %q: %w", name, err)
	}
	if existing != nil {
		return nil
	}

	content, err := readEntry(a, name)
	if err != nil {
		return fmt.Errorf("entry %q: %w", name, err)
	}

	if _, err := u.catalog.CreateTrack(ctx, store.Track{
		Author:     author,
		Title:      entry.Title,
		PriceCents: u.cfg.DefaultPriceCents,
		AlbumID:    albumID,
	}, content); err != nil {
		return fmt.Errorf("entry %q: %w", name, err)
	}

	summary.TracksAdded++
	return nil
}

func readEntry(a Archive, name string) ([]byte, error) {
	rc, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}
