package ingest

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNestedPath indicates an archive entry nested more than one directory deep.
	ErrNestedPath = errors.New("nested directories are not allowed")
	// ErrEmptyName indicates an entry with a blank album or track name.
	ErrEmptyName = errors.New("empty name in archive entry")
)

// authorDelimiter separates an author from a title within one path segment.
const authorDelimiter = " - "

// Entry is the parsed form of one archive entry path. Empty Author or
// Album means the path carried none.
type Entry struct {
	Author string
	Album  string
	Title  string
}

// ParsePath extracts the (author, album, track) triple from a
// forward-slash-delimited archive entry path.
//
// A path with one slash is read as "album/track"; each segment may prefix
// its name with "author - ". A path without a slash names a standalone
// track. The album segment's author wins for albums. Deterministic, no I/O.
func ParsePath(path string) (Entry, error) {
	segments := strings.Split(path, "/")
	if len(segments) > 2 {
		return Entry{}, fmt.Errorf("%w: %q", ErrNestedPath, path)
	}

	var entry Entry

	if len(segments) == 2 {
		author, album, err := splitSegment(segments[0])
		if err != nil {
			return Entry{}, fmt.Errorf("%w: %q", err, path)
		}
		entry.Author = author
		entry.Album = album

		_, title, err := splitSegment(segments[1])
		if err != nil {
			return Entry{}, fmt.Errorf("%w: %q", err, path)
		}
		entry.Title = title
		return entry, nil
	}

	author, title, err := splitSegment(segments[0])
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %q", err, path)
	}
	entry.Author = author
	entry.Title = title
	return entry, nil
}

// splitSegment divides one segment into an optional author and a name on
// the first " - " occurrence.
func splitSegment(segment string) (author, name string, err error) {
	if before, after, found := strings.Cut(segment, authorDelimiter); found {
		author = strings.TrimSpace(before)
		name = strings.TrimSpace(after)
	} else {
		name = strings.TrimSpace(segment)
	}
	if name == "" {
		return "", "", ErrEmptyName
	}
	return author, name, nil
}
