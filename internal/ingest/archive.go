package ingest

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
)

// ErrNotZip indicates the uploaded bytes are not a valid ZIP container.
var ErrNotZip = errors.New("not a zip archive")

// Archive abstracts a readable archive container: list entry names in
// archive order, open one entry's content. Tests substitute a fake instead
// of building real ZIP bytes.
type Archive interface {
	Entries() []string
	Open(name string) (io.ReadCloser, error)
}

type zipArchive struct {
	reader *zip.Reader
}

// OpenZip wraps in-memory ZIP bytes as an Archive.
func OpenZip(data []byte) (Archive, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotZip, err)
	}
	return &zipArchive{reader: reader}, nil
}

func (a *zipArchive) Entries() []string {
	names := make([]string, 0, len(a.reader.File))
	for _, f := range a.reader.File {
		names = append(names, f.Name)
	}
	return names
}

func (a *zipArchive) Open(name string) (io.ReadCloser, error) {
	for _, f := range a.reader.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("open archive entry %q: %w", name, fs.ErrNotExist)
}
