package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
)

// FileInput describes one file handed to the pipeline. Open may be called more
// than once; every reader closes what it opens.
type FileInput struct {
	Name      string
	MediaType string
	Size      int64
	Open      func() (io.ReadCloser, error)
}

// NewBytesInput wraps an in-memory file.
func NewBytesInput(name, mediaType string, data []byte) FileInput {
	return FileInput{
		Name:      name,
		MediaType: mediaType,
		Size:      int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// OpenFileInput describes a file on disk. The media type is guessed from the extension.
func OpenFileInput(path string) (FileInput, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileInput{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return FileInput{}, fmt.Errorf("%s is a directory", path)
	}
	return FileInput{
		Name:      filepath.Base(path),
		MediaType: mime.TypeByExtension(filepath.Ext(path)),
		Size:      info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// FormatError reports that a file could not be turned into a grid.
// No partial grid accompanies it.
type FormatError struct {
	Format FormatKind
	Op     string // "open", "decode", "read"
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Format, e.Op, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// IsFormatError reports whether err is, or wraps, a *FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// GridReader turns a file into a RawGrid. Percent values passed to onProgress
// are reader-local (0-100).
type GridReader interface {
	Format() FormatKind
	Read(in FileInput, onProgress ProgressFunc) (RawGrid, error)
}

// ReaderFor returns the reader for kind, or nil for FormatUnsupported.
func ReaderFor(kind FormatKind, cfg ParseConfig) GridReader {
	switch kind {
	case FormatSpreadsheet:
		return SpreadsheetReader{}
	case FormatDelimitedText:
		return DelimitedReader{Delimiter: cfg.Delimiter, Encoding: cfg.Encoding}
	}
	return nil
}

func openInput(kind FormatKind, in FileInput) (io.ReadCloser, error) {
	if in.Open == nil {
		return nil, &FormatError{Format: kind, Op: "open", Err: errors.New("no data source")}
	}
	rc, err := in.Open()
	if err != nil {
		return nil, &FormatError{Format: kind, Op: "open", Err: err}
	}
	return rc, nil
}
