package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyFile is returned for zero-byte input.
	ErrEmptyFile = errors.New("file is empty")

	// ErrFileTooLarge is returned when input exceeds the size ceiling.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoFile is returned when a request carries no file at all.
	ErrNoFile = errors.New("no file provided")

	// ErrUnsupportedFormat is returned when neither extension nor media type names a known format.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// AcceptedExtensions lists the file extensions the pipeline reads.
var AcceptedExtensions = []string{".xlsx", ".xls", ".csv"}

// DetectFormat chooses a reader from the file name, declared media type and size.
// Size checks run first: no reader is consulted for rejected input.
func DetectFormat(name, mediaType string, size, maxSize int64) (FormatKind, error) {
	if err := checkSize(size, maxSize); err != nil {
		return FormatUnsupported, err
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xls":
		return FormatSpreadsheet, nil
	case ".csv":
		return FormatDelimitedText, nil
	}

	mt := strings.ToLower(mediaType)
	switch {
	case strings.Contains(mt, "spreadsheet"), strings.Contains(mt, "excel"):
		return FormatSpreadsheet, nil
	case strings.Contains(mt, "csv"), strings.Contains(mt, "comma-separated"):
		return FormatDelimitedText, nil
	}

	return FormatUnsupported, fmt.Errorf("%w: accepted extensions are %s",
		ErrUnsupportedFormat, strings.Join(AcceptedExtensions, ", "))
}

// checkSize rejects empty input and input above maxSize.
func checkSize(size, maxSize int64) error {
	if size == 0 {
		return ErrEmptyFile
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if size > maxSize {
		return fmt.Errorf("%w: %d bytes exceeds the %d MB limit", ErrFileTooLarge, size, maxSize/(1024*1024))
	}
	return nil
}
