package core

// streaming.go provides the byte-level plumbing for delimited text input.
//
//   - countingReader tracks bytes consumed for progress reporting
//   - decodeStream turns the raw bytes into UTF-8 text: the BOM is skipped,
//     Windows-1252 input is transcoded, and stray invalid bytes become U+FFFD
//
// Bytes are counted before decoding so progress is proportional to file size.

import (
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// countingReader wraps an io.Reader to track bytes read.
type countingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // If known (0 if unknown)
}

func newCountingReader(r io.Reader, total int64) *countingReader {
	return &countingReader{reader: r, Total: total}
}

// Read implements io.Reader.
func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// Progress returns the read progress as a percentage, capped at 99 so that
// only the end of the stream reports completion. Returns 0 if total is unknown.
func (r *countingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	return min(int(r.BytesRead*100/r.Total), 99)
}

// decoderFor returns the decoder for enc.
func decoderFor(enc Encoding) *encoding.Decoder {
	if enc == EncodingWindows1252 {
		return charmap.Windows1252.NewDecoder()
	}
	return unicode.UTF8BOM.NewDecoder()
}

// decodeStream wraps r with the decoder for enc.
func decodeStream(r io.Reader, enc Encoding) io.Reader {
	return transform.NewReader(r, decoderFor(enc))
}

// sniffEncoding picks UTF-8 when sample is valid UTF-8 and Windows-1252 otherwise.
// A multi-byte sequence cut off at the end of the sample is ignored.
func sniffEncoding(sample []byte, atEOF bool) Encoding {
	if !atEOF {
		sample = sample[:len(sample)-incompleteTrailingBytes(sample)]
	}
	if utf8.Valid(sample) {
		return EncodingUTF8
	}
	return EncodingWindows1252
}

// incompleteTrailingBytes returns the number of bytes at the end of data
// that could be the start of an incomplete multi-byte UTF-8 sequence.
func incompleteTrailingBytes(data []byte) int {
	for i := 1; i <= 3 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		// Anything but a continuation byte ends the search.
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// runeLen returns the expected length of a UTF-8 sequence starting with byte b.
func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	}
	return 4
}
