// Package textenc reads text files whose encoding is not known in advance.
//
// Content pages and extension sources are user supplied. Anything mimetype
// does not classify as text is refused; text that is not valid UTF-8 has its
// charset detected with chardet and is transcoded.
package textenc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// MaxFileSize bounds a single decoded file
const MaxFileSize = 8 << 20

var (
	ErrNotText  = errors.New("not a text file")
	ErrTooLarge = errors.New("file too large")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadFile reads and decodes path
func ReadFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) > MaxFileSize {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, path, MaxFileSize)
	}

	text, err := Decode(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return text, nil
}

// Decode returns data as UTF-8 text
func Decode(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	mt := mimetype.Detect(data)
	if !IsText(mt) {
		return "", fmt.Errorf("%w: detected %s", ErrNotText, mt.String())
	}

	if utf8.Valid(data) {
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	}

	label := DetectCharset(data)
	r, err := charset.NewReaderLabel(label, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("transcode from %s: %w", label, err)
	}
	return string(bytes.TrimPrefix(out, utf8BOM)), nil
}

// IsText reports whether mt is text/plain or a descendant of it
func IsText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// DetectCharset returns the most likely charset label of data
func DetectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}
