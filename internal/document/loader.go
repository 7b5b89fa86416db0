// Package document turns source files into raw document text.
package document

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"pdfqa/internal/domain"
)

// Load reads the file at path and returns its text as a Document.
// PDF files go through ExtractPDF; .txt and .md files are read as UTF-8.
func Load(ctx context.Context, path string) (domain.Document, error) {
	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		text, err = ExtractPDF(ctx, path)
	case ".txt", ".md", ".text":
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	default:
		return domain.Document{}, fmt.Errorf("unsupported file type %q: %s", ext, path)
	}
	if err != nil {
		return domain.Document{}, err
	}
	text = strings.TrimSpace(text)
	if !readable(text) {
		return domain.Document{}, fmt.Errorf("%w: no extractable text found in %s", domain.ErrEmptyInput, path)
	}
	return domain.Document{ID: hashString(path), Path: path, Content: text}, nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}

// maxGarbledShare is the largest share of control and replacement runes a
// text may contain and still count as extracted text.
const maxGarbledShare = 0.1

// readable reports whether text has visible content that is not mostly
// undecodable glyphs.
func readable(text string) bool {
	var total, garbled int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if r == unicode.ReplacementChar || unicode.IsControl(r) {
			garbled++
		}
	}
	return total > 0 && float64(garbled) <= maxGarbledShare*float64(total)
}
