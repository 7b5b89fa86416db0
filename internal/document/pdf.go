package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ExtractPDF extracts the text of every page of the PDF at path, in page
// order, one page per paragraph. pdfcpu validates the file and counts its
// pages; the pages are then decoded with their fonts' Unicode mappings.
// Pages whose text is mostly unmappable glyphs are left out.
func ExtractPDF(ctx context.Context, path string) (string, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF context: %w", err)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var fullText strings.Builder
	for pageNum := 1; pageNum <= pdfCtx.PageCount; pageNum++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page, err := readPage(reader, pageNum)
		if err != nil {
			return "", err
		}
		if page.V.IsNull() {
			continue
		}
		text, err := PageText(page)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", pageNum, err)
		}
		text = strings.TrimSpace(text)
		if !readable(text) {
			continue
		}
		if fullText.Len() > 0 {
			fullText.WriteString("\n\n")
		}
		fullText.WriteString(text)
	}
	return fullText.String(), nil
}

// readPage looks up a page, turning the reader's panics on broken object
// references into errors.
func readPage(r *pdf.Reader, num int) (page pdf.Page, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: %v", num, rec)
		}
	}()
	return r.Page(num), nil
}
