package pdfextract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractText reads the entire content of r and extracts plain text from the PDF.
// Pages are separated by a blank line so paragraph chunking never merges the
// tail of one page into the head of the next without a break.
// Returns empty string and nil error if the PDF has no extractable text.
func ExtractText(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read pdf failed: %w", err)
	}
	if len(b) == 0 {
		return "", nil
	}
	pdfReader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", fmt.Errorf("open pdf failed: %w", err)
	}

	pages := make([]string, 0, pdfReader.NumPage())
	for i := 1; i <= pdfReader.NumPage(); i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract pdf page %d failed: %w", i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

// ObjectReader is the read side of a blob store.
type ObjectReader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// BlobExtractor extracts text locally from PDFs kept in a blob store, for
// deployments without a managed OCR service.
type BlobExtractor struct {
	store ObjectReader
}

func NewBlobExtractor(store ObjectReader) *BlobExtractor {
	return &BlobExtractor{store: store}
}

func (e *BlobExtractor) ExtractText(ctx context.Context, key string) (string, error) {
	rc, err := e.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return ExtractText(rc)
}
