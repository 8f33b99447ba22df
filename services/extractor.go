package services

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"cv-evaluator/internal/logger"
)

// PDFExtractor extracts plain text from PDF files on disk.
type PDFExtractor struct{}

func (PDFExtractor) ExtractText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract page text", "path", path, "page", i, "error", err)
			continue
		}

		b.WriteString(text)
		// blank line between pages so paragraph chunking sees a boundary
		b.WriteString("\n\n")
	}

	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("%w: no text extracted from %s", ErrExtraction, path)
	}
	return b.String(), nil
}
