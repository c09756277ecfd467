package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"

	"github.com/nexabot/knowledge-api/pkg/logger_i"
)

var fileLogger = logger_i.NewLogger("FileExtraction")

// ExtractFile pulls plain text out of an uploaded document so it can flow
// through the same chunk/embed path as scraped pages.
func ExtractFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".docx", ".txt", ".rtf", ".odt":
		return extractWithCat(path)
	default:
		return "", fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}

func extractPDF(path string) (string, error) {
	f, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []string
	numPages := f.NumPage()
	for i := 1; i <= numPages; i++ {
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := protectExtract(page)
		if err != nil {
			// a broken page should not sink the rest of the document
			fileLogger.Warn("skipping unreadable pdf page", "page", i, "error", err)
			continue
		}
		pages = append(pages, content)
	}

	if len(pages) == 0 {
		return "", errors.New("no readable pages in pdf")
	}
	return strings.Join(pages, "\n\n"), nil
}

func extractWithCat(path string) (string, error) {
	text, err := cat.File(path)
	if err != nil {
		return "", fmt.Errorf("failed to extract document: %w", err)
	}
	return text, nil
}

// protectExtract guards against pdf pages whose text extraction hangs.
func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(10 * time.Second):
		return "", errors.New("pdf page extraction timed out")
	}
}
