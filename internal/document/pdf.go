package document

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

// pageSeparator joins page texts inside Document.RawText.
const pageSeparator = "\n\n"

// Loader extracts text from PDF files into Documents.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a PDF loader. A nil logger falls back to slog.Default.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// LoadDir loads every *.pdf file in dir, sorted by name.
// Returns an error if the directory does not exist; a directory with no PDFs
// yields an empty slice.
func (l *Loader) LoadDir(dir string) ([]Document, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("data directory %s: %w", dir, err)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	l.logger.Info("Found PDF files", "dir", dir, "count", len(paths))

	docs := make([]Document, 0, len(paths))
	for _, path := range paths {
		doc, err := l.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		docs = append(docs, doc)
		l.logger.Info("Loaded PDF", "path", path, "pages", len(doc.Pages), "chars", len(doc.RawText))
	}
	return docs, nil
}

// LoadFile extracts the plain text of a single PDF, page by page.
// Pages that cannot be parsed are skipped rather than failing the document.
func (l *Loader) LoadFile(path string) (Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	doc := Document{
		ID:         uuid.New().String(),
		SourcePath: path,
	}

	var sb strings.Builder
	offset := 0
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			l.logger.Warn("Skipping unparseable page", "path", path, "page", i, "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteString(pageSeparator)
			offset += utf8.RuneCountInString(pageSeparator)
		}
		runes := utf8.RuneCountInString(text)
		doc.Pages = append(doc.Pages, PageSpan{Number: i, Start: offset, End: offset + runes})
		sb.WriteString(text)
		offset += runes
	}

	doc.RawText = sb.String()
	return doc, nil
}
