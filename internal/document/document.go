package document

// Document is the unit of ingestion: the extracted text of one source file.
// Documents exist only for the duration of an ingest run; they are chunked
// and embedded, never persisted as-is.
type Document struct {
	ID         string // UUID
	SourcePath string // Where the text came from, e.g. "./data/q2-report.pdf"
	RawText    string // Full extracted text
	Pages      []PageSpan
}

// PageSpan records where a source page landed inside RawText, so chunks can
// be attributed back to a page number.
type PageSpan struct {
	Number int // 1-based page number
	Start  int // Rune offset into RawText, inclusive
	End    int // Rune offset into RawText, exclusive
}

// PageAt returns the 1-based page number containing the given rune offset,
// or 0 when the document carries no page information.
func (d Document) PageAt(offset int) int {
	// Offsets in the separator gap between pages belong to the next page.
	for _, p := range d.Pages {
		if offset < p.End {
			return p.Number
		}
	}
	return 0
}
