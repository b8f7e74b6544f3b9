package analysis

import (
	"context"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/referta/referta/internal/intelligence/extraction"
	"github.com/referta/referta/pkg/errors"
)

// DocumentSource turns uploaded bytes into the character stream the
// extractors run over.  PDF parsing and OCR live behind this seam in the
// rendering backend deployment; the engine itself never touches page
// geometry.
type DocumentSource interface {
	Render(ctx context.Context, filename string, raw []byte) (extraction.Document, error)
}

// PlainTextSource renders uploads that already are UTF-8 text.  Text
// arriving from PDF renderers often carries decomposed accents; NFC
// normalization folds them so the Italian extraction rules match.
type PlainTextSource struct{}

// Render validates and normalizes raw as UTF-8 text.
func (PlainTextSource) Render(_ context.Context, filename string, raw []byte) (extraction.Document, error) {
	if len(raw) == 0 {
		return extraction.Document{}, errors.New(errors.ErrCodeDocumentEmpty, "document is empty: "+filename)
	}
	if !utf8.Valid(raw) {
		return extraction.Document{}, errors.New(errors.ErrCodeDocumentRead, "document is not valid UTF-8 text: "+filename)
	}
	return extraction.Document{Text: norm.NFC.String(string(raw))}, nil
}
