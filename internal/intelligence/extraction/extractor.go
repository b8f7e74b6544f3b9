// Package extraction turns the raw character stream of a clinical document
// into structured metadata: patient identity, exam title and date, and the
// named laboratory values with abnormality flags.  Every field is extracted
// by an ordered rule table; an unmatched field is absent, never an error.
package extraction

import (
	"strings"

	"github.com/referta/referta/internal/config"
	"github.com/referta/referta/internal/domain/report"
	"github.com/referta/referta/internal/infrastructure/monitoring/logging"
	"github.com/referta/referta/pkg/errors"
)

// ---------------------------------------------------------------------------
// Input document
// ---------------------------------------------------------------------------

// Document is the rendering backend's output for one source file: the full
// character stream plus any document-level properties it exposes.  When the
// stream is too short the caller substitutes an OCR-derived stream before
// calling Extract; no OCR happens here.
type Document struct {
	Text string

	// Properties is the optional metadata bag of the source file.  The
	// patient identifier sometimes lives only here.
	Properties map[string]string
}

// ---------------------------------------------------------------------------
// Dependencies
// ---------------------------------------------------------------------------

// Classifier assigns the coarse category given the full text and the
// extracted exam title.
type Classifier interface {
	Classify(text, examTitle string) report.Category
}

// ---------------------------------------------------------------------------
// Extractor
// ---------------------------------------------------------------------------

// Extractor runs the full field and laboratory-value extraction pipeline.
// It is stateless and safe for concurrent use.
type Extractor struct {
	cfg        config.ExtractionConfig
	classifier Classifier
	logger     logging.Logger
}

// NewExtractor constructs an Extractor.  classifier is required; a nil
// logger falls back to the no-op implementation.
func NewExtractor(cfg config.ExtractionConfig, classifier Classifier, logger logging.Logger) (*Extractor, error) {
	if classifier == nil {
		return nil, errors.InvalidParam("extraction: classifier is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Extractor{
		cfg:        cfg,
		classifier: classifier,
		logger:     logger.Named("extraction"),
	}, nil
}

// Extract produces the full metadata for one document.  The only error
// condition is an unreadable document (empty stream); every field-level miss
// degrades to an absent value.
func (e *Extractor) Extract(doc Document) (*report.ExtractedMetadata, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, errors.New(errors.ErrCodeDocumentEmpty, "document stream is empty")
	}

	sources := []string{doc.Text}
	if len(doc.Properties) > 0 {
		var sb strings.Builder
		for _, v := range doc.Properties {
			if v == "" {
				continue
			}
			sb.WriteString(v)
			sb.WriteByte(' ')
		}
		if sb.Len() > 0 {
			sources = append(sources, sb.String())
		}
	}

	fiscalCode := extractFiscalCode(sources)
	patientName := extractPatientName(doc.Text)
	birthDate := extractDate(doc.Text, birthDateRules, e.cfg.BirthYearMin, e.cfg.BirthYearMax)
	examDate := extractExamDate(doc.Text, e.cfg.ExamYearMin, e.cfg.ExamYearMax)

	examTitle := extractExamTitle(doc.Text, titleScanOptions{
		firstLine: e.cfg.TitleScanFirstLine,
		lastLine:  e.cfg.TitleScanLastLine,
		minLen:    e.cfg.TitleMinLen,
		maxLen:    e.cfg.TitleMaxLen,
		voteLines: e.cfg.KeywordVoteLines,
	})
	if examTitle == "" {
		examTitle = report.UnknownTitle
	}

	labValues := extractLabValues(doc.Text, e.cfg.LabValueLookahead)

	category := e.classifier.Classify(doc.Text, examTitle)

	e.logger.Debug("document extracted",
		logging.Bool("has_identifier", fiscalCode != ""),
		logging.String("exam_title", examTitle),
		logging.String("exam_date", examDate),
		logging.String("category", string(category)),
		logging.Int("lab_values", len(labValues)),
	)

	return &report.ExtractedMetadata{
		RawText:     doc.Text,
		PatientName: patientName,
		BirthDate:   birthDate,
		FiscalCode:  fiscalCode,
		ExamDate:    examDate,
		ExamTitle:   examTitle,
		Category:    category,
		LabValues:   labValues,
	}, nil
}
