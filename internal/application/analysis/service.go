// Package analysis orchestrates the full document pipeline: extraction,
// classification, duplicate detection, temporal comparison, AI assessment,
// persistence, and the surrounding event/archive/cache plumbing.  Batches
// are processed strictly one document at a time in chronological order so
// that later documents can be compared against earlier ones persisted in
// the same batch.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/referta/referta/internal/config"
	"github.com/referta/referta/internal/domain/report"
	"github.com/referta/referta/internal/infrastructure/monitoring/logging"
	"github.com/referta/referta/internal/intelligence/extraction"
	"github.com/referta/referta/internal/intelligence/inference"
	"github.com/referta/referta/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Dependencies
// ─────────────────────────────────────────────────────────────────────────────

// Extractor turns one rendered document into structured metadata.
type Extractor interface {
	Extract(doc extraction.Document) (*report.ExtractedMetadata, error)
}

// Comparator resolves the trend verdict against the most recent prior.
type Comparator interface {
	Compare(ctx context.Context, meta *report.ExtractedMetadata) *report.ComparisonResult
}

// DuplicateDetector checks a document against stored documents sharing its
// identifier, title, and exam date.
type DuplicateDetector interface {
	IsDuplicate(ctx context.Context, meta *report.ExtractedMetadata) report.DuplicateVerdict
}

// EventPublisher emits one event per completed analysis.  Publishing is
// best effort: a broker outage never fails the document.
type EventPublisher interface {
	PublishAnalysisCompleted(ctx context.Context, event *AnalysisEvent) error
}

// DocumentArchive stores the raw uploaded bytes and returns the storage key.
type DocumentArchive interface {
	Store(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// HistoryCache caches per-patient report histories.
type HistoryCache interface {
	Get(ctx context.Context, fiscalCode string) ([]*report.StoredReport, bool)
	Set(ctx context.Context, fiscalCode string, reports []*report.StoredReport) error
	Invalidate(ctx context.Context, fiscalCode string) error
}

// Collector receives pipeline metrics.
type Collector interface {
	DocumentProcessed(category, verdict string, seconds float64)
	DuplicateDetected(category string)
	BatchProcessed(size int)
	InferenceFallback()
}

// ─────────────────────────────────────────────────────────────────────────────
// Inputs and results
// ─────────────────────────────────────────────────────────────────────────────

// DocumentInput is one uploaded document after text rendering.
type DocumentInput struct {
	Filename string

	// Text is the rendered character stream; empty when rendering failed.
	Text       string
	Properties map[string]string

	// Raw is the original upload, archived when an archive is configured.
	Raw []byte

	// ReadError carries the rendering failure for this document; the
	// document is reported but not processed.
	ReadError error
}

// AnalyzeBatchInput is an ordered batch of documents.
type AnalyzeBatchInput struct {
	Documents []DocumentInput
}

// DocumentResult is the per-document outcome; a batch always produces one
// entry per submitted document.
type DocumentResult struct {
	Filename string `json:"filename"`
	Saved    bool   `json:"saved"`
	Message  string `json:"message"`

	ReportID    *uuid.UUID      `json:"report_id,omitempty"`
	FiscalCode  string          `json:"fiscal_code,omitempty"`
	PatientName string          `json:"patient_name,omitempty"`
	ExamTitle   string          `json:"exam_title,omitempty"`
	ExamDate    string          `json:"exam_date,omitempty"`
	Category    report.Category `json:"category,omitempty"`

	Diagnosis string          `json:"diagnosis,omitempty"`
	Severity  report.Severity `json:"severity,omitempty"`

	Verdict     report.Verdict `json:"verdict,omitempty"`
	Explanation string         `json:"explanation,omitempty"`

	Duplicate bool `json:"duplicate,omitempty"`
}

// AnalyzeBatchResult is the ordered outcome of one batch.
type AnalyzeBatchResult struct {
	Results []*DocumentResult `json:"results"`
}

// AnalysisEvent is published after each persisted analysis.
type AnalysisEvent struct {
	ReportID   string    `json:"report_id"`
	FiscalCode string    `json:"fiscal_code"`
	ExamTitle  string    `json:"exam_title"`
	ExamDate   string    `json:"exam_date"`
	Category   string    `json:"category"`
	Verdict    string    `json:"verdict"`
	Severity   string    `json:"severity,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// FeedbackInput is a doctor's judgement on one analysis outcome.  Corrected
// fields stay empty when the doctor agrees with the stored values.
type FeedbackInput struct {
	ReportID           uuid.UUID
	Doctor             string
	Agrees             bool
	CorrectedDiagnosis string
	CorrectedSeverity  report.Severity
	Notes              string
}

// ─────────────────────────────────────────────────────────────────────────────
// Service
// ─────────────────────────────────────────────────────────────────────────────

// Service is the application surface for document analysis.
type Service interface {
	AnalyzeBatch(ctx context.Context, input *AnalyzeBatchInput) (*AnalyzeBatchResult, error)
	GetReport(ctx context.Context, id uuid.UUID) (*report.StoredReport, error)
	PatientHistory(ctx context.Context, fiscalCode, examTitle string, limit, offset int) ([]*report.StoredReport, error)
	SubmitFeedback(ctx context.Context, input *FeedbackInput) (*report.Feedback, error)
	LabeledFeedback(ctx context.Context, limit, offset int) ([]*report.Feedback, error)
}

// Dependencies wires the service.  Extractor, Comparator, Detector, and
// Reports are required; every other collaborator degrades to a no-op when
// nil.
type Dependencies struct {
	Extractor  Extractor
	Comparator Comparator
	Detector   DuplicateDetector
	AI         inference.Client
	Reports    report.Repository
	Feedback   report.FeedbackRepository
	Publisher  EventPublisher
	Archive    DocumentArchive
	Cache      HistoryCache
	Metrics    Collector
	Logger     logging.Logger
}

type serviceImpl struct {
	cfg  config.EngineConfig
	deps Dependencies
	log  logging.Logger
}

// NewService constructs the analysis service.
func NewService(cfg config.EngineConfig, deps Dependencies) (Service, error) {
	if deps.Extractor == nil {
		return nil, errors.InvalidParam("analysis: extractor is required")
	}
	if deps.Comparator == nil {
		return nil, errors.InvalidParam("analysis: comparator is required")
	}
	if deps.Detector == nil {
		return nil, errors.InvalidParam("analysis: duplicate detector is required")
	}
	if deps.Reports == nil {
		return nil, errors.InvalidParam("analysis: report repository is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		cfg:  cfg,
		deps: deps,
		log:  deps.Logger.Named("analysis"),
	}, nil
}

// AnalyzeBatch processes 1..MaxBatchSize documents.  Rendering failures
// become result entries; valid documents are processed in chronological
// exam-date order so in-batch comparisons see earlier documents already
// persisted.  A per-document failure never aborts the batch.
func (s *serviceImpl) AnalyzeBatch(ctx context.Context, input *AnalyzeBatchInput) (*AnalyzeBatchResult, error) {
	if input == nil || len(input.Documents) == 0 || len(input.Documents) > s.cfg.MaxBatchSize {
		return nil, errors.New(errors.ErrCodeBatchSizeInvalid,
			fmt.Sprintf("select between 1 and %d documents", s.cfg.MaxBatchSize))
	}

	type pending struct {
		doc  DocumentInput
		meta *report.ExtractedMetadata
	}

	var (
		results []*DocumentResult
		valid   []pending
	)

	for _, doc := range input.Documents {
		if doc.ReadError != nil {
			results = append(results, &DocumentResult{
				Filename: doc.Filename,
				Saved:    false,
				Message:  "Errore nella lettura del file: " + doc.ReadError.Error(),
			})
			continue
		}

		meta, err := s.deps.Extractor.Extract(extraction.Document{Text: doc.Text, Properties: doc.Properties})
		if err != nil {
			results = append(results, &DocumentResult{
				Filename: doc.Filename,
				Saved:    false,
				Message:  "Errore nella lettura del file: " + err.Error(),
			})
			continue
		}
		valid = append(valid, pending{doc: doc, meta: meta})
	}

	// Chronological order by exam date; documents without a date sort last
	// in their submission order.
	sort.SliceStable(valid, func(i, j int) bool {
		di, dj := valid[i].meta.ExamDateTime(), valid[j].meta.ExamDateTime()
		if di.IsZero() || dj.IsZero() {
			return !di.IsZero() && dj.IsZero()
		}
		return di.Before(dj)
	})

	for _, p := range valid {
		results = append(results, s.processDocument(ctx, p.doc, p.meta))
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.BatchProcessed(len(input.Documents))
	}
	return &AnalyzeBatchResult{Results: results}, nil
}

// processDocument runs the single-document pipeline.  Every failure past
// extraction degrades rather than erroring: the caller always gets a
// result entry.
func (s *serviceImpl) processDocument(ctx context.Context, doc DocumentInput, meta *report.ExtractedMetadata) *DocumentResult {
	start := time.Now()

	result := &DocumentResult{
		Filename:    doc.Filename,
		FiscalCode:  meta.FiscalCode,
		PatientName: meta.PatientName,
		ExamTitle:   meta.ExamTitle,
		ExamDate:    meta.ExamDate,
		Category:    meta.Category,
	}

	if diagnosis := s.assessDocument(ctx, meta); diagnosis != nil {
		result.Diagnosis = diagnosis.Diagnosis
		result.Severity = diagnosis.Severity
	}

	if verdict := s.deps.Detector.IsDuplicate(ctx, meta); verdict.IsDuplicate {
		result.Saved = false
		result.Duplicate = true
		result.Message = "Referto già presente – non salvato di nuovo."
		if s.deps.Metrics != nil {
			s.deps.Metrics.DuplicateDetected(string(meta.Category))
		}
		return result
	}

	comparison := s.deps.Comparator.Compare(ctx, meta)
	result.Verdict = comparison.Status
	result.Explanation = comparison.Explanation

	// Documents without a patient identifier get contextual framing only;
	// they are never persisted under a patient key.
	if !meta.HasIdentifier() {
		result.Saved = false
		result.Message = "Codice Fiscale assente – referto NON salvato."
		s.observe(meta, comparison, start)
		return result
	}

	stored, err := s.persistDocument(ctx, doc, meta, comparison, result)
	if err != nil {
		result.Saved = false
		result.Message = "Errore nel salvataggio del referto: " + err.Error()
		s.log.Error("report save failed",
			logging.String("exam_title", meta.ExamTitle),
			logging.Err(err),
		)
		return result
	}

	result.Saved = true
	result.Message = "Referto salvato con successo."
	result.ReportID = &stored.ID

	s.afterPersist(ctx, stored)
	s.observe(meta, comparison, start)
	return result
}

// assessDocument asks the model for diagnosis and severity.  Any failure
// leaves both empty; the assessment is opaque, advisory data.
func (s *serviceImpl) assessDocument(ctx context.Context, meta *report.ExtractedMetadata) *inference.Diagnosis {
	if s.deps.AI == nil {
		return nil
	}
	raw, err := s.deps.AI.Generate(ctx, inference.DiagnosisPrompt(meta.RawText))
	if err != nil {
		s.log.Debug("AI assessment unavailable", logging.Err(err))
		s.countFallback()
		return nil
	}
	diagnosis, err := inference.ParseDiagnosis(raw)
	if err != nil {
		s.log.Debug("AI assessment unparseable", logging.Err(err))
		s.countFallback()
		return nil
	}
	return diagnosis
}

func (s *serviceImpl) countFallback() {
	if s.deps.Metrics != nil {
		s.deps.Metrics.InferenceFallback()
	}
}

func (s *serviceImpl) persistDocument(ctx context.Context, doc DocumentInput, meta *report.ExtractedMetadata, comparison *report.ComparisonResult, result *DocumentResult) (*report.StoredReport, error) {
	examDate := meta.ExamDateTime()
	if examDate.IsZero() {
		examDate = time.Now().UTC()
	}

	stored := &report.StoredReport{
		FiscalCode:  meta.FiscalCode,
		PatientName: meta.PatientName,
		ExamTitle:   meta.ExamTitle,
		ExamDate:    examDate,
		Category:    meta.Category,
		RawText:     meta.RawText,
		Verdict:     comparison.Status,
		Explanation: comparison.Explanation,
		Diagnosis:   result.Diagnosis,
		Severity:    result.Severity,
	}

	if s.deps.Archive != nil && len(doc.Raw) > 0 {
		key := fmt.Sprintf("%s/%s/%s", meta.FiscalCode, examDate.Format("2006-01-02"), doc.Filename)
		storageKey, err := s.deps.Archive.Store(ctx, key, doc.Raw, "application/pdf")
		if err != nil {
			// The structured record still lands; only the raw copy is lost.
			s.log.Warn("raw document archival failed", logging.String("key", key), logging.Err(err))
		} else {
			stored.StorageKey = storageKey
		}
	}

	return s.deps.Reports.Save(ctx, stored)
}

// afterPersist emits the analysis event and drops the stale cached history.
// Both are best effort.
func (s *serviceImpl) afterPersist(ctx context.Context, stored *report.StoredReport) {
	if s.deps.Publisher != nil {
		event := &AnalysisEvent{
			ReportID:   stored.ID.String(),
			FiscalCode: stored.FiscalCode,
			ExamTitle:  stored.ExamTitle,
			ExamDate:   stored.ExamDate.Format(report.DateLayout),
			Category:   string(stored.Category),
			Verdict:    string(stored.Verdict),
			Severity:   string(stored.Severity),
			OccurredAt: time.Now().UTC(),
		}
		if err := s.deps.Publisher.PublishAnalysisCompleted(ctx, event); err != nil {
			s.log.Warn("analysis event publish failed", logging.Err(err))
		}
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Invalidate(ctx, stored.FiscalCode); err != nil {
			s.log.Warn("history cache invalidation failed", logging.Err(err))
		}
	}
}

func (s *serviceImpl) observe(meta *report.ExtractedMetadata, comparison *report.ComparisonResult, start time.Time) {
	if s.deps.Metrics == nil {
		return
	}
	s.deps.Metrics.DocumentProcessed(string(meta.Category), string(comparison.Status), time.Since(start).Seconds())
}

// GetReport fetches one stored report.
func (s *serviceImpl) GetReport(ctx context.Context, id uuid.UUID) (*report.StoredReport, error) {
	stored, err := s.deps.Reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, errors.New(errors.ErrCodeReportNotFound, "report not found")
	}
	return stored, nil
}

// PatientHistory returns the chronological history for one fiscal code,
// optionally restricted to one exact exam title, served from cache when
// possible.  Only unfiltered, unpaginated lookups are cached so the cache
// never has to reason about page boundaries.
func (s *serviceImpl) PatientHistory(ctx context.Context, fiscalCode, examTitle string, limit, offset int) ([]*report.StoredReport, error) {
	if fiscalCode == "" {
		return nil, errors.InvalidParam("analysis: fiscal code is required")
	}

	cacheable := s.deps.Cache != nil && examTitle == "" && offset == 0
	if cacheable {
		if history, ok := s.deps.Cache.Get(ctx, fiscalCode); ok {
			if limit > 0 && limit < len(history) {
				return history[:limit], nil
			}
			return history, nil
		}
	}

	history, err := s.deps.Reports.ListByPatient(ctx, fiscalCode, examTitle, limit, offset)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := s.deps.Cache.Set(ctx, fiscalCode, history); err != nil {
			s.log.Warn("history cache set failed", logging.Err(err))
		}
	}
	return history, nil
}

// SubmitFeedback records a doctor's judgement on one analysis outcome.
func (s *serviceImpl) SubmitFeedback(ctx context.Context, input *FeedbackInput) (*report.Feedback, error) {
	if s.deps.Feedback == nil {
		return nil, errors.New(errors.ErrCodeInternal, "analysis: feedback repository not configured")
	}
	if input == nil || input.ReportID == uuid.Nil {
		return nil, errors.InvalidParam("analysis: report id is required")
	}
	if input.Doctor == "" {
		return nil, errors.InvalidParam("analysis: doctor is required")
	}

	if _, err := s.GetReport(ctx, input.ReportID); err != nil {
		return nil, err
	}

	if !input.Agrees && input.CorrectedSeverity != "" {
		switch input.CorrectedSeverity {
		case report.SeverityMild, report.SeverityModerate, report.SeveritySevere:
		default:
			return nil, errors.InvalidParam("analysis: corrected severity must be lieve, moderato, or grave")
		}
	}

	return s.deps.Feedback.Save(ctx, &report.Feedback{
		ReportID:           input.ReportID,
		Doctor:             input.Doctor,
		Agrees:             input.Agrees,
		CorrectedDiagnosis: input.CorrectedDiagnosis,
		CorrectedSeverity:  input.CorrectedSeverity,
		Notes:              input.Notes,
	})
}

// LabeledFeedback lists feedback rows for the training-dataset export.
func (s *serviceImpl) LabeledFeedback(ctx context.Context, limit, offset int) ([]*report.Feedback, error) {
	if s.deps.Feedback == nil {
		return nil, errors.New(errors.ErrCodeInternal, "analysis: feedback repository not configured")
	}
	return s.deps.Feedback.ListLabeled(ctx, limit, offset)
}
