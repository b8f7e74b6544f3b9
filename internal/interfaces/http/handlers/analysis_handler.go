package handlers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/referta/referta/internal/application/analysis"
	"github.com/referta/referta/internal/domain/report"
	"github.com/referta/referta/internal/infrastructure/monitoring/logging"
	"github.com/referta/referta/pkg/errors"
)

// readConcurrency caps how many uploads are rendered at once.
const readConcurrency = 4

// AnalysisHandler serves the analysis API: batch analysis, report lookup,
// patient history, and doctor feedback.
type AnalysisHandler struct {
	svc       analysis.Service
	source    analysis.DocumentSource
	maxUpload int64
	logger    logging.Logger
}

// NewAnalysisHandler constructs the handler.  maxUpload bounds a single
// uploaded file in bytes.
func NewAnalysisHandler(svc analysis.Service, source analysis.DocumentSource, maxUpload int64, log logging.Logger) *AnalysisHandler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &AnalysisHandler{svc: svc, source: source, maxUpload: maxUpload, logger: log.Named("handlers")}
}

// Analyze handles POST /api/v1/analyze: a multipart batch under the "files"
// field.  Uploads are rendered concurrently; a single unreadable file
// becomes a per-document error entry, never a failed request.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, errors.InvalidParam("multipart form required: "+err.Error()))
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		respondError(c, errors.InvalidParam("no documents uploaded under field 'files'"))
		return
	}

	docs := make([]analysis.DocumentInput, len(files))
	g, gctx := errgroup.WithContext(c.Request.Context())
	g.SetLimit(readConcurrency)
	for i, fh := range files {
		i, fh := i, fh
		g.Go(func() error {
			docs[i] = h.renderUpload(gctx, fh)
			return nil
		})
	}
	_ = g.Wait()

	result, err := h.svc.AnalyzeBatch(c.Request.Context(), &analysis.AnalyzeBatchInput{Documents: docs})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AnalysisHandler) renderUpload(ctx context.Context, fh *multipart.FileHeader) analysis.DocumentInput {
	doc := analysis.DocumentInput{Filename: fh.Filename}

	if h.maxUpload > 0 && fh.Size > h.maxUpload {
		doc.ReadError = errors.New(errors.ErrCodeDocumentTooLarge,
			fmt.Sprintf("file exceeds %d bytes", h.maxUpload))
		return doc
	}

	f, err := fh.Open()
	if err != nil {
		doc.ReadError = errors.Wrap(err, errors.ErrCodeDocumentRead, "failed to open upload")
		return doc
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		doc.ReadError = errors.Wrap(err, errors.ErrCodeDocumentRead, "failed to read upload")
		return doc
	}

	rendered, err := h.source.Render(ctx, fh.Filename, raw)
	if err != nil {
		doc.ReadError = err
		return doc
	}

	doc.Text = rendered.Text
	doc.Properties = rendered.Properties
	doc.Raw = raw
	return doc
}

// GetReport handles GET /api/v1/reports/:id.
func (h *AnalysisHandler) GetReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, errors.InvalidParam("invalid report id"))
		return
	}

	rep, err := h.svc.GetReport(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// PatientHistory handles GET /api/v1/patients/:fiscal_code/reports.  An
// optional "title" query restricts the history to one exact exam title.
func (h *AnalysisHandler) PatientHistory(c *gin.Context) {
	limit, offset := parseLimitOffset(c, 50, 200)

	history, err := h.svc.PatientHistory(c.Request.Context(), c.Param("fiscal_code"), c.Query("title"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": history, "count": len(history)})
}

// feedbackRequest is the POST body for SubmitFeedback.
type feedbackRequest struct {
	Doctor             string `json:"doctor" binding:"required"`
	Agrees             bool   `json:"agrees"`
	CorrectedDiagnosis string `json:"corrected_diagnosis"`
	CorrectedSeverity  string `json:"corrected_severity"`
	Notes              string `json:"notes"`
}

// SubmitFeedback handles POST /api/v1/reports/:id/feedback.
func (h *AnalysisHandler) SubmitFeedback(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, errors.InvalidParam("invalid report id"))
		return
	}

	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidParam("invalid feedback payload: "+err.Error()))
		return
	}

	fb, err := h.svc.SubmitFeedback(c.Request.Context(), &analysis.FeedbackInput{
		ReportID:           id,
		Doctor:             req.Doctor,
		Agrees:             req.Agrees,
		CorrectedDiagnosis: req.CorrectedDiagnosis,
		CorrectedSeverity:  report.Severity(req.CorrectedSeverity),
		Notes:              req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fb)
}

// LabeledFeedback handles GET /api/v1/feedback/labeled, the dataset export.
func (h *AnalysisHandler) LabeledFeedback(c *gin.Context) {
	limit, offset := parseLimitOffset(c, 100, 1000)

	rows, err := h.svc.LabeledFeedback(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": rows, "count": len(rows)})
}
