// Package comparison produces the clinical-trend verdict between a new
// document and the most recent prior document of the same exam title.  The
// verdict path is two tier: the model-assisted comparison runs first, and
// any failure there routes silently into the deterministic fallback.  The
// caller always receives a ComparisonResult, never an AI error.
package comparison

import (
	"context"

	"github.com/referta/referta/internal/config"
	"github.com/referta/referta/internal/domain/report"
	"github.com/referta/referta/internal/intelligence/inference"
	"github.com/referta/referta/internal/infrastructure/monitoring/logging"
	"github.com/referta/referta/pkg/errors"
)

// Comparator resolves the trend verdict for one document at a time.  Prior
// documents are re-queried through the repository on every call; nothing is
// cached across documents, so batch ordering is decided purely by persisted
// exam dates.
type Comparator struct {
	cfg    config.ComparisonConfig
	repo   report.Repository
	client inference.Client
	logger logging.Logger
}

// NewComparator constructs a Comparator.  repo is required.  A nil client
// disables the model-assisted path and every comparison runs the
// deterministic fallback directly.
func NewComparator(cfg config.ComparisonConfig, repo report.Repository, client inference.Client, logger logging.Logger) (*Comparator, error) {
	if repo == nil {
		return nil, errors.InvalidParam("comparison: repository is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Comparator{
		cfg:    cfg,
		repo:   repo,
		client: client,
		logger: logger.Named("comparison"),
	}, nil
}

// Compare resolves the verdict for meta against the most recent prior
// document of the same title.  A document without a patient identifier is
// compared against the most recent document of the title across all
// patients; that framing is contextual only and must not drive
// patient-specific storage.
func (c *Comparator) Compare(ctx context.Context, meta *report.ExtractedMetadata) *report.ComparisonResult {
	prior := c.findPrior(ctx, meta)
	if prior == nil {
		return &report.ComparisonResult{
			Status:      report.VerdictNoPrior,
			Explanation: "Non esiste un referto precedente di questo tipo per il paziente.",
		}
	}

	if c.client != nil {
		if result := c.compareWithModel(ctx, prior.RawText, meta.RawText); result != nil {
			return result
		}
	}

	return c.compareFallback(prior.RawText, meta.RawText)
}

// findPrior looks up the newest stored document for the same title; by
// patient when an identifier exists, across all patients otherwise.  A
// lookup failure degrades to "no prior" so a storage hiccup never blocks a
// document from being processed.
func (c *Comparator) findPrior(ctx context.Context, meta *report.ExtractedMetadata) *report.StoredReport {
	var (
		prior *report.StoredReport
		err   error
	)
	if meta.HasIdentifier() {
		prior, err = c.repo.FindLatest(ctx, meta.FiscalCode, meta.ExamTitle)
	} else {
		prior, err = c.repo.FindLatestByTitle(ctx, meta.ExamTitle)
	}
	if err != nil {
		if !errors.IsNotFound(err) {
			c.logger.Warn("prior document lookup failed, treating as no prior",
				logging.String("exam_title", meta.ExamTitle),
				logging.Err(err),
			)
		}
		return nil
	}
	return prior
}

// compareWithModel runs the model-assisted path.  nil means the path did
// not produce a usable verdict and the fallback must decide.
func (c *Comparator) compareWithModel(ctx context.Context, priorText, currentText string) *report.ComparisonResult {
	raw, err := c.client.Generate(ctx, inference.ComparisonPrompt(priorText, currentText))
	if err != nil {
		c.logger.Debug("model comparison unavailable, using fallback", logging.Err(err))
		return nil
	}

	result, err := inference.ParseComparison(raw)
	if err != nil {
		c.logger.Debug("model comparison unparseable, using fallback", logging.Err(err))
		return nil
	}
	return result
}
