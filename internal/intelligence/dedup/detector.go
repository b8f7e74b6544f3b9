// Package dedup detects near-duplicate submissions of the same underlying
// exam.  Two documents are compared only when they already share patient
// identifier, exam title, and exam date; the decision then rests on the
// overlap of category-specific key values between the two raw texts.  Any
// failure during the check resolves to "not a duplicate": saving twice is
// recoverable, silently dropping clinical data is not.
package dedup

import (
	"context"

	"github.com/referta/referta/internal/config"
	"github.com/referta/referta/internal/domain/report"
	"github.com/referta/referta/internal/infrastructure/monitoring/logging"
	"github.com/referta/referta/pkg/errors"
)

// Detector runs the duplicate check for one document against the stored
// documents sharing its (identifier, title, exam date) key.
type Detector struct {
	cfg    config.DedupConfig
	repo   report.Repository
	logger logging.Logger
}

// NewDetector constructs a Detector.  repo is required; a nil logger falls
// back to the no-op implementation.
func NewDetector(cfg config.DedupConfig, repo report.Repository, logger logging.Logger) (*Detector, error) {
	if repo == nil {
		return nil, errors.InvalidParam("dedup: repository is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Detector{
		cfg:    cfg,
		repo:   repo,
		logger: logger.Named("dedup"),
	}, nil
}

// IsDuplicate checks meta against every stored document with the same
// identifier, exam title, and exam date.  The first candidate clearing the
// category thresholds wins; otherwise the verdict is not-a-duplicate.
func (d *Detector) IsDuplicate(ctx context.Context, meta *report.ExtractedMetadata) report.DuplicateVerdict {
	// Without a full key there is nothing to compare against.
	if !meta.HasIdentifier() || meta.ExamDate == "" {
		return report.DuplicateVerdict{}
	}

	examDate := meta.ExamDateTime()
	if examDate.IsZero() {
		return report.DuplicateVerdict{}
	}

	candidates, err := d.repo.FindSameKey(ctx, meta.FiscalCode, meta.ExamTitle, examDate)
	if err != nil {
		d.logger.Warn("duplicate check failed, treating document as new",
			logging.String("exam_title", meta.ExamTitle),
			logging.Err(err),
		)
		return report.DuplicateVerdict{}
	}

	threshold := d.thresholdFor(meta.Category)
	currentKeys := extractKeys(meta.RawText, meta.Category)

	for _, candidate := range candidates {
		if d.matches(currentKeys, extractKeys(candidate.RawText, meta.Category), threshold) {
			d.logger.Info("duplicate document detected",
				logging.String("exam_title", meta.ExamTitle),
				logging.String("exam_date", meta.ExamDate),
				logging.String("matched_id", candidate.ID.String()),
			)
			return report.DuplicateVerdict{IsDuplicate: true, Matched: candidate}
		}
	}
	return report.DuplicateVerdict{}
}

// matches applies the two category thresholds: enough overlapping keys, and
// a high enough fraction of equal values across the union of keys.
func (d *Detector) matches(current, stored map[string]string, threshold config.DedupThreshold) bool {
	if len(current) == 0 || len(stored) == 0 {
		return false
	}

	overlap := 0
	matching := 0
	union := len(stored)
	for key, value := range current {
		storedValue, ok := stored[key]
		if !ok {
			union++
			continue
		}
		overlap++
		if value == storedValue {
			matching++
		}
	}

	if overlap < threshold.MinKeys {
		return false
	}
	return float64(matching) >= threshold.MinMatchRatio*float64(union)
}

func (d *Detector) thresholdFor(category report.Category) config.DedupThreshold {
	switch category {
	case report.CategoryLaboratory:
		return d.cfg.Laboratory
	case report.CategoryImaging:
		return d.cfg.Imaging
	case report.CategoryPathology:
		return d.cfg.Pathology
	default:
		return d.cfg.Unclassified
	}
}
