package report

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for clinical reports.  The
// engine treats storage as append-and-read: reports are never updated after
// Save, and all "most recent prior" queries must order by exam date
// descending, breaking ties by created_at descending and then id descending,
// so that chronological ordering never depends on submission order.
type Repository interface {
	// Save persists the report and returns it with ID and CreatedAt set.
	Save(ctx context.Context, r *StoredReport) (*StoredReport, error)

	// GetByID fetches one report.
	GetByID(ctx context.Context, id uuid.UUID) (*StoredReport, error)

	// FindLatest returns the most recent report for the exact
	// (fiscalCode, examTitle) pair, or nil when none exists.
	FindLatest(ctx context.Context, fiscalCode, examTitle string) (*StoredReport, error)

	// FindLatestByTitle returns the most recent report with the exact title
	// for any patient.  Used when the current document carries no identifier;
	// results of such comparisons are contextual only and are never persisted
	// under a patient key.
	FindLatestByTitle(ctx context.Context, examTitle string) (*StoredReport, error)

	// FindSameKey returns every report sharing the exact fiscal code, exam
	// title, and exam date, newest first.  Feeds the duplicate detector.
	FindSameKey(ctx context.Context, fiscalCode, examTitle string, examDate time.Time) ([]*StoredReport, error)

	// ListByPatient returns the history for one fiscal code ordered by exam
	// date descending, optionally restricted to one exact exam title.
	ListByPatient(ctx context.Context, fiscalCode, examTitle string, limit, offset int) ([]*StoredReport, error)
}

// FeedbackRepository persists doctor feedback on analysis outcomes.
type FeedbackRepository interface {
	Save(ctx context.Context, f *Feedback) (*Feedback, error)
	ListByReport(ctx context.Context, reportID uuid.UUID) ([]*Feedback, error)

	// ListLabeled returns every feedback row ordered by creation time
	// descending, feeding the training-dataset export.
	ListLabeled(ctx context.Context, limit, offset int) ([]*Feedback, error)
}
