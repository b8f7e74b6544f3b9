package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/referta/referta/internal/domain/report"
	"github.com/referta/referta/internal/infrastructure/monitoring/logging"
	"github.com/referta/referta/pkg/errors"
)

const feedbackColumns = `id, report_id, doctor, agrees,
	corrected_diagnosis, corrected_severity, notes, created_at`

// FeedbackRepository is the PostgreSQL implementation of
// report.FeedbackRepository.
type FeedbackRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewFeedbackRepository constructs a ready-to-use FeedbackRepository.
func NewFeedbackRepository(pool *pgxpool.Pool, log logging.Logger) *FeedbackRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &FeedbackRepository{pool: pool, logger: log.Named("feedback_repo")}
}

// Save inserts the feedback row and returns it with ID and CreatedAt set.
func (r *FeedbackRepository) Save(ctx context.Context, f *report.Feedback) (*report.Feedback, error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO report_feedback (
			id, report_id, doctor, agrees,
			corrected_diagnosis, corrected_severity, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		f.ID, f.ReportID, f.Doctor, f.Agrees,
		f.CorrectedDiagnosis, f.CorrectedSeverity, f.Notes,
	).Scan(&f.CreatedAt)
	if err != nil {
		r.logger.Error("insert feedback failed", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert feedback")
	}
	return f, nil
}

// ListByReport returns every feedback row for one report, newest first.
func (r *FeedbackRepository) ListByReport(ctx context.Context, reportID uuid.UUID) ([]*report.Feedback, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+feedbackColumns+` FROM report_feedback
		 WHERE report_id = $1 ORDER BY created_at DESC, id DESC`,
		reportID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query report feedback")
	}
	defer rows.Close()
	return collectFeedback(rows)
}

// ListLabeled returns feedback rows for the dataset export, newest first.
// limit <= 0 means no limit.
func (r *FeedbackRepository) ListLabeled(ctx context.Context, limit, offset int) ([]*report.Feedback, error) {
	query := `SELECT ` + feedbackColumns + ` FROM report_feedback
		 ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $1`
		if offset > 0 {
			args = append(args, offset)
			query += ` OFFSET $2`
		}
	} else if offset > 0 {
		args = append(args, offset)
		query += ` OFFSET $1`
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query labeled feedback")
	}
	defer rows.Close()
	return collectFeedback(rows)
}

func collectFeedback(rows pgx.Rows) ([]*report.Feedback, error) {
	var items []*report.Feedback
	for rows.Next() {
		var f report.Feedback
		err := rows.Scan(
			&f.ID, &f.ReportID, &f.Doctor, &f.Agrees,
			&f.CorrectedDiagnosis, &f.CorrectedSeverity, &f.Notes, &f.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan feedback row")
		}
		items = append(items, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate feedback rows")
	}
	return items, nil
}
