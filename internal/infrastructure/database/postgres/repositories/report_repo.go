// Package repositories holds the PostgreSQL implementations of the report
// domain's persistence contracts.
package repositories

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/referta/referta/internal/domain/report"
	"github.com/referta/referta/internal/infrastructure/monitoring/logging"
	"github.com/referta/referta/pkg/errors"
)

const reportColumns = `id, fiscal_code, patient_name, exam_title, exam_date,
	category, raw_text, verdict, explanation, diagnosis, severity,
	storage_key, created_at`

// priorOrdering makes "most recent" deterministic: exam date first, then
// insertion time, then id, all descending.  Submission order never decides.
const priorOrdering = `ORDER BY exam_date DESC, created_at DESC, id DESC`

// ReportRepository is the PostgreSQL implementation of report.Repository.
type ReportRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewReportRepository constructs a ready-to-use ReportRepository.
func NewReportRepository(pool *pgxpool.Pool, log logging.Logger) *ReportRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ReportRepository{pool: pool, logger: log.Named("report_repo")}
}

// Save inserts the report and returns it with ID and CreatedAt set.
func (r *ReportRepository) Save(ctx context.Context, rep *report.StoredReport) (*report.StoredReport, error) {
	if rep.ID == uuid.Nil {
		rep.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO reports (
			id, fiscal_code, patient_name, exam_title, exam_date,
			category, raw_text, verdict, explanation, diagnosis, severity,
			storage_key
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at`,
		rep.ID, rep.FiscalCode, rep.PatientName, rep.ExamTitle, rep.ExamDate,
		rep.Category, rep.RawText, rep.Verdict, rep.Explanation, rep.Diagnosis,
		rep.Severity, rep.StorageKey,
	).Scan(&rep.CreatedAt)
	if err != nil {
		r.logger.Error("insert report failed", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert report")
	}
	return rep, nil
}

// GetByID fetches one report, nil when absent.
func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*report.StoredReport, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	return scanReport(row)
}

// FindLatest returns the most recent report for the exact patient and exam
// title, nil when the patient has no prior of that type.
func (r *ReportRepository) FindLatest(ctx context.Context, fiscalCode, examTitle string) (*report.StoredReport, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM reports
		 WHERE fiscal_code = $1 AND exam_title = $2 `+priorOrdering+` LIMIT 1`,
		fiscalCode, examTitle)
	return scanReport(row)
}

// FindLatestByTitle returns the most recent report with the exact title
// across all patients.
func (r *ReportRepository) FindLatestByTitle(ctx context.Context, examTitle string) (*report.StoredReport, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM reports
		 WHERE exam_title = $1 `+priorOrdering+` LIMIT 1`,
		examTitle)
	return scanReport(row)
}

// FindSameKey returns every report sharing fiscal code, title, and exam
// date, newest first.
func (r *ReportRepository) FindSameKey(ctx context.Context, fiscalCode, examTitle string, examDate time.Time) ([]*report.StoredReport, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+reportColumns+` FROM reports
		 WHERE fiscal_code = $1 AND exam_title = $2 AND exam_date = $3 `+priorOrdering,
		fiscalCode, examTitle, examDate)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query same-key reports")
	}
	defer rows.Close()
	return collectReports(rows)
}

// ListByPatient returns the patient's history newest first.  An empty
// examTitle returns the full history; limit <= 0 means no limit.
func (r *ReportRepository) ListByPatient(ctx context.Context, fiscalCode, examTitle string, limit, offset int) ([]*report.StoredReport, error) {
	query, args := historyQuery(fiscalCode, examTitle, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query patient history")
	}
	defer rows.Close()
	return collectReports(rows)
}

// historyQuery builds the ListByPatient statement.  Split out so the
// filter and limit/offset handling is testable without a database.
func historyQuery(fiscalCode, examTitle string, limit, offset int) (string, []any) {
	query := `SELECT ` + reportColumns + ` FROM reports
		 WHERE fiscal_code = $1`
	args := []any{fiscalCode}

	if examTitle != "" {
		args = append(args, examTitle)
		query += fmt.Sprintf(` AND exam_title = $%d`, len(args))
	}
	query += ` ` + priorOrdering

	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}
	return query, args
}

func scanReport(row pgx.Row) (*report.StoredReport, error) {
	var rep report.StoredReport
	err := row.Scan(
		&rep.ID, &rep.FiscalCode, &rep.PatientName, &rep.ExamTitle, &rep.ExamDate,
		&rep.Category, &rep.RawText, &rep.Verdict, &rep.Explanation,
		&rep.Diagnosis, &rep.Severity, &rep.StorageKey, &rep.CreatedAt,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan report row")
	}
	return &rep, nil
}

func collectReports(rows pgx.Rows) ([]*report.StoredReport, error) {
	var reports []*report.StoredReport
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate report rows")
	}
	return reports, nil
}
