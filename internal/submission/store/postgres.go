package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"claimintake/internal/submission"
	"claimintake/pkg/platform/sentinel"
)

// schema is applied on startup. The unique index on email is the
// authoritative duplicate guard; two concurrent inserts with the same
// email race at the index, not in application code.
const schema = `
CREATE TABLE IF NOT EXISTS form_submissions (
	id                BIGSERIAL PRIMARY KEY,
	first_name        VARCHAR(50)  NOT NULL,
	last_name         VARCHAR(50)  NOT NULL,
	phone             VARCHAR(20)  NOT NULL,
	email             VARCHAR(255) NOT NULL UNIQUE,
	date_of_birth     DATE         NOT NULL,
	job_title         VARCHAR(100) NOT NULL,
	date_of_diagnosis DATE         NOT NULL,
	diagnosis_type    VARCHAR(20)  NOT NULL
		CHECK (diagnosis_type IN ('pleural', 'peritoneal', 'pericardial', 'testicular')),
	story             TEXT,
	captcha           BOOLEAN      NOT NULL DEFAULT FALSE,
	created_at        TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_form_submissions_created_at ON form_submissions (created_at);
CREATE INDEX IF NOT EXISTS idx_form_submissions_diagnosis_type ON form_submissions (diagnosis_type);
CREATE INDEX IF NOT EXISTS idx_form_submissions_name ON form_submissions (first_name, last_name);
CREATE INDEX IF NOT EXISTS idx_form_submissions_job_title ON form_submissions (job_title);
`

const submissionColumns = `id, first_name, last_name, phone, email, date_of_birth,
	job_title, date_of_diagnosis, diagnosis_type, story, captcha, created_at`

// sortColumns maps API sort fields to table columns. FindPage only ever
// interpolates values from this map into ORDER BY.
var sortColumns = map[string]string{
	"createdAt":       "created_at",
	"firstName":       "first_name",
	"lastName":        "last_name",
	"email":           "email",
	"jobTitle":        "job_title",
	"dateOfDiagnosis": "date_of_diagnosis",
}

// PostgresStore persists submissions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the schema. Idempotent, safe to run on every startup.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply submissions schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, sub submission.Submission) (submission.Submission, error) {
	sub.Normalize()
	if violations := submission.ValidateRecord(sub); len(violations) > 0 {
		return submission.Submission{}, &submission.ValidationError{Violations: violations}
	}

	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO form_submissions (
			first_name, last_name, phone, email, date_of_birth,
			job_title, date_of_diagnosis, diagnosis_type, story, captcha, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		sub.FirstName,
		sub.LastName,
		sub.Phone,
		sub.Email,
		sub.DateOfBirth.Time,
		sub.JobTitle,
		sub.DateOfDiagnosis.Time,
		string(sub.DiagnosisType),
		nullString(sub.Story),
		sub.Captcha,
		sub.CreatedAt,
	).Scan(&sub.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return submission.Submission{}, fmt.Errorf("email %s: %w", sub.Email, sentinel.ErrConflict)
		}
		return submission.Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	return sub, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (submission.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM form_submissions WHERE id = $1`
	sub, err := scanSubmission(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return submission.Submission{}, sentinel.ErrNotFound
		}
		return submission.Submission{}, fmt.Errorf("find submission by id: %w", err)
	}
	return sub, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (submission.Submission, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	query := `SELECT ` + submissionColumns + ` FROM form_submissions WHERE email = $1`
	sub, err := scanSubmission(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return submission.Submission{}, sentinel.ErrNotFound
		}
		return submission.Submission{}, fmt.Errorf("find submission by email: %w", err)
	}
	return sub, nil
}

func (s *PostgresStore) FindPage(ctx context.Context, q submission.ListQuery) ([]submission.Submission, int, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	if q.Limit > submission.MaxPageSize {
		q.Limit = submission.MaxPageSize
	}

	where, args := buildWhere(q)

	var total int
	countQuery := `SELECT COUNT(*) FROM form_submissions` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count matching submissions: %w", err)
	}

	column, ok := sortColumns[q.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(q.SortOrder, "ASC") {
		direction = "ASC"
	}

	args = append(args, q.Limit, (q.Page-1)*q.Limit)
	pageQuery := fmt.Sprintf(
		`SELECT %s FROM form_submissions%s ORDER BY %s %s, id ASC LIMIT $%d OFFSET $%d`,
		submissionColumns, where, column, direction, len(args)-1, len(args),
	)

	rows, err := s.db.QueryContext(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query submissions page: %w", err)
	}
	defer rows.Close()

	subs := []submission.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan submission row: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate submission rows: %w", err)
	}
	return subs, total, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM form_submissions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM form_submissions WHERE created_at >= $1`, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count submissions since %s: %w", since.Format(time.RFC3339), err)
	}
	return count, nil
}

func (s *PostgresStore) CountByDiagnosis(ctx context.Context) ([]submission.DiagnosisCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT diagnosis_type, COUNT(*) AS count
		FROM form_submissions
		GROUP BY diagnosis_type
		ORDER BY count DESC, diagnosis_type ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("count by diagnosis: %w", err)
	}
	defer rows.Close()

	result := []submission.DiagnosisCount{}
	for rows.Next() {
		var bucket submission.DiagnosisCount
		if err := rows.Scan(&bucket.DiagnosisType, &bucket.Count); err != nil {
			return nil, fmt.Errorf("scan diagnosis bucket: %w", err)
		}
		result = append(result, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnosis buckets: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) CountByMonth(ctx context.Context) ([]submission.MonthCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM') AS month, COUNT(*) AS count
		FROM form_submissions
		GROUP BY month
		ORDER BY month DESC
		LIMIT 12
	`)
	if err != nil {
		return nil, fmt.Errorf("count by month: %w", err)
	}
	defer rows.Close()

	result := []submission.MonthCount{}
	for rows.Next() {
		var bucket submission.MonthCount
		if err := rows.Scan(&bucket.Month, &bucket.Count); err != nil {
			return nil, fmt.Errorf("scan month bucket: %w", err)
		}
		result = append(result, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate month buckets: %w", err)
	}
	return result, nil
}

func buildWhere(q submission.ListQuery) (string, []any) {
	var conds []string
	var args []any

	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d OR job_title ILIKE $%d)",
			n, n, n, n,
		))
	}
	if q.DiagnosisType != "" {
		args = append(args, string(q.DiagnosisType))
		conds = append(conds, fmt.Sprintf("diagnosis_type = $%d", len(args)))
	}
	if q.DateFrom != nil {
		args = append(args, q.DateFrom.Time)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if q.DateTo != nil {
		// Inclusive of the whole end date.
		args = append(args, q.DateTo.AddDate(0, 0, 1))
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (submission.Submission, error) {
	var (
		sub             submission.Submission
		dateOfBirth     time.Time
		dateOfDiagnosis time.Time
		story           sql.NullString
	)
	err := row.Scan(
		&sub.ID,
		&sub.FirstName,
		&sub.LastName,
		&sub.Phone,
		&sub.Email,
		&dateOfBirth,
		&sub.JobTitle,
		&dateOfDiagnosis,
		&sub.DiagnosisType,
		&story,
		&sub.Captcha,
		&sub.CreatedAt,
	)
	if err != nil {
		return submission.Submission{}, err
	}
	sub.DateOfBirth = submission.DateOf(dateOfBirth)
	sub.DateOfDiagnosis = submission.DateOf(dateOfDiagnosis)
	sub.Story = story.String
	return sub, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
