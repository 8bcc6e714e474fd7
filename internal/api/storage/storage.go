package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/printhub/printhub-be/internal/domain"
	"github.com/printhub/printhub-be/shared/postgresql"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

const jobColumns = `
	job_id, tracking_code, customer_id, vendor_id,
	paper_size, color, duplex, copies, page_count,
	price_per_page, total_price, status, latitude, longitude,
	excluded_vendor_ids, created_at, updated_at,
	matched_at, offered_at, accepted_at, printing_at, ready_at, completed_at
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var excluded pq.StringArray

	err := row.Scan(
		&job.JobID,
		&job.TrackingCode,
		&job.CustomerID,
		&job.VendorID,
		&job.PaperSize,
		&job.Color,
		&job.Duplex,
		&job.Copies,
		&job.PageCount,
		&job.PricePerPage,
		&job.TotalPrice,
		&job.Status,
		&job.Latitude,
		&job.Longitude,
		&excluded,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.MatchedAt,
		&job.OfferedAt,
		&job.AcceptedAt,
		&job.PrintingAt,
		&job.ReadyAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	job.ExcludedVendorIDs = excluded
	return &job, nil
}

func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, tracking_code, customer_id, vendor_id,
			paper_size, color, duplex, copies, page_count,
			price_per_page, total_price, status, latitude, longitude,
			excluded_vendor_ids, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14,
			$15, $16, $17
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.TrackingCode,
		job.CustomerID,
		job.VendorID,
		job.PaperSize,
		job.Color,
		job.Duplex,
		job.Copies,
		job.PageCount,
		job.PricePerPage,
		job.TotalPrice,
		job.Status,
		job.Latitude,
		job.Longitude,
		pq.StringArray(job.ExcludedVendorIDs),
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// GetJobByTrackingCode looks a job up by its customer-facing code.
func (s *Storage) GetJobByTrackingCode(ctx context.Context, code string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE tracking_code = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job by tracking code: %w", err)
	}

	return job, nil
}

// ApplyTransition persists an in-memory status change guarded by the
// status it was made from, so concurrent writers cannot interleave on
// the same job.
func (s *Storage) ApplyTransition(ctx context.Context, job *domain.Job, fromStatus string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    vendor_id = $2,
		    price_per_page = $3,
		    total_price = $4,
		    excluded_vendor_ids = $5,
		    updated_at = $6,
		    matched_at = $7,
		    offered_at = $8,
		    accepted_at = $9,
		    printing_at = $10,
		    ready_at = $11,
		    completed_at = $12
		WHERE job_id = $13
		  AND status = $14
	`

	res, err := s.db.ExecContext(ctx, query,
		job.Status,
		job.VendorID,
		job.PricePerPage,
		job.TotalPrice,
		pq.StringArray(job.ExcludedVendorIDs),
		job.UpdatedAt,
		job.MatchedAt,
		job.OfferedAt,
		job.AcceptedAt,
		job.PrintingAt,
		job.ReadyAt,
		job.CompletedAt,
		job.JobID,
		fromStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to apply transition: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return domain.ErrStatusConflict
	}

	return nil
}

type JobFilter struct {
	CustomerID string
	VendorID   string
	Status     string
	PageSize   int
	Cursor     *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	// Filters
	if filter.CustomerID != "" {
		query += fmt.Sprintf(" AND customer_id = $%d", argIdx)
		args = append(args, filter.CustomerID)
		argIdx++
	}

	if filter.VendorID != "" {
		query += fmt.Sprintf(" AND vendor_id = $%d", argIdx)
		args = append(args, filter.VendorID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	// Order by created_at DESC, job_id DESC for consistent pagination
	query += " ORDER BY created_at DESC, job_id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}

	return jobs, nil
}
