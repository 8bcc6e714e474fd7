package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/printhub/printhub-be/internal/domain"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
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

// GetJobByID retrieves a job from the database by its ID
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

// ApplyTransition persists a job whose status has already been advanced
// in memory, guarded by the status it was advanced from. The guard
// gives atomic read-modify-write per job: if another writer moved the
// job first, no row matches and ErrStatusConflict is returned.
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
		s.logger.Warn("Transition lost status guard",
			slog.String("job_id", job.JobID),
			slog.String("from_status", fromStatus),
			slog.String("to_status", job.Status),
		)
		return domain.ErrStatusConflict
	}

	return nil
}

// ListJobsByStatus retrieves all jobs currently in the given status,
// oldest first. Used by the auto-progression scheduler and the startup
// reconciliation pass.
func (s *Storage) ListJobsByStatus(ctx context.Context, status string) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = $1 ORDER BY updated_at ASC`

	rows, err := s.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs by status: %w", err)
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

// ListActiveVendors returns the current active vendor snapshot.
// Implements the matcher's VendorSource; the worker never writes to
// the vendors table.
func (s *Storage) ListActiveVendors(ctx context.Context) ([]domain.Vendor, error) {
	query := `
		SELECT vendor_id, name, latitude, longitude,
		       active, store_open, email_verified,
		       paper_sizes, supports_color, supports_duplex,
		       price_bw_single, price_bw_double, price_color_single, price_color_double
		FROM vendors
		WHERE active = true
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	defer rows.Close()

	var vendors []domain.Vendor
	for rows.Next() {
		var v domain.Vendor
		var paperSizes pq.StringArray

		err := rows.Scan(
			&v.VendorID,
			&v.Name,
			&v.Latitude,
			&v.Longitude,
			&v.Active,
			&v.StoreOpen,
			&v.EmailVerified,
			&paperSizes,
			&v.SupportsColor,
			&v.SupportsDuplex,
			&v.PriceBWSingle,
			&v.PriceBWDouble,
			&v.PriceColorSingle,
			&v.PriceColorDouble,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}

		v.PaperSizes = paperSizes
		vendors = append(vendors, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vendors: %w", err)
	}

	return vendors, nil
}
