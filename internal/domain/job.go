package domain

import "time"

// Job status constants
const (
	JobStatusUploaded           = "UPLOADED"
	JobStatusProcessing         = "PROCESSING"
	JobStatusAwaitingAcceptance = "AWAITING_ACCEPTANCE"
	JobStatusAccepted           = "ACCEPTED"
	JobStatusPrinting           = "PRINTING"
	JobStatusReady              = "READY"
	JobStatusCompleted          = "COMPLETED"
	JobStatusCancelled          = "CANCELLED"
	JobStatusVendorRejected     = "VENDOR_REJECTED"
	JobStatusVendorTimeout      = "VENDOR_TIMEOUT"
	JobStatusNoVendorsAvailable = "NO_VENDORS_AVAILABLE"
)

// Paper size constants
const (
	PaperSizeA4     = "A4"
	PaperSizeA3     = "A3"
	PaperSizeLetter = "LETTER"
)

// Job represents a print order moving through the marketplace.
// PricePerPage and TotalPrice are zero until a vendor is matched.
type Job struct {
	JobID        string  `db:"job_id"`
	TrackingCode string  `db:"tracking_code"`
	CustomerID   *string `db:"customer_id"` // nil for anonymous/QR orders
	VendorID     *string `db:"vendor_id"`

	PaperSize    string  `db:"paper_size"`
	Color        bool    `db:"color"`
	Duplex       bool    `db:"duplex"`
	Copies       int     `db:"copies"`
	PageCount    int     `db:"page_count"`
	PricePerPage float64 `db:"price_per_page"`
	TotalPrice   float64 `db:"total_price"`

	Status    string  `db:"status"`
	Latitude  float64 `db:"latitude"`
	Longitude float64 `db:"longitude"`

	// Vendors already offered this job and resolved negatively.
	// Never re-offered (the set only grows).
	ExcludedVendorIDs []string `db:"excluded_vendor_ids"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	// One timestamp per lifecycle milestone reached, for audit and
	// for auto-progression timing.
	MatchedAt   *time.Time `db:"matched_at"`
	OfferedAt   *time.Time `db:"offered_at"`
	AcceptedAt  *time.Time `db:"accepted_at"`
	PrintingAt  *time.Time `db:"printing_at"`
	ReadyAt     *time.Time `db:"ready_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

// Requirements captures what a job demands from a vendor.
type Requirements struct {
	PaperSize string
	Color     bool
	Duplex    bool
}

// Requirements returns the job's vendor requirements.
func (j *Job) Requirements() Requirements {
	return Requirements{
		PaperSize: j.PaperSize,
		Color:     j.Color,
		Duplex:    j.Duplex,
	}
}

// IsExcluded reports whether a vendor has already been offered this job
// and resolved negatively.
func (j *Job) IsExcluded(vendorID string) bool {
	for _, id := range j.ExcludedVendorIDs {
		if id == vendorID {
			return true
		}
	}
	return false
}
