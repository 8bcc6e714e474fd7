package dto

// CreateJobRequest is the payload for uploading a new print job.
// Latitude/longitude are pointers so zero coordinates bind correctly;
// range validation happens at this boundary, not inside matching.
type CreateJobRequest struct {
	CustomerID *string  `json:"customer_id"`
	PaperSize  string   `json:"paper_size" binding:"required,oneof=A4 A3 LETTER"`
	Color      bool     `json:"color"`
	Duplex     bool     `json:"duplex"`
	Copies     int      `json:"copies" binding:"required,min=1"`
	PageCount  int      `json:"page_count" binding:"required,min=1"`
	Latitude   *float64 `json:"latitude" binding:"required"`
	Longitude  *float64 `json:"longitude" binding:"required"`
}

// OfferResponseRequest is a vendor's answer to an outstanding offer.
type OfferResponseRequest struct {
	VendorID string `json:"vendor_id" binding:"required,uuid"`
	Outcome  string `json:"outcome" binding:"required,oneof=accept decline"`
}

// ListJobsRequest holds list filters and pagination
type ListJobsRequest struct {
	CustomerID string `form:"customer_id"`
	VendorID   string `form:"vendor_id"`
	Status     string `form:"status"`
	PageSize   int    `form:"page_size"`
	Cursor     string `form:"cursor"`
}

// JobDTO is the wire representation of a job
type JobDTO struct {
	JobID        string  `json:"job_id"`
	TrackingCode string  `json:"tracking_code"`
	CustomerID   *string `json:"customer_id,omitempty"`
	VendorID     *string `json:"vendor_id,omitempty"`
	PaperSize    string  `json:"paper_size"`
	Color        bool    `json:"color"`
	Duplex       bool    `json:"duplex"`
	Copies       int     `json:"copies"`
	PageCount    int     `json:"page_count"`
	PricePerPage float64 `json:"price_per_page"`
	TotalPrice   float64 `json:"total_price"`
	Status       string  `json:"status"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
	MatchedAt    *string `json:"matched_at,omitempty"`
	OfferedAt    *string `json:"offered_at,omitempty"`
	AcceptedAt   *string `json:"accepted_at,omitempty"`
	PrintingAt   *string `json:"printing_at,omitempty"`
	ReadyAt      *string `json:"ready_at,omitempty"`
	CompletedAt  *string `json:"completed_at,omitempty"`
}

// ListJobsResponse is the paginated job listing
type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}
