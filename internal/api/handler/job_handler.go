package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/printhub/printhub-be/internal/api/dto"
	"github.com/printhub/printhub-be/internal/api/storage"
	"github.com/printhub/printhub-be/internal/domain"
	"github.com/printhub/printhub-be/internal/lifecycle"
)

// CreateJob handles POST /api/v1/jobs
// Creates a print job in UPLOADED status and queues it for vendor
// matching. Coordinate ranges are validated here, before matching ever
// sees the job.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if *req.Latitude < -90 || *req.Latitude > 90 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "latitude must be between -90 and 90",
		})
		return
	}
	if *req.Longitude < -180 || *req.Longitude > 180 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "longitude must be between -180 and 180",
		})
		return
	}

	trackingCode, err := domain.NewTrackingCode()
	if err != nil {
		h.logger.Error("Failed to generate tracking code", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	now := time.Now()
	job := domain.Job{
		JobID:             uuid.New().String(),
		TrackingCode:      trackingCode,
		CustomerID:        req.CustomerID,
		PaperSize:         req.PaperSize,
		Color:             req.Color,
		Duplex:            req.Duplex,
		Copies:            req.Copies,
		PageCount:         req.PageCount,
		Status:            domain.JobStatusUploaded,
		Latitude:          *req.Latitude,
		Longitude:         *req.Longitude,
		ExcludedVendorIDs: []string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := h.storage.CreateJob(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	if err := h.publishMessage(c, &domain.JobMessage{
		Kind:  domain.MessageKindMatchRequest,
		JobID: job.JobID,
	}); err != nil {
		h.logger.Error("Failed to publish match request",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to queue job for matching",
		})
		return
	}

	h.logger.Info("Job created",
		slog.String("job_id", job.JobID),
		slog.String("tracking_code", job.TrackingCode),
	)

	c.JSON(http.StatusCreated, jobToDTO(&job))
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.storage.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		h.respondStorageError(c, jobID, err)
		return
	}

	c.JSON(http.StatusOK, jobToDTO(job))
}

// TrackJob handles GET /api/v1/track/:code
// Customer-facing lookup by the short tracking code printed on the
// receipt; no authentication, so the response is the same job DTO the
// customer already knows.
func (h *JobHandler) TrackJob(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "tracking code is required",
		})
		return
	}

	job, err := h.storage.GetJobByTrackingCode(c.Request.Context(), code)
	if err != nil {
		h.respondStorageError(c, code, err)
		return
	}

	c.JSON(http.StatusOK, jobToDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs with optional filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	if req.Status != "" && !isKnownStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unknown status filter",
		})
		return
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.JobFilter{
		CustomerID: req.CustomerID,
		VendorID:   req.VendorID,
		Status:     req.Status,
		PageSize:   req.PageSize,
		Cursor:     cursor,
	}

	jobs, err := h.storage.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i, job := range jobs {
		jobResponse[i] = jobToDTO(job)
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		nextCursor, err = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: lastJob.CreatedAt,
			JobID:     lastJob.JobID,
		})
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// RespondToOffer handles POST /api/v1/jobs/:job_id/offer-response
// A vendor's accept or decline is forwarded to the worker's offer
// dispatcher, which owns the response-vs-timeout race.
func (h *JobHandler) RespondToOffer(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	var req dto.OfferResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.storage.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		h.respondStorageError(c, jobID, err)
		return
	}

	if job.Status != domain.JobStatusAwaitingAcceptance ||
		job.VendorID == nil || *job.VendorID != req.VendorID {
		c.JSON(http.StatusConflict, gin.H{
			"error": "No pending offer for this vendor",
		})
		return
	}

	if err := h.publishMessage(c, &domain.JobMessage{
		Kind:     domain.MessageKindOfferResponse,
		JobID:    jobID,
		VendorID: req.VendorID,
		Outcome:  req.Outcome,
	}); err != nil {
		h.logger.Error("Failed to publish offer response",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to submit offer response",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  jobID,
		"outcome": req.Outcome,
	})
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
// Customer-initiated cancellation; refused once a vendor has accepted.
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.storage.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		h.respondStorageError(c, jobID, err)
		return
	}

	if !lifecycle.CanBeCancelled(job.Status) {
		c.JSON(http.StatusConflict, gin.H{
			"error": domain.ErrCancelNotAllowed.Error(),
		})
		return
	}

	h.applyTransition(c, job, domain.JobStatusCancelled, "Print job cancelled")
}

// StartPrinting handles POST /api/v1/jobs/:job_id/start-printing
func (h *JobHandler) StartPrinting(c *gin.Context) {
	h.manualTransition(c, domain.JobStatusPrinting, "Vendor started printing your job")
}

// MarkReady handles POST /api/v1/jobs/:job_id/ready
// Manual override of the PRINTING -> READY auto-progression.
func (h *JobHandler) MarkReady(c *gin.Context) {
	h.manualTransition(c, domain.JobStatusReady, "Your prints are ready for pickup")
}

// ConfirmPickup handles POST /api/v1/jobs/:job_id/pickup
func (h *JobHandler) ConfirmPickup(c *gin.Context) {
	h.manualTransition(c, domain.JobStatusCompleted, "Print job completed")
}

// manualTransition applies an actor-initiated lifecycle transition to
// the job in the path parameter.
func (h *JobHandler) manualTransition(c *gin.Context, to, message string) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.storage.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		h.respondStorageError(c, jobID, err)
		return
	}

	h.applyTransition(c, job, to, message)
}

// applyTransition runs one validated transition and persists it behind
// the status guard. Lifecycle violations surface to the caller; the
// notification is fire-and-forget.
func (h *JobHandler) applyTransition(c *gin.Context, job *domain.Job, to, message string) {
	from := job.Status
	if err := lifecycle.Transition(job, to, time.Now()); err != nil {
		var illegal *domain.IllegalTransitionError
		if errors.As(err, &illegal) {
			c.JSON(http.StatusConflict, gin.H{
				"error":          illegal.Error(),
				"current_status": illegal.From,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to transition job",
		})
		return
	}

	if err := h.storage.ApplyTransition(c.Request.Context(), job, from); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Job status changed, retry",
			})
			return
		}
		h.logger.Error("Failed to persist transition",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to transition job",
		})
		return
	}

	h.logger.Info("Job transitioned",
		slog.String("job_id", job.JobID),
		slog.String("from_status", from),
		slog.String("to_status", to),
	)

	h.notifier.Notify(c.Request.Context(), job.JobID, to, message)

	c.JSON(http.StatusOK, jobToDTO(job))
}

func (h *JobHandler) publishMessage(c *gin.Context, msg *domain.JobMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.rabbitClient.PublishWithRetry(c.Request.Context(), body, "application/json")
}

func (h *JobHandler) respondStorageError(c *gin.Context, ref string, err error) {
	if errors.Is(err, domain.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return
	}
	h.logger.Error("Storage error",
		slog.String("ref", ref),
		slog.String("error", err.Error()),
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Internal error",
	})
}

func isKnownStatus(status string) bool {
	for _, s := range lifecycle.Statuses() {
		if s == status {
			return true
		}
	}
	return false
}

func jobToDTO(job *domain.Job) dto.JobDTO {
	formatTime := func(t *time.Time) *string {
		if t == nil {
			return nil
		}
		s := t.Format(time.RFC3339)
		return &s
	}

	return dto.JobDTO{
		JobID:        job.JobID,
		TrackingCode: job.TrackingCode,
		CustomerID:   job.CustomerID,
		VendorID:     job.VendorID,
		PaperSize:    job.PaperSize,
		Color:        job.Color,
		Duplex:       job.Duplex,
		Copies:       job.Copies,
		PageCount:    job.PageCount,
		PricePerPage: job.PricePerPage,
		TotalPrice:   job.TotalPrice,
		Status:       job.Status,
		Latitude:     job.Latitude,
		Longitude:    job.Longitude,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
		MatchedAt:    formatTime(job.MatchedAt),
		OfferedAt:    formatTime(job.OfferedAt),
		AcceptedAt:   formatTime(job.AcceptedAt),
		PrintingAt:   formatTime(job.PrintingAt),
		ReadyAt:      formatTime(job.ReadyAt),
		CompletedAt:  formatTime(job.CompletedAt),
	}
}
