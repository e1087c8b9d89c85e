package handlers

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smsbramka/sms-gateway/internal/domain"
	"github.com/smsbramka/sms-gateway/internal/service"
	"github.com/smsbramka/sms-gateway/pkg/response"
	"github.com/smsbramka/sms-gateway/pkg/validator"
)

type BatchHandler struct {
	service *service.BulkService
}

func NewBatchHandler(service *service.BulkService) *BatchHandler {
	return &BatchHandler{service: service}
}

type CreateBatchRequest struct {
	Recipients  []string `json:"recipients" validate:"required,min=1"`
	Content     string   `json:"content" validate:"required,max=1000"`
	BatchID     string   `json:"batchId,omitempty"`
	SendDelayMs *int     `json:"sendDelayMs,omitempty" validate:"omitempty,min=0,max=60000"`
	ChunkSize   *int     `json:"chunkSize,omitempty" validate:"omitempty,min=1,max=1000"`
}

// CreateBatch godoc
// @Summary Create a bulk send
// @Description Queues one message body for many recipients and processes them in the background
// @Tags batches
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for messages"
// @Param batch body CreateBatchRequest true "Batch to create"
// @Success 202 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/batches [post]
func (h *BatchHandler) CreateBatch(c echo.Context) error {
	var req CreateBatchRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	// Per-batch pacing overrides; zero values defer to the configured defaults.
	var pacingDelay time.Duration
	if req.SendDelayMs != nil {
		pacingDelay = time.Duration(*req.SendDelayMs) * time.Millisecond
	}
	chunkSize := 0
	if req.ChunkSize != nil {
		chunkSize = *req.ChunkSize
	}

	receipt, err := h.service.CreateBatch(c.Request().Context(), req.Recipients, req.Content, req.BatchID, pacingDelay, chunkSize)
	if err != nil {
		if err == service.ErrNoValidRecipients || err == domain.ErrEmptyContent {
			return response.BadRequest(c, err)
		}
		return response.InternalServerError(c, err)
	}

	return response.Accepted(c, "Batch accepted for processing", receipt)
}

// GetProgress godoc
// @Summary Get batch progress
// @Description Returns the current progress snapshot for a batch
// @Tags batches
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for messages"
// @Param batchId path string true "Batch ID"
// @Param detailed query bool false "Skip the cache and recompute from the store"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/batches/{batchId} [get]
func (h *BatchHandler) GetProgress(c echo.Context) error {
	batchID := c.Param("batchId")

	var (
		progress *domain.BatchProgress
		err      error
	)
	if c.QueryParam("detailed") == "true" {
		progress, err = h.service.GetDetailedProgress(c.Request().Context(), batchID)
	} else {
		progress, err = h.service.GetProgress(c.Request().Context(), batchID)
	}

	if err != nil {
		if err == domain.ErrMessageNotFound {
			return response.NotFound(c, "Batch not found")
		}
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, progress)
}

// CancelBatch godoc
// @Summary Cancel a batch
// @Description Stops batch processing and cancels every message not yet dispatched
// @Tags batches
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for messages"
// @Param batchId path string true "Batch ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/batches/{batchId} [delete]
func (h *BatchHandler) CancelBatch(c echo.Context) error {
	batchID := c.Param("batchId")

	canceled, err := h.service.CancelBatch(c.Request().Context(), batchID)
	if err != nil {
		if err == domain.ErrMessageNotFound {
			return response.NotFound(c, "Batch not found")
		}
		return response.InternalServerError(c, err)
	}

	return response.OkWithMessage(c, "Batch canceled", map[string]any{
		"canceled": canceled,
	})
}
