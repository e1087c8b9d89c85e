package handlers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smsbramka/sms-gateway/internal/domain"
	"github.com/smsbramka/sms-gateway/internal/service"
	"github.com/smsbramka/sms-gateway/pkg/response"
	"github.com/smsbramka/sms-gateway/pkg/validator"
)

type MessageHandler struct {
	service *service.DispatchService
}

func NewMessageHandler(service *service.DispatchService) *MessageHandler {
	return &MessageHandler{service: service}
}

type CreateMessageRequest struct {
	Content      string     `json:"content" validate:"required,max=1000"`
	PhoneNumber  string     `json:"phoneNumber" validate:"required"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
	Priority     int        `json:"priority,omitempty" validate:"omitempty,min=1,max=10"`
}

type UpdateMessageRequest struct {
	Content      *string    `json:"content,omitempty" validate:"omitempty,max=1000"`
	PhoneNumber  *string    `json:"phoneNumber,omitempty"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
}

// CreateMessage godoc
// @Summary Create a new message
// @Description Creates a message to be dispatched; a future scheduledFor defers it
// @Tags messages
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for messages"
// @Param message body CreateMessageRequest true "Message to create"
// @Success 201 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/messages [post]
func (h *MessageHandler) CreateMessage(c echo.Context) error {
	var req CreateMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	message, err := h.service.CreateMessage(
		c.Request().Context(),
		req.Content,
		req.PhoneNumber,
		req.ScheduledFor,
		req.Priority,
	)
	if err != nil {
		if err == domain.ErrEmptyRecipient || err == domain.ErrEmptyContent {
			return response.BadRequest(c, err)
		}
		return response.InternalServerError(c, err)
	}

	return response.Created(c, "Message created successfully", message)
}

// GetAllMessages godoc
// @Summary Get all messages
// @Description Retrieves a paginated list of messages with optional status filter
// @Tags messages
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for messages"
// @Param page query int false "Page number (default: 1)"
// @Param pageSize query int false "Page size (default: 20, max: 100)"
// @Param status query string false "Filter by status (pending, scheduled, queued, sent, delivered, failed, canceled)"
// @Success 200 {object} response.PaginatedResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/messages [get]
func (h *MessageHandler) GetAllMessages(c echo.Context) error {
	page, pageSize, err := parsePaginationParams(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	statusStr := c.QueryParam("status")

	// Convert status string to pointer (optional filter).
	var status *domain.MessageStatus
	if statusStr != "" {
		parsedStatus := domain.MessageStatus(statusStr)
		status = &parsedStatus
	}

	messages, totalCount, err := h.service.GetAllMessages(c.Request().Context(), status, page, pageSize)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Paginated(c, messages, page, pageSize, totalCount)
}

// GetMessage godoc
// @Summary Get a message
// @Description Retrieves a single message by id
// @Tags messages
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for messages"
// @Param id path int true "Message ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/messages/{id} [get]
func (h *MessageHandler) GetMessage(c echo.Context) error {
	id, err := parseMessageID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	message, err := h.service.GetMessage(c.Request().Context(), id)
	if err != nil {
		if err == domain.ErrMessageNotFound {
			return response.NotFound(c, "Message not found")
		}
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, message)
}

// UpdateMessage godoc
// @Summary Update a scheduled message
// @Description Edits the content, recipient or scheduled time of a message that has not been dispatched yet
// @Tags messages
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for messages"
// @Param id path int true "Message ID"
// @Param message body UpdateMessageRequest true "Fields to update"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/v1/messages/{id} [put]
func (h *MessageHandler) UpdateMessage(c echo.Context) error {
	id, err := parseMessageID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	var req UpdateMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	err = h.service.UpdateScheduledMessage(c.Request().Context(), id, req.Content, req.PhoneNumber, req.ScheduledFor)
	if err != nil {
		switch err {
		case domain.ErrMessageNotFound:
			return response.NotFound(c, "Message not found")
		case domain.ErrNotEditable:
			return response.Conflict(c, err)
		default:
			return response.BadRequest(c, err)
		}
	}

	return response.OkWithMessage(c, "Message updated successfully", nil)
}

// CancelMessage godoc
// @Summary Cancel a message
// @Description Cancels a scheduled or queued message; already dispatched messages cannot be canceled
// @Tags messages
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for messages"
// @Param id path int true "Message ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/v1/messages/{id} [delete]
func (h *MessageHandler) CancelMessage(c echo.Context) error {
	id, err := parseMessageID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	if err := h.service.CancelMessage(c.Request().Context(), id); err != nil {
		switch err {
		case domain.ErrMessageNotFound:
			return response.NotFound(c, "Message not found")
		case domain.ErrNotCancelable:
			return response.Conflict(c, err)
		default:
			return response.InternalServerError(c, err)
		}
	}

	return response.OkWithMessage(c, "Message canceled", nil)
}

// MarkDelivered godoc
// @Summary Record a delivery receipt
// @Description Transitions a sent message to delivered, typically driven by a provider callback
// @Tags messages
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for messages"
// @Param id path int true "Message ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/v1/messages/{id}/delivered [post]
func (h *MessageHandler) MarkDelivered(c echo.Context) error {
	id, err := parseMessageID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	if err := h.service.MarkDelivered(c.Request().Context(), id); err != nil {
		switch err {
		case domain.ErrMessageNotFound:
			return response.NotFound(c, "Message not found")
		case domain.ErrNotDeliverable:
			return response.Conflict(c, err)
		default:
			return response.InternalServerError(c, err)
		}
	}

	return response.OkWithMessage(c, "Delivery recorded", nil)
}

// GetStats godoc
// @Summary Get message statistics
// @Description Returns count of messages by status
// @Tags messages
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for messages"
// @Success 200 {object} response.SuccessResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/messages/stats [get]
func (h *MessageHandler) GetStats(c echo.Context) error {
	stats, err := h.service.GetStats(c.Request().Context())
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, map[string]any{
		"pending":   stats.Pending,
		"scheduled": stats.Scheduled,
		"queued":    stats.Queued,
		"sent":      stats.Sent,
		"delivered": stats.Delivered,
		"failed":    stats.Failed,
		"canceled":  stats.Canceled,
		"total":     stats.Total(),
	})
}

// GetCachedMessages godoc
// @Summary Get cached messages from Redis
// @Description Returns provider message ids and sent timestamps cached in Redis
// @Tags messages
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for messages"
// @Success 200 {object} response.SuccessResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/messages/cached [get]
func (h *MessageHandler) GetCachedMessages(c echo.Context) error {
	cached, err := h.service.GetCachedMessages(c.Request().Context())
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, cached)
}

// ReplayAllFailedMessages godoc
// @Summary Replay all failed messages
// @Description Re-queues failed messages that still have retries left
// @Tags messages
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for messages"
// @Success 200 {object} response.SuccessResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/messages/replay [post]
func (h *MessageHandler) ReplayAllFailedMessages(c echo.Context) error {
	count, err := h.service.ReplayAllFailedMessages(c.Request().Context())
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, map[string]any{
		"replayed": count,
	})
}

// ReplayFailedMessage godoc
// @Summary Replay a single failed message
// @Description Re-queues a specific failed message if it still has retries left
// @Tags messages
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for messages"
// @Param id path int true "Message ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/messages/{id}/replay [post]
func (h *MessageHandler) ReplayFailedMessage(c echo.Context) error {
	id, err := parseMessageID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	if err := h.service.ReplayFailedMessage(c.Request().Context(), id); err != nil {
		// Retries exhausted and "no failed message" both come back as 400 here.
		return response.BadRequest(c, err)
	}

	return response.Ok(c, map[string]any{
		"replayed": 1,
	})
}

func parseMessageID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid message id")
	}
	return id, nil
}

func parsePaginationParams(c echo.Context) (int, int, error) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)

	pageStr := c.QueryParam("page")
	pageSizeStr := c.QueryParam("pageSize")

	// Page
	page := defaultPage
	if pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p <= 0 {
			return 0, 0, fmt.Errorf("page must be a positive integer")
		}
		page = p
	}

	// Page size
	pageSize := defaultPageSize
	if pageSizeStr != "" {
		ps, err := strconv.Atoi(pageSizeStr)
		if err != nil || ps <= 0 || ps > maxPageSize {
			return 0, 0, fmt.Errorf("pageSize must be between 1 and %d", maxPageSize)
		}

		pageSize = ps
	}

	return page, pageSize, nil
}
