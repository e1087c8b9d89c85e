package handlers

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/smsbramka/sms-gateway/environments"
	"github.com/smsbramka/sms-gateway/internal/scheduler"
	"github.com/smsbramka/sms-gateway/pkg/response"
	"github.com/smsbramka/sms-gateway/pkg/validator"
)

type SchedulerHandler struct {
	scheduler *scheduler.Scheduler
	ctx       context.Context
	config    *environments.Config
}

type StartSchedulerRequest struct {
	Interval *int `json:"interval,omitempty" validate:"omitempty,min=1"`
}

func NewSchedulerHandler(
	sched *scheduler.Scheduler,
	ctx context.Context,
	cfg *environments.Config,
) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: sched,
		ctx:       ctx,
		config:    cfg,
	}
}

// StartScheduler godoc
// @Summary Start the dispatch scheduler
// @Description Starts the periodic dispatch pass with an optional interval override
// @Tags scheduler
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for scheduler"
// @Param request body StartSchedulerRequest false "Scheduler parameters (optional)"
// @Success 200 {object} response.SuccessResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/scheduler/start [post]
func (h *SchedulerHandler) StartScheduler(c echo.Context) error {
	if h.scheduler.IsRunning() {
		return response.OkWithMessage(c, "Scheduler is already running", h.scheduler.GetStatus())
	}

	var req StartSchedulerRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	intervalMinutes := int(h.config.Scheduler.Interval.Minutes())
	if intervalMinutes <= 0 {
		intervalMinutes = 5
	}
	if req.Interval != nil {
		intervalMinutes = *req.Interval
	}

	alertWebhook := h.config.Alert.WebhookURL
	alertThreshold := h.config.Alert.IterationCount

	if err := h.scheduler.StartWithParams(
		h.ctx,
		intervalMinutes,
		alertWebhook,
		alertThreshold,
	); err != nil {
		return response.InternalServerError(c, err)
	}

	return response.OkWithMessage(c, "Scheduler started successfully", h.scheduler.GetStatus())
}

// StopScheduler godoc
// @Summary Stop the dispatch scheduler
// @Description Stops the periodic dispatch pass
// @Tags scheduler
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for scheduler"
// @Success 200 {object} response.SuccessResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/scheduler/stop [post]
func (h *SchedulerHandler) StopScheduler(c echo.Context) error {
	if !h.scheduler.IsRunning() {
		return response.OkWithMessage(c, "Scheduler is already stopped", h.scheduler.GetStatus())
	}

	if err := h.scheduler.Stop(); err != nil {
		return response.InternalServerError(c, err)
	}

	return response.OkWithMessage(c, "Scheduler stopped successfully", h.scheduler.GetStatus())
}

// RunNow godoc
// @Summary Trigger a dispatch pass immediately
// @Description Runs one dispatch pass outside the periodic cadence; safe alongside the ticker
// @Tags scheduler
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for scheduler"
// @Success 200 {object} response.SuccessResponse
// @Router /api/v1/scheduler/run [post]
func (h *SchedulerHandler) RunNow(c echo.Context) error {
	h.scheduler.RunNow(c.Request().Context())
	return response.OkWithMessage(c, "Dispatch pass completed", h.scheduler.GetStatus())
}

// GetSchedulerStatus godoc
// @Summary Get scheduler status
// @Description Returns the current status of the dispatch scheduler
// @Tags scheduler
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for scheduler"
// @Success 200 {object} response.SuccessResponse
// @Router /api/v1/scheduler/status [get]
func (h *SchedulerHandler) GetSchedulerStatus(c echo.Context) error {
	return response.Ok(c, h.scheduler.GetStatus())
}
