package handlers

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/smsbramka/sms-gateway/internal/domain"
	"github.com/smsbramka/sms-gateway/internal/service"
	"github.com/smsbramka/sms-gateway/pkg/response"
	"github.com/smsbramka/sms-gateway/pkg/validator"
)

type TemplateHandler struct {
	service *service.TemplateService
}

func NewTemplateHandler(service *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{service: service}
}

type CreateTemplateRequest struct {
	Name     string  `json:"name" validate:"required,max=100"`
	Content  string  `json:"content" validate:"required,max=1000"`
	Category *string `json:"category,omitempty"`
}

type UpdateTemplateRequest struct {
	Content  string  `json:"content" validate:"required,max=1000"`
	Category *string `json:"category,omitempty"`
}

type RenderTemplateRequest struct {
	Variables map[string]string `json:"variables"`
}

// CreateTemplate godoc
// @Summary Create a template
// @Description Stores a reusable message template with {{variable}} placeholders
// @Tags templates
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for messages"
// @Param template body CreateTemplateRequest true "Template to create"
// @Success 201 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/v1/templates [post]
func (h *TemplateHandler) CreateTemplate(c echo.Context) error {
	var req CreateTemplateRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	template, err := h.service.Create(c.Request().Context(), req.Name, req.Content, req.Category)
	if err != nil {
		if err == domain.ErrTemplateName {
			return response.Conflict(c, err)
		}
		return response.BadRequest(c, err)
	}

	return response.Created(c, "Template created successfully", template)
}

// GetAllTemplates godoc
// @Summary List templates
// @Description Lists all templates, optionally filtered by category
// @Tags templates
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for messages"
// @Param category query string false "Filter by category"
// @Success 200 {object} response.SuccessResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/templates [get]
func (h *TemplateHandler) GetAllTemplates(c echo.Context) error {
	var category *string
	if cat := c.QueryParam("category"); cat != "" {
		category = &cat
	}

	templates, err := h.service.GetAll(c.Request().Context(), category)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, templates)
}

// GetTemplate godoc
// @Summary Get a template
// @Description Retrieves a template by id, including its extracted variables
// @Tags templates
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for messages"
// @Param id path int true "Template ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/templates/{id} [get]
func (h *TemplateHandler) GetTemplate(c echo.Context) error {
	id, err := parseTemplateID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	template, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		if err == domain.ErrTemplateNotFound {
			return response.NotFound(c, "Template not found")
		}
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, template)
}

// UpdateTemplate godoc
// @Summary Update a template
// @Description Replaces a template's content and optionally its category
// @Tags templates
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for messages"
// @Param id path int true "Template ID"
// @Param template body UpdateTemplateRequest true "New content"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/templates/{id} [put]
func (h *TemplateHandler) UpdateTemplate(c echo.Context) error {
	id, err := parseTemplateID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	var req UpdateTemplateRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	template, err := h.service.Update(c.Request().Context(), id, req.Content, req.Category)
	if err != nil {
		if err == domain.ErrTemplateNotFound {
			return response.NotFound(c, "Template not found")
		}
		return response.BadRequest(c, err)
	}

	return response.OkWithMessage(c, "Template updated successfully", template)
}

// DeleteTemplate godoc
// @Summary Delete a template
// @Tags templates
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for messages"
// @Param id path int true "Template ID"
// @Success 204
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/templates/{id} [delete]
func (h *TemplateHandler) DeleteTemplate(c echo.Context) error {
	id, err := parseTemplateID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		if err == domain.ErrTemplateNotFound {
			return response.NotFound(c, "Template not found")
		}
		return response.InternalServerError(c, err)
	}

	return response.NoContent(c)
}

// RenderTemplate godoc
// @Summary Render a template
// @Description Substitutes variables into the template and returns the resulting content
// @Tags templates
// @Accept json
// @Produce json
// @Param x-sms-auth-key header string true "API key for messages"
// @Param id path int true "Template ID"
// @Param variables body RenderTemplateRequest true "Variable values"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/templates/{id}/render [post]
func (h *TemplateHandler) RenderTemplate(c echo.Context) error {
	id, err := parseTemplateID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	var req RenderTemplateRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	rendered, err := h.service.Render(c.Request().Context(), id, req.Variables)
	if err != nil {
		if err == domain.ErrTemplateNotFound {
			return response.NotFound(c, "Template not found")
		}
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, map[string]any{
		"content": rendered,
	})
}

func parseTemplateID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid template id")
	}
	return id, nil
}
