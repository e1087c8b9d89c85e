package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/smsbramka/sms-gateway/internal/domain"
	"github.com/smsbramka/sms-gateway/internal/template"
)

type templateRepository interface {
	Create(ctx context.Context, name, content string, category *string) (*domain.Template, error)
	Update(ctx context.Context, id int64, name, content string, category *string) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Template, error)
	GetByName(ctx context.Context, name string) (*domain.Template, error)
	GetAll(ctx context.Context, category *string) ([]domain.Template, error)
}

// TemplateService persists reusable message templates and renders them with
// caller-supplied variables.
type TemplateService struct {
	repo templateRepository
}

func NewTemplateService(repo templateRepository) *TemplateService {
	return &TemplateService{repo: repo}
}

func (s *TemplateService) Create(ctx context.Context, name, content string, category *string) (*domain.Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("template name is required")
	}

	if result := template.Validate(content); !result.Valid {
		return nil, fmt.Errorf("invalid template content: %s", result.Reason)
	}

	if _, err := s.repo.GetByName(ctx, name); err == nil {
		return nil, domain.ErrTemplateName
	} else if err != domain.ErrTemplateNotFound {
		return nil, err
	}

	created, err := s.repo.Create(ctx, name, content, category)
	if err != nil {
		return nil, err
	}

	created.Variables = template.ExtractVariables(created.Content)
	return created, nil
}

func (s *TemplateService) Update(ctx context.Context, id int64, content string, category *string) (*domain.Template, error) {
	if result := template.Validate(content); !result.Valid {
		return nil, fmt.Errorf("invalid template content: %s", result.Reason)
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if category == nil {
		category = existing.Category
	}

	if err := s.repo.Update(ctx, id, existing.Name, content, category); err != nil {
		return nil, err
	}

	existing.Content = content
	existing.Category = category
	existing.Variables = template.ExtractVariables(content)
	return existing, nil
}

func (s *TemplateService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *TemplateService) Get(ctx context.Context, id int64) (*domain.Template, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Variables = template.ExtractVariables(t.Content)
	return t, nil
}

func (s *TemplateService) GetByName(ctx context.Context, name string) (*domain.Template, error) {
	t, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	t.Variables = template.ExtractVariables(t.Content)
	return t, nil
}

func (s *TemplateService) GetAll(ctx context.Context, category *string) ([]domain.Template, error) {
	templates, err := s.repo.GetAll(ctx, category)
	if err != nil {
		return nil, err
	}
	for i := range templates {
		templates[i].Variables = template.ExtractVariables(templates[i].Content)
	}
	return templates, nil
}

// Render loads a template by id and substitutes the given variables.
// Placeholders without a supplied value are left verbatim so the caller can
// see what is missing.
func (s *TemplateService) Render(ctx context.Context, id int64, variables map[string]string) (string, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return template.Render(t.Content, variables), nil
}

// RenderByName is Render keyed by template name.
func (s *TemplateService) RenderByName(ctx context.Context, name string, variables map[string]string) (string, error) {
	t, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return "", err
	}
	return template.Render(t.Content, variables), nil
}
