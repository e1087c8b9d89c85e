package service

import (
	"context"
	"strings"
	"testing"

	"github.com/smsbramka/sms-gateway/internal/domain"
)

type fakeTemplateRepo struct {
	nextID    int64
	templates map[int64]*domain.Template
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{templates: make(map[int64]*domain.Template)}
}

func (r *fakeTemplateRepo) Create(ctx context.Context, name, content string, category *string) (*domain.Template, error) {
	r.nextID++
	t := &domain.Template{ID: r.nextID, Name: name, Content: content, Category: category}
	r.templates[t.ID] = t
	out := *t
	return &out, nil
}

func (r *fakeTemplateRepo) Update(ctx context.Context, id int64, name, content string, category *string) error {
	t, ok := r.templates[id]
	if !ok {
		return domain.ErrTemplateNotFound
	}
	t.Name = name
	t.Content = content
	t.Category = category
	return nil
}

func (r *fakeTemplateRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.templates[id]; !ok {
		return domain.ErrTemplateNotFound
	}
	delete(r.templates, id)
	return nil
}

func (r *fakeTemplateRepo) GetByID(ctx context.Context, id int64) (*domain.Template, error) {
	t, ok := r.templates[id]
	if !ok {
		return nil, domain.ErrTemplateNotFound
	}
	out := *t
	return &out, nil
}

func (r *fakeTemplateRepo) GetByName(ctx context.Context, name string) (*domain.Template, error) {
	for _, t := range r.templates {
		if t.Name == name {
			out := *t
			return &out, nil
		}
	}
	return nil, domain.ErrTemplateNotFound
}

func (r *fakeTemplateRepo) GetAll(ctx context.Context, category *string) ([]domain.Template, error) {
	var out []domain.Template
	for _, t := range r.templates {
		if category != nil && (t.Category == nil || *t.Category != *category) {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func TestTemplateService_CreateExtractsVariables(t *testing.T) {
	ctx := context.Background()
	svc := NewTemplateService(newFakeTemplateRepo())

	created, err := svc.Create(ctx, "otp", "Your code is {{code}}, valid {{minutes}} min", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if len(created.Variables) != 2 || created.Variables[0] != "code" || created.Variables[1] != "minutes" {
		t.Fatalf("unexpected variables: %v", created.Variables)
	}
}

func TestTemplateService_CreateRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	svc := NewTemplateService(newFakeTemplateRepo())

	if _, err := svc.Create(ctx, "otp", "Code: {{code}}", nil); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := svc.Create(ctx, "otp", "Another body", nil); err != domain.ErrTemplateName {
		t.Fatalf("expected ErrTemplateName, got %v", err)
	}
}

func TestTemplateService_CreateRejectsInvalidContent(t *testing.T) {
	ctx := context.Background()
	svc := NewTemplateService(newFakeTemplateRepo())

	if _, err := svc.Create(ctx, "blank", "   ", nil); err == nil {
		t.Fatalf("expected error for blank content")
	}
	if _, err := svc.Create(ctx, "huge", strings.Repeat("x", 1001), nil); err == nil {
		t.Fatalf("expected error for over-long content")
	}
	if _, err := svc.Create(ctx, "  ", "fine body", nil); err == nil {
		t.Fatalf("expected error for blank name")
	}
}

func TestTemplateService_Render(t *testing.T) {
	ctx := context.Background()
	svc := NewTemplateService(newFakeTemplateRepo())

	created, err := svc.Create(ctx, "greet", "Hi {{name}}!", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	out, err := svc.Render(ctx, created.ID, map[string]string{"name": "Ada"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "Hi Ada!" {
		t.Fatalf("expected %q, got %q", "Hi Ada!", out)
	}

	out, err = svc.RenderByName(ctx, "greet", nil)
	if err != nil {
		t.Fatalf("RenderByName: %v", err)
	}
	if out != "Hi {{name}}!" {
		t.Fatalf("missing variables must stay verbatim, got %q", out)
	}

	if _, err := svc.Render(ctx, 999, nil); err != domain.ErrTemplateNotFound {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestTemplateService_UpdateRevalidates(t *testing.T) {
	ctx := context.Background()
	svc := NewTemplateService(newFakeTemplateRepo())

	created, err := svc.Create(ctx, "greet", "Hi {{name}}!", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := svc.Update(ctx, created.ID, "Hello {{firstName}} {{lastName}}", nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(updated.Variables) != 2 {
		t.Fatalf("expected re-extracted variables, got %v", updated.Variables)
	}

	if _, err := svc.Update(ctx, created.ID, "  ", nil); err == nil {
		t.Fatalf("expected error for blank content on update")
	}
}
