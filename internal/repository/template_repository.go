package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/smsbramka/sms-gateway/internal/domain"
)

type TemplateRepository struct {
	db *sqlx.DB
}

func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Create(ctx context.Context, name, content string, category *string) (*domain.Template, error) {
	query := `INSERT INTO templates (name, content, category) VALUES (?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query, name, content, category)
	if err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *TemplateRepository) Update(ctx context.Context, id int64, name, content string, category *string) error {
	query := `
		UPDATE templates
		SET name = ?, content = ?, category = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, name, content, category, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrTemplateNotFound
	}

	return nil
}

func (r *TemplateRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM templates WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrTemplateNotFound
	}

	return nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*domain.Template, error) {
	query := `SELECT id, name, content, category, created_at, updated_at FROM templates WHERE id = ?`

	var tmpl domain.Template
	if err := r.db.GetContext(ctx, &tmpl, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return &tmpl, nil
}

func (r *TemplateRepository) GetByName(ctx context.Context, name string) (*domain.Template, error) {
	query := `SELECT id, name, content, category, created_at, updated_at FROM templates WHERE name = ?`

	var tmpl domain.Template
	if err := r.db.GetContext(ctx, &tmpl, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template by name: %w", err)
	}

	return &tmpl, nil
}

func (r *TemplateRepository) GetAll(ctx context.Context, category *string) ([]domain.Template, error) {
	var templates []domain.Template

	if category != nil {
		query := `SELECT id, name, content, category, created_at, updated_at
			FROM templates WHERE category = ? ORDER BY name ASC`
		if err := r.db.SelectContext(ctx, &templates, query, *category); err != nil {
			return nil, fmt.Errorf("failed to get templates: %w", err)
		}
		return templates, nil
	}

	query := `SELECT id, name, content, category, created_at, updated_at
		FROM templates ORDER BY name ASC`
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("failed to get templates: %w", err)
	}

	return templates, nil
}
