package domain

import (
	"errors"
	"time"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrTemplateName     = errors.New("template with this name already exists")
)

// Template is a reusable message body with {{name}} placeholders. Variables
// is derived from Content on every write and is never authoritative on its
// own.
type Template struct {
	ID        int64      `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Content   string     `db:"content" json:"content"`
	Variables []string   `db:"-" json:"variables"`
	Category  *string    `db:"category" json:"category,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt *time.Time `db:"updated_at" json:"updatedAt,omitempty"`
}
