package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/smsbramka/sms-gateway/pkg/logger"
)

// SeedTestData inserts a handful of messages and templates for local
// development. Safe to run repeatedly; it skips seeding when messages
// already exist.
func SeedTestData(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM messages"); err != nil {
		return fmt.Errorf("failed to count messages: %w", err)
	}

	if count > 0 {
		logger.Infof("Messages table already has %d rows, skipping seed", count)
		return nil
	}

	now := time.Now()
	in1h := now.Add(1 * time.Hour)
	in24h := now.Add(24 * time.Hour)

	seedMessages := []struct {
		phone        string
		content      string
		status       string
		scheduledFor *time.Time
	}{
		{"+905551111111", "Your verification code is 482913", "pending", nil},
		{"+905552222222", "Your order #1042 has shipped", "pending", nil},
		{"+905553333333", "Reminder: appointment tomorrow at 10:00", "scheduled", &in1h},
		{"+905554444444", "Weekly digest is ready", "scheduled", &in24h},
		{"+48601234567", "Welcome aboard!", "pending", nil},
	}

	for _, m := range seedMessages {
		_, err := db.Exec(`
			INSERT INTO messages (external_id, phone_number, content, status, scheduled_for)
			VALUES (?, ?, ?, ?, ?)`,
			uuid.NewString(), m.phone, m.content, m.status, m.scheduledFor,
		)
		if err != nil {
			return fmt.Errorf("failed to seed message: %w", err)
		}
	}

	seedTemplates := []struct {
		name     string
		content  string
		category string
	}{
		{"otp", "Your verification code is {{code}}. It expires in {{minutes}} minutes.", "auth"},
		{"order-shipped", "Hi {{name}}, your order #{{orderId}} has shipped.", "orders"},
		{"appointment-reminder", "Reminder: {{service}} appointment on {{date}} at {{time}}.", "reminders"},
	}

	for _, t := range seedTemplates {
		_, err := db.Exec(`
			INSERT INTO templates (name, content, category)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE content = VALUES(content)`,
			t.name, t.content, t.category,
		)
		if err != nil {
			return fmt.Errorf("failed to seed template %s: %w", t.name, err)
		}
	}

	logger.Infof("Seeded %d messages and %d templates", len(seedMessages), len(seedTemplates))
	return nil
}
