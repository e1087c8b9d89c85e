package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/smsbramka/sms-gateway/internal/domain"
)

const messageColumns = `id, external_id, phone_number, content, status, priority, batch_id,
	scheduled_for, sent_at, delivered_at, provider_message_id, error_message,
	retry_count, created_at, updated_at`

// MessageRepository owns the message lifecycle in MySQL. All status
// transitions go through its atomic update-by-id statements; nothing else
// mutates rows.
type MessageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	query := `
		INSERT INTO messages (external_id, phone_number, content, status, priority, batch_id, scheduled_for)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		m.ExternalID, m.PhoneNumber, m.Content, m.Status, m.Priority, m.BatchID, m.ScheduledFor)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return r.GetByID(ctx, id)
}

// CreateBatch inserts every message of a bulk send in one transaction. The
// batch either fully exists or does not exist at all; a half-created batch
// would make progress accounting lie.
func (r *MessageRepository) CreateBatch(ctx context.Context, msgs []domain.Message) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO messages (external_id, phone_number, content, status, priority, batch_id, scheduled_for)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for i := range msgs {
		m := &msgs[i]
		if _, err := tx.ExecContext(ctx, query,
			m.ExternalID, m.PhoneNumber, m.Content, m.Status, m.Priority, m.BatchID, m.ScheduledFor); err != nil {
			return fmt.Errorf("failed to queue message for %s: %w", m.PhoneNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	return nil
}

// GetDue returns dispatchable messages: pending or scheduled, with no
// scheduled time or one that has passed. Higher priority goes first, then
// scheduled time (creation time stands in when absent).
func (r *MessageRepository) GetDue(ctx context.Context, now time.Time, limit int) ([]domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE status IN ('pending', 'scheduled')
		  AND (scheduled_for IS NULL OR scheduled_for <= ?)
		ORDER BY priority DESC, COALESCE(scheduled_for, created_at) ASC, created_at ASC, id ASC
		LIMIT ?
	`

	var messages []domain.Message
	if err := r.db.SelectContext(ctx, &messages, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to get due messages: %w", err)
	}

	return messages, nil
}

// Claim moves a message to queued, but only if it is still pending or
// scheduled. The status predicate makes the claim atomic: when two dispatch
// passes race, exactly one sees a row affected.
func (r *MessageRepository) Claim(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE messages
		SET status = 'queued', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN ('pending', 'scheduled')
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim message %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

// MarkAsSent finalizes a claimed message. The queued predicate keeps a send
// result from overwriting a cancellation that landed while the provider call
// was in flight; in that race the row stays canceled and ErrNotQueued is
// returned.
func (r *MessageRepository) MarkAsSent(ctx context.Context, id int64, providerMessageID string, sentAt time.Time) error {
	query := `
		UPDATE messages
		SET status = 'sent', provider_message_id = ?, sent_at = ?, error_message = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'queued'
	`

	result, err := r.db.ExecContext(ctx, query, providerMessageID, sentAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark message as sent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrNotQueued
	}

	return nil
}

// MarkAsFailed records the failure reason and bumps the retry counter in the
// same statement, so the counter can never drift from the failure count.
func (r *MessageRepository) MarkAsFailed(ctx context.Context, id int64, reason string) error {
	query := `
		UPDATE messages
		SET status = 'failed', error_message = ?, retry_count = retry_count + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, reason, id); err != nil {
		return fmt.Errorf("failed to mark message as failed: %w", err)
	}

	return nil
}

// MarkAsDelivered is only reachable for sent messages; delivery receipts for
// anything else are a caller error.
func (r *MessageRepository) MarkAsDelivered(ctx context.Context, id int64, deliveredAt time.Time) error {
	query := `
		UPDATE messages
		SET status = 'delivered', delivered_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'sent'
	`

	result, err := r.db.ExecContext(ctx, query, deliveredAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark message as delivered: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrNotDeliverable
	}

	return nil
}

// Cancel transitions a scheduled (or still-queued, best effort) message to
// canceled. Canceling an already-terminal message is an error, not a no-op.
func (r *MessageRepository) Cancel(ctx context.Context, id int64) error {
	query := `
		UPDATE messages
		SET status = 'canceled', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN ('scheduled', 'queued')
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to cancel message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrNotCancelable
	}

	return nil
}

// UpdateScheduled edits a message that is still waiting to go out. Nil
// fields keep their current value. The scheduled time is only ever changed
// here, by explicit user intent, never by the pipeline.
func (r *MessageRepository) UpdateScheduled(
	ctx context.Context,
	id int64,
	content *string,
	phoneNumber *string,
	scheduledFor *time.Time,
) error {
	query := `
		UPDATE messages
		SET content = COALESCE(?, content),
		    phone_number = COALESCE(?, phone_number),
		    scheduled_for = COALESCE(?, scheduled_for),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'scheduled'
	`

	result, err := r.db.ExecContext(ctx, query, content, phoneNumber, scheduledFor, id)
	if err != nil {
		return fmt.Errorf("failed to update scheduled message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrNotEditable
	}

	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`

	var message domain.Message
	if err := r.db.GetContext(ctx, &message, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &message, nil
}

func (r *MessageRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE external_id = ?`

	var message domain.Message
	if err := r.db.GetContext(ctx, &message, query, externalID); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message by external id: %w", err)
	}

	return &message, nil
}

func (r *MessageRepository) GetByBatch(ctx context.Context, batchID string) ([]domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE batch_id = ? ORDER BY id ASC`

	var messages []domain.Message
	if err := r.db.SelectContext(ctx, &messages, query, batchID); err != nil {
		return nil, fmt.Errorf("failed to get batch messages: %w", err)
	}

	return messages, nil
}

// GetBatchStats aggregates a batch from a fresh scan. This is the source of
// truth for batch progress; the cached snapshot is derived from it.
func (r *MessageRepository) GetBatchStats(ctx context.Context, batchID string, maxErrors int) (*domain.BatchProgress, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = 'queued' THEN 1 ELSE 0 END), 0)   AS queued,
			COALESCE(SUM(CASE WHEN status = 'sent' THEN 1 ELSE 0 END), 0)     AS sent,
			COALESCE(SUM(CASE WHEN status = 'delivered' THEN 1 ELSE 0 END), 0) AS delivered,
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)   AS failed,
			COALESCE(SUM(CASE WHEN status = 'canceled' THEN 1 ELSE 0 END), 0) AS canceled,
			MIN(created_at) AS started_at,
			MAX(CASE WHEN status IN ('sent', 'delivered', 'failed', 'canceled')
				THEN updated_at END) AS completed_at
		FROM messages
		WHERE batch_id = ?
	`

	var row struct {
		Total       int          `db:"total"`
		Queued      int          `db:"queued"`
		Sent        int          `db:"sent"`
		Delivered   int          `db:"delivered"`
		Failed      int          `db:"failed"`
		Canceled    int          `db:"canceled"`
		StartedAt   sql.NullTime `db:"started_at"`
		CompletedAt sql.NullTime `db:"completed_at"`
	}
	if err := r.db.GetContext(ctx, &row, query, batchID); err != nil {
		return nil, fmt.Errorf("failed to get batch stats: %w", err)
	}

	progress := &domain.BatchProgress{
		BatchID:         batchID,
		TotalRecipients: row.Total,
		QueuedCount:     row.Queued,
		SentCount:       row.Sent + row.Delivered,
		FailedCount:     row.Failed,
		CanceledCount:   row.Canceled,
	}
	if row.StartedAt.Valid {
		progress.StartedAt = row.StartedAt.Time
	}
	// Completion time only once no message of the batch remains in flight.
	nonTerminal := row.Total - row.Sent - row.Delivered - row.Failed - row.Canceled
	if row.Total > 0 && nonTerminal == 0 && row.CompletedAt.Valid {
		completedAt := row.CompletedAt.Time
		progress.CompletedAt = &completedAt
	}
	progress.Status = progress.DeriveStatus()

	errQuery := `
		SELECT phone_number, error_message
		FROM messages
		WHERE batch_id = ? AND status = 'failed' AND error_message IS NOT NULL
		ORDER BY id ASC
		LIMIT ?
	`

	var failures []struct {
		PhoneNumber  string `db:"phone_number"`
		ErrorMessage string `db:"error_message"`
	}
	if err := r.db.SelectContext(ctx, &failures, errQuery, batchID, maxErrors); err != nil {
		return nil, fmt.Errorf("failed to get batch errors: %w", err)
	}
	for _, f := range failures {
		progress.Errors = append(progress.Errors, f.PhoneNumber+": "+f.ErrorMessage)
	}

	return progress, nil
}

// CancelBatchQueued cancels everything in a batch that has not reached a
// terminal state yet, and returns how many rows that was.
func (r *MessageRepository) CancelBatchQueued(ctx context.Context, batchID string) (int64, error) {
	query := `
		UPDATE messages
		SET status = 'canceled', updated_at = CURRENT_TIMESTAMP
		WHERE batch_id = ? AND status IN ('pending', 'scheduled', 'queued')
	`

	result, err := r.db.ExecContext(ctx, query, batchID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel batch: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows, nil
}

func (r *MessageRepository) CountByStatus(ctx context.Context, status domain.MessageStatus) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM messages WHERE status = ?", status); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

func (r *MessageRepository) GetAll(
	ctx context.Context,
	status *domain.MessageStatus,
	page, pageSize int,
) ([]domain.Message, int64, error) {
	offset := (page - 1) * pageSize
	var totalCount int64
	var messages []domain.Message

	if status != nil {
		if err := r.db.GetContext(ctx, &totalCount,
			"SELECT COUNT(*) FROM messages WHERE status = ?", *status); err != nil {
			return nil, 0, fmt.Errorf("failed to count messages: %w", err)
		}

		query := `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE status = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ? OFFSET ?
		`
		if err := r.db.SelectContext(ctx, &messages, query, *status, pageSize, offset); err != nil {
			return nil, 0, fmt.Errorf("failed to get messages: %w", err)
		}
	} else {
		if err := r.db.GetContext(ctx, &totalCount, "SELECT COUNT(*) FROM messages"); err != nil {
			return nil, 0, fmt.Errorf("failed to count messages: %w", err)
		}

		query := `
			SELECT ` + messageColumns + `
			FROM messages
			ORDER BY created_at DESC, id DESC
			LIMIT ? OFFSET ?
		`
		if err := r.db.SelectContext(ctx, &messages, query, pageSize, offset); err != nil {
			return nil, 0, fmt.Errorf("failed to get messages: %w", err)
		}
	}

	return messages, totalCount, nil
}

func (r *MessageRepository) GetStats(ctx context.Context) (*domain.MessageStats, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0)   AS pending,
			COALESCE(SUM(CASE WHEN status = 'scheduled' THEN 1 ELSE 0 END), 0) AS scheduled,
			COALESCE(SUM(CASE WHEN status = 'queued' THEN 1 ELSE 0 END), 0)    AS queued,
			COALESCE(SUM(CASE WHEN status = 'sent' THEN 1 ELSE 0 END), 0)      AS sent,
			COALESCE(SUM(CASE WHEN status = 'delivered' THEN 1 ELSE 0 END), 0) AS delivered,
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)    AS failed,
			COALESCE(SUM(CASE WHEN status = 'canceled' THEN 1 ELSE 0 END), 0)  AS canceled
		FROM messages
	`

	var stats domain.MessageStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	return &stats, nil
}

// ReplayFailedByID re-queues one failed message, provided it has retries
// left. The due-scan never resurrects failed messages on its own; this is
// the only path back into the pipeline.
func (r *MessageRepository) ReplayFailedByID(ctx context.Context, id int64, maxRetries int) error {
	query := `
		UPDATE messages
		SET status = 'pending',
		    provider_message_id = NULL,
		    sent_at = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'failed' AND retry_count < ?
	`

	result, err := r.db.ExecContext(ctx, query, id, maxRetries)
	if err != nil {
		return fmt.Errorf("failed to replay failed message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		msg, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if msg.Status == domain.StatusFailed && msg.RetryCount >= maxRetries {
			return domain.ErrRetriesExhausted
		}
		return fmt.Errorf("no failed message found with id %d", id)
	}

	return nil
}

func (r *MessageRepository) ReplayAllFailed(ctx context.Context, maxRetries int) (int64, error) {
	query := `
		UPDATE messages
		SET status = 'pending',
		    provider_message_id = NULL,
		    sent_at = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE status = 'failed' AND retry_count < ?
	`

	result, err := r.db.ExecContext(ctx, query, maxRetries)
	if err != nil {
		return 0, fmt.Errorf("failed to replay failed messages: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows, nil
}
