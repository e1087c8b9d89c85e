package domain

import (
	"errors"
	"time"
)

type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusScheduled MessageStatus = "scheduled"
	StatusQueued    MessageStatus = "queued"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusFailed    MessageStatus = "failed"
	StatusCanceled  MessageStatus = "canceled"
)

// DefaultPriority is assigned to messages created without an explicit priority.
const DefaultPriority = 5

var (
	ErrEmptyRecipient   = errors.New("recipient phone number is required")
	ErrEmptyContent     = errors.New("message content is required")
	ErrNotCancelable    = errors.New("message can no longer be canceled")
	ErrNotEditable      = errors.New("only scheduled messages can be edited")
	ErrMessageNotFound  = errors.New("message not found")
	ErrNotDeliverable   = errors.New("only sent messages can be marked delivered")
	ErrNotQueued        = errors.New("message is no longer queued")
	ErrRetriesExhausted = errors.New("message has exhausted its retries")
)

// Message is the single canonical record for an outbound SMS, whether it was
// created directly, scheduled for later, pulled from the remote backend or
// queued as part of a bulk batch.
type Message struct {
	ID                int64         `db:"id" json:"id"`
	ExternalID        string        `db:"external_id" json:"externalId"`
	PhoneNumber       string        `db:"phone_number" json:"phoneNumber"`
	Content           string        `db:"content" json:"content"`
	Status            MessageStatus `db:"status" json:"status"`
	Priority          int           `db:"priority" json:"priority"`
	BatchID           *string       `db:"batch_id" json:"batchId,omitempty"`
	ScheduledFor      *time.Time    `db:"scheduled_for" json:"scheduledFor,omitempty"`
	SentAt            *time.Time    `db:"sent_at" json:"sentAt,omitempty"`
	DeliveredAt       *time.Time    `db:"delivered_at" json:"deliveredAt,omitempty"`
	ProviderMessageID *string       `db:"provider_message_id" json:"providerMessageId,omitempty"`
	ErrorMessage      *string       `db:"error_message" json:"errorMessage,omitempty"`
	RetryCount        int           `db:"retry_count" json:"retryCount"`
	CreatedAt         time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updatedAt"`
}

// IsDue reports whether the message should be picked up by a dispatch pass.
// Semantics are strict: a message scheduled for the future is never due, no
// matter how close the scheduled time is. A queued message counts as already
// claimed and is skipped, which is what keeps two overlapping passes from
// sending the same message twice.
func (m *Message) IsDue(now time.Time) bool {
	if m.Status != StatusPending && m.Status != StatusScheduled {
		return false
	}
	return m.ScheduledFor == nil || !m.ScheduledFor.After(now)
}

// IsTerminal reports whether the message has left the dispatch pipeline.
// Sent counts as terminal here: delivery tracking continues, automatic
// sending does not.
func (m *Message) IsTerminal() bool {
	switch m.Status {
	case StatusSent, StatusDelivered, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// CanCancel reports whether a user cancellation is still permitted.
// Canceling a queued message is best-effort: the send may already be in
// flight, in which case the send outcome wins.
func (m *Message) CanCancel() bool {
	return m.Status == StatusScheduled || m.Status == StatusQueued
}

// SendResult is the per-message outcome of one dispatch pass, consumed by the
// scheduler for throughput stats and alerting.
type SendResult struct {
	MessageDBID       int64
	ProviderMessageID string
	Success           bool
	Error             error
	SentAt            time.Time
}

// GatewayResponse is what the SMS provider returns on an accepted send.
type GatewayResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

// RemoteMessage is a pending message pulled from the remote backend.
type RemoteMessage struct {
	ID          int64      `json:"id"`
	PhoneNumber string     `json:"phoneNumber"`
	Message     string     `json:"message"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	Priority    int        `json:"priority"`
}

// StatusUpdate is pushed to the remote backend after a send attempt. Pushes
// are fire-and-forget; a failed push never rolls back local state.
type StatusUpdate struct {
	ExternalID   string        `json:"externalId"`
	Status       MessageStatus `json:"status"`
	Timestamp    time.Time     `json:"timestamp"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
}

// MessageStats is the per-status breakdown shown on the dashboard.
type MessageStats struct {
	Pending   int64 `db:"pending" json:"pending"`
	Scheduled int64 `db:"scheduled" json:"scheduled"`
	Queued    int64 `db:"queued" json:"queued"`
	Sent      int64 `db:"sent" json:"sent"`
	Delivered int64 `db:"delivered" json:"delivered"`
	Failed    int64 `db:"failed" json:"failed"`
	Canceled  int64 `db:"canceled" json:"canceled"`
}

func (s MessageStats) Total() int64 {
	return s.Pending + s.Scheduled + s.Queued + s.Sent + s.Delivered + s.Failed + s.Canceled
}

// SentMessageCache is the cache entry kept per sent message, keyed by
// external ID. Purely an optimization for diagnostics lookups.
type SentMessageCache struct {
	ProviderMessageID string    `json:"providerMessageId"`
	SentAt            time.Time `json:"sentAt"`
}
