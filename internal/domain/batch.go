package domain

import "time"

type BatchStatus string

const (
	BatchQueued     BatchStatus = "queued"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchCanceled   BatchStatus = "canceled"
)

// BatchReceipt is returned synchronously when a bulk send is accepted.
type BatchReceipt struct {
	BatchID                  string      `json:"batchId"`
	TotalRecipients          int         `json:"totalRecipients"`
	QueuedCount              int         `json:"queuedCount"`
	Status                   BatchStatus `json:"status"`
	EstimatedDurationMinutes int         `json:"estimatedDurationMinutes"`
}

// BatchProgress is a live aggregate over the messages sharing a batch ID.
// It is always reconstructible from a fresh scan of the message store; any
// cached copy is an optimization and is replaced whole, never patched.
type BatchProgress struct {
	BatchID         string      `json:"batchId"`
	TotalRecipients int         `json:"totalRecipients"`
	QueuedCount     int         `json:"queuedCount"`
	SentCount       int         `json:"sentCount"`
	FailedCount     int         `json:"failedCount"`
	CanceledCount   int         `json:"canceledCount"`
	Status          BatchStatus `json:"status"`
	StartedAt       time.Time   `json:"startedAt"`
	CompletedAt     *time.Time  `json:"completedAt,omitempty"`
	Errors          []string    `json:"errors,omitempty"`
}

// DeriveStatus computes the batch status from the counters alone. A batch
// with failures but nothing left queued still completes; partial success is
// not an outer failure.
func (p *BatchProgress) DeriveStatus() BatchStatus {
	switch {
	case p.CanceledCount > 0:
		return BatchCanceled
	case p.QueuedCount > 0:
		return BatchProcessing
	default:
		return BatchCompleted
	}
}
