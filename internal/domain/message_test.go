package domain

import (
	"testing"
	"time"
)

func TestIsDue(t *testing.T) {
	now := time.Now()
	past := now.Add(-1 * time.Minute)
	future := now.Add(1 * time.Minute)

	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"pending without schedule", Message{Status: StatusPending}, true},
		{"pending scheduled in past", Message{Status: StatusPending, ScheduledFor: &past}, true},
		{"scheduled in past", Message{Status: StatusScheduled, ScheduledFor: &past}, true},
		{"scheduled exactly now", Message{Status: StatusScheduled, ScheduledFor: &now}, true},
		{"scheduled in future", Message{Status: StatusScheduled, ScheduledFor: &future}, false},
		{"queued is not due again", Message{Status: StatusQueued}, false},
		{"sent is not due", Message{Status: StatusSent}, false},
		{"failed is not due", Message{Status: StatusFailed}, false},
		{"canceled never due", Message{Status: StatusCanceled, ScheduledFor: &past}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.IsDue(now); got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []MessageStatus{StatusSent, StatusDelivered, StatusFailed, StatusCanceled}
	for _, s := range terminal {
		m := Message{Status: s}
		if !m.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}

	open := []MessageStatus{StatusPending, StatusScheduled, StatusQueued}
	for _, s := range open {
		m := Message{Status: s}
		if m.IsTerminal() {
			t.Errorf("expected %s to not be terminal", s)
		}
	}
}

func TestCanCancel(t *testing.T) {
	scheduled := Message{Status: StatusScheduled}
	if !scheduled.CanCancel() {
		t.Errorf("scheduled messages must be cancelable")
	}
	queued := Message{Status: StatusQueued}
	if !queued.CanCancel() {
		t.Errorf("queued messages are cancelable best-effort")
	}
	sent := Message{Status: StatusSent}
	if sent.CanCancel() {
		t.Errorf("sent messages must not be cancelable")
	}
	delivered := Message{Status: StatusDelivered}
	if delivered.CanCancel() {
		t.Errorf("delivered messages must not be cancelable")
	}
}

func TestBatchProgress_DeriveStatus(t *testing.T) {
	tests := []struct {
		name     string
		progress BatchProgress
		want     BatchStatus
	}{
		{"still queued", BatchProgress{TotalRecipients: 3, QueuedCount: 2, SentCount: 1}, BatchProcessing},
		{"all done", BatchProgress{TotalRecipients: 3, SentCount: 2, FailedCount: 1}, BatchCompleted},
		{"cancellation wins", BatchProgress{TotalRecipients: 3, SentCount: 1, CanceledCount: 2}, BatchCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.progress.DeriveStatus(); got != tt.want {
				t.Errorf("DeriveStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessageStats_Total(t *testing.T) {
	stats := MessageStats{Pending: 1, Scheduled: 2, Queued: 3, Sent: 4, Delivered: 5, Failed: 6, Canceled: 7}
	if stats.Total() != 28 {
		t.Errorf("Total() = %d, want 28", stats.Total())
	}
}
