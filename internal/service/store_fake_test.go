package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/smsbramka/sms-gateway/internal/domain"
)

//
// In-memory store fake shared by the service tests.
//

type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	messages map[int64]*domain.Message

	failClaim    bool
	failMarkSent bool
	failGetDue   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{messages: make(map[int64]*domain.Message)}
}

func (s *fakeStore) add(m domain.Message) *domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	m.ID = s.nextID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.messages[m.ID] = &m
	return &m
}

func (s *fakeStore) get(id int64) domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.messages[id]
}

func (s *fakeStore) Create(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	return s.add(*m), nil
}

func (s *fakeStore) CreateBatch(ctx context.Context, msgs []domain.Message) error {
	for i := range msgs {
		s.add(msgs[i])
	}
	return nil
}

func (s *fakeStore) GetDue(ctx context.Context, now time.Time, limit int) ([]domain.Message, error) {
	if s.failGetDue {
		return nil, fmt.Errorf("simulated store error")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var due []domain.Message
	for _, m := range s.messages {
		if m.IsDue(now) {
			due = append(due, *m)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}
		ti, tj := effectiveTime(due[i]), effectiveTime(due[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return due[i].ID < due[j].ID
	})

	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func effectiveTime(m domain.Message) time.Time {
	if m.ScheduledFor != nil {
		return *m.ScheduledFor
	}
	return m.CreatedAt
}

func (s *fakeStore) Claim(ctx context.Context, id int64) (bool, error) {
	if s.failClaim {
		return false, fmt.Errorf("simulated store error")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return false, nil
	}
	if m.Status != domain.StatusPending && m.Status != domain.StatusScheduled {
		return false, nil
	}
	m.Status = domain.StatusQueued
	return true, nil
}

func (s *fakeStore) MarkAsSent(ctx context.Context, id int64, providerMessageID string, sentAt time.Time) error {
	if s.failMarkSent {
		return fmt.Errorf("simulated store error")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return domain.ErrMessageNotFound
	}
	if m.Status != domain.StatusQueued {
		return domain.ErrNotQueued
	}
	m.Status = domain.StatusSent
	m.ProviderMessageID = &providerMessageID
	m.SentAt = &sentAt
	m.ErrorMessage = nil
	m.UpdatedAt = time.Now()
	return nil
}

func (s *fakeStore) MarkAsFailed(ctx context.Context, id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.messages[id]
	m.Status = domain.StatusFailed
	m.ErrorMessage = &reason
	m.RetryCount++
	m.UpdatedAt = time.Now()
	return nil
}

func (s *fakeStore) MarkAsDelivered(ctx context.Context, id int64, deliveredAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return domain.ErrMessageNotFound
	}
	if m.Status != domain.StatusSent {
		return domain.ErrNotDeliverable
	}
	m.Status = domain.StatusDelivered
	m.DeliveredAt = &deliveredAt
	return nil
}

func (s *fakeStore) Cancel(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return domain.ErrMessageNotFound
	}
	if m.Status != domain.StatusScheduled && m.Status != domain.StatusQueued {
		return domain.ErrNotCancelable
	}
	m.Status = domain.StatusCanceled
	m.UpdatedAt = time.Now()
	return nil
}

func (s *fakeStore) UpdateScheduled(ctx context.Context, id int64, content, phoneNumber *string, scheduledFor *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return domain.ErrMessageNotFound
	}
	if m.Status != domain.StatusScheduled {
		return domain.ErrNotEditable
	}
	if content != nil {
		m.Content = *content
	}
	if phoneNumber != nil {
		m.PhoneNumber = *phoneNumber
	}
	if scheduledFor != nil {
		m.ScheduledFor = scheduledFor
	}
	return nil
}

func (s *fakeStore) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	copy := *m
	return &copy, nil
}

func (s *fakeStore) GetByExternalID(ctx context.Context, externalID string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.ExternalID == externalID {
			copy := *m
			return &copy, nil
		}
	}
	return nil, domain.ErrMessageNotFound
}

func (s *fakeStore) GetByBatch(ctx context.Context, batchID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Message
	for _, m := range s.messages {
		if m.BatchID != nil && *m.BatchID == batchID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) GetBatchStats(ctx context.Context, batchID string, maxErrors int) (*domain.BatchProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	progress := &domain.BatchProgress{BatchID: batchID}
	var lastTerminal time.Time
	for _, m := range s.messages {
		if m.BatchID == nil || *m.BatchID != batchID {
			continue
		}
		progress.TotalRecipients++
		if progress.StartedAt.IsZero() || m.CreatedAt.Before(progress.StartedAt) {
			progress.StartedAt = m.CreatedAt
		}
		switch m.Status {
		case domain.StatusQueued:
			progress.QueuedCount++
		case domain.StatusSent, domain.StatusDelivered:
			progress.SentCount++
		case domain.StatusFailed:
			progress.FailedCount++
			if len(progress.Errors) < maxErrors && m.ErrorMessage != nil {
				progress.Errors = append(progress.Errors, m.PhoneNumber+": "+*m.ErrorMessage)
			}
		case domain.StatusCanceled:
			progress.CanceledCount++
		}
		if m.IsTerminal() && m.UpdatedAt.After(lastTerminal) {
			lastTerminal = m.UpdatedAt
		}
	}
	terminal := progress.SentCount + progress.FailedCount + progress.CanceledCount
	if progress.TotalRecipients > 0 && terminal == progress.TotalRecipients && !lastTerminal.IsZero() {
		progress.CompletedAt = &lastTerminal
	}
	progress.Status = progress.DeriveStatus()
	return progress, nil
}

func (s *fakeStore) CancelBatchQueued(ctx context.Context, batchID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, m := range s.messages {
		if m.BatchID != nil && *m.BatchID == batchID && m.Status == domain.StatusQueued {
			m.Status = domain.StatusCanceled
			m.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) GetAll(ctx context.Context, status *domain.MessageStatus, page, pageSize int) ([]domain.Message, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Message
	for _, m := range s.messages {
		if status != nil && m.Status != *status {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (s *fakeStore) GetStats(ctx context.Context) (*domain.MessageStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &domain.MessageStats{}
	for _, m := range s.messages {
		switch m.Status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusScheduled:
			stats.Scheduled++
		case domain.StatusQueued:
			stats.Queued++
		case domain.StatusSent:
			stats.Sent++
		case domain.StatusDelivered:
			stats.Delivered++
		case domain.StatusFailed:
			stats.Failed++
		case domain.StatusCanceled:
			stats.Canceled++
		}
	}
	return stats, nil
}

func (s *fakeStore) CountByStatus(ctx context.Context, status domain.MessageStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, m := range s.messages {
		if m.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) ReplayFailedByID(ctx context.Context, id int64, maxRetries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok || m.Status != domain.StatusFailed {
		return fmt.Errorf("no failed message with id %d", id)
	}
	if m.RetryCount >= maxRetries {
		return domain.ErrRetriesExhausted
	}
	m.Status = domain.StatusPending
	return nil
}

func (s *fakeStore) ReplayAllFailed(ctx context.Context, maxRetries int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, m := range s.messages {
		if m.Status == domain.StatusFailed && m.RetryCount < maxRetries {
			m.Status = domain.StatusPending
			n++
		}
	}
	return n, nil
}

//
// Provider, cache and sync fakes.
//

type fakeGateway struct {
	mu         sync.Mutex
	sends      []sentCall
	failPhones map[string]bool
	panicPhone string
	counter    int
}

type sentCall struct {
	phone   string
	content string
	at      time.Time
}

func (g *fakeGateway) Send(ctx context.Context, phoneNumber, content string) (*domain.GatewayResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.panicPhone != "" && phoneNumber == g.panicPhone {
		panic("simulated provider panic")
	}
	if g.failPhones[phoneNumber] {
		return nil, fmt.Errorf("simulated provider error")
	}

	g.sends = append(g.sends, sentCall{phone: phoneNumber, content: content, at: time.Now()})
	g.counter++
	return &domain.GatewayResponse{
		Message:   "Accepted",
		MessageID: fmt.Sprintf("prov-%d", g.counter),
	}, nil
}

func (g *fakeGateway) sendCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sends)
}

func (g *fakeGateway) sentCalls() []sentCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]sentCall, len(g.sends))
	copy(out, g.sends)
	return out
}

type fakeCache struct {
	mu       sync.Mutex
	sent     map[string]*domain.SentMessageCache
	progress map[string]*domain.BatchProgress
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		sent:     make(map[string]*domain.SentMessageCache),
		progress: make(map[string]*domain.BatchProgress),
	}
}

func (c *fakeCache) CacheSentMessage(ctx context.Context, externalID, providerMessageID string, sentAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent[externalID] = &domain.SentMessageCache{ProviderMessageID: providerMessageID, SentAt: sentAt}
	return nil
}

func (c *fakeCache) GetAllCachedMessages(ctx context.Context) (map[string]*domain.SentMessageCache, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]*domain.SentMessageCache, len(c.sent))
	for k, v := range c.sent {
		out[k] = v
	}
	return out, nil
}

func (c *fakeCache) CacheBatchProgress(ctx context.Context, progress *domain.BatchProgress) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress[progress.BatchID] = progress
	return nil
}

func (c *fakeCache) GetBatchProgress(ctx context.Context, batchID string) (*domain.BatchProgress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress[batchID], nil
}

type fakeSync struct {
	mu      sync.Mutex
	pending []domain.RemoteMessage
	fetches int
	updates []domain.StatusUpdate
}

func (c *fakeSync) FetchPending(ctx context.Context) ([]domain.RemoteMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetches++
	return c.pending, nil
}

func (c *fakeSync) NotifyStatus(ctx context.Context, update domain.StatusUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, update)
	return nil
}

// waitFor polls cond until it is true or the timeout passes. The bulk worker
// runs on its own goroutine, so tests need a little patience.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
