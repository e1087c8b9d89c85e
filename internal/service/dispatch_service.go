package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smsbramka/sms-gateway/environments"
	"github.com/smsbramka/sms-gateway/internal/domain"
	"github.com/smsbramka/sms-gateway/pkg/logger"
)

// Small internal interfaces so the services can be tested without a real
// DB, Redis or provider.
type messageRepository interface {
	Create(ctx context.Context, m *domain.Message) (*domain.Message, error)
	CreateBatch(ctx context.Context, msgs []domain.Message) error
	GetDue(ctx context.Context, now time.Time, limit int) ([]domain.Message, error)
	Claim(ctx context.Context, id int64) (bool, error)
	MarkAsSent(ctx context.Context, id int64, providerMessageID string, sentAt time.Time) error
	MarkAsFailed(ctx context.Context, id int64, reason string) error
	MarkAsDelivered(ctx context.Context, id int64, deliveredAt time.Time) error
	Cancel(ctx context.Context, id int64) error
	UpdateScheduled(ctx context.Context, id int64, content, phoneNumber *string, scheduledFor *time.Time) error

	GetByID(ctx context.Context, id int64) (*domain.Message, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.Message, error)
	GetByBatch(ctx context.Context, batchID string) ([]domain.Message, error)
	GetBatchStats(ctx context.Context, batchID string, maxErrors int) (*domain.BatchProgress, error)
	CancelBatchQueued(ctx context.Context, batchID string) (int64, error)
	GetAll(ctx context.Context, status *domain.MessageStatus, page, pageSize int) ([]domain.Message, int64, error)
	GetStats(ctx context.Context) (*domain.MessageStats, error)
	CountByStatus(ctx context.Context, status domain.MessageStatus) (int64, error)

	ReplayFailedByID(ctx context.Context, id int64, maxRetries int) error
	ReplayAllFailed(ctx context.Context, maxRetries int) (int64, error)
}

type gatewayClient interface {
	Send(ctx context.Context, phoneNumber, content string) (*domain.GatewayResponse, error)
}

// SyncBackend and Cache are exported so main can leave them nil when the
// remote backend or Redis is not configured.
type SyncBackend interface {
	FetchPending(ctx context.Context) ([]domain.RemoteMessage, error)
	NotifyStatus(ctx context.Context, update domain.StatusUpdate) error
}

type Cache interface {
	CacheSentMessage(ctx context.Context, externalID, providerMessageID string, sentAt time.Time) error
	GetAllCachedMessages(ctx context.Context) (map[string]*domain.SentMessageCache, error)
	CacheBatchProgress(ctx context.Context, progress *domain.BatchProgress) error
	GetBatchProgress(ctx context.Context, batchID string) (*domain.BatchProgress, error)
}

// DispatchService drives due messages through a send attempt and reconciles
// the stored record with the outcome. It never holds a message copy across
// a send; every mutation goes through the repository's atomic updates.
type DispatchService struct {
	repo       messageRepository
	gateway    gatewayClient
	syncClient SyncBackend // nil when remote sync is not configured
	cache      Cache       // nil when Redis is unavailable
	config     environments.MessageConfig
}

func NewDispatchService(
	repo messageRepository,
	gateway gatewayClient,
	syncClient SyncBackend,
	cache Cache,
	config environments.MessageConfig,
) *DispatchService {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.PerMessageTimeout <= 0 {
		config.PerMessageTimeout = 15 * time.Second
	}

	return &DispatchService{
		repo:       repo,
		gateway:    gateway,
		syncClient: syncClient,
		cache:      cache,
		config:     config,
	}
}

// ProcessDue runs one dispatch pass: scan for due messages, claim each one,
// attempt the send and record the outcome. Send failures are expected and
// stay inside their message's result; repository failures abort the rest of
// the pass and surface to the caller.
//
// A concurrent pass is safe: claiming flips the row to queued atomically, so
// whichever pass loses the claim simply skips the message.
func (s *DispatchService) ProcessDue(ctx context.Context) ([]domain.SendResult, error) {
	messages, err := s.repo.GetDue(ctx, time.Now(), s.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get due messages: %w", err)
	}

	if len(messages) == 0 {
		logger.Debugf("No due messages to process")
		return nil, nil
	}

	logger.Infof("Processing %d due messages", len(messages))

	results := make([]domain.SendResult, 0, len(messages))

	for i := range messages {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		msg := &messages[i]

		claimed, err := s.repo.Claim(ctx, msg.ID)
		if err != nil {
			return results, fmt.Errorf("failed to claim message %d: %w", msg.ID, err)
		}
		if !claimed {
			// Another pass got there first.
			logger.Debugf("Message %d already claimed, skipping", msg.ID)
			continue
		}

		result, storeErr := s.dispatchOne(ctx, msg)
		results = append(results, result)
		if storeErr != nil {
			return results, storeErr
		}
	}

	return results, nil
}

// dispatchOne sends a single claimed message and persists the outcome. The
// returned error is non-nil only for repository failures; a failed send is
// reported through the result. A panic anywhere in the attempt is contained
// to this message and recorded as its failure.
func (s *DispatchService) dispatchOne(ctx context.Context, msg *domain.Message) (result domain.SendResult, storeErr error) {
	result = domain.SendResult{
		MessageDBID: msg.ID,
		SentAt:      time.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Panic while dispatching message %d: %v", msg.ID, r)
			result.Success = false
			result.Error = fmt.Errorf("dispatch panic: %v", r)
			storeErr = s.repo.MarkAsFailed(ctx, msg.ID, fmt.Sprintf("dispatch panic: %v", r))
		}
	}()

	content := msg.Content
	if s.config.MaxContentLength > 0 && len(content) > s.config.MaxContentLength {
		logger.Warnf("Message %d exceeds max content length (%d > %d), truncating",
			msg.ID, len(content), s.config.MaxContentLength)

		ellipsis := "..."
		max := s.config.MaxContentLength
		if max > len(ellipsis) {
			content = content[:max-len(ellipsis)] + ellipsis
		} else {
			content = content[:max]
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.config.PerMessageTimeout)
	defer cancel()

	resp, err := s.gateway.Send(sendCtx, msg.PhoneNumber, content)
	if err != nil {
		logger.Errorf("Failed to send message %d: %v", msg.ID, err)
		result.Success = false
		result.Error = err

		if markErr := s.repo.MarkAsFailed(ctx, msg.ID, err.Error()); markErr != nil {
			return result, fmt.Errorf("failed to persist failure for message %d: %w", msg.ID, markErr)
		}

		s.notifyStatus(msg.ExternalID, domain.StatusFailed, result.SentAt, err.Error())
		return result, nil
	}

	if err := s.repo.MarkAsSent(ctx, msg.ID, resp.MessageID, result.SentAt); err != nil {
		if err == domain.ErrNotQueued {
			// Canceled while the send was in flight; the row stays canceled.
			logger.Infof("Message %d was canceled during send, keeping canceled state", msg.ID)
			result.Success = false
			result.Error = err
			return result, nil
		}
		result.Success = false
		result.Error = err
		return result, fmt.Errorf("failed to persist sent status for message %d: %w", msg.ID, err)
	}

	if s.cache != nil {
		if err := s.cache.CacheSentMessage(ctx, msg.ExternalID, resp.MessageID, result.SentAt); err != nil {
			logger.Warnf("Failed to cache sent message %d: %v", msg.ID, err)
		}
	}

	s.notifyStatus(msg.ExternalID, domain.StatusSent, result.SentAt, "")

	logger.Infof("Successfully sent message %d (providerMessageId: %s)", msg.ID, resp.MessageID)

	result.Success = true
	result.ProviderMessageID = resp.MessageID

	return result, nil
}

// notifyStatus pushes a status transition to the remote backend without
// waiting for it. Local state has already been committed; a lost
// notification is the backend's problem to reconcile on its next pull.
func (s *DispatchService) notifyStatus(externalID string, status domain.MessageStatus, ts time.Time, errMsg string) {
	if s.syncClient == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		update := domain.StatusUpdate{
			ExternalID:   externalID,
			Status:       status,
			Timestamp:    ts,
			ErrorMessage: errMsg,
		}
		if err := s.syncClient.NotifyStatus(ctx, update); err != nil {
			logger.Warnf("Failed to push status update for %s: %v", externalID, err)
		}
	}()
}

// CreateMessage validates and stores a new outbound message. A future
// scheduled time puts it in scheduled; anything else is pending and goes
// out on the next dispatch pass.
func (s *DispatchService) CreateMessage(
	ctx context.Context,
	content, phoneNumber string,
	scheduledFor *time.Time,
	priority int,
) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	phoneNumber = strings.TrimSpace(phoneNumber)

	if phoneNumber == "" {
		return nil, domain.ErrEmptyRecipient
	}
	if content == "" {
		return nil, domain.ErrEmptyContent
	}
	if s.config.MaxContentLength > 0 && len(content) > s.config.MaxContentLength {
		return nil, fmt.Errorf("content exceeds maximum length of %d characters", s.config.MaxContentLength)
	}

	status := domain.StatusPending
	if scheduledFor != nil && scheduledFor.After(time.Now()) {
		status = domain.StatusScheduled
	}

	if priority <= 0 {
		priority = domain.DefaultPriority
	}

	msg := &domain.Message{
		ExternalID:   uuid.NewString(),
		PhoneNumber:  phoneNumber,
		Content:      content,
		Status:       status,
		Priority:     priority,
		ScheduledFor: scheduledFor,
	}

	return s.repo.Create(ctx, msg)
}

// CancelMessage cancels a scheduled message; canceling a queued one is
// accepted best-effort, an in-flight send wins the race.
func (s *DispatchService) CancelMessage(ctx context.Context, id int64) error {
	return s.repo.Cancel(ctx, id)
}

// UpdateScheduledMessage edits a still-scheduled message. A new scheduled
// time must be in the future.
func (s *DispatchService) UpdateScheduledMessage(
	ctx context.Context,
	id int64,
	content, phoneNumber *string,
	scheduledFor *time.Time,
) error {
	if scheduledFor != nil && !scheduledFor.After(time.Now()) {
		return fmt.Errorf("scheduled time must be in the future")
	}
	return s.repo.UpdateScheduled(ctx, id, content, phoneNumber, scheduledFor)
}

// MarkDelivered applies an external delivery receipt. The pipeline itself
// never produces delivered; this is the only way in.
func (s *DispatchService) MarkDelivered(ctx context.Context, id int64) error {
	now := time.Now()
	if err := s.repo.MarkAsDelivered(ctx, id, now); err != nil {
		return err
	}

	if msg, err := s.repo.GetByID(ctx, id); err == nil {
		s.notifyStatus(msg.ExternalID, domain.StatusDelivered, now, "")
	}

	return nil
}

// ImportPending pulls messages the remote backend wants sent and inserts the
// ones not seen before. Remote IDs become external IDs so repeated pulls
// stay idempotent.
func (s *DispatchService) ImportPending(ctx context.Context) (int, error) {
	if s.syncClient == nil {
		return 0, nil
	}

	pending, err := s.syncClient.FetchPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pending messages: %w", err)
	}

	inserted := 0
	for _, rm := range pending {
		externalID := fmt.Sprintf("remote-%d", rm.ID)

		if _, err := s.repo.GetByExternalID(ctx, externalID); err == nil {
			continue
		} else if err != domain.ErrMessageNotFound {
			return inserted, err
		}

		status := domain.StatusPending
		if rm.ScheduledAt != nil && rm.ScheduledAt.After(time.Now()) {
			status = domain.StatusScheduled
		}

		priority := rm.Priority
		if priority <= 0 {
			priority = domain.DefaultPriority
		}

		msg := &domain.Message{
			ExternalID:   externalID,
			PhoneNumber:  rm.PhoneNumber,
			Content:      rm.Message,
			Status:       status,
			Priority:     priority,
			ScheduledFor: rm.ScheduledAt,
		}
		if _, err := s.repo.Create(ctx, msg); err != nil {
			return inserted, fmt.Errorf("failed to import remote message %d: %w", rm.ID, err)
		}
		inserted++
	}

	if inserted > 0 {
		logger.Infof("Imported %d new messages from remote backend", inserted)
	}

	return inserted, nil
}

func (s *DispatchService) ReplayFailedMessage(ctx context.Context, id int64) error {
	return s.repo.ReplayFailedByID(ctx, id, s.config.MaxRetries)
}

func (s *DispatchService) ReplayAllFailedMessages(ctx context.Context) (int64, error) {
	return s.repo.ReplayAllFailed(ctx, s.config.MaxRetries)
}

func (s *DispatchService) GetMessage(ctx context.Context, id int64) (*domain.Message, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *DispatchService) GetAllMessages(
	ctx context.Context,
	status *domain.MessageStatus,
	page, pageSize int,
) ([]domain.Message, int64, error) {
	return s.repo.GetAll(ctx, status, page, pageSize)
}

func (s *DispatchService) GetStats(ctx context.Context) (*domain.MessageStats, error) {
	return s.repo.GetStats(ctx)
}

func (s *DispatchService) GetCachedMessages(ctx context.Context) (map[string]*domain.SentMessageCache, error) {
	if s.cache == nil {
		return nil, fmt.Errorf("cache not configured")
	}
	return s.cache.GetAllCachedMessages(ctx)
}
