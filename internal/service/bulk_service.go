package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smsbramka/sms-gateway/environments"
	"github.com/smsbramka/sms-gateway/internal/domain"
	"github.com/smsbramka/sms-gateway/pkg/logger"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

// ErrNoValidRecipients is returned when a bulk request contains no recipient
// that survives normalization and validation.
var ErrNoValidRecipients = fmt.Errorf("no valid recipients in batch")

// BulkService fans a single message body out to many recipients. The batch
// is persisted up front as individual queued messages, then a background
// worker walks them in chunks with a pacing delay so the provider is not
// slammed with the whole batch at once.
type BulkService struct {
	repo    messageRepository
	gateway gatewayClient
	cache   Cache
	config  environments.BulkConfig
	msgCfg  environments.MessageConfig

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewBulkService(
	repo messageRepository,
	gateway gatewayClient,
	cache Cache,
	config environments.BulkConfig,
	msgCfg environments.MessageConfig,
) *BulkService {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 10
	}
	if config.PacingDelay <= 0 {
		config.PacingDelay = 500 * time.Millisecond
	}
	if config.MaxTrackedErrors <= 0 {
		config.MaxTrackedErrors = 50
	}
	if msgCfg.PerMessageTimeout <= 0 {
		msgCfg.PerMessageTimeout = 15 * time.Second
	}

	return &BulkService{
		repo:    repo,
		gateway: gateway,
		cache:   cache,
		config:  config,
		msgCfg:  msgCfg,
		cancels: make(map[string]context.CancelFunc),
	}
}

// CreateBatch validates and persists a bulk send, then kicks off background
// processing. Duplicate recipients are collapsed keeping first occurrence;
// recipients failing the phone format are dropped. The receipt reflects what
// was actually queued. A non-positive pacingDelay or chunkSize falls back to
// the configured default.
func (s *BulkService) CreateBatch(
	ctx context.Context,
	recipients []string,
	content string,
	batchID string,
	pacingDelay time.Duration,
	chunkSize int,
) (*domain.BatchReceipt, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}
	if s.msgCfg.MaxContentLength > 0 && len(content) > s.msgCfg.MaxContentLength {
		return nil, fmt.Errorf("content exceeds maximum length of %d characters", s.msgCfg.MaxContentLength)
	}

	valid := normalizeRecipients(recipients)
	if len(valid) == 0 {
		return nil, ErrNoValidRecipients
	}

	if pacingDelay <= 0 {
		pacingDelay = s.config.PacingDelay
	}
	if chunkSize <= 0 {
		chunkSize = s.config.ChunkSize
	}

	if batchID == "" {
		batchID = uuid.NewString()
	}

	messages := make([]domain.Message, 0, len(valid))
	for _, phone := range valid {
		messages = append(messages, domain.Message{
			ExternalID:  uuid.NewString(),
			PhoneNumber: phone,
			Content:     content,
			Status:      domain.StatusQueued,
			Priority:    domain.DefaultPriority,
			BatchID:     &batchID,
		})
	}

	if err := s.repo.CreateBatch(ctx, messages); err != nil {
		return nil, fmt.Errorf("failed to persist batch: %w", err)
	}

	s.snapshotProgress(ctx, batchID)

	workerCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[batchID] = cancel
	s.mu.Unlock()

	go s.processBatch(workerCtx, batchID, pacingDelay, chunkSize)

	estimated := time.Duration(len(valid)) * pacingDelay
	minutes := int(estimated.Minutes())
	if minutes < 1 {
		minutes = 1
	}

	logger.Infof("Created batch %s with %d recipients (%d dropped)", batchID, len(valid), len(recipients)-len(valid))

	return &domain.BatchReceipt{
		BatchID:                  batchID,
		TotalRecipients:          len(recipients),
		QueuedCount:              len(valid),
		Status:                   domain.BatchQueued,
		EstimatedDurationMinutes: minutes,
	}, nil
}

// normalizeRecipients trims, validates and dedupes, preserving order of
// first occurrence.
func normalizeRecipients(recipients []string) []string {
	seen := make(map[string]struct{}, len(recipients))
	valid := make([]string, 0, len(recipients))

	for _, r := range recipients {
		phone := strings.TrimSpace(r)
		if phone == "" || !phonePattern.MatchString(phone) {
			continue
		}
		if _, dup := seen[phone]; dup {
			continue
		}
		seen[phone] = struct{}{}
		valid = append(valid, phone)
	}

	return valid
}

// processBatch walks the batch's queued messages one by one, waiting the
// pacing delay between every pair of sends; chunks only mark where progress
// is snapshotted to cache. Cancellation stops between sends, never mid-send.
func (s *BulkService) processBatch(ctx context.Context, batchID string, pacingDelay time.Duration, chunkSize int) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Panic processing batch %s: %v", batchID, r)
		}
		s.mu.Lock()
		delete(s.cancels, batchID)
		s.mu.Unlock()
	}()

	bg := context.Background()

	messages, err := s.repo.GetByBatch(bg, batchID)
	if err != nil {
		logger.Errorf("Failed to load batch %s: %v", batchID, err)
		return
	}

	logger.Infof("Processing batch %s (%d messages)", batchID, len(messages))

	sent := 0
	for i := range messages {
		msg := &messages[i]
		if msg.Status != domain.StatusQueued {
			continue
		}

		if sent > 0 {
			select {
			case <-ctx.Done():
				logger.Infof("Batch %s canceled after %d sends", batchID, sent)
				s.snapshotProgress(bg, batchID)
				return
			case <-time.After(pacingDelay):
			}
		}

		select {
		case <-ctx.Done():
			logger.Infof("Batch %s canceled after %d sends", batchID, sent)
			s.snapshotProgress(bg, batchID)
			return
		default:
		}

		s.sendBatchMessage(bg, msg)
		sent++

		if sent%chunkSize == 0 {
			s.snapshotProgress(bg, batchID)
		}
	}

	s.snapshotProgress(bg, batchID)
	logger.Infof("Batch %s completed (%d messages attempted)", batchID, sent)
}

// sendBatchMessage attempts one batch message and records the outcome in the
// store. The worker iterates a snapshot, so the row's current status is
// re-read just before sending; a message canceled since the snapshot is
// never sent, and a cancel landing mid-send keeps its canceled state because
// MarkAsSent refuses non-queued rows. Failures stay inside the batch; a
// panic is contained to this message.
func (s *BulkService) sendBatchMessage(ctx context.Context, msg *domain.Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Panic sending batch message %d: %v", msg.ID, r)
			if err := s.repo.MarkAsFailed(ctx, msg.ID, fmt.Sprintf("dispatch panic: %v", r)); err != nil {
				logger.Errorf("Failed to persist failure for message %d: %v", msg.ID, err)
			}
		}
	}()

	current, err := s.repo.GetByID(ctx, msg.ID)
	if err != nil {
		logger.Errorf("Failed to re-read batch message %d: %v", msg.ID, err)
		return
	}
	if current.Status != domain.StatusQueued {
		logger.Debugf("Batch message %d no longer queued (%s), skipping", msg.ID, current.Status)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.msgCfg.PerMessageTimeout)
	defer cancel()

	resp, err := s.gateway.Send(sendCtx, msg.PhoneNumber, msg.Content)
	if err != nil {
		logger.Warnf("Failed to send batch message %d to %s: %v", msg.ID, msg.PhoneNumber, err)
		if markErr := s.repo.MarkAsFailed(ctx, msg.ID, err.Error()); markErr != nil {
			logger.Errorf("Failed to persist failure for message %d: %v", msg.ID, markErr)
		}
		return
	}

	sentAt := time.Now()
	if err := s.repo.MarkAsSent(ctx, msg.ID, resp.MessageID, sentAt); err != nil {
		if err == domain.ErrNotQueued {
			logger.Infof("Batch message %d was canceled during send, keeping canceled state", msg.ID)
		} else {
			logger.Errorf("Failed to persist sent status for message %d: %v", msg.ID, err)
		}
		return
	}

	if s.cache != nil {
		if err := s.cache.CacheSentMessage(ctx, msg.ExternalID, resp.MessageID, sentAt); err != nil {
			logger.Warnf("Failed to cache sent batch message %d: %v", msg.ID, err)
		}
	}
}

// CancelBatch stops the background worker and cancels every message of the
// batch that has not already reached a terminal state. Messages already sent
// stay sent.
func (s *BulkService) CancelBatch(ctx context.Context, batchID string) (int64, error) {
	s.mu.Lock()
	cancel, running := s.cancels[batchID]
	s.mu.Unlock()

	if running {
		cancel()
	}

	canceled, err := s.repo.CancelBatchQueued(ctx, batchID)
	if err != nil {
		return 0, err
	}
	if canceled == 0 && !running {
		// Nothing left to cancel; make sure the batch exists at all.
		progress, statErr := s.repo.GetBatchStats(ctx, batchID, s.config.MaxTrackedErrors)
		if statErr != nil {
			return 0, statErr
		}
		if progress.TotalRecipients == 0 {
			return 0, domain.ErrMessageNotFound
		}
	}

	s.snapshotProgress(ctx, batchID)

	logger.Infof("Canceled batch %s (%d messages)", batchID, canceled)

	return canceled, nil
}

// GetProgress returns the batch's progress, served from the cached snapshot
// when present and recomputed from the store otherwise.
func (s *BulkService) GetProgress(ctx context.Context, batchID string) (*domain.BatchProgress, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetBatchProgress(ctx, batchID); err == nil && cached != nil {
			return cached, nil
		}
	}
	return s.GetDetailedProgress(ctx, batchID)
}

// GetDetailedProgress always recomputes progress from the store.
func (s *BulkService) GetDetailedProgress(ctx context.Context, batchID string) (*domain.BatchProgress, error) {
	progress, err := s.repo.GetBatchStats(ctx, batchID, s.config.MaxTrackedErrors)
	if err != nil {
		return nil, err
	}
	if progress.TotalRecipients == 0 {
		return nil, domain.ErrMessageNotFound
	}
	return progress, nil
}

// snapshotProgress recomputes progress from the store and caches it.
// Best-effort: the store remains the source of truth.
func (s *BulkService) snapshotProgress(ctx context.Context, batchID string) {
	if s.cache == nil {
		return
	}

	progress, err := s.repo.GetBatchStats(ctx, batchID, s.config.MaxTrackedErrors)
	if err != nil {
		logger.Warnf("Failed to compute progress for batch %s: %v", batchID, err)
		return
	}

	if err := s.cache.CacheBatchProgress(ctx, progress); err != nil {
		logger.Warnf("Failed to cache progress for batch %s: %v", batchID, err)
	}
}

// IsProcessing reports whether a background worker is still running for the
// batch.
func (s *BulkService) IsProcessing(batchID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cancels[batchID]
	return ok
}
