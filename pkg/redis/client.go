package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/smsbramka/sms-gateway/environments"
	"github.com/smsbramka/sms-gateway/internal/domain"
	"github.com/smsbramka/sms-gateway/pkg/logger"
)

type Client struct {
	client valkey.Client
}

const (
	sentMessageKeyPrefix   = "sent_sms:"
	batchProgressKeyPrefix = "batch_progress:"
	sentMessageTTL         = 24 * time.Hour
	batchProgressTTL       = 24 * time.Hour
)

func NewClient(cfg environments.RedisConfig) (*Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Infof("Connected to Redis (via Valkey client)")

	return &Client{client: client}, nil
}

// CacheBatchProgress replaces the whole cached snapshot for one batch. The
// snapshot is only ever swapped wholesale so a reader can never observe a
// half-updated aggregate.
func (c *Client) CacheBatchProgress(ctx context.Context, progress *domain.BatchProgress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to marshal batch progress: %w", err)
	}

	key := batchProgressKeyPrefix + progress.BatchID
	err = c.client.Do(ctx, c.client.B().Set().Key(key).Value(string(data)).Ex(batchProgressTTL).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to cache batch progress: %w", err)
	}

	return nil
}

func (c *Client) GetBatchProgress(ctx context.Context, batchID string) (*domain.BatchProgress, error) {
	key := batchProgressKeyPrefix + batchID

	result := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	if result.Error() != nil {
		if valkey.IsValkeyNil(result.Error()) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached batch progress: %w", result.Error())
	}

	data, err := result.ToString()
	if err != nil {
		return nil, fmt.Errorf("failed to read cached batch progress: %w", err)
	}

	var progress domain.BatchProgress
	if err := json.Unmarshal([]byte(data), &progress); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch progress: %w", err)
	}

	return &progress, nil
}

func (c *Client) CacheSentMessage(ctx context.Context, externalID, providerMessageID string, sentAt time.Time) error {
	cache := domain.SentMessageCache{
		ProviderMessageID: providerMessageID,
		SentAt:            sentAt,
	}

	data, err := json.Marshal(cache)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	key := sentMessageKeyPrefix + externalID
	err = c.client.Do(ctx, c.client.B().Set().Key(key).Value(string(data)).Ex(sentMessageTTL).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to cache sent message: %w", err)
	}

	logger.Debugf("Cached sent message %s -> %s", externalID, providerMessageID)

	return nil
}

// GetAllCachedMessages scans the sent-message keys for the diagnostics view.
func (c *Client) GetAllCachedMessages(ctx context.Context) (map[string]*domain.SentMessageCache, error) {
	pattern := sentMessageKeyPrefix + "*"

	var keys []string
	var cursor uint64
	for {
		result := c.client.Do(ctx, c.client.B().Scan().Cursor(cursor).Match(pattern).Count(100).Build())
		if result.Error() != nil {
			return nil, fmt.Errorf("failed to scan cache keys: %w", result.Error())
		}

		scanResult, err := result.AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("failed to parse scan result: %w", err)
		}

		keys = append(keys, scanResult.Elements...)
		cursor = scanResult.Cursor

		if cursor == 0 {
			break
		}
	}

	out := make(map[string]*domain.SentMessageCache)

	for _, key := range keys {
		getResult := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
		if getResult.Error() != nil {
			continue
		}

		data, err := getResult.ToString()
		if err != nil {
			continue
		}

		var cache domain.SentMessageCache
		if err := json.Unmarshal([]byte(data), &cache); err != nil {
			continue
		}

		out[strings.TrimPrefix(key, sentMessageKeyPrefix)] = &cache
	}

	return out, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

func (c *Client) Close() error {
	c.client.Close()
	return nil
}
