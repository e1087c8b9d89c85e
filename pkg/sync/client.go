// Package sync talks to the optional remote backend: it pulls messages the
// backend wants sent and pushes status updates back. Both directions are
// simple bearer-authenticated JSON; a sync outage never blocks local
// dispatch.
package sync

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/smsbramka/sms-gateway/environments"
	"github.com/smsbramka/sms-gateway/internal/domain"
)

type Client struct {
	httpClient *resty.Client
	baseURL    string
}

func NewClient(cfg environments.SyncConfig) *Client {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetAuthToken(cfg.APIKey)

	return &Client{
		httpClient: client,
		baseURL:    cfg.BaseURL,
	}
}

// FetchPending pulls the backend's queue of messages awaiting dispatch.
func (c *Client) FetchPending(ctx context.Context) ([]domain.RemoteMessage, error) {
	var pending []domain.RemoteMessage

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&pending).
		Get(c.baseURL + "/sms/pending")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending messages: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status fetching pending messages: %d", resp.StatusCode())
	}

	return pending, nil
}

// NotifyStatus pushes one status transition to the backend.
func (c *Client) NotifyStatus(ctx context.Context, update domain.StatusUpdate) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(update).
		Post(c.baseURL + "/sms/status")
	if err != nil {
		return fmt.Errorf("failed to push status update: %w", err)
	}

	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusNoContent {
		return fmt.Errorf("unexpected status pushing update: %d", resp.StatusCode())
	}

	return nil
}
