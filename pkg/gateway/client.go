// Package gateway is the Send Capability: it delivers one text to one number
// through the HTTP SMS provider and reports success or failure. Retry and
// scheduling policy live in the dispatch service, not here; the client only
// retries transport-level hiccups within its own timeout budget.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/smsbramka/sms-gateway/environments"
	"github.com/smsbramka/sms-gateway/internal/domain"
	"github.com/smsbramka/sms-gateway/pkg/logger"
)

type sendRequest struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

type Client struct {
	httpClient *resty.Client
	url        string
}

func NewClient(cfg environments.GatewayConfig) *Client {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("x-sms-auth-key", cfg.AuthKey)

	return &Client{
		httpClient: client,
		url:        cfg.URL,
	}
}

// Send blocks until the provider accepts or rejects the message. The caller
// bounds it through ctx.
func (c *Client) Send(ctx context.Context, phoneNumber, content string) (*domain.GatewayResponse, error) {
	payload := sendRequest{
		To:      phoneNumber,
		Content: content,
	}

	var gatewayResp domain.GatewayResponse

	startTime := time.Now()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&gatewayResp).
		Post(c.url)

	duration := time.Since(startTime)

	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	logger.Debugf("Provider request to %s completed in %v (status: %d)", c.url, duration, resp.StatusCode())

	if resp.StatusCode() != http.StatusAccepted && resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("provider rejected message: status %d, body: %s", resp.StatusCode(), resp.String())
	}

	return &gatewayResp, nil
}

func (c *Client) URL() string {
	return c.url
}
