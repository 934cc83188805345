// Package webhook is the HTTP transport for webhook deliveries.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	whsvc "github.com/amirasaad/tenantledger/pkg/service/webhook"
)

// Headers set on every delivery. The receiver checks HeaderSecret against
// the secret it registered.
const (
	HeaderSecret  = "X-Webhook-Secret"
	HeaderEvent   = "X-Webhook-Event"
	HeaderEventID = "X-Webhook-Event-Id"
	HeaderAttempt = "X-Webhook-Attempt"
)

const maxDrainBytes = 64 << 10

// HTTPSender posts deliveries with a bounded per-request timeout.
type HTTPSender struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPSender returns a sender whose requests give up after timeout.
func NewHTTPSender(timeout time.Duration, logger *slog.Logger) *HTTPSender {
	return &HTTPSender{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (s *HTTPSender) Send(ctx context.Context, d whsvc.Delivery) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return 0, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "tenantledger-webhooks/1")
	req.Header.Set(HeaderSecret, d.Secret)
	req.Header.Set(HeaderEvent, string(d.EventType))
	req.Header.Set(HeaderEventID, d.EventID.String())
	req.Header.Set(HeaderAttempt, strconv.Itoa(d.Attempt))

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		if err := resp.Body.Close(); err != nil {
			s.logger.Warn("Failed to close webhook response body", "error", err)
		}
	}()
	return resp.StatusCode, nil
}
