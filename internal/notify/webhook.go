// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// Webhook request headers.
const (
	HeaderSignature = "X-Socmon-Signature"
	HeaderEvent     = "X-Socmon-Event"
	HeaderDelivery  = "X-Socmon-Delivery"

	userAgent      = "socmon-webhook/1.0"
	maxResponseLen = 1024
)

// WebhookConfig configures a WebhookSink.
type WebhookConfig struct {
	URL        string
	Secret     string
	Timeout    time.Duration
	MaxRetries uint64
	Backoff    time.Duration // first retry delay, doubled each time
}

// WebhookSink POSTs events as JSON signed with HMAC-SHA256.
type WebhookSink struct {
	cfg    WebhookConfig
	client *http.Client
}

// NewWebhookSink creates a WebhookSink.
func NewWebhookSink(cfg WebhookConfig) *WebhookSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	return &WebhookSink{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Name implements Sink.
func (s *WebhookSink) Name() string { return "webhook" }

// Send implements Sink. Network errors, 408, 429 and 5xx are retried.
func (s *WebhookSink) Send(ctx context.Context, event Event, payload []byte) error {
	backoff := retry.WithMaxRetries(s.cfg.MaxRetries, retry.NewExponential(s.cfg.Backoff))
	signature := GenerateSignature(payload, s.cfg.Secret)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set(HeaderSignature, signature)
		req.Header.Set(HeaderEvent, event.Type)
		req.Header.Set(HeaderDelivery, event.ID)

		resp, err := s.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("request failed: %w", err))
		}
		defer func() { _ = resp.Body.Close() }()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseLen))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusRequestTimeout,
			resp.StatusCode == http.StatusTooManyRequests,
			resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("HTTP %d", resp.StatusCode))
		default:
			return fmt.Errorf("HTTP %d", resp.StatusCode)
		}
	})
}

// GenerateSignature returns "sha256=" followed by the hex HMAC-SHA256 of
// payload keyed with secret.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature produced by GenerateSignature.
func VerifySignature(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(GenerateSignature(payload, secret)), []byte(signature))
}
