/**
 * @description
 * Delivery channel for reminders. The core treats sending as fire-and-forget:
 * a Sender either delivers the message or reports an error that the caller
 * logs without retrying. Two implementations are provided: the WhatsApp Cloud
 * API client and a log-only sender for local development and demos.
 */
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Sender delivers a text message to a phone number.
type Sender interface {
	Send(ctx context.Context, phoneNumber, message string) error
}

// Client sends messages through the WhatsApp Cloud API.
type Client struct {
	baseURL       string
	accessToken   string
	phoneNumberID string
	httpClient    *http.Client
}

// NewClient creates a WhatsApp Cloud API client. baseURL is the Graph API
// root, e.g. "https://graph.facebook.com/v19.0".
func NewClient(baseURL, accessToken, phoneNumberID string) *Client {
	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

type textPayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Send posts a text message to the Cloud API messages endpoint.
func (c *Client) Send(ctx context.Context, phoneNumber, message string) error {
	if c.accessToken == "" || c.phoneNumberID == "" {
		return fmt.Errorf("whatsapp client is not configured")
	}

	payload := textPayload{
		MessagingProduct: "whatsapp",
		To:               phoneNumber,
		Type:             "text",
	}
	payload.Text.Body = message

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request to whatsapp api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("whatsapp api returned error status %d", resp.StatusCode)
	}

	return nil
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message.
func (s *LogSender) Send(_ context.Context, phoneNumber, message string) error {
	s.logger.Info("whatsapp message (mock delivery)", "to", phoneNumber, "message", message)
	return nil
}
