/**
 * @description
 * This file defines the reminder message composer boundary. The AI-backed
 * composer produces a short personalized message; the template composer is the
 * deterministic fallback so reminders still send when the AI is unavailable.
 */
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/uniquesp/ai-whatsapp-payment-reminder/pkg/aiclient"
)

// MessageComposer produces the reminder text for a user and expiry date.
type MessageComposer interface {
	Compose(ctx context.Context, userName string, expiryDate time.Time) string
}

// TemplateComposer renders the fixed fallback template.
type TemplateComposer struct{}

// Compose returns the deterministic reminder message.
func (TemplateComposer) Compose(_ context.Context, userName string, expiryDate time.Time) string {
	return fmt.Sprintf(
		"Hi %s, your plan expires on %s. Reply PAY NOW to renew or PAY LATER to choose a new reminder date.",
		userName, expiryDate.Format("2006-01-02"),
	)
}

// AIComposer asks the chat model for a personalized reminder and falls back to
// the template on any failure.
type AIComposer struct {
	client   ChatCompleter
	fallback TemplateComposer
	logger   *slog.Logger
}

// NewAIComposer creates an AI-backed composer.
func NewAIComposer(client ChatCompleter, logger *slog.Logger) *AIComposer {
	return &AIComposer{client: client, logger: logger}
}

// Compose calls the chat model, falling back to the template when the call
// fails or returns an empty message.
func (c *AIComposer) Compose(ctx context.Context, userName string, expiryDate time.Time) string {
	message, err := c.client.Complete(ctx,
		aiclient.ReminderSystemPrompt(),
		aiclient.ReminderUserPrompt(userName, expiryDate.Format("2006-01-02")),
	)
	if err != nil {
		c.logger.Warn("AI reminder generation failed, using template fallback", "error", err)
		return c.fallback.Compose(ctx, userName, expiryDate)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return c.fallback.Compose(ctx, userName, expiryDate)
	}
	return message
}
