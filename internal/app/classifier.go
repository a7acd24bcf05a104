/**
 * @description
 * This file defines the intent classifier boundary. Two implementations exist:
 * an AI-backed classifier that calls an OpenAI-compatible chat completions API,
 * and a deterministic rule-based classifier used both standalone (when no AI is
 * configured) and as the fallback when the AI call fails or times out.
 * Classify never returns an error; the pipeline must keep functioning when the
 * classifier is degraded.
 */
package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/uniquesp/ai-whatsapp-payment-reminder/internal/domain"
	"github.com/uniquesp/ai-whatsapp-payment-reminder/pkg/aiclient"
)

// IntentClassifier maps a free-text reply to a structured payment decision.
type IntentClassifier interface {
	Classify(ctx context.Context, reply string) domain.IntentDecision
}

// RuleBasedClassifier is the deterministic keyword classifier. Unmatched text
// defaults to PAY_LATER, the safer re-engagement outcome.
type RuleBasedClassifier struct{}

var (
	declinePhrases  = []string{"not pay", "won't pay", "wont pay", "don't want", "dont want", "cancel", "stop", "decline", "refuse", "no thanks"}
	payNowPhrases   = []string{"pay now", "paying now", "immediately", "right away", "done", "paid"}
	payLaterPhrases = []string{"later", "tomorrow", "next day", "next week", "few days"}
)

// Classify applies the keyword heuristics from the classifier contract.
func (RuleBasedClassifier) Classify(_ context.Context, reply string) domain.IntentDecision {
	text := strings.ToLower(strings.TrimSpace(reply))

	if text == "no" || containsAny(text, declinePhrases) {
		return domain.IntentDecision{Intent: domain.IntentDecline}
	}
	if containsAny(text, payLaterPhrases) {
		return domain.IntentDecision{Intent: domain.IntentPayLater, FollowUpDays: followUpHint(text)}
	}
	if containsAny(text, payNowPhrases) {
		return domain.IntentDecision{Intent: domain.IntentPayNow}
	}
	return domain.IntentDecision{Intent: domain.IntentPayLater}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// followUpHint extracts a coarse follow-up-days hint from common phrasings.
func followUpHint(text string) int {
	switch {
	case strings.Contains(text, "tomorrow"), strings.Contains(text, "next day"):
		return 1
	case strings.Contains(text, "next week"):
		return 7
	default:
		return 0
	}
}

// ChatCompleter is the slice of the AI client the classifier needs.
type ChatCompleter interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// AIClassifier asks the chat model for a JSON intent decision and falls back to
// the rule-based classifier on any failure.
type AIClassifier struct {
	client   ChatCompleter
	fallback RuleBasedClassifier
	logger   *slog.Logger
}

// NewAIClassifier creates an AI-backed classifier.
func NewAIClassifier(client ChatCompleter, logger *slog.Logger) *AIClassifier {
	return &AIClassifier{client: client, logger: logger}
}

// Classify calls the chat model and parses its JSON decision.
func (c *AIClassifier) Classify(ctx context.Context, reply string) domain.IntentDecision {
	raw, err := c.client.Complete(ctx, aiclient.IntentSystemPrompt(), aiclient.IntentUserPrompt(reply))
	if err != nil {
		c.logger.Warn("AI intent detection failed, using rule-based fallback", "error", err)
		return c.fallback.Classify(ctx, reply)
	}

	var parsed struct {
		Intent       string `json:"intent"`
		FollowUpDays *int   `json:"followUpDays"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &parsed); err != nil {
		c.logger.Warn("AI intent response was not valid JSON, using rule-based fallback", "error", err)
		return c.fallback.Classify(ctx, reply)
	}

	intent := domain.PaymentIntent(strings.ToUpper(strings.TrimSpace(parsed.Intent)))
	switch intent {
	case domain.IntentPayNow, domain.IntentPayLater, domain.IntentDecline:
	default:
		c.logger.Warn("AI returned unknown intent, using rule-based fallback", "intent", parsed.Intent)
		return c.fallback.Classify(ctx, reply)
	}

	decision := domain.IntentDecision{Intent: intent}
	if parsed.FollowUpDays != nil && *parsed.FollowUpDays > 0 {
		decision.FollowUpDays = *parsed.FollowUpDays
	}
	return decision
}

// stripCodeFences removes a surrounding markdown code fence, which some models
// add despite the JSON-only instruction.
func stripCodeFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
