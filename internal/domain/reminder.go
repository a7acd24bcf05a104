/**
 * @description
 * This file defines the append-only audit models: reminder logs (one row per
 * delivered reminder, used for same-day idempotency and the reply-after-reminder
 * guard) and payment actions (one row per accepted reply).
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReminderChannel identifies the delivery channel of a reminder.
type ReminderChannel string

const ChannelWhatsApp ReminderChannel = "WHATSAPP"

// ReminderLog records a single delivered reminder.
type ReminderLog struct {
	ID             uuid.UUID       `json:"id"`
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	Channel        ReminderChannel `json:"channel"`
	SentAt         time.Time       `json:"sent_at"`
	MessagePreview string          `json:"message_preview"`
}

// PaymentAction records an accepted, actionable reply. Replies rejected by a
// guard never produce a PaymentAction.
type PaymentAction struct {
	ID             uuid.UUID     `json:"id"`
	InvoiceID      uuid.UUID     `json:"invoice_id"`
	UserReplyText  string        `json:"user_reply_text"`
	DetectedIntent PaymentIntent `json:"detected_intent"`
	ActionTime     time.Time     `json:"action_time"`
}

// IntentDecision is the structured result of classifying a free-text reply.
// FollowUpDays is only meaningful for PAY_LATER; zero means no hint was given.
type IntentDecision struct {
	Intent       PaymentIntent `json:"intent"`
	FollowUpDays int           `json:"followUpDays"`
}
