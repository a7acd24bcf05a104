/**
 * @description
 * This file defines the invoice domain model. Exactly one invoice exists per
 * subscription; it tracks the renewal-payment lifecycle (reminder schedule,
 * detected intent, payment status) and is never deleted.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus enumerates the payment states of an invoice.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
	PaymentExpired PaymentStatus = "EXPIRED"
)

// PaymentIntent is the classified meaning of the user's latest reply. The empty
// string means no reply has been interpreted yet.
type PaymentIntent string

const (
	IntentUnset    PaymentIntent = ""
	IntentPayNow   PaymentIntent = "PAY_NOW"
	IntentPayLater PaymentIntent = "PAY_LATER"
	IntentDecline  PaymentIntent = "DECLINE"
)

// Invoice tracks one subscription's reminder and payment lifecycle.
// NextReminderDate is nil when no reminder is currently scheduled. Version is
// the optimistic concurrency token; every persisted mutation bumps it.
type Invoice struct {
	ID               uuid.UUID     `json:"id"`
	SubscriptionID   uuid.UUID     `json:"subscription_id"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	PaymentIntent    PaymentIntent `json:"payment_intent,omitempty"`
	NextReminderDate *time.Time    `json:"next_reminder_date,omitempty"`
	ReminderCount    int           `json:"reminder_count"`
	Version          int64         `json:"-"`
	CreatedAt        time.Time     `json:"created_at"`
}

// InvoiceDetail is an invoice hydrated with its subscription and the owning
// user's contact details, as needed for composing and delivering reminders.
type InvoiceDetail struct {
	Invoice      Invoice      `json:"invoice"`
	Subscription Subscription `json:"subscription"`
	UserName     string       `json:"user_name"`
	UserPhone    string       `json:"user_phone"`
}
