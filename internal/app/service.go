/**
 * @description
 * This file contains the core business logic for the reminder service. The
 * Service orchestrates the renewal scan, reminder delivery and reply
 * processing, coordinating the repository, the intent classifier, the message
 * composer, the delivery channel and the event producer.
 *
 * Key features:
 * - RunScan walks the bounded expiry window and sends due reminders, isolating
 *   per-subscription failures so one bad row never aborts the batch.
 * - Reminder delivery is idempotent per calendar day: a duplicate trigger
 *   skips the send but still advances the schedule.
 * - HandleReply drives the invoice payment state machine behind ordered
 *   guards; rejected replies are silent no-ops by design.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/uniquesp/ai-whatsapp-payment-reminder/internal/domain"
	"github.com/uniquesp/ai-whatsapp-payment-reminder/internal/store"
	"github.com/uniquesp/ai-whatsapp-payment-reminder/pkg/rabbitmq"
	"github.com/uniquesp/ai-whatsapp-payment-reminder/pkg/whatsapp"
)

const messagePreviewLimit = 500

// Repository defines the database operations the service needs.
type Repository interface {
	FindExpiringSubscriptions(ctx context.Context, today, noticeDate time.Time) ([]domain.Subscription, error)
	FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error)
	FindInvoiceBySubscriptionID(ctx context.Context, subscriptionID uuid.UUID) (*domain.Invoice, error)
	FindInvoiceDetail(ctx context.Context, invoiceID uuid.UUID) (*domain.InvoiceDetail, error)
	CreateInvoice(ctx context.Context, inv *domain.Invoice) (*domain.Invoice, error)
	UpdateInvoice(ctx context.Context, inv *domain.Invoice) error
	ReminderSentBetween(ctx context.Context, invoiceID uuid.UUID, start, end time.Time) (bool, error)
	HasReminderLog(ctx context.Context, invoiceID uuid.UUID) (bool, error)
	RecordReminder(ctx context.Context, logEntry *domain.ReminderLog, inv *domain.Invoice) error
	RecordPaymentAction(ctx context.Context, action *domain.PaymentAction, inv *domain.Invoice) error
}

// Service provides the renewal reminder and payment decision logic.
type Service struct {
	repo       Repository
	classifier IntentClassifier
	composer   MessageComposer
	sender     whatsapp.Sender
	events     rabbitmq.Publisher
	logger     *slog.Logger
	policy     PolicyConfig
	exchange   string

	now func() time.Time
}

// NewService creates a new reminder service.
func NewService(
	repo Repository,
	classifier IntentClassifier,
	composer MessageComposer,
	sender whatsapp.Sender,
	events rabbitmq.Publisher,
	logger *slog.Logger,
	policy PolicyConfig,
	exchange string,
) *Service {
	return &Service{
		repo:       repo,
		classifier: classifier,
		composer:   composer,
		sender:     sender,
		events:     events,
		logger:     logger,
		policy:     policy,
		exchange:   exchange,
		now:        time.Now,
	}
}

// reminderSentEvent is published after a reminder is delivered.
type reminderSentEvent struct {
	InvoiceID      uuid.UUID `json:"invoice_id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	Channel        string    `json:"channel"`
	SentAt         time.Time `json:"sent_at"`
	MessagePreview string    `json:"message_preview"`
}

// paymentActionEvent is published after a reply is accepted.
type paymentActionEvent struct {
	InvoiceID      uuid.UUID `json:"invoice_id"`
	DetectedIntent string    `json:"detected_intent"`
	PaymentStatus  string    `json:"payment_status"`
	ActionTime     time.Time `json:"action_time"`
}

// RunScan processes every subscription expiring inside the notice window. It
// is the single entry point for both the cron trigger and the on-demand admin
// trigger, which makes the two idempotent with respect to each other.
func (s *Service) RunScan(ctx context.Context) error {
	today := Day(s.now())
	noticeDate := today.AddDate(0, 0, s.policy.NoticeDays)

	s.logger.Info("running renewal scan", "from", today, "to", noticeDate)

	subs, err := s.repo.FindExpiringSubscriptions(ctx, today, noticeDate)
	if err != nil {
		return fmt.Errorf("failed to load expiring subscriptions: %w", err)
	}

	for _, sub := range subs {
		if err := s.processSubscription(ctx, sub, today, noticeDate); err != nil {
			// One failing subscription must not abort the rest of the scan.
			s.logger.Error("failed to process subscription", "subscription_id", sub.ID, "error", err)
		}
	}

	return nil
}

func (s *Service) processSubscription(ctx context.Context, sub domain.Subscription, today, noticeDate time.Time) error {
	if !IsEligibleForScan(sub, today, noticeDate) {
		s.logger.Info("skipping subscription (out of window or inactive)", "subscription_id", sub.ID)
		return nil
	}

	inv, err := s.repo.FindInvoiceBySubscriptionID(ctx, sub.ID)
	if errors.Is(err, store.ErrInvoiceNotFound) {
		inv, err = s.createInvoice(ctx, sub, today)
	}
	if err != nil {
		return err
	}

	if inv.PaymentStatus == domain.PaymentPaid {
		s.logger.Info("skipping invoice (already paid)", "invoice_id", inv.ID)
		return nil
	}

	decision := EvaluateReminderDue(s.policy, *inv, sub.EndDate, today)
	if decision.Updated {
		inv.NextReminderDate = decision.NextReminderDate
		if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
			return fmt.Errorf("failed to persist schedule update: %w", err)
		}
	}

	if !decision.Due {
		s.logger.Info("reminder not due",
			"invoice_id", inv.ID, "reminder_count", inv.ReminderCount, "next_reminder_date", inv.NextReminderDate)
		return nil
	}

	return s.sendRenewalReminder(ctx, inv.ID)
}

// createInvoice lazily creates the invoice when a subscription first enters
// the renewal window.
func (s *Service) createInvoice(ctx context.Context, sub domain.Subscription, today time.Time) (*domain.Invoice, error) {
	inv := &domain.Invoice{
		SubscriptionID:   sub.ID,
		PaymentStatus:    domain.PaymentPending,
		PaymentIntent:    domain.IntentUnset,
		NextReminderDate: NextReminderDate(s.policy, today, sub.EndDate, 0),
		ReminderCount:    0,
	}
	created, err := s.repo.CreateInvoice(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	s.logger.Info("created invoice", "invoice_id", created.ID, "subscription_id", sub.ID)
	return created, nil
}

// sendRenewalReminder delivers a reminder for the invoice, guarding against
// double-sends on the same calendar day. On a duplicate trigger it still
// advances the schedule so the reminder cadence keeps moving.
func (s *Service) sendRenewalReminder(ctx context.Context, invoiceID uuid.UUID) error {
	detail, err := s.repo.FindInvoiceDetail(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to load invoice: %w", err)
	}

	inv := detail.Invoice
	endDate := detail.Subscription.EndDate
	today := Day(s.now())
	tomorrow := today.AddDate(0, 0, 1)
	endOfDay := tomorrow.Add(-time.Nanosecond)

	alreadySent, err := s.repo.ReminderSentBetween(ctx, inv.ID, today, endOfDay)
	if err != nil {
		return fmt.Errorf("failed to check reminder log: %w", err)
	}
	if alreadySent {
		inv.NextReminderDate = NextReminderDate(s.policy, tomorrow, endDate, inv.ReminderCount)
		if err := s.repo.UpdateInvoice(ctx, &inv); err != nil {
			return fmt.Errorf("failed to advance schedule: %w", err)
		}
		s.logger.Info("skipping reminder (already sent today)",
			"invoice_id", inv.ID, "next_reminder_date", inv.NextReminderDate)
		return nil
	}

	message := s.composer.Compose(ctx, detail.UserName, endDate)

	// Delivery is fire-and-forget: a channel failure is logged, never retried here.
	if err := s.sender.Send(ctx, detail.UserPhone, message); err != nil {
		s.logger.Warn("reminder delivery failed", "invoice_id", inv.ID, "error", err)
	}

	logEntry := &domain.ReminderLog{
		InvoiceID:      inv.ID,
		Channel:        domain.ChannelWhatsApp,
		SentAt:         s.now(),
		MessagePreview: truncate(message, messagePreviewLimit),
	}

	inv.ReminderCount++
	inv.NextReminderDate = NextReminderDate(s.policy, tomorrow, endDate, inv.ReminderCount)

	if err := s.repo.RecordReminder(ctx, logEntry, &inv); err != nil {
		return fmt.Errorf("failed to record reminder: %w", err)
	}

	s.logger.Info("reminder sent",
		"invoice_id", inv.ID, "reminder_count", inv.ReminderCount, "next_reminder_date", inv.NextReminderDate)

	event := reminderSentEvent{
		InvoiceID:      inv.ID,
		SubscriptionID: inv.SubscriptionID,
		Channel:        string(logEntry.Channel),
		SentAt:         logEntry.SentAt,
		MessagePreview: logEntry.MessagePreview,
	}
	if err := s.events.Publish(ctx, s.exchange, "reminder.sent", event); err != nil {
		s.logger.Warn("failed to publish reminder.sent event", "invoice_id", inv.ID, "error", err)
	}

	return nil
}

// HandleReply interprets a free-text reply and advances the invoice payment
// state machine. Guards fire in order: expired subscription, non-pending
// invoice, no scheduled reminder, no prior delivered reminder. A guarded reply
// is ignored without recording anything.
func (s *Service) HandleReply(ctx context.Context, invoiceID uuid.UUID, replyText string) error {
	detail, err := s.repo.FindInvoiceDetail(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to load invoice: %w", err)
	}

	inv := detail.Invoice
	today := Day(s.now())
	endDate := Day(detail.Subscription.EndDate)

	if endDate.Before(today) {
		inv.PaymentStatus = domain.PaymentExpired
		inv.PaymentIntent = domain.IntentUnset
		inv.NextReminderDate = nil
		if err := s.repo.UpdateInvoice(ctx, &inv); err != nil {
			return fmt.Errorf("failed to expire invoice: %w", err)
		}
		s.logger.Info("reply ignored: subscription expired, invoice closed", "invoice_id", inv.ID)
		return nil
	}

	if inv.PaymentStatus != domain.PaymentPending {
		s.logger.Info("reply ignored: invoice not pending",
			"invoice_id", inv.ID, "payment_status", inv.PaymentStatus)
		return nil
	}

	if inv.NextReminderDate == nil {
		s.logger.Info("reply ignored: no reminder scheduled", "invoice_id", inv.ID)
		return nil
	}

	hasReminder, err := s.repo.HasReminderLog(ctx, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to check reminder log: %w", err)
	}
	if !hasReminder {
		s.logger.Info("reply ignored: no reminder was ever delivered", "invoice_id", inv.ID)
		return nil
	}

	decision := s.classifier.Classify(ctx, replyText)

	switch decision.Intent {
	case domain.IntentPayNow:
		// Hand-off to the external payment flow; reminders pause, status stays
		// PENDING until the payment system confirms.
		inv.PaymentIntent = domain.IntentPayNow
		inv.NextReminderDate = nil

	case domain.IntentPayLater:
		inv.PaymentIntent = domain.IntentPayLater
		followUp := ClampFollowUpDays(s.policy, decision.FollowUpDays)
		lastChance := endDate.AddDate(0, 0, -1)
		if lastChance.Before(today) {
			// The follow-up window has already closed.
			inv.PaymentStatus = domain.PaymentFailed
			inv.NextReminderDate = nil
		} else {
			preferred := today.AddDate(0, 0, followUp)
			if preferred.After(lastChance) {
				preferred = lastChance
			}
			inv.NextReminderDate = &preferred
		}

	case domain.IntentDecline:
		inv.PaymentIntent = domain.IntentDecline
		inv.PaymentStatus = domain.PaymentFailed
		inv.NextReminderDate = nil

	default:
		s.logger.Info("reply ignored: no actionable intent", "invoice_id", inv.ID)
		return nil
	}

	action := &domain.PaymentAction{
		InvoiceID:      inv.ID,
		UserReplyText:  truncate(replyText, 1000),
		DetectedIntent: inv.PaymentIntent,
		ActionTime:     s.now(),
	}

	if err := s.repo.RecordPaymentAction(ctx, action, &inv); err != nil {
		return fmt.Errorf("failed to record payment action: %w", err)
	}

	s.logger.Info("reply processed",
		"invoice_id", inv.ID, "detected_intent", inv.PaymentIntent,
		"payment_status", inv.PaymentStatus, "next_reminder_date", inv.NextReminderDate)

	event := paymentActionEvent{
		InvoiceID:      inv.ID,
		DetectedIntent: string(inv.PaymentIntent),
		PaymentStatus:  string(inv.PaymentStatus),
		ActionTime:     action.ActionTime,
	}
	if err := s.events.Publish(ctx, s.exchange, "payment.action", event); err != nil {
		s.logger.Warn("failed to publish payment.action event", "invoice_id", inv.ID, "error", err)
	}

	return nil
}

// CreateInvoice creates (or returns the existing) invoice for a subscription.
// Exposed for the admin surface; the scan uses the same lazy-create path.
func (s *Service) CreateInvoice(ctx context.Context, subscriptionID uuid.UUID) (*domain.InvoiceDetail, error) {
	sub, err := s.repo.FindSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	inv, err := s.repo.FindInvoiceBySubscriptionID(ctx, subscriptionID)
	if errors.Is(err, store.ErrInvoiceNotFound) {
		inv, err = s.createInvoice(ctx, *sub, Day(s.now()))
	}
	if err != nil {
		return nil, err
	}

	return s.repo.FindInvoiceDetail(ctx, inv.ID)
}

// GetInvoice returns an invoice hydrated with subscription and user details.
func (s *Service) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*domain.InvoiceDetail, error) {
	return s.repo.FindInvoiceDetail(ctx, invoiceID)
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
