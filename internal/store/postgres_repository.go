/**
 * @description
 * This file implements the data access layer for the reminder service. It
 * contains all the SQL for subscriptions, invoices, reminder logs and payment
 * actions.
 *
 * Two write paths are atomic units: recording a sent reminder (log insert +
 * invoice update) and recording a payment action (action insert + invoice
 * update). Both run in a single transaction and both guard the invoice update
 * with an optimistic version check so concurrent mutations of the same invoice
 * cannot interleave.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uniquesp/ai-whatsapp-payment-reminder/internal/domain"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvoiceNotFound      = errors.New("invoice not found")
	// ErrInvoiceConflict means the invoice was mutated concurrently; the caller
	// lost the optimistic version race and must re-read before retrying.
	ErrInvoiceConflict = errors.New("invoice was modified concurrently")
)

// PostgresRepository is the pgx-backed repository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindExpiringSubscriptions returns ACTIVE subscriptions whose end date falls
// inside the [today, noticeDate] window, both ends inclusive.
func (r *PostgresRepository) FindExpiringSubscriptions(ctx context.Context, today, noticeDate time.Time) ([]domain.Subscription, error) {
	query := `
        SELECT s.id, s.user_id, p.name, s.start_date, s.end_date, s.status
        FROM subscriptions s
        JOIN plans p ON p.id = s.plan_id
        WHERE s.status = 'ACTIVE'
          AND s.end_date >= $1
          AND s.end_date <= $2
        ORDER BY s.end_date
    `
	rows, err := r.db.Query(ctx, query, today, noticeDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.PlanName, &sub.StartDate, &sub.EndDate, &sub.Status); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// FindSubscriptionByID retrieves a single subscription.
func (r *PostgresRepository) FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	var sub domain.Subscription
	query := `
        SELECT s.id, s.user_id, p.name, s.start_date, s.end_date, s.status
        FROM subscriptions s
        JOIN plans p ON p.id = s.plan_id
        WHERE s.id = $1
    `
	err := r.db.QueryRow(ctx, query, id).Scan(
		&sub.ID, &sub.UserID, &sub.PlanName, &sub.StartDate, &sub.EndDate, &sub.Status,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// FindInvoiceBySubscriptionID retrieves the invoice for a subscription, if any.
func (r *PostgresRepository) FindInvoiceBySubscriptionID(ctx context.Context, subscriptionID uuid.UUID) (*domain.Invoice, error) {
	var inv domain.Invoice
	var intent *string
	query := `
        SELECT id, subscription_id, payment_status, payment_intent,
               next_reminder_date, reminder_count, version, created_at
        FROM invoices
        WHERE subscription_id = $1
    `
	err := r.db.QueryRow(ctx, query, subscriptionID).Scan(
		&inv.ID, &inv.SubscriptionID, &inv.PaymentStatus, &intent,
		&inv.NextReminderDate, &inv.ReminderCount, &inv.Version, &inv.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	if intent != nil {
		inv.PaymentIntent = domain.PaymentIntent(*intent)
	}
	return &inv, nil
}

// FindInvoiceDetail retrieves an invoice hydrated with its subscription and
// the owning user's name and phone number.
func (r *PostgresRepository) FindInvoiceDetail(ctx context.Context, invoiceID uuid.UUID) (*domain.InvoiceDetail, error) {
	var d domain.InvoiceDetail
	var intent *string
	query := `
        SELECT i.id, i.subscription_id, i.payment_status, i.payment_intent,
               i.next_reminder_date, i.reminder_count, i.version, i.created_at,
               s.id, s.user_id, p.name, s.start_date, s.end_date, s.status,
               u.name, u.phone_number
        FROM invoices i
        JOIN subscriptions s ON s.id = i.subscription_id
        JOIN plans p ON p.id = s.plan_id
        JOIN users u ON u.id = s.user_id
        WHERE i.id = $1
    `
	err := r.db.QueryRow(ctx, query, invoiceID).Scan(
		&d.Invoice.ID, &d.Invoice.SubscriptionID, &d.Invoice.PaymentStatus, &intent,
		&d.Invoice.NextReminderDate, &d.Invoice.ReminderCount, &d.Invoice.Version, &d.Invoice.CreatedAt,
		&d.Subscription.ID, &d.Subscription.UserID, &d.Subscription.PlanName,
		&d.Subscription.StartDate, &d.Subscription.EndDate, &d.Subscription.Status,
		&d.UserName, &d.UserPhone,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	if intent != nil {
		d.Invoice.PaymentIntent = domain.PaymentIntent(*intent)
	}
	return &d, nil
}

// CreateInvoice inserts a new invoice for a subscription. The unique constraint
// on subscription_id enforces the one-invoice-per-subscription invariant.
func (r *PostgresRepository) CreateInvoice(ctx context.Context, inv *domain.Invoice) (*domain.Invoice, error) {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	query := `
        INSERT INTO invoices (id, subscription_id, payment_status, payment_intent,
                              next_reminder_date, reminder_count, version)
        VALUES ($1, $2, $3, $4, $5, $6, 1)
        RETURNING version, created_at
    `
	err := r.db.QueryRow(ctx, query,
		inv.ID, inv.SubscriptionID, inv.PaymentStatus, intentParam(inv.PaymentIntent),
		inv.NextReminderDate, inv.ReminderCount,
	).Scan(&inv.Version, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// UpdateInvoice persists the invoice's mutable fields under the optimistic
// version check and bumps the in-memory version on success.
func (r *PostgresRepository) UpdateInvoice(ctx context.Context, inv *domain.Invoice) error {
	tag, err := r.db.Exec(ctx, invoiceUpdateSQL,
		inv.PaymentStatus, intentParam(inv.PaymentIntent), inv.NextReminderDate,
		inv.ReminderCount, inv.ID, inv.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceConflict
	}
	inv.Version++
	return nil
}

const invoiceUpdateSQL = `
        UPDATE invoices
        SET payment_status = $1,
            payment_intent = $2,
            next_reminder_date = $3,
            reminder_count = $4,
            version = version + 1,
            updated_at = NOW()
        WHERE id = $5 AND version = $6
    `

// ReminderSentBetween reports whether a reminder was logged for the invoice
// inside [start, end]. Used for same-day delivery idempotency.
func (r *PostgresRepository) ReminderSentBetween(ctx context.Context, invoiceID uuid.UUID, start, end time.Time) (bool, error) {
	var exists bool
	query := `
        SELECT EXISTS (
            SELECT 1 FROM reminder_logs
            WHERE invoice_id = $1 AND sent_at >= $2 AND sent_at <= $3
        )
    `
	err := r.db.QueryRow(ctx, query, invoiceID, start, end).Scan(&exists)
	return exists, err
}

// HasReminderLog reports whether any reminder was ever logged for the invoice.
// Used for the reply-after-reminder guard.
func (r *PostgresRepository) HasReminderLog(ctx context.Context, invoiceID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM reminder_logs WHERE invoice_id = $1)`
	err := r.db.QueryRow(ctx, query, invoiceID).Scan(&exists)
	return exists, err
}

// RecordReminder appends a reminder log row and persists the updated invoice
// schedule as one transaction.
func (r *PostgresRepository) RecordReminder(ctx context.Context, logEntry *domain.ReminderLog, inv *domain.Invoice) error {
	return r.withInvoiceUpdate(ctx, inv, func(tx pgx.Tx) error {
		if logEntry.ID == uuid.Nil {
			logEntry.ID = uuid.New()
		}
		query := `
            INSERT INTO reminder_logs (id, invoice_id, channel, sent_at, message_preview)
            VALUES ($1, $2, $3, $4, $5)
        `
		_, err := tx.Exec(ctx, query,
			logEntry.ID, logEntry.InvoiceID, logEntry.Channel, logEntry.SentAt, logEntry.MessagePreview,
		)
		return err
	})
}

// RecordPaymentAction appends a payment action row and persists the updated
// invoice state as one transaction.
func (r *PostgresRepository) RecordPaymentAction(ctx context.Context, action *domain.PaymentAction, inv *domain.Invoice) error {
	return r.withInvoiceUpdate(ctx, inv, func(tx pgx.Tx) error {
		if action.ID == uuid.Nil {
			action.ID = uuid.New()
		}
		query := `
            INSERT INTO payment_actions (id, invoice_id, user_reply_text, detected_intent, action_time)
            VALUES ($1, $2, $3, $4, $5)
        `
		_, err := tx.Exec(ctx, query,
			action.ID, action.InvoiceID, action.UserReplyText, action.DetectedIntent, action.ActionTime,
		)
		return err
	})
}

// withInvoiceUpdate runs the given insert plus the versioned invoice update in
// a single transaction. Either both rows land or neither does.
func (r *PostgresRepository) withInvoiceUpdate(ctx context.Context, inv *domain.Invoice, insert func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insert(tx); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, invoiceUpdateSQL,
		inv.PaymentStatus, intentParam(inv.PaymentIntent), inv.NextReminderDate,
		inv.ReminderCount, inv.ID, inv.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	inv.Version++
	return nil
}

// intentParam maps the unset intent to NULL.
func intentParam(intent domain.PaymentIntent) *string {
	if intent == domain.IntentUnset {
		return nil
	}
	s := string(intent)
	return &s
}
