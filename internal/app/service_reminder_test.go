package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/uniquesp/ai-whatsapp-payment-reminder/internal/domain"
)

func reminderFixture(end time.Time, reminderCount int) (*repoStub, domain.Invoice) {
	repo := newRepoStub()
	sub := activeSubscription(end)
	repo.addSubscription(sub)

	next := testToday
	inv := domain.Invoice{
		ID:               uuid.New(),
		SubscriptionID:   sub.ID,
		PaymentStatus:    domain.PaymentPending,
		NextReminderDate: &next,
		ReminderCount:    reminderCount,
		Version:          1,
	}
	repo.addInvoice(inv)
	return repo, inv
}

func TestSendRenewalReminder_RecordsLogAndAdvancesSchedule(t *testing.T) {
	repo, inv := reminderFixture(testToday.AddDate(0, 0, 5), 0)
	sender := &senderStub{}
	events := &publisherStub{}
	svc := newTestService(repo, sender, events)

	if err := svc.sendRenewalReminder(context.Background(), inv.ID); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(sender.sent))
	}
	if sender.sent[0].to != "+919900112233" {
		t.Fatalf("expected send to the subscriber's phone, got %q", sender.sent[0].to)
	}
	if len(repo.reminders) != 1 {
		t.Fatalf("expected one reminder log, got %d", len(repo.reminders))
	}
	if repo.reminders[0].Channel != domain.ChannelWhatsApp {
		t.Fatalf("expected whatsapp channel, got %s", repo.reminders[0].Channel)
	}
	if repo.reminders[0].MessagePreview == "" {
		t.Fatal("expected a message preview on the reminder log")
	}

	stored := repo.invoiceByID(inv.ID)
	if stored.ReminderCount != 1 {
		t.Fatalf("expected reminder count 1, got %d", stored.ReminderCount)
	}
	// Second offset is 3 days before expiry, still ahead of tomorrow.
	wantNext := testToday.AddDate(0, 0, 2)
	if stored.NextReminderDate == nil || !stored.NextReminderDate.Equal(wantNext) {
		t.Fatalf("expected next reminder %v, got %v", wantNext, stored.NextReminderDate)
	}
	if len(events.routingKeys) != 1 || events.routingKeys[0] != "reminder.sent" {
		t.Fatalf("expected reminder.sent event, got %v", events.routingKeys)
	}
}

func TestSendRenewalReminder_AlreadySentTodayAdvancesWithoutSending(t *testing.T) {
	repo, inv := reminderFixture(testToday.AddDate(0, 0, 5), 1)
	repo.sentToday = true
	sender := &senderStub{}
	svc := newTestService(repo, sender, &publisherStub{})

	if err := svc.sendRenewalReminder(context.Background(), inv.ID); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(sender.sent) != 0 {
		t.Fatalf("expected no send on a duplicate trigger, got %d", len(sender.sent))
	}
	if len(repo.reminders) != 0 {
		t.Fatalf("expected no new reminder log, got %d", len(repo.reminders))
	}

	stored := repo.invoiceByID(inv.ID)
	if stored.ReminderCount != 1 {
		t.Fatalf("expected reminder count unchanged, got %d", stored.ReminderCount)
	}
	// Schedule still advances so the cadence keeps moving.
	wantNext := testToday.AddDate(0, 0, 2)
	if stored.NextReminderDate == nil || !stored.NextReminderDate.Equal(wantNext) {
		t.Fatalf("expected next reminder %v, got %v", wantNext, stored.NextReminderDate)
	}
}

func TestSendRenewalReminder_DeliveryFailureStillRecords(t *testing.T) {
	repo, inv := reminderFixture(testToday.AddDate(0, 0, 5), 0)
	sender := &senderStub{err: errors.New("channel down")}
	svc := newTestService(repo, sender, &publisherStub{})

	if err := svc.sendRenewalReminder(context.Background(), inv.ID); err != nil {
		t.Fatalf("expected delivery failure to be swallowed, got %v", err)
	}
	if len(repo.reminders) != 1 {
		t.Fatalf("expected reminder log despite delivery failure, got %d", len(repo.reminders))
	}
	if repo.invoiceByID(inv.ID).ReminderCount != 1 {
		t.Fatal("expected reminder count to advance despite delivery failure")
	}
}

func TestSendRenewalReminder_LastSendClearsSchedule(t *testing.T) {
	// Expiry is tomorrow: after this send there is no valid day left.
	repo, inv := reminderFixture(testToday.AddDate(0, 0, 1), 2)
	sender := &senderStub{}
	svc := newTestService(repo, sender, &publisherStub{})

	if err := svc.sendRenewalReminder(context.Background(), inv.ID); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	stored := repo.invoiceByID(inv.ID)
	if stored.ReminderCount != 3 {
		t.Fatalf("expected reminder count 3, got %d", stored.ReminderCount)
	}
	if stored.NextReminderDate != nil {
		t.Fatalf("expected cleared schedule after the last reminder, got %v", stored.NextReminderDate)
	}
}
