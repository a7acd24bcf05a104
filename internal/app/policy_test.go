package app

import (
	"testing"
	"time"

	"github.com/uniquesp/ai-whatsapp-payment-reminder/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextReminderDate(t *testing.T) {
	cfg := DefaultPolicy()
	end := date(2026, time.March, 20)

	tests := []struct {
		name          string
		reference     time.Time
		remindersSent int
		want          *time.Time
	}{
		{
			name:          "well before window uses the offset date",
			reference:     end.AddDate(0, 0, -10),
			remindersSent: 0,
			want:          ptr(end.AddDate(0, 0, -5)),
		},
		{
			name:          "target in the past catches up to the reference date",
			reference:     end.AddDate(0, 0, -4),
			remindersSent: 0,
			want:          ptr(end.AddDate(0, 0, -4)),
		},
		{
			name:          "last offset lands exactly on the last valid day",
			reference:     end.AddDate(0, 0, -1),
			remindersSent: 2,
			want:          ptr(end.AddDate(0, 0, -1)),
		},
		{
			name:          "reference on expiry day is past the last valid day",
			reference:     end,
			remindersSent: 2,
			want:          nil,
		},
		{
			name:          "schedule exhausted",
			reference:     end.AddDate(0, 0, -10),
			remindersSent: 3,
			want:          nil,
		},
		{
			name:          "reminder count far beyond the schedule",
			reference:     end.AddDate(0, 0, -10),
			remindersSent: 12,
			want:          nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextReminderDate(cfg, tt.reference, end, tt.remindersSent)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			if got != nil && !got.Equal(*tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNextReminderDateNeverSchedulesOnOrAfterExpiry(t *testing.T) {
	cfg := DefaultPolicy()
	end := date(2026, time.March, 20)

	for sent := 0; sent < cfg.MaxReminders(); sent++ {
		for daysBefore := 0; daysBefore <= 10; daysBefore++ {
			ref := end.AddDate(0, 0, -daysBefore)
			got := NextReminderDate(cfg, ref, end, sent)
			if got != nil && !got.Before(end) {
				t.Fatalf("scheduled %v on/after expiry %v (ref=%v sent=%d)", got, end, ref, sent)
			}
		}
	}
}

func TestIsEligibleForScan(t *testing.T) {
	today := date(2026, time.March, 10)
	notice := today.AddDate(0, 0, 5)

	sub := func(status domain.SubscriptionStatus, end time.Time) domain.Subscription {
		return domain.Subscription{Status: status, EndDate: end}
	}

	tests := []struct {
		name string
		sub  domain.Subscription
		want bool
	}{
		{"end date equals today", sub(domain.SubscriptionActive, today), true},
		{"end date equals notice date", sub(domain.SubscriptionActive, notice), true},
		{"end date inside window", sub(domain.SubscriptionActive, today.AddDate(0, 0, 2)), true},
		{"end date before today", sub(domain.SubscriptionActive, today.AddDate(0, 0, -1)), false},
		{"end date after notice date", sub(domain.SubscriptionActive, notice.AddDate(0, 0, 1)), false},
		{"cancelled subscription", sub(domain.SubscriptionCancelled, today.AddDate(0, 0, 2)), false},
		{"expired subscription", sub(domain.SubscriptionExpired, today.AddDate(0, 0, 2)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEligibleForScan(tt.sub, today, notice); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEvaluateReminderDue(t *testing.T) {
	cfg := DefaultPolicy()
	today := date(2026, time.March, 10)
	end := date(2026, time.March, 13)

	t.Run("exhausted count clears a stale scheduled date", func(t *testing.T) {
		stale := today.AddDate(0, 0, 1)
		inv := domain.Invoice{ReminderCount: 3, NextReminderDate: &stale}
		got := EvaluateReminderDue(cfg, inv, end, today)
		if got.Due {
			t.Fatal("expected not due when schedule is exhausted")
		}
		if got.NextReminderDate != nil {
			t.Fatalf("expected cleared next reminder date, got %v", got.NextReminderDate)
		}
		if !got.Updated {
			t.Fatal("expected update flag so the caller persists the cleared date")
		}
	})

	t.Run("missing date is lazily computed from policy", func(t *testing.T) {
		inv := domain.Invoice{ReminderCount: 0}
		got := EvaluateReminderDue(cfg, inv, end, today)
		if !got.Due {
			t.Fatal("expected due: computed catch-up date is today")
		}
		if got.NextReminderDate == nil || !got.NextReminderDate.Equal(today) {
			t.Fatalf("expected computed date %v, got %v", today, got.NextReminderDate)
		}
		if !got.Updated {
			t.Fatal("expected update flag for lazily computed date")
		}
	})

	t.Run("future scheduled date is not due", func(t *testing.T) {
		future := today.AddDate(0, 0, 2)
		inv := domain.Invoice{ReminderCount: 1, NextReminderDate: &future}
		got := EvaluateReminderDue(cfg, inv, end, today)
		if got.Due {
			t.Fatal("expected not due for future date")
		}
		if got.Updated {
			t.Fatal("expected no update for an already scheduled date")
		}
	})

	t.Run("past scheduled date is due", func(t *testing.T) {
		past := today.AddDate(0, 0, -1)
		inv := domain.Invoice{ReminderCount: 1, NextReminderDate: &past}
		got := EvaluateReminderDue(cfg, inv, end, today)
		if !got.Due {
			t.Fatal("expected due for past date")
		}
	})
}

func TestClampFollowUpDays(t *testing.T) {
	cfg := DefaultPolicy()

	tests := []struct {
		in   int
		want int
	}{
		{0, 3}, // absent hint uses the default
		{1, 1},
		{5, 5},
		{7, 7},
		{9, 7},
	}

	for _, tt := range tests {
		if got := ClampFollowUpDays(cfg, tt.in); got != tt.want {
			t.Fatalf("ClampFollowUpDays(%d): expected %d, got %d", tt.in, tt.want, got)
		}
	}
}

func ptr(t time.Time) *time.Time { return &t }
