/**
 * @description
 * This file contains the renewal policy engine: the pure date arithmetic that
 * decides when the next reminder is due for an invoice. All functions here are
 * side-effect free; callers apply the returned field updates atomically.
 */
package app

import (
	"strconv"
	"strings"
	"time"

	"github.com/uniquesp/ai-whatsapp-payment-reminder/internal/domain"
)

// PolicyConfig carries the scheduling knobs for the renewal policy engine.
// ReminderOffsets is the ordered days-before-expiry schedule; its length is the
// maximum number of reminders per invoice.
type PolicyConfig struct {
	NoticeDays          int
	ReminderOffsets     []int
	FollowUpDefaultDays int
	FollowUpMinDays     int
	FollowUpMaxDays     int
}

// DefaultPolicy mirrors the production schedule: reminders at 5, 3 and 1 days
// before expiry, a 5-day scan window, and follow-ups clamped to 1..7 days.
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		NoticeDays:          5,
		ReminderOffsets:     []int{5, 3, 1},
		FollowUpDefaultDays: 3,
		FollowUpMinDays:     1,
		FollowUpMaxDays:     7,
	}
}

// MaxReminders returns the schedule length.
func (c PolicyConfig) MaxReminders() int {
	return len(c.ReminderOffsets)
}

// ParseReminderOffsets parses a comma-separated offsets string like "5,3,1".
// Invalid or empty input falls back to the default schedule.
func ParseReminderOffsets(raw string) []int {
	var offsets []int
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return DefaultPolicy().ReminderOffsets
		}
		offsets = append(offsets, n)
	}
	if len(offsets) == 0 {
		return DefaultPolicy().ReminderOffsets
	}
	return offsets
}

// Day truncates a timestamp to its calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextReminderDate returns the calendar date for the next reminder given how
// many reminders have already been sent, or nil when the schedule is exhausted
// or the remaining window has closed.
//
// The target is endDate minus the offset for this reminder. A target in the
// past is caught up to referenceDate so reminders are never scheduled
// retroactively; after sending, callers pass tomorrow as referenceDate so the
// same day is never double-booked. A reminder is never scheduled after
// endDate-1, the last day on which paying still makes sense.
func NextReminderDate(cfg PolicyConfig, referenceDate, endDate time.Time, remindersSent int) *time.Time {
	if remindersSent >= len(cfg.ReminderOffsets) {
		return nil
	}

	offset := cfg.ReminderOffsets[remindersSent]
	target := Day(endDate).AddDate(0, 0, -offset)
	if catchUp := Day(referenceDate); target.Before(catchUp) {
		target = catchUp
	}

	expiryLimit := Day(endDate).AddDate(0, 0, -1)
	if target.After(expiryLimit) {
		return nil
	}
	return &target
}

// IsEligibleForScan reports whether a subscription should be processed by the
// renewal scan: it must be ACTIVE and its end date must fall inside the
// [today, noticeDate] window, both ends inclusive.
func IsEligibleForScan(sub domain.Subscription, today, noticeDate time.Time) bool {
	if sub.Status != domain.SubscriptionActive {
		return false
	}
	end := Day(sub.EndDate)
	return !end.Before(Day(today)) && !end.After(Day(noticeDate))
}

// ReminderDecision is the outcome of a due-check: whether a reminder is due
// now, plus the invoice field updates the caller must persist. Updated is true
// when NextReminderDate differs from the invoice's stored value (exhaustion
// clears it, a lazily computed schedule fills it in).
type ReminderDecision struct {
	Due              bool
	NextReminderDate *time.Time
	Updated          bool
}

// EvaluateReminderDue decides whether invoice's reminder is due on today.
// It never mutates the invoice: exhausted schedules and lazily computed dates
// are reported through the returned decision.
func EvaluateReminderDue(cfg PolicyConfig, inv domain.Invoice, endDate, today time.Time) ReminderDecision {
	if inv.ReminderCount >= cfg.MaxReminders() {
		return ReminderDecision{
			Due:              false,
			NextReminderDate: nil,
			Updated:          inv.NextReminderDate != nil,
		}
	}

	next := inv.NextReminderDate
	updated := false
	if next == nil {
		// Nothing scheduled but the invoice is still in play: compute from policy.
		next = NextReminderDate(cfg, today, endDate, inv.ReminderCount)
		updated = next != nil
	}

	if next == nil {
		return ReminderDecision{Due: false}
	}

	return ReminderDecision{
		Due:              !Day(*next).After(Day(today)),
		NextReminderDate: next,
		Updated:          updated,
	}
}

// ClampFollowUpDays normalizes a PAY_LATER follow-up hint: the configured
// default when absent, clamped to the configured bounds otherwise.
func ClampFollowUpDays(cfg PolicyConfig, days int) int {
	if days == 0 {
		days = cfg.FollowUpDefaultDays
	}
	if days < cfg.FollowUpMinDays {
		days = cfg.FollowUpMinDays
	}
	if days > cfg.FollowUpMaxDays {
		days = cfg.FollowUpMaxDays
	}
	return days
}
