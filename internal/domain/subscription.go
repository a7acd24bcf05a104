/**
 * @description
 * This file defines the subscription domain model. Subscriptions are owned by the
 * billing domain: they are created at purchase time and their status is read-only
 * to this service, which only scans them for upcoming expiry.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus enumerates the lifecycle states of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionExpired   SubscriptionStatus = "EXPIRED"
)

// Subscription represents a user's plan purchase. StartDate and EndDate bound
// the inclusive validity window of the plan.
type Subscription struct {
	ID        uuid.UUID          `json:"id"`
	UserID    uuid.UUID          `json:"user_id"`
	PlanName  string             `json:"plan_name"`
	StartDate time.Time          `json:"start_date"`
	EndDate   time.Time          `json:"end_date"`
	Status    SubscriptionStatus `json:"status"`
}
