package model

import (
	"time"

	"finedu-reconciliation/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Metadata key carrying the manual-termination marker (RFC3339 timestamp).
// Once set, it blocks reactivation by any order created before that instant.
const MetaManualTerminationAt = "manual_termination_at"

// Subscription holds at most one row per user. A non-nil ExternalID means the
// row is owned by the card gateway and must never be mutated by the
// carrier-billing reconciliation path.
type Subscription struct {
	UserID             string             `json:"user_id"`
	Status             SubscriptionStatus `json:"status"`
	PlanID             string             `json:"plan_id"`
	PriceID            string             `json:"price_id"`
	CurrentPeriodStart time.Time          `json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end"`
	GraceUntil         *time.Time         `json:"grace_until,omitempty"`
	CancelAtPeriodEnd  bool               `json:"cancel_at_period_end"`
	ExternalID         *string            `json:"external_id,omitempty"`
	Metadata           map[string]string  `json:"metadata,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func NewSubscription(userID, planID, priceID string, periodStart, periodEnd time.Time) (*Subscription, error) {
	if userID == "" || !periodEnd.After(periodStart) {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		UserID:             userID,
		Status:             SubscriptionStatusActive,
		PlanID:             planID,
		PriceID:            priceID,
		CurrentPeriodStart: periodStart,
		CurrentPeriodEnd:   periodEnd,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// GatewayManaged reports whether the card gateway owns this row.
func (s *Subscription) GatewayManaged() bool {
	return s.ExternalID != nil && *s.ExternalID != ""
}

// ManualTerminationAt returns the manual-termination marker timestamp, or nil
// when the subscription was never manually terminated.
func (s *Subscription) ManualTerminationAt() *time.Time {
	if s.Metadata == nil {
		return nil
	}
	raw, ok := s.Metadata[MetaManualTerminationAt]
	if !ok {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

// MarkManuallyTerminated cancels the subscription and stamps the marker.
func (s *Subscription) MarkManuallyTerminated(at time.Time) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]string, 1)
	}
	s.Metadata[MetaManualTerminationAt] = at.UTC().Format(time.RFC3339)
	s.Status = SubscriptionStatusCanceled
	s.UpdatedAt = time.Now()
}
