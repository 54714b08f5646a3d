package model

import (
	"strings"

	"finedu-reconciliation/internal/domain"
)

// EntrySource tags where a reconciliation list entry came from. Only entries
// backed by a real order row may be validated or rejected; synthesized
// ("virtual") entries are read-only except for deletion, which routes to the
// underlying store.
type EntrySource string

const (
	SourceOrder        EntrySource = "order"
	SourceEntitlement  EntrySource = "entitlement"
	SourceSubscription EntrySource = "subscription"
)

// Synthetic id prefixes exposed to the admin surface.
const (
	virtualEntitlementPrefix  = "virtual-cap-"
	virtualSubscriptionPrefix = "virtual-sub-"
)

// Entry is the tagged union the admin read path works with:
// exactly one of Order, Entitlement, Subscription is set, per Source.
type Entry struct {
	Source       EntrySource   `json:"source"`
	Order        *Order        `json:"order,omitempty"`
	Entitlement  *Entitlement  `json:"entitlement,omitempty"`
	Subscription *Subscription `json:"subscription,omitempty"`

	// Identity enrichment, filled by the aggregator.
	UserEmail string `json:"user_email,omitempty"`
	UserName  string `json:"user_name,omitempty"`
}

// Mutable reports whether validate/reject may touch this entry.
func (e Entry) Mutable() bool { return e.Source == SourceOrder }

// ID returns the id the admin surface addresses this entry by.
func (e Entry) ID() string {
	switch e.Source {
	case SourceOrder:
		return e.Order.ID
	case SourceEntitlement:
		return virtualEntitlementPrefix + e.Entitlement.ID
	case SourceSubscription:
		return virtualSubscriptionPrefix + e.Subscription.UserID
	}
	return ""
}

// UserID returns the owning user regardless of source.
func (e Entry) UserID() string {
	switch e.Source {
	case SourceOrder:
		return e.Order.UserID
	case SourceEntitlement:
		return e.Entitlement.UserID
	case SourceSubscription:
		return e.Subscription.UserID
	}
	return ""
}

// AsOrder renders the entry as the unified order view the admin consumes.
// Synthesized entries surface as already-paid orders: an entitlement defaults
// to the card method, a subscription infers its method from gateway
// ownership.
func (e Entry) AsOrder() Order {
	switch e.Source {
	case SourceOrder:
		return *e.Order
	case SourceEntitlement:
		return Order{
			ID:        e.ID(),
			UserID:    e.Entitlement.UserID,
			ProductID: e.Entitlement.ProductID,
			Status:    OrderStatusPaid,
			Method:    MethodCard,
			CreatedAt: e.Entitlement.CreatedAt,
			UpdatedAt: e.Entitlement.CreatedAt,
		}
	case SourceSubscription:
		method := MethodCarrier
		if e.Subscription.GatewayManaged() {
			method = MethodCard
		}
		status := OrderStatusPaid
		if e.Subscription.Status == SubscriptionStatusCanceled {
			status = OrderStatusRejected
		}
		return Order{
			ID:          e.ID(),
			UserID:      e.Subscription.UserID,
			ProductID:   ProductSubscription,
			ProductName: "Abonnement mensuel",
			Status:      status,
			Method:      method,
			CreatedAt:   e.Subscription.CreatedAt,
			UpdatedAt:   e.Subscription.UpdatedAt,
		}
	}
	return Order{}
}

// ParseEntryID splits an admin-surface id into its source tag and the raw
// store id. Ids without a virtual prefix are order ids.
func ParseEntryID(id string) (EntrySource, string, error) {
	switch {
	case strings.HasPrefix(id, virtualEntitlementPrefix):
		raw := strings.TrimPrefix(id, virtualEntitlementPrefix)
		if raw == "" {
			return "", "", domain.ErrInvalidArgument
		}
		return SourceEntitlement, raw, nil
	case strings.HasPrefix(id, virtualSubscriptionPrefix):
		raw := strings.TrimPrefix(id, virtualSubscriptionPrefix)
		if raw == "" {
			return "", "", domain.ErrInvalidArgument
		}
		return SourceSubscription, raw, nil
	case id == "":
		return "", "", domain.ErrInvalidArgument
	default:
		return SourceOrder, id, nil
	}
}
