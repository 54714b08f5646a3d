package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"finedu-reconciliation/internal/domain"
	"finedu-reconciliation/internal/domain/model"
	"finedu-reconciliation/internal/domain/ports/repository"
	"finedu-reconciliation/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

const (
	// Carrier-billing subscriptions renew month by month with a short grace
	// window absorbing renewal-processing delay.
	subscriptionPeriodMonths = 1
	subscriptionGraceWindow  = 72 * time.Hour

	planMonthly         = "abonnement-mensuel"
	priceCarrierMonthly = "carrier-monthly"
)

type SubscriptionUseCase interface {
	// Activate creates or extends the subscription justified by a paid order.
	Activate(ctx context.Context, order *model.Order) (*model.Subscription, error)
	// Cancel revokes the subscription when its triggering order is rejected
	// or deleted. Callers are responsible for the orphan guard (checking that
	// no other paid subscription order remains).
	Cancel(ctx context.Context, order *model.Order) error
	// Terminate is the explicit admin termination: it cancels and stamps the
	// manual-termination marker so stale orders cannot resurrect the row.
	Terminate(ctx context.Context, userID string) error
	FindByUser(ctx context.Context, userID string) (*model.Subscription, error)
	CountByStatus(ctx context.Context) (map[model.SubscriptionStatus]int, error)
}

type subscriptionUC struct {
	subs repository.SubscriptionRepository
	log  *zerolog.Logger
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, logger *zerolog.Logger) *subscriptionUC {
	return &subscriptionUC{subs: subs, log: logger}
}

func (uc *subscriptionUC) Activate(ctx context.Context, order *model.Order) (*model.Subscription, error) {
	existing, err := uc.subs.FindByUser(ctx, repository.NoTX, order.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		if existing.GatewayManaged() {
			// Card-gateway rows are out of this engine's authority.
			return nil, domain.ErrGatewayManaged
		}
		if existing.Status == model.SubscriptionStatusCanceled {
			if marker := existing.ManualTerminationAt(); marker != nil && order.CreatedAt.Before(*marker) {
				uc.log.Warn().
					Str("user_id", order.UserID).
					Str("order_id", order.ID).
					Time("terminated_at", *marker).
					Msg("refusing to reactivate manually terminated subscription from stale order")
				return nil, domain.ErrReactivationBlocked
			}
		}
	}

	now := time.Now()
	start := now
	if existing != nil && existing.CurrentPeriodEnd.After(now) {
		// Renewal processed early extends from the existing end: the user
		// never loses paid-for time.
		start = existing.CurrentPeriodEnd
	}
	end := start.AddDate(0, subscriptionPeriodMonths, 0)
	grace := end.Add(subscriptionGraceWindow)

	sub := &model.Subscription{
		UserID:             order.UserID,
		Status:             model.SubscriptionStatusActive,
		PlanID:             planMonthly,
		PriceID:            priceCarrierMonthly,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
		GraceUntil:         &grace,
		CancelAtPeriodEnd:  false,
		Metadata:           nil, // clears any manual-termination marker
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if existing != nil {
		sub.CreatedAt = existing.CreatedAt
	}

	if err := uc.subs.Upsert(ctx, repository.NoTX, sub); err != nil {
		return nil, err
	}
	metrics.IncSubscriptionEvent("activated")
	uc.log.Info().
		Str("user_id", order.UserID).
		Str("order_id", order.ID).
		Time("period_start", start).
		Time("period_end", end).
		Msg("subscription activated")
	return sub, nil
}

func (uc *subscriptionUC) Cancel(ctx context.Context, order *model.Order) error {
	sub, err := uc.subs.FindByUser(ctx, repository.NoTX, order.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if sub.GatewayManaged() {
		return domain.ErrGatewayManaged
	}

	sub.Status = model.SubscriptionStatusCanceled
	sub.CancelAtPeriodEnd = false
	sub.GraceUntil = nil
	sub.UpdatedAt = time.Now()
	if err := uc.subs.Upsert(ctx, repository.NoTX, sub); err != nil {
		return err
	}
	metrics.IncSubscriptionEvent("canceled")
	uc.log.Info().Str("user_id", order.UserID).Str("order_id", order.ID).Msg("subscription canceled")
	return nil
}

func (uc *subscriptionUC) Terminate(ctx context.Context, userID string) error {
	sub, err := uc.subs.FindByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return err
	}
	if sub.GatewayManaged() {
		return domain.ErrGatewayManaged
	}

	sub.MarkManuallyTerminated(time.Now())
	sub.CancelAtPeriodEnd = false
	sub.GraceUntil = nil
	if err := uc.subs.Upsert(ctx, repository.NoTX, sub); err != nil {
		return err
	}
	metrics.IncSubscriptionEvent("terminated")
	uc.log.Info().Str("user_id", userID).Msg("subscription manually terminated")
	return nil
}

func (uc *subscriptionUC) FindByUser(ctx context.Context, userID string) (*model.Subscription, error) {
	return uc.subs.FindByUser(ctx, repository.NoTX, userID)
}

func (uc *subscriptionUC) CountByStatus(ctx context.Context) (map[model.SubscriptionStatus]int, error) {
	return uc.subs.CountByStatus(ctx, repository.NoTX)
}
