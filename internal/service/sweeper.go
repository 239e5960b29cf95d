package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Dhoini/seatsync/internal/domain"
	"github.com/Dhoini/seatsync/internal/metrics"
	"github.com/Dhoini/seatsync/internal/repository"
	"github.com/Dhoini/seatsync/pkg/logger"
)

// SweepReport counts what one sweep touched.
type SweepReport struct {
	Subscriptions int
	Synced        int
	TornDown      int
	Deactivated   int
	// Superseded counts historical rows skipped because another subscription
	// governs the organization's seats.
	Superseded int
	Failed     int
}

// Sweeper re-derives seat state from every persisted subscription. It repairs
// anything a failed or out-of-order webhook left behind.
type Sweeper struct {
	store   repository.Store
	cache   SlotInvalidator
	metrics metrics.WebhookMetrics
	log     *logger.Logger
}

func NewSweeper(store repository.Store, cache SlotInvalidator, m metrics.WebhookMetrics, log *logger.Logger) *Sweeper {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Sweeper{store: store, cache: cache, metrics: m, log: log}
}

// Run sweeps every subscription, each in its own transaction. A failure on one
// subscription is logged and does not stop the others.
func (s *Sweeper) Run(ctx context.Context) (SweepReport, error) {
	subs, err := s.store.ListSubscriptions(ctx)
	if err != nil {
		s.metrics.IncSweep(metrics.ResultFailed)
		return SweepReport{}, fmt.Errorf("list subscriptions: %w", err)
	}

	report := SweepReport{Subscriptions: len(subs)}
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		deactivated, governs, err := s.reconcile(ctx, sub)
		if err != nil {
			report.Failed++
			s.log.Errorw("Reconcile subscription failed",
				"subscriptionID", sub.StripeSubscriptionID,
				"organizationID", sub.OrganizationID,
				"error", err)
			continue
		}
		if !governs {
			report.Superseded++
			continue
		}
		report.Synced++
		if len(deactivated) > 0 {
			report.TornDown++
			report.Deactivated += len(deactivated)
		}
		if s.cache != nil {
			if err := s.cache.InvalidateSlots(ctx, sub.OrganizationID); err != nil {
				s.log.Warnw("Failed to invalidate slot cache", "organizationID", sub.OrganizationID, "error", err)
			}
		}
	}

	result := metrics.ResultProcessed
	if report.Failed > 0 {
		result = metrics.ResultFailed
	}
	s.metrics.IncSweep(result)
	s.metrics.AddDeactivated(report.Deactivated)
	s.log.Infow("Slot reconciliation finished",
		"subscriptions", report.Subscriptions,
		"synced", report.Synced,
		"tornDown", report.TornDown,
		"superseded", report.Superseded,
		"failed", report.Failed)
	return report, nil
}

// reconcile re-applies the seat state of sub when it is the subscription that
// governs its organization. Historical rows of an organization that has since
// resubscribed are left alone and reported with governs=false.
func (s *Sweeper) reconcile(ctx context.Context, sub domain.UserLicenseSubscription) (deactivated []string, governs bool, err error) {
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		subs, err := tx.ListOrganizationSubscriptions(ctx, sub.OrganizationID)
		if err != nil {
			return err
		}
		if len(subs) == 0 {
			return nil
		}
		current := CurrentSubscription(subs)
		if current.StripeSubscriptionID != sub.StripeSubscriptionID {
			return nil
		}
		governs = true

		if !current.Status.GrantsSeats() {
			remaining, err := tx.ListNonOwnerMembers(ctx, current.OrganizationID, domain.MemberActive, 0)
			if err != nil {
				return err
			}
			if len(remaining) > 0 {
				var out Outcome
				if err := (teardownMembers{orgID: current.OrganizationID}).apply(ctx, tx, &out); err != nil {
					return err
				}
				deactivated = out.Deactivated
			}
		}
		return syncFor(current).apply(ctx, tx, nil)
	})
	return deactivated, governs, err
}

// Schedule registers Run on c using a standard five-field cron spec.
func (s *Sweeper) Schedule(c *cron.Cron, spec string, timeout time.Duration) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := s.Run(ctx); err != nil {
			s.log.Errorw("Scheduled reconciliation failed", "error", err)
		}
	})
}
