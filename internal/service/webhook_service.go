package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v78"

	"github.com/Dhoini/seatsync/internal/domain"
	"github.com/Dhoini/seatsync/internal/kafka"
	"github.com/Dhoini/seatsync/internal/metrics"
	"github.com/Dhoini/seatsync/internal/repository"
	"github.com/Dhoini/seatsync/pkg/logger"
)

// SubscriptionFetcher retrieves the provider's current view of a subscription.
type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*domain.ProviderSubscription, error)
}

// SlotInvalidator drops cached slot availability after a commit.
type SlotInvalidator interface {
	InvalidateSlots(ctx context.Context, orgID string) error
}

// WebhookService applies verified Stripe events exactly once.
type WebhookService struct {
	store    repository.Store
	fetcher  SubscriptionFetcher
	cache    SlotInvalidator
	producer kafka.Producer
	metrics  metrics.WebhookMetrics
	log      *logger.Logger
	now      func() time.Time
}

// NewWebhookService creates the webhook processor. cache and producer may be nil.
func NewWebhookService(
	store repository.Store,
	fetcher SubscriptionFetcher,
	cache SlotInvalidator,
	producer kafka.Producer,
	m metrics.WebhookMetrics,
	log *logger.Logger,
) *WebhookService {
	if producer == nil {
		producer = kafka.NopProducer{}
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &WebhookService{
		store:    store,
		fetcher:  fetcher,
		cache:    cache,
		producer: producer,
		metrics:  m,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Process decodes, plans and applies one verified event. The idempotency mark,
// every mutation and the audit row commit together, so a failed attempt leaves
// nothing behind and a redelivery is processed from scratch.
func (s *WebhookService) Process(ctx context.Context, event stripe.Event) (*Outcome, error) {
	start := time.Now()
	eventType := string(event.Type)

	out, err := s.process(ctx, event)
	switch {
	case err != nil:
		s.metrics.ObserveEvent(eventType, metrics.ResultFailed, time.Since(start))
		s.log.Errorw("Webhook event failed", "eventID", event.ID, "eventType", eventType, "error", err)
		return nil, err
	case out.Duplicate:
		s.metrics.ObserveEvent(eventType, metrics.ResultDuplicate, time.Since(start))
		s.log.Infow("Webhook event already processed", "eventID", event.ID, "eventType", eventType)
		return out, nil
	case out.Skipped != "":
		s.metrics.ObserveEvent(eventType, metrics.ResultIgnored, time.Since(start))
		s.log.Infow("Webhook event recorded without changes", "eventID", event.ID, "eventType", eventType, "reason", out.Skipped)
	default:
		s.metrics.ObserveEvent(eventType, metrics.ResultProcessed, time.Since(start))
		s.log.Infow("Webhook event processed",
			"eventID", event.ID,
			"eventType", eventType,
			"organizationID", out.OrganizationID,
			"deactivated", len(out.Deactivated),
			"reactivated", len(out.Reactivated))
	}

	s.metrics.AddDeactivated(len(out.Deactivated))
	s.metrics.AddReactivated(len(out.Reactivated))
	s.afterCommit(ctx, out)
	return out, nil
}

func (s *WebhookService) process(ctx context.Context, event stripe.Event) (*Outcome, error) {
	ev, err := DecodeEvent(event)
	if err != nil {
		return nil, domain.NewEventError(event.ID, string(event.Type), "decode", err)
	}
	meta := ev.meta()

	fetched, err := s.fetch(ctx, ev)
	if err != nil {
		return nil, domain.NewEventError(meta.ID, meta.Type, "fetch subscription", err)
	}

	var out *Outcome
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		out = &Outcome{EventID: meta.ID, EventType: meta.Type}

		first, err := tx.TryMarkEvent(ctx, meta.ID)
		if err != nil {
			return fmt.Errorf("mark event: %w", err)
		}
		if !first {
			out.Duplicate = true
			return nil
		}

		p := planner{r: tx, log: s.log, now: s.now}
		muts, err := p.plan(ctx, ev, fetched, out)
		if err != nil {
			return err
		}
		for _, m := range muts {
			if err := m.apply(ctx, tx, out); err != nil {
				return err
			}
		}

		subID := out.SubscriptionID
		if subID == "" {
			subID = meta.ObjectID
		}
		return tx.InsertEventLog(ctx, &domain.EventLog{
			EventID:        meta.ID,
			EventType:      meta.Type,
			SubscriptionID: subID,
			Payload:        meta.Raw,
			CreatedAt:      s.now(),
		})
	})
	if err != nil {
		return nil, domain.NewEventError(meta.ID, meta.Type, "apply", err)
	}
	return out, nil
}

// fetch retrieves the subscription for the kinds whose payload does not carry it.
func (s *WebhookService) fetch(ctx context.Context, ev Event) (*domain.ProviderSubscription, error) {
	var subID string
	switch e := ev.(type) {
	case CheckoutCompleted:
		subID = e.SubscriptionID
	case InvoicePaid:
		subID = e.SubscriptionID
	case InvoiceFailed:
		subID = e.SubscriptionID
	default:
		return nil, nil
	}
	if s.fetcher == nil {
		return nil, errors.New("no subscription fetcher configured")
	}
	return s.fetcher.GetSubscription(ctx, subID)
}

func (s *WebhookService) afterCommit(ctx context.Context, out *Outcome) {
	if out.OrganizationID == "" || out.Skipped != "" {
		return
	}
	if s.cache != nil {
		if err := s.cache.InvalidateSlots(ctx, out.OrganizationID); err != nil {
			s.log.Warnw("Failed to invalidate slot cache", "organizationID", out.OrganizationID, "error", err)
		}
	}
	err := s.producer.PublishSeatChange(ctx, kafka.SeatChangeEvent{
		EventID:        out.EventID,
		EventType:      out.EventType,
		OrganizationID: out.OrganizationID,
		SubscriptionID: out.SubscriptionID,
		Deactivated:    out.Deactivated,
		Reactivated:    out.Reactivated,
		OccurredAt:     s.now(),
	})
	if err != nil {
		s.log.Warnw("Failed to publish seat change", "eventID", out.EventID, "error", err)
	}
}
