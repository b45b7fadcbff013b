package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/asaskevich/EventBus"
	"github.com/gofrs/uuid"
	"github.com/m-gauthier/pwa-push/models"
	"github.com/zeebo/errs"
	"golang.org/x/sync/errgroup"
)

// DispatchSummaryTopic is the event bus topic dispatch summaries are published on.
const DispatchSummaryTopic = "notifications:dispatched"

// Error is the error class of the dispatch service.
var Error = errs.Class("dispatcher")

type sendFunc func(ctx context.Context, message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error)

// Dispatcher fans a notification payload out to every registered subscription
// over the Web Push protocol, collecting per-recipient outcomes. One
// recipient's failure never blocks or fails another's attempt.
type Dispatcher struct {
	registry SubscriptionRegistry
	config   *models.Config
	bus      *EventBus.Bus
	send     sendFunc
}

// NewDispatcher creates the dispatch service. It fails when the VAPID sender
// identity is not configured, since no delivery can possibly succeed without it.
func NewDispatcher(registry SubscriptionRegistry, config *models.Config, bus *EventBus.Bus) (*Dispatcher, error) {
	if config.VapidPublicKey == "" || config.VapidPrivateKey == "" {
		return nil, Error.New("VAPID key pair is not configured")
	}
	if config.AdminEmail == "" {
		return nil, Error.New("sender contact email is not configured")
	}
	return &Dispatcher{
		registry: registry,
		config:   config,
		bus:      bus,
		send:     webpush.SendNotificationWithContext,
	}, nil
}

// Dispatch sends the payload to every subscription in the registry snapshot
// taken when the call starts. Delivery attempts run concurrently and
// independently; the result list always has exactly one entry per snapshot
// subscription, even when individual attempts fail or the overall timeout
// expires. Only payload encoding or a registry read failure fail the call as
// a whole.
func (d *Dispatcher) Dispatch(ctx context.Context, payload *models.NotificationPayload) ([]models.DeliveryResult, error) {
	message, err := payload.Encode(d.config.MaxPayloadSize)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	subscriptions, err := d.registry.List()
	if err != nil {
		return nil, Error.Wrap(err)
	}

	if d.config.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.DispatchTimeout)
		defer cancel()
	}

	results := make([]models.DeliveryResult, len(subscriptions))
	var group errgroup.Group
	group.SetLimit(d.config.DispatchConcurrency)
	for i := range subscriptions {
		i := i
		subscription := subscriptions[i]
		group.Go(func() error {
			results[i] = d.deliver(ctx, message, &subscription)
			return nil
		})
	}
	// Wait for all outcomes regardless of individual failures.
	_ = group.Wait()

	d.publishSummary(payload, results)
	return results, nil
}

// deliver attempts a single delivery and classifies its outcome.
func (d *Dispatcher) deliver(ctx context.Context, message []byte, subscription *models.Subscription) models.DeliveryResult {
	result := models.DeliveryResult{Endpoint: subscription.Endpoint}

	resp, err := d.send(ctx, message, subscription.WebPush(), &webpush.Options{
		Subscriber:      d.config.AdminEmail,
		VAPIDPublicKey:  d.config.VapidPublicKey,
		VAPIDPrivateKey: d.config.VapidPrivateKey,
		TTL:             d.config.PushTTL,
	})
	if err != nil {
		result.Outcome = models.OutcomeFailed
		result.Reason = err.Error()
		return result
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// The push service signals that the subscription is no longer active,
		// so let it self-heal out of the registry. The removal doesn't hold up
		// the remaining deliveries.
		result.Outcome = models.OutcomeGone
		result.Reason = fmt.Sprintf("push service returned status %d", resp.StatusCode)
		go func(endpoint string) {
			if err := d.registry.Remove(endpoint); err != nil {
				log.Printf("Dispatcher: Failed to remove gone subscription %s: %s", endpoint, err.Error())
			} else {
				log.Printf("Dispatcher: Removed gone subscription %s", endpoint)
			}
		}(subscription.Endpoint)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result.Outcome = models.OutcomeDelivered
	default:
		result.Outcome = models.OutcomeFailed
		result.Reason = fmt.Sprintf("push service returned status %d", resp.StatusCode)
	}
	return result
}

func (d *Dispatcher) publishSummary(payload *models.NotificationPayload, results []models.DeliveryResult) {
	dispatchID, _ := uuid.NewV4()
	summary := models.DispatchSummary{
		ID:     dispatchID,
		Title:  payload.Title,
		Total:  len(results),
		SentAt: time.Now(),
	}
	for _, result := range results {
		switch result.Outcome {
		case models.OutcomeDelivered:
			summary.Delivered++
		case models.OutcomeGone:
			summary.Gone++
		default:
			summary.Failed++
		}
	}
	log.Printf("Dispatcher: Dispatch %s: %d delivered, %d failed, %d gone out of %d subscriptions",
		summary.ID, summary.Delivered, summary.Failed, summary.Gone, summary.Total)
	if d.bus != nil {
		bus := *d.bus
		bus.Publish(DispatchSummaryTopic, summary)
	}
}
