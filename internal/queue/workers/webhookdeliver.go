package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/waconsole/waconsole/internal/queue"
	"github.com/waconsole/waconsole/internal/webhook"
)

// WebhookDeliverWorker is the durable redelivery path: asynq retries a
// failed delivery with backoff where the in-process dispatcher gives a
// single attempt.
type WebhookDeliverWorker struct {
	webhooks   *webhook.Service
	dispatcher *webhook.Dispatcher
}

func NewWebhookDeliverWorker(webhooks *webhook.Service, dispatcher *webhook.Dispatcher) *WebhookDeliverWorker {
	return &WebhookDeliverWorker{webhooks: webhooks, dispatcher: dispatcher}
}

func (w *WebhookDeliverWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.WebhookDeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	webhookID, err := uuid.Parse(payload.WebhookID)
	if err != nil {
		return fmt.Errorf("invalid webhook id: %w", err)
	}

	url, secret, err := w.webhooks.GetEndpoint(ctx, webhookID)
	if err != nil {
		// Endpoint removed or deactivated; drop the delivery.
		return nil
	}

	return w.dispatcher.Deliver(webhook.DeliveryRequest{
		WebhookID: webhookID,
		URL:       url,
		Secret:    secret,
		Event:     payload.Event,
		Payload:   []byte(payload.Payload),
	})
}
