package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waconsole/waconsole/internal/queue"
)

// RedeliveryQueue hands deliveries the in-process attempt could not
// land over to the job queue, which retries them with backoff.
type RedeliveryQueue interface {
	EnqueueWebhookDeliver(payload queue.WebhookDeliverPayload) error
}

// Dispatcher pushes signed event payloads to tenant-registered webhook
// endpoints from a buffered channel. A delivery that fails the first
// attempt, or that cannot even be buffered, falls back to the durable
// job queue.
type Dispatcher struct {
	db         *pgxpool.Pool
	jobs       RedeliveryQueue
	httpClient *http.Client
	deliveries chan DeliveryRequest
}

type DeliveryRequest struct {
	WebhookID uuid.UUID
	URL       string
	Secret    string
	Event     string
	Payload   []byte
}

func NewDispatcher(db *pgxpool.Pool, jobs RedeliveryQueue) *Dispatcher {
	d := &Dispatcher{
		db:   db,
		jobs: jobs,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		deliveries: make(chan DeliveryRequest, 1000),
	}
	go d.processLoop()
	return d
}

func (d *Dispatcher) Enqueue(req DeliveryRequest) {
	select {
	case d.deliveries <- req:
	default:
		slog.Warn("webhook delivery queue full, deferring to job queue", "webhook_id", req.WebhookID, "event", req.Event)
		d.redeliver(req)
	}
}

func (d *Dispatcher) processLoop() {
	for req := range d.deliveries {
		if err := d.Deliver(req); err != nil {
			d.redeliver(req)
		}
	}
}

func (d *Dispatcher) redeliver(req DeliveryRequest) {
	if d.jobs == nil {
		return
	}
	err := d.jobs.EnqueueWebhookDeliver(queue.WebhookDeliverPayload{
		WebhookID: req.WebhookID.String(),
		Event:     req.Event,
		Payload:   string(req.Payload),
	})
	if err != nil {
		slog.Error("webhook redelivery enqueue failed", "webhook_id", req.WebhookID, "error", err)
	}
}

// Deliver performs one delivery attempt and records the outcome.
func (d *Dispatcher) Deliver(req DeliveryRequest) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Payload))
	if err != nil {
		d.recordDelivery(ctx, req, 0, err)
		return fmt.Errorf("create webhook request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Webhook-Event", req.Event)
	httpReq.Header.Set("X-Webhook-Signature", Sign(req.Payload, req.Secret))
	httpReq.Header.Set("X-Webhook-ID", req.WebhookID.String())

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("webhook delivery failed", "error", err, "webhook_id", req.WebhookID)
		d.recordDelivery(ctx, req, 0, err)
		return err
	}
	defer resp.Body.Close()

	d.recordDelivery(ctx, req, resp.StatusCode, nil)

	if resp.StatusCode >= 400 {
		slog.Warn("webhook received non-success response", "status", resp.StatusCode, "webhook_id", req.WebhookID)
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) recordDelivery(ctx context.Context, req DeliveryRequest, status int, deliveryErr error) {
	if d.db == nil {
		return
	}
	var deliveredAt *time.Time
	if deliveryErr == nil && status < 400 {
		now := time.Now()
		deliveredAt = &now
	}

	_, err := d.db.Exec(ctx,
		`INSERT INTO webhook_deliveries (webhook_id, event, payload, response_status, attempts, delivered_at)
		 VALUES ($1, $2, $3, $4, 1, $5)`,
		req.WebhookID, req.Event, req.Payload, status, deliveredAt,
	)
	if err != nil {
		slog.Error("failed to record webhook delivery", "error", err)
	}
}

// Sign computes the HMAC-SHA256 signature header value for a payload.
// The same scheme verifies inbound gateway callbacks.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}

// VerifySignature checks a received signature against the payload.
func VerifySignature(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}
