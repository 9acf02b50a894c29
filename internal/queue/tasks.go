package queue

const (
	TypeDeviceSync     = "device:sync"
	TypeWebhookDeliver = "webhook:deliver"
)

// DeviceSyncPayload drives the post-QR polling loop: the worker asks
// the gateway for session status and re-enqueues itself with a fixed
// delay until the device connects or attempts run out.
type DeviceSyncPayload struct {
	DeviceID string `json:"device_id"`
	TenantID string `json:"tenant_id"`
	Attempt  int    `json:"attempt"`
}

type WebhookDeliverPayload struct {
	WebhookID string `json:"webhook_id"`
	Event     string `json:"event"`
	Payload   string `json:"payload"` // JSON string
}
