package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/waconsole/waconsole/internal/apperr"
	"github.com/waconsole/waconsole/internal/device"
	"github.com/waconsole/waconsole/internal/message"
	"github.com/waconsole/waconsole/internal/models"
	"github.com/waconsole/waconsole/internal/webhook"
)

// GatewayEventHandler receives push callbacks from the WAHA gateway:
// session status changes and message delivery acks. The endpoint is
// unauthenticated but every request must carry a valid HMAC computed
// with the shared gateway webhook secret.
type GatewayEventHandler struct {
	secret   string
	devices  *device.Service
	messages *message.Service
}

func NewGatewayEventHandler(secret string, devices *device.Service, messages *message.Service) *GatewayEventHandler {
	return &GatewayEventHandler{secret: secret, devices: devices, messages: messages}
}

type gatewayEvent struct {
	Event   string          `json:"event"`
	Session string          `json:"session"`
	Payload json.RawMessage `json:"payload"`
}

func (h *GatewayEventHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	if h.secret != "" && !webhook.VerifySignature(body, h.secret, r.Header.Get("X-Webhook-Hmac")) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	var evt gatewayEvent
	if err := json.Unmarshal(body, &evt); err != nil || evt.Session == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid event"})
		return
	}

	d, err := h.devices.GetBySession(r.Context(), evt.Session)
	if err != nil {
		// Event for a session we no longer track; acknowledge so the
		// gateway stops retrying.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	switch evt.Event {
	case "session.status":
		h.sessionStatus(w, r, d, evt.Payload)
	case "message.ack":
		h.messageAck(w, r, d, evt.Payload)
	case "message":
		// Inbound message; only the counter is tracked.
		if err := h.devices.IncrementReceived(r.Context(), d.ID); err != nil {
			slog.Warn("received counter update failed", "device_id", d.ID, "error", err)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	}
}

func (h *GatewayEventHandler) sessionStatus(w http.ResponseWriter, r *http.Request, d *models.Device, payload json.RawMessage) {
	var p struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	_, err := h.devices.ApplyStatusByID(r.Context(), d.TenantID, d.ID, device.MapGatewayStatus(p.Status))
	if err != nil && apperr.KindOf(err) != apperr.KindInvalid {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *GatewayEventHandler) messageAck(w http.ResponseWriter, r *http.Request, d *models.Device, payload json.RawMessage) {
	var p struct {
		ID  string `json:"id"`
		Ack int    `json:"ack"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || p.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	status := models.MessageSent
	switch {
	case p.Ack < 0:
		status = models.MessageFailed
	case p.Ack >= 2:
		status = models.MessageDelivered
	}

	err := h.messages.UpdateStatusByExternalID(r.Context(), d.TenantID, p.ID, status)
	if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
