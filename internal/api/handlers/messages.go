package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/waconsole/waconsole/internal/audit"
	"github.com/waconsole/waconsole/internal/message"
	"github.com/waconsole/waconsole/internal/models"
)

type MessageHandler struct {
	svc   *message.Service
	audit *audit.Service
}

func NewMessageHandler(svc *message.Service, auditSvc *audit.Service) *MessageHandler {
	return &MessageHandler{svc: svc, audit: auditSvc}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req message.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	m, err := h.svc.Send(r.Context(), req)
	if err != nil {
		// A gateway failure still produced a failed message row.
		if m != nil {
			h.audit.Record(r.Context(), audit.LogEntry{
				Action:       "message.send_failed",
				ResourceType: "message",
				ResourceID:   &m.ID,
				IPAddress:    clientIP(r),
			})
		}
		writeErr(w, err)
		return
	}

	h.audit.Record(r.Context(), audit.LogEntry{
		Action:       "message.send",
		ResourceType: "message",
		ResourceID:   &m.ID,
		IPAddress:    clientIP(r),
	})

	writeJSON(w, http.StatusCreated, m)
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	filter := message.ListFilter{Limit: limit, Offset: offset}
	if v := r.URL.Query().Get("device_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid device_id"})
			return
		}
		filter.DeviceID = &id
	}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = models.MessageStatus(v)
	}

	messages, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages, "count": len(messages)})
}

func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message ID"})
		return
	}

	m, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
