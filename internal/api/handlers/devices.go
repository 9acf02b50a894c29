package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/waconsole/waconsole/internal/audit"
	"github.com/waconsole/waconsole/internal/device"
)

type DeviceHandler struct {
	svc   *device.Service
	audit *audit.Service
}

func NewDeviceHandler(svc *device.Service, auditSvc *audit.Service) *DeviceHandler {
	return &DeviceHandler{svc: svc, audit: auditSvc}
}

func (h *DeviceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req device.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	d, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.audit.Record(r.Context(), audit.LogEntry{
		Action:       "device.create",
		ResourceType: "device",
		ResourceID:   &d.ID,
		IPAddress:    clientIP(r),
	})

	writeJSON(w, http.StatusCreated, d)
}

func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	devices, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"devices": devices, "count": len(devices)})
}

func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid device ID"})
		return
	}

	d, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DeviceHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid device ID"})
		return
	}

	qr, err := h.svc.QRCode(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qr)
}

// Status is the endpoint the dashboard polls on a fixed interval while
// the user scans the QR code.
func (h *DeviceHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid device ID"})
		return
	}

	d, err := h.svc.SyncStatus(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": d.ID, "status": d.Status})
}

func (h *DeviceHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid device ID"})
		return
	}

	d, err := h.svc.Disconnect(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.audit.Record(r.Context(), audit.LogEntry{
		Action:       "device.disconnect",
		ResourceType: "device",
		ResourceID:   &d.ID,
		IPAddress:    clientIP(r),
	})

	writeJSON(w, http.StatusOK, d)
}

func (h *DeviceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid device ID"})
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}

	h.audit.Record(r.Context(), audit.LogEntry{
		Action:       "device.delete",
		ResourceType: "device",
		ResourceID:   &id,
		IPAddress:    clientIP(r),
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
