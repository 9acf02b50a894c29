package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/waconsole/waconsole/internal/audit"
	"github.com/waconsole/waconsole/internal/auth"
	"github.com/waconsole/waconsole/internal/tenant"
)

type AuthHandler struct {
	svc   *auth.Service
	audit *audit.Service
}

func NewAuthHandler(svc *auth.Service, auditSvc *audit.Service) *AuthHandler {
	return &AuthHandler{svc: svc, audit: auditSvc}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	user, pair, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.audit.Record(r.Context(), audit.LogEntry{
		Action:       "auth.register",
		ResourceType: "user",
		ResourceID:   &user.ID,
		IPAddress:    clientIP(r),
		TenantID:     &user.TenantID,
		UserID:       &user.ID,
	})

	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": user, "tokens": pair})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	user, pair, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.audit.Record(r.Context(), audit.LogEntry{
		Action:       "auth.login",
		ResourceType: "user",
		ResourceID:   &user.ID,
		IPAddress:    clientIP(r),
		TenantID:     &user.TenantID,
		UserID:       &user.ID,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user, "tokens": pair})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "refresh_token required"})
		return
	}

	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tokens": pair})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "refresh_token required"})
		return
	}

	if err := h.svc.Logout(r.Context(), req.RefreshToken); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user := tenant.UserFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no user in context"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := tenant.UserFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no user in context"})
		return
	}

	var req auth.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	updated, err := h.svc.UpdateProfile(r.Context(), user.ID, req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := tenant.UserFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no user in context"})
		return
	}

	var req auth.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := h.svc.ChangePassword(r.Context(), user.ID, req); err != nil {
		writeErr(w, err)
		return
	}

	h.audit.Record(r.Context(), audit.LogEntry{
		Action:       "auth.password_change",
		ResourceType: "user",
		ResourceID:   &user.ID,
		IPAddress:    clientIP(r),
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}
