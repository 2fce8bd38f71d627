// Package handler serves the dev-only OTP outbox over HTTP (GET /dev/otp).
package handler

import (
	"net/http"
	"time"

	"pawplanner/backend/internal/devotp"
	"pawplanner/backend/internal/platform/httpx"
)

const devOTPNote = "DEV MODE ONLY"

// Response is the body of GET /dev/otp.
type Response struct {
	Kind      string    `json:"kind"`
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expiresAt"`
	Note      string    `json:"note"`
}

// Handler serves the last code or link sent to ?email=. Only mounted when dev OTP is enabled and not production.
type Handler struct {
	store devotp.Store
}

// NewHandler returns a Handler that reads from the given store.
func NewHandler(store devotp.Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "email is required")
		return
	}
	e, ok := h.store.Get(r.Context(), email)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "no code sent or expired")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, Response{Kind: e.Kind, Value: e.Value, ExpiresAt: e.ExpiresAt, Note: devOTPNote})
}
