// Package handler exposes session management over the RPC mount and gRPC.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"pawplanner/backend/internal/guard"
	"pawplanner/backend/internal/platform/httpx"
	"pawplanner/backend/internal/session/domain"
	"pawplanner/backend/internal/session/service"
)

// Manager is the part of service.Service the handlers call.
type Manager interface {
	List(ctx context.Context, actor *guard.Identity, userID string) ([]*domain.Session, error)
	Revoke(ctx context.Context, actor *guard.Identity, sessionID string) (bool, error)
	RevokeAll(ctx context.Context, actor *guard.Identity, userID string) (int64, bool, error)
}

// SessionResponse is one session as returned to clients.
type SessionResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	IPAddress    string    `json:"ipAddress,omitempty"`
	UserAgent    string    `json:"userAgent,omitempty"`
	City         string    `json:"city,omitempty"`
	Country      string    `json:"country,omitempty"`
	Current      bool      `json:"current"`
}

// ListResponse is the sessions.list result.
type ListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// DeleteResponse is the sessions.delete result. SignedOut is true when the
// caller deleted the session it was using.
type DeleteResponse struct {
	OK        bool `json:"ok"`
	SignedOut bool `json:"signedOut"`
}

// RevokeAllResponse is the sessions.revokeAll result.
type RevokeAllResponse struct {
	Revoked   int64 `json:"revoked"`
	SignedOut bool  `json:"signedOut"`
}

type listRequest struct {
	UserID string `json:"userId"`
}

type deleteRequest struct {
	ID string `json:"id"`
}

type revokeAllRequest struct {
	UserID string `json:"userId"`
}

// HTTPHandler serves the sessions.* RPC procedures. All of them need a session.
type HTTPHandler struct {
	mgr    Manager
	cookie guard.CookieConfig
}

// NewHTTPHandler returns an HTTPHandler over mgr. cookie is used to clear the
// caller's cookie when it revokes its own session.
func NewHTTPHandler(mgr Manager, cookie guard.CookieConfig) *HTTPHandler {
	return &HTTPHandler{mgr: mgr, cookie: cookie}
}

// Procedures returns the sessions.* RPC procedures.
func (h *HTTPHandler) Procedures() httpx.Procedures {
	return httpx.Procedures{
		"sessions.list":      h.list,
		"sessions.delete":    h.delete,
		"sessions.revokeAll": h.revokeAll,
	}
}

func (h *HTTPHandler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := guard.IdentityFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "")
		return
	}
	var req listRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid request body")
		return
	}
	sessions, err := h.mgr.List(r.Context(), actor, req.UserID)
	if err != nil {
		writeServiceError(w, "list", err)
		return
	}
	out := ListResponse{Sessions: make([]SessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		out.Sessions = append(out.Sessions, toResponse(s, actor.SessionID))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := guard.IdentityFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "")
		return
	}
	var req deleteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.ID == "" {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "id is required")
		return
	}
	current, err := h.mgr.Revoke(r.Context(), actor, req.ID)
	if err != nil {
		writeServiceError(w, "delete", err)
		return
	}
	if current {
		h.cookie.ForRequest(r).Apply(w, guard.CookieMutation{Action: guard.CookieClear})
	}
	httpx.WriteJSON(w, http.StatusOK, DeleteResponse{OK: true, SignedOut: current})
}

func (h *HTTPHandler) revokeAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := guard.IdentityFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "")
		return
	}
	var req revokeAllRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.UserID == "" {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "userId is required")
		return
	}
	n, current, err := h.mgr.RevokeAll(r.Context(), actor, req.UserID)
	if err != nil {
		writeServiceError(w, "revoke all", err)
		return
	}
	if current {
		h.cookie.ForRequest(r).Apply(w, guard.CookieMutation{Action: guard.CookieClear})
	}
	httpx.WriteJSON(w, http.StatusOK, RevokeAllResponse{Revoked: n, SignedOut: current})
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, httpx.CodeForbidden, "")
	case errors.Is(err, service.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "")
	default:
		log.Printf("session: %s: %v", op, err)
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternal, "")
	}
}

func toResponse(s *domain.Session, currentID string) SessionResponse {
	return SessionResponse{
		ID:           s.ID,
		UserID:       s.UserID,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		ExpiresAt:    s.ExpiresAt,
		LastActiveAt: s.LastActiveAt,
		IPAddress:    s.IPAddress,
		UserAgent:    s.UserAgent,
		City:         s.City,
		Country:      s.Country,
		Current:      s.ID == currentID,
	}
}
