// Package handler serves the sign-in endpoints: the magic-link callback and the
// auth.* RPC procedures.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"pawplanner/backend/internal/guard"
	"pawplanner/backend/internal/identity/service"
	"pawplanner/backend/internal/platform/httpx"
	"pawplanner/backend/internal/platform/ratelimit"
	sessiondomain "pawplanner/backend/internal/session/domain"
)

// LoginIssuer is the part of service.LoginService the handlers call.
type LoginIssuer interface {
	SendMagicLink(ctx context.Context, email string) error
	SendVerificationCode(ctx context.Context, email string) error
	ExchangeMagicLink(ctx context.Context, token string, fp sessiondomain.Fingerprint) (*service.LoginResult, error)
	ValidateVerificationCode(ctx context.Context, email, code string, fp sessiondomain.Fingerprint) (*service.LoginResult, error)
	SignOut(ctx context.Context, sessionID string) error
}

// Config configures Handler.
type Config struct {
	Cookie guard.CookieConfig
	Edge   guard.EdgeHeaders
	// SignInPath receives failed magic-link redemptions with ?error=invalid-link.
	SignInPath string
	// AfterSignInPath is where a redeemed magic link lands. Defaults to "/".
	AfterSignInPath string
}

// Handler serves the sign-in endpoints.
type Handler struct {
	svc LoginIssuer
	cfg Config
}

// NewHandler returns a Handler over svc.
func NewHandler(svc LoginIssuer, cfg Config) *Handler {
	if cfg.SignInPath == "" {
		cfg.SignInPath = "/sign-in"
	}
	if cfg.AfterSignInPath == "" {
		cfg.AfterSignInPath = "/"
	}
	return &Handler{svc: svc, cfg: cfg}
}

// PublicProcedures are the auth.* procedures served without a session.
var PublicProcedures = map[string]bool{
	"auth.sendMagicLink": true,
	"auth.sendCode":      true,
	"auth.validateCode":  true,
}

// Procedures returns the auth.* RPC procedures.
func (h *Handler) Procedures() httpx.Procedures {
	return httpx.Procedures{
		"auth.sendMagicLink": h.sendMagicLink,
		"auth.sendCode":      h.sendCode,
		"auth.validateCode":  h.validateCode,
		"auth.me":            h.me,
		"auth.signOut":       h.signOut,
	}
}

type emailRequest struct {
	Email string `json:"email"`
}

type validateCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// UserResponse is the signed-in user as returned by auth.me.
type UserResponse struct {
	ID       string `json:"id"`
	OrgID    string `json:"orgId"`
	Role     string `json:"role"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Timezone string `json:"timezone"`
}

// MeResponse is the auth.me result.
type MeResponse struct {
	SessionID string       `json:"sessionId"`
	User      UserResponse `json:"user"`
}

// MagicLink redeems GET /auth/magic-link?token=… and redirects with 303.
func (h *Handler) MagicLink(w http.ResponseWriter, r *http.Request) {
	cookie := h.cfg.Cookie.ForRequest(r)
	fp := guard.FingerprintOf(guard.NewHTTPRequest(r, h.cfg.Edge))
	res, err := h.svc.ExchangeMagicLink(r.Context(), r.URL.Query().Get("token"), fp)
	if err != nil {
		if !isCodeError(err) {
			log.Printf("identity: exchange magic link: %v", err)
		}
		http.Redirect(w, r, h.cfg.SignInPath+"?error=invalid-link", http.StatusSeeOther)
		return
	}
	cookie.Apply(w, guard.CookieMutation{Action: guard.CookieSet, Value: res.Token})
	http.Redirect(w, r, h.cfg.AfterSignInPath, http.StatusSeeOther)
}

func (h *Handler) sendMagicLink(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, h.svc.SendMagicLink)
}

func (h *Handler) sendCode(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, h.svc.SendVerificationCode)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request, send func(context.Context, string) error) {
	var req emailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid request body")
		return
	}
	err := send(r.Context(), req.Email)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, okResponse{OK: true})
	case errors.Is(err, service.ErrNoUserFound):
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeNoUserFound, "")
	case errors.Is(err, service.ErrInvalidEmail):
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid email")
	default:
		log.Printf("identity: send sign-in credential: %v", err)
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternal, "")
	}
}

func (h *Handler) validateCode(w http.ResponseWriter, r *http.Request) {
	var req validateCodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid request body")
		return
	}
	fp := guard.FingerprintOf(guard.NewHTTPRequest(r, h.cfg.Edge))
	res, err := h.svc.ValidateVerificationCode(r.Context(), req.Email, req.Code, fp)
	if err != nil {
		var locked *service.LockedOutError
		if errors.As(err, &locked) {
			w.Header().Set("Retry-After", ratelimit.RetryAfterSeconds(locked.RetryAfter))
			httpx.WriteError(w, http.StatusTooManyRequests, httpx.CodeTooManyAttempts, "too many failed attempts; try again later")
			return
		}
		if isCodeError(err) {
			httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidOrExpiredCode, "")
			return
		}
		log.Printf("identity: validate code: %v", err)
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternal, "")
		return
	}
	h.cfg.Cookie.ForRequest(r).Apply(w, guard.CookieMutation{Action: guard.CookieSet, Value: res.Token})
	httpx.WriteJSON(w, http.StatusOK, okResponse{OK: true})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	id, ok := guard.IdentityFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, MeResponse{
		SessionID: id.SessionID,
		User: UserResponse{
			ID:       id.User.ID,
			OrgID:    id.User.OrgID,
			Role:     id.User.Role,
			Name:     id.User.Name,
			Email:    id.User.Email,
			Timezone: id.User.Timezone,
		},
	})
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	id, ok := guard.IdentityFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "")
		return
	}
	if err := h.svc.SignOut(r.Context(), id.SessionID); err != nil {
		log.Printf("identity: sign out: %v", err)
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternal, "")
		return
	}
	h.cfg.Cookie.ForRequest(r).Apply(w, guard.CookieMutation{Action: guard.CookieClear})
	httpx.WriteJSON(w, http.StatusOK, okResponse{OK: true})
}

func isCodeError(err error) bool {
	return errors.Is(err, service.ErrCodeNotFound) || errors.Is(err, service.ErrCodeExpired)
}
