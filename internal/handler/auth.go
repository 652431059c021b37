package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/archpal/coaching-platform/internal/auth"
	"github.com/archpal/coaching-platform/internal/middleware"
	"github.com/archpal/coaching-platform/internal/model"
	"github.com/archpal/coaching-platform/internal/service"
	"github.com/archpal/coaching-platform/pkg/logger"
)

const (
	oauthStateCookie = "archpal_oauth_state"
	oauthStateTTL    = 10 * time.Minute
)

// AuthHandler handles the sign-in flow.
type AuthHandler struct {
	provider   auth.Provider
	controller *service.Controller
	codec      *middleware.SessionCodec
	appBaseURL string
	secure     bool
	logger     *logger.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(
	provider auth.Provider,
	ctrl *service.Controller,
	codec *middleware.SessionCodec,
	appBaseURL string,
	secureCookies bool,
	log *logger.Logger,
) *AuthHandler {
	return &AuthHandler{
		provider:   provider,
		controller: ctrl,
		codec:      codec,
		appBaseURL: appBaseURL,
		secure:     secureCookies,
		logger:     log,
	}
}

// Login handles GET /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// Callback handles GET /auth/callback
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		h.logger.Info("Sign-in cancelled at provider", zap.String("error", e))
		writeError(w, http.StatusUnauthorized, "sign-in was not completed")
		return
	}

	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || q.Get("state") == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(q.Get("state"))) != 1 {
		writeError(w, http.StatusBadRequest, "invalid sign-in state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/auth", MaxAge: -1})

	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	identity, err := h.provider.Exchange(ctx, code)
	if err != nil {
		var pv *model.PolicyViolationError
		switch {
		case errors.As(err, &pv):
			h.logger.Info("Sign-in rejected by domain policy")
			writeJSON(w, http.StatusForbidden, errorResponse{Error: pv.Reason, Code: "policy_violation"})
		default:
			h.logger.Warn("Authorization code exchange failed", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "sign-in failed")
		}
		return
	}

	state, _, err := h.controller.Login(ctx, identity.UserID, identity.Email)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if err := h.codec.Write(w, state); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	http.Redirect(w, r, h.appBaseURL, http.StatusFound)
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.codec.Clear(w)
	writeJSON(w, http.StatusOK, map[string]string{
		"logout_url": h.provider.LogoutURL(),
	})
}
