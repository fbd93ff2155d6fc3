package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oakleydye/oakley-metrics/internal/middleware"
	"github.com/oakleydye/oakley-metrics/internal/models"
	apierrors "github.com/oakleydye/oakley-metrics/internal/pkg/errors"
	"github.com/oakleydye/oakley-metrics/internal/pkg/response"
	"github.com/oakleydye/oakley-metrics/internal/service"
)

// Redirect targets of the login flow.
const (
	dashboardPath = "/dashboard"
	errorPath     = "/"
)

// AuthHandler handles login, logout and session endpoints.
type AuthHandler struct {
	oauth    service.OAuthService
	sessions service.SessionService
	accounts service.AccountService
	cookies  *CookieJar
	logger   *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(
	oauth service.OAuthService,
	sessions service.SessionService,
	accounts service.AccountService,
	cookies *CookieJar,
	logger *slog.Logger,
) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		oauth:    oauth,
		sessions: sessions,
		accounts: accounts,
		cookies:  cookies,
		logger:   logger,
	}
}

// Routes returns a chi router with auth routes. Only /session runs behind
// authenticate; login, callback, logout and refresh must work when the
// session store cannot be read.
func (h *AuthHandler) Routes(authenticate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/login", h.Login)
	r.Get("/callback", h.Callback)
	r.Get("/logout", h.Logout)
	r.Post("/logout", h.LogoutJSON)
	r.Post("/refresh", h.Refresh)
	r.With(authenticate).Get("/session", h.Session)

	return r
}

// generateState returns a random URL-safe OAuth state value.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, errorPath+"?error="+url.QueryEscape(code), http.StatusFound)
}

// Login handles GET /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		response.Error(w, err)
		return
	}

	if err := h.cookies.SaveState(w, r, state); err != nil {
		h.logger.Error("failed to save oauth state", slog.String("error", err.Error()))
		response.Error(w, err)
		return
	}

	http.Redirect(w, r, h.oauth.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback handles GET /api/auth/callback
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Handle OAuth error from provider
	if providerErr := q.Get("error"); providerErr != "" {
		h.logger.Warn("provider returned an error",
			slog.String("error", providerErr),
			slog.String("description", q.Get("error_description")),
		)
		redirectWithError(w, r, providerErr)
		return
	}

	code := q.Get("code")
	if code == "" {
		redirectWithError(w, r, "no_code")
		return
	}

	savedState := h.cookies.ConsumeState(w, r)
	state := q.Get("state")
	if savedState == "" || subtle.ConstantTimeCompare([]byte(savedState), []byte(state)) != 1 {
		redirectWithError(w, r, "invalid_state")
		return
	}

	user, issued, err := h.oauth.HandleCallback(r.Context(), code)
	if err != nil {
		stage := apierrors.FailedStage(err)
		if stage == "" {
			stage = apierrors.StageSession
		}
		redirectWithError(w, r, stage)
		return
	}

	if err := h.cookies.SetSession(w, r, issued); err != nil {
		h.logger.Error("failed to set session cookies",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()),
		)
		if err := h.sessions.Invalidate(r.Context(), issued.AccessToken, issued.RefreshToken); err != nil {
			h.logger.Warn("failed to discard unsent session", slog.String("error", err.Error()))
		}
		redirectWithError(w, r, apierrors.StageSession)
		return
	}

	http.Redirect(w, r, dashboardPath, http.StatusFound)
}

// endSession deletes the server-side records and expires every cookie.
// Cookies are cleared even when the records could not be deleted.
func (h *AuthHandler) endSession(w http.ResponseWriter, r *http.Request) {
	access := cookieValue(r, AccessTokenCookie)
	refresh := cookieValue(r, RefreshTokenCookie)
	if err := h.sessions.Invalidate(r.Context(), access, refresh); err != nil {
		h.logger.Error("failed to invalidate session", slog.String("error", err.Error()))
	}
	h.cookies.ClearSession(w)
}

// Logout handles GET /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.endSession(w, r)
	http.Redirect(w, r, h.oauth.LogoutURL(), http.StatusFound)
}

// LogoutResponse is the body of POST /api/auth/logout.
type LogoutResponse struct {
	Success bool `json:"success"`
}

// LogoutJSON handles POST /api/auth/logout
func (h *AuthHandler) LogoutJSON(w http.ResponseWriter, r *http.Request) {
	h.endSession(w, r)
	response.OK(w, LogoutResponse{Success: true})
}

// RefreshResponse is the body of a successful refresh.
type RefreshResponse struct {
	User      *models.User `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	issued, user, err := h.sessions.Refresh(r.Context(), cookieValue(r, RefreshTokenCookie))
	if err != nil {
		// Storage faults surface as 500; everything else means log in again.
		if apierrors.IsStorageError(err) {
			writeError(w, h.logger, err)
			return
		}
		h.logger.Info("session refresh rejected", slog.String("error", err.Error()))
		response.Error(w, apierrors.ErrUnauthorized)
		return
	}

	if err := h.cookies.SetSession(w, r, issued); err != nil {
		h.logger.Error("failed to set session cookies", slog.String("error", err.Error()))
		response.Error(w, err)
		return
	}

	response.OK(w, RefreshResponse{User: user, ExpiresAt: issued.AccessExpiresAt})
}

// Session handles GET /api/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Error(w, apierrors.ErrUnauthorized.WithDetails(map[string]models.SessionState{
			"state": h.anonymousState(r),
		}))
		return
	}

	profile, err := h.accounts.Profile(r.Context(), identity)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.OK(w, profile)
}

// anonymousState tells a login in progress apart from no login at all.
func (h *AuthHandler) anonymousState(r *http.Request) models.SessionState {
	if h.cookies.HasState(r) {
		return models.SessionPending
	}
	return models.SessionAnonymous
}
