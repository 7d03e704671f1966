package api

import (
	"context"
	"net/http"
	"time"

	"pretgo/internal/config"
	"pretgo/internal/domain"
	"pretgo/internal/models"
	"pretgo/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	loginAttempts = 5
	loginWindow   = 15 * time.Minute
)

type sessionKey struct{}

// AdminAuth issues admin session cookies and guards admin routes.
type AdminAuth struct {
	cfg      config.AdminConfig
	sessions domain.SessionStore
	settings *service.SettingsService
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewAdminAuth(cfg config.AdminConfig, sessions domain.SessionStore, settings *service.SettingsService, logger *zerolog.Logger) *AdminAuth {
	if cfg.CookieName == "" {
		cfg.CookieName = "pretgo_admin"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = models.DefaultSessionTTL * time.Second
	}
	return &AdminAuth{cfg: cfg, sessions: sessions, settings: settings, logger: logger, now: time.Now}
}

// Require rejects requests without a valid session cookie.
func (a *AdminAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := a.session(r)
		if err != nil {
			a.logger.Error().Err(err).Msg("Session lookup failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if session == nil {
			writeError(w, http.StatusUnauthorized, "admin session required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

func (a *AdminAuth) session(r *http.Request) (*models.AdminSession, error) {
	cookie, err := r.Cookie(a.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	s, err := a.sessions.GetSession(r.Context(), cookie.Value)
	if err != nil || s == nil {
		return nil, err
	}
	if s.Expired(a.now()) {
		return nil, nil
	}
	return s, nil
}

// allowAttempt counts a password attempt for the client.
func (a *AdminAuth) allowAttempt(w http.ResponseWriter, r *http.Request, action string) bool {
	allowed, err := a.sessions.CheckRateLimit(r.Context(), action+":"+clientIP(r), loginAttempts, loginWindow)
	if err != nil {
		a.logger.Error().Err(err).Msg("Rate limit check failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return false
	}
	if !allowed {
		a.logger.Warn().Str("ip", clientIP(r)).Str("action", action).Msg("Too many password attempts")
		writeError(w, http.StatusTooManyRequests, "too many attempts, try again later")
		return false
	}
	return true
}

func (a *AdminAuth) startSession(w http.ResponseWriter, r *http.Request) error {
	now := a.now()
	s := &models.AdminSession{
		Token:     uuid.NewString(),
		RemoteIP:  clientIP(r),
		CreatedAt: now,
		ExpiresAt: now.Add(a.cfg.SessionTTL),
	}
	if err := a.sessions.SaveSession(r.Context(), s); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (a *AdminAuth) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, r, a.logger, err)
		return
	}
	if !a.allowAttempt(w, r, "login") {
		return
	}

	setupRequired, err := a.settings.Login(r.Context(), body.Password)
	if err != nil {
		writeServiceError(w, r, a.logger, err)
		return
	}
	if err := a.startSession(w, r); err != nil {
		writeServiceError(w, r, a.logger, err)
		return
	}
	a.logger.Info().Str("ip", clientIP(r)).Msg("Admin logged in")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "setup_required": setupRequired})
}

func (a *AdminAuth) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(a.cfg.CookieName); err == nil && cookie.Value != "" {
		if err := a.sessions.DeleteSession(r.Context(), cookie.Value); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to delete session")
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type passwordRequest struct {
	Current  string `json:"current"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
	Code     string `json:"code"`
}

// handleSetup replaces the default password after the first login.
func (a *AdminAuth) handleSetup(w http.ResponseWriter, r *http.Request) {
	var body passwordRequest
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, r, a.logger, err)
		return
	}
	code, err := a.settings.SetupPassword(r.Context(), body.Password, body.Confirm)
	if err != nil {
		writeServiceError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"recovery_code": code})
}

func (a *AdminAuth) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var body passwordRequest
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, r, a.logger, err)
		return
	}
	if !a.allowAttempt(w, r, "password") {
		return
	}
	code, err := a.settings.ChangePassword(r.Context(), body.Current, body.Password, body.Confirm)
	if err != nil {
		writeServiceError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"recovery_code": code})
}

// handleRecover resets a forgotten password with the recovery code and
// opens a session.
func (a *AdminAuth) handleRecover(w http.ResponseWriter, r *http.Request) {
	var body passwordRequest
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, r, a.logger, err)
		return
	}
	if !a.allowAttempt(w, r, "recover") {
		return
	}
	code, err := a.settings.ResetPassword(r.Context(), body.Code, body.Password, body.Confirm)
	if err != nil {
		writeServiceError(w, r, a.logger, err)
		return
	}
	if err := a.startSession(w, r); err != nil {
		writeServiceError(w, r, a.logger, err)
		return
	}
	a.logger.Warn().Str("ip", clientIP(r)).Msg("Admin password reset with recovery code")
	writeJSON(w, http.StatusOK, map[string]string{"recovery_code": code})
}

func (a *AdminAuth) handleStatus(w http.ResponseWriter, r *http.Request) {
	session, err := a.session(r)
	if err != nil {
		writeServiceError(w, r, a.logger, err)
		return
	}
	resp := map[string]any{"admin": session != nil}
	if session != nil {
		required, err := a.settings.SetupRequired(r.Context())
		if err != nil {
			writeServiceError(w, r, a.logger, err)
			return
		}
		resp["setup_required"] = required
		resp["expires_at"] = session.ExpiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}
