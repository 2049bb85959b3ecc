package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"timberline-crm/internal/auth"
	"timberline-crm/internal/http/httperr"
	"timberline-crm/internal/observability/logger"
)

// SessionHandler logs the single admin operator in and out. Credentials come
// from configuration, not from a user table: this back office has exactly one
// operator.
type SessionHandler struct {
	sessions          *auth.SessionManager
	adminEmail        string
	adminPasswordHash string
}

func NewSessionHandler(sessions *auth.SessionManager, adminEmail, adminPasswordHash string) *SessionHandler {
	return &SessionHandler{
		sessions:          sessions,
		adminEmail:        adminEmail,
		adminPasswordHash: adminPasswordHash,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	OK    bool   `json:"ok"`
	Email string `json:"email"`
}

// Login handles POST /api/auth/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(strings.ToLower(h.adminEmail))) == 1
	passwordErr := bcrypt.CompareHashAndPassword([]byte(h.adminPasswordHash), []byte(req.Password))

	if !emailOK || passwordErr != nil {
		log.Warn(ctx, "failed login attempt", zap.String("remote_addr", r.RemoteAddr))
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidSession, "invalid credentials")
		return
	}

	cookie, err := h.sessions.Issue(h.adminEmail, time.Now().UTC())
	if err != nil {
		logger.SetRootError(ctx, err)
		httperr.InternalError500(w, ctx, "could not create session")
		return
	}

	http.SetCookie(w, cookie)
	log.Info(ctx, "admin logged in", logger.Module("auth"), logger.Action("login"))
	writeJSON(w, http.StatusOK, loginResponse{OK: true, Email: h.adminEmail})
}

// Logout handles POST /api/auth/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessions.Clear())
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me handles GET /api/auth/me (behind the session middleware)
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := auth.GetClaims(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeMissingSession, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{OK: true, Email: claims.Email})
}
