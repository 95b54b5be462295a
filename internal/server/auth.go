package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/repositories"
	"github.com/desertthunder/playsync/internal/services"
	"github.com/desertthunder/playsync/internal/shared"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type identityKey struct{}

// IdentityFrom returns the identity [AuthHandler.Require] attached to ctx.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(models.Identity)
	return identity, ok
}

// AuthHandler serves account sign-up, log-in, log-out and the current-identity query.
//
// Passwords are stored as bcrypt hashes; every successful sign-up or log-in issues a new opaque bearer token.
type AuthHandler struct {
	mux      *http.ServeMux
	users    *repositories.UserRepository
	sessions *repositories.SessionRepository
	ttl      time.Duration
	cost     int
	logger   *log.Logger
	now      func() time.Time
}

// NewAuthHandler creates an [AuthHandler]. Sessions last ttl; cost is the bcrypt work factor.
func NewAuthHandler(users *repositories.UserRepository, sessions *repositories.SessionRepository, ttl time.Duration, cost int, logger *log.Logger) *AuthHandler {
	h := &AuthHandler{
		mux:      http.NewServeMux(),
		users:    users,
		sessions: sessions,
		ttl:      ttl,
		cost:     cost,
		logger:   logger,
		now:      time.Now,
	}

	h.mux.HandleFunc("POST /auth/signup", h.signUp)
	h.mux.HandleFunc("POST /auth/login", h.logIn)
	h.mux.Handle("POST /auth/logout", h.Require(http.HandlerFunc(h.logOut)))
	h.mux.Handle("GET /auth/me", h.Require(http.HandlerFunc(h.me)))
	return h
}

// Routes implements [Handler].
func (h *AuthHandler) Routes() []string {
	return []string{"POST /auth/signup", "POST /auth/login", "POST /auth/logout", "GET /auth/me"}
}

// ServeHTTP implements [Handler].
func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *AuthHandler) signUp(w http.ResponseWriter, r *http.Request) {
	var creds services.CredentialsPayload
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	email := shared.NormalizeEmail(creds.Email)
	if !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(creds.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), h.cost)
	if err != nil {
		h.logger.Error("password hash failed", "error", err)
		writeError(w, http.StatusBadRequest, "password cannot be used")
		return
	}

	user := models.NewUser(0, email, string(hash))
	if err := h.users.Create(user); err != nil {
		if errors.Is(err, shared.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		h.logger.Error("user create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create account")
		return
	}

	identity, err := h.issue(user)
	if err != nil {
		h.logger.Error("session create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	h.logger.Info("account created", "user", user.ID())
	writeJSON(w, http.StatusCreated, services.IdentityPayload(identity))
}

func (h *AuthHandler) logIn(w http.ResponseWriter, r *http.Request) {
	var creds services.CredentialsPayload
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.GetByEmail(creds.Email)
	if err != nil {
		if !errors.Is(err, shared.ErrUserNotFound) {
			h.logger.Error("user lookup failed", "error", err)
		}
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash()), []byte(creds.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	identity, err := h.issue(user)
	if err != nil {
		h.logger.Error("session create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	writeJSON(w, http.StatusOK, services.IdentityPayload(identity))
}

func (h *AuthHandler) logOut(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())
	if err := h.sessions.Delete(identity.Token); err != nil && !errors.Is(err, shared.ErrNotAuthenticated) {
		h.logger.Error("session delete failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not log out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())
	identity.Token = ""
	writeJSON(w, http.StatusOK, services.IdentityPayload(identity))
}

// issue creates a session for user and returns the identity carrying its token.
func (h *AuthHandler) issue(user *models.User) (models.Identity, error) {
	token, err := shared.GenerateToken()
	if err != nil {
		return models.Identity{}, err
	}

	session := models.NewSession(token, user.ID(), h.ttl)
	if err := h.sessions.Create(session); err != nil {
		return models.Identity{}, err
	}

	identity := user.Identity()
	identity.Token = token
	return identity, nil
}

// Require rejects requests without a live bearer session with 401 and otherwise attaches the caller's identity
// to the request context.
func (h *AuthHandler) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		session, err := h.sessions.Get(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session")
			return
		}
		if session.Expired(h.now()) {
			h.sessions.Delete(token)
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}

		user, err := h.users.Get(session.UserID())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session")
			return
		}

		identity := user.Identity()
		identity.Token = token
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, identity)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
