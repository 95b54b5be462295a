// API service for the playsync account and playlist backend
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

var _ Backend = (*APIService)(nil)

// APIService implements [Backend] against the playsync HTTP API.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewAPIService creates a new API service for the backend at baseURL.
//
// requestsPerSecond <= 0 disables rate limiting.
func NewAPIService(baseURL string, client *http.Client, requestsPerSecond float64) *APIService {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	if client == nil {
		client = http.DefaultClient
	}

	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Message extracts the error message from an [ErrorPayload] body, falling back to the raw body.
func (r *APIResponse) Message() string {
	var payload ErrorPayload
	if err := json.Unmarshal(r.Body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(r.Body))
}

// Decode unmarshals the response body into v.
func (r *APIResponse) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Do performs a request and returns the raw response. A non-empty token is sent as a bearer credential.
func (a *APIService) Do(ctx context.Context, method, path, token string, body any) (*APIResponse, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client(token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// client returns the base client, or one that adds token as a bearer header.
func (a *APIService) client(token string) *http.Client {
	if token == "" {
		return a.httpClient
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return &http.Client{
		Transport:     &oauth2.Transport{Source: src, Base: a.httpClient.Transport},
		CheckRedirect: a.httpClient.CheckRedirect,
		Jar:           a.httpClient.Jar,
		Timeout:       a.httpClient.Timeout,
	}
}

// Health calls GET /health.
func (a *APIService) Health(ctx context.Context) error {
	resp, err := a.Do(ctx, http.MethodGet, "/health", "", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}
	return nil
}

// SignUp implements [AuthClient].
func (a *APIService) SignUp(ctx context.Context, email, password string) (models.Identity, error) {
	return a.authenticate(ctx, "signup", "/auth/signup", email, password)
}

// LogIn implements [AuthClient].
func (a *APIService) LogIn(ctx context.Context, email, password string) (models.Identity, error) {
	return a.authenticate(ctx, "login", "/auth/login", email, password)
}

func (a *APIService) authenticate(ctx context.Context, op, path, email, password string) (models.Identity, error) {
	resp, err := a.Do(ctx, http.MethodPost, path, "", CredentialsPayload{Email: email, Password: password})
	if err != nil {
		return models.Identity{}, &AuthError{Op: op, Err: fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)}
	}
	if !resp.OK() {
		return models.Identity{}, &AuthError{Op: op, Err: authStatusError(resp)}
	}

	var payload IdentityPayload
	if err := resp.Decode(&payload); err != nil {
		return models.Identity{}, &AuthError{Op: op, Err: err}
	}
	if payload.UserID == "" || payload.Token == "" {
		return models.Identity{}, &AuthError{Op: op, Err: fmt.Errorf("%w: incomplete identity in response", shared.ErrAPIRequest)}
	}

	return payload.Identity(), nil
}

// LogOut implements [AuthClient].
func (a *APIService) LogOut(ctx context.Context, identity models.Identity) error {
	resp, err := a.Do(ctx, http.MethodPost, "/auth/logout", identity.Token, nil)
	if err != nil {
		return &AuthError{Op: "logout", Err: fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)}
	}
	// An already revoked or expired token is as logged out as it gets.
	if !resp.OK() && resp.StatusCode != http.StatusUnauthorized {
		return &AuthError{Op: "logout", Err: authStatusError(resp)}
	}
	return nil
}

// CurrentIdentity implements [AuthClient].
func (a *APIService) CurrentIdentity(ctx context.Context, token string) (models.Identity, error) {
	resp, err := a.Do(ctx, http.MethodGet, "/auth/me", token, nil)
	if err != nil {
		return models.Identity{}, &AuthError{Op: "me", Err: fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)}
	}
	if !resp.OK() {
		return models.Identity{}, &AuthError{Op: "me", Err: authStatusError(resp)}
	}

	var payload IdentityPayload
	if err := resp.Decode(&payload); err != nil {
		return models.Identity{}, &AuthError{Op: "me", Err: err}
	}
	identity := payload.Identity()
	identity.Token = token
	return identity, nil
}

// FetchPlaylist implements [PlaylistClient].
func (a *APIService) FetchPlaylist(ctx context.Context, identity models.Identity) ([]models.Track, error) {
	if identity.IsZero() {
		return nil, fmt.Errorf("%w: fetch requires an identity", shared.ErrNoIdentity)
	}

	resp, err := a.Do(ctx, http.MethodGet, playlistPath(identity), identity.Token, nil)
	if err != nil {
		return nil, &SyncError{Op: "fetch", UserID: identity.UserID, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, identity.UserID)
	case !resp.OK():
		return nil, &SyncError{Op: "fetch", UserID: identity.UserID, Err: syncStatusError(resp)}
	}

	var payload PlaylistPayload
	if err := resp.Decode(&payload); err != nil {
		return nil, &SyncError{Op: "fetch", UserID: identity.UserID, Err: err}
	}

	return FromPayload(payload.Tracks), nil
}

// SavePlaylist implements [PlaylistClient].
func (a *APIService) SavePlaylist(ctx context.Context, identity models.Identity, tracks []models.Track) error {
	if identity.IsZero() {
		return fmt.Errorf("%w: save requires an identity", shared.ErrNoIdentity)
	}

	body := PlaylistPayload{Tracks: ToPayload(tracks)}
	resp, err := a.Do(ctx, http.MethodPut, playlistPath(identity), identity.Token, body)
	if err != nil {
		return &SyncError{Op: "save", UserID: identity.UserID, Err: err}
	}
	if !resp.OK() {
		return &SyncError{Op: "save", UserID: identity.UserID, Err: syncStatusError(resp)}
	}
	return nil
}

func playlistPath(identity models.Identity) string {
	return "/playlists/" + url.PathEscape(identity.UserID)
}

func authStatusError(resp *APIResponse) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrInvalidCredentials, resp.Message())
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", shared.ErrDuplicateEmail, resp.Message())
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", shared.ErrInvalidInput, resp.Message())
	default:
		return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, resp.Message())
	}
}

func syncStatusError(resp *APIResponse) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrSessionExpired, resp.Message())
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", shared.ErrForbidden, resp.Message())
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, resp.Message())
	}
}
