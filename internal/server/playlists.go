package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/repositories"
	"github.com/desertthunder/playsync/internal/services"
	"github.com/desertthunder/playsync/internal/shared"
)

// RevisionHeader carries the stored playlist revision on GET and PUT responses.
const RevisionHeader = "X-Playlist-Revision"

// PlaylistHandler serves the per-user playlist document.
//
// Both routes sit behind [AuthHandler.Require]; a caller may only read or replace their own playlist.
type PlaylistHandler struct {
	mux       *http.ServeMux
	playlists *repositories.PlaylistRepository
	logger    *log.Logger
}

// NewPlaylistHandler creates a [PlaylistHandler]. auth guards every route.
func NewPlaylistHandler(playlists *repositories.PlaylistRepository, auth *AuthHandler, logger *log.Logger) *PlaylistHandler {
	h := &PlaylistHandler{mux: http.NewServeMux(), playlists: playlists, logger: logger}
	h.mux.Handle("GET /playlists/{user_id}", auth.Require(h.owner(h.get)))
	h.mux.Handle("PUT /playlists/{user_id}", auth.Require(h.owner(h.put)))
	return h
}

// Routes implements [Handler].
func (h *PlaylistHandler) Routes() []string {
	return []string{"GET /playlists/{user_id}", "PUT /playlists/{user_id}"}
}

// ServeHTTP implements [Handler].
func (h *PlaylistHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// owner rejects requests whose path user differs from the authenticated caller.
func (h *PlaylistHandler) owner(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFrom(r.Context())
		if !ok || identity.UserID != r.PathValue("user_id") {
			writeError(w, http.StatusForbidden, shared.ErrForbidden.Error())
			return
		}
		next(w, r)
	})
}

func (h *PlaylistHandler) get(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	playlist, revision, err := h.playlists.Get(userID)
	if errors.Is(err, shared.ErrPlaylistNotFound) {
		writeError(w, http.StatusNotFound, "no playlist stored")
		return
	}
	if err != nil {
		h.logger.Error("playlist load failed", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load playlist")
		return
	}

	w.Header().Set(RevisionHeader, strconv.Itoa(revision))
	writeJSON(w, http.StatusOK, services.PlaylistPayload{UserID: userID, Tracks: services.ToPayload(playlist.Tracks)})
}

func (h *PlaylistHandler) put(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	var payload services.PlaylistPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	revision, err := h.playlists.Save(userID, services.FromPayload(payload.Tracks))
	switch {
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrDuplicateTrack):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("playlist save failed", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not save playlist")
		return
	}

	h.logger.Debug("playlist saved", "user", userID, "tracks", len(payload.Tracks), "revision", revision)
	w.Header().Set(RevisionHeader, strconv.Itoa(revision))
	w.WriteHeader(http.StatusNoContent)
}
