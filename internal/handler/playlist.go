package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/vibelist/internal/apperror"
	"github.com/sakif/vibelist/internal/auth"
	"github.com/sakif/vibelist/internal/model"
	"github.com/sakif/vibelist/internal/repository"
	"github.com/sakif/vibelist/internal/service"
)

// maxUploadBytes bounds the whole generate form: three images at the
// per-image ceiling plus form overhead.
const maxUploadBytes = model.MaxImages*model.ImageMaxBytes + 1<<20

// PlaylistHandler exposes the playlist lifecycle over HTTP. All routes
// require an authenticated session.
type PlaylistHandler struct {
	playlists *service.PlaylistService
	logger    *slog.Logger
}

func NewPlaylistHandler(playlists *service.PlaylistService, logger *slog.Logger) *PlaylistHandler {
	return &PlaylistHandler{playlists: playlists, logger: logger}
}

// HandleGenerate starts a playlist generation.
//
// HTTP: POST /api/playlists/generate
// BODY: multipart/form-data with track_count, input_text, and up to three
// image files under the "image" field.
func (h *PlaylistHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid or oversized form data"))
		return
	}

	input := service.GenerateInput{
		Text:       r.FormValue("input_text"),
		TrackCount: model.DefaultTrackCount,
	}
	if raw := r.FormValue("track_count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperror.ValidationFailed("track_count", "track count must be a number"))
			return
		}
		input.TrackCount = n
	}

	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["image"] {
			img, err := readUpload(header)
			if err != nil {
				writeError(w, apperror.ValidationFailed("images", "could not read uploaded image"))
				return
			}
			input.Images = append(input.Images, img)
		}
	}

	out, err := h.playlists.Generate(r.Context(), userID, input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

func readUpload(header *multipart.FileHeader) (service.ImageUpload, error) {
	f, err := header.Open()
	if err != nil {
		return service.ImageUpload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return service.ImageUpload{}, err
	}
	return service.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        data,
	}, nil
}

// HandleRegenerate reruns generation for a playlist.
//
// HTTP: POST /api/playlists/{id}/regenerate
// BODY: {"exclude_tracks": [{"title": "...", "artist": "..."}]}
func (h *PlaylistHandler) HandleRegenerate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")

	var body struct {
		ExcludeTracks []model.Track `json:"exclude_tracks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	out, err := h.playlists.Regenerate(r.Context(), userID, id, body.ExcludeTracks)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// HandlePublish saves the playlist to the user's Spotify account.
//
// HTTP: POST /api/playlists/{id}/create
// BODY (optional): {"is_public": true}
func (h *PlaylistHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")

	// The body is optional; without it the stored visibility applies.
	var isPublic *bool
	var body struct {
		IsPublic *bool `json:"is_public"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
		isPublic = body.IsPublic
	}

	out, err := h.playlists.Publish(r.Context(), userID, id, isPublic)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// HandleSetVisibility toggles a playlist's public flag.
//
// HTTP: PATCH /api/playlists/{id}/visibility
// BODY: {"is_public": true}
func (h *PlaylistHandler) HandleSetVisibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")

	var body struct {
		IsPublic *bool `json:"is_public"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IsPublic == nil {
		writeError(w, apperror.ValidationFailed("is_public", "is_public is required"))
		return
	}

	playlist, err := h.playlists.SetVisibility(r.Context(), userID, id, *body.IsPublic)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"is_public": playlist.IsPublic,
	})
}

// HandleList returns the user's playlists, newest first.
//
// HTTP: GET /api/playlists?limit=20&offset=0
func (h *PlaylistHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	opts := repository.ListOptions{Limit: 50}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			opts.Limit = n
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			opts.Offset = n
		}
	}

	playlists, err := h.playlists.List(r.Context(), userID, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if playlists == nil {
		playlists = []model.Playlist{}
	}

	writeJSON(w, http.StatusOK, playlists)
}

// HandleGet returns one playlist.
//
// HTTP: GET /api/playlists/{id}
func (h *PlaylistHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	playlist, err := h.playlists.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, playlist)
}
