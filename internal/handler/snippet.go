package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/devtoolbox/internal/auth"
	"github.com/sakif/devtoolbox/internal/model"
	"github.com/sakif/devtoolbox/internal/service"
)

// SnippetHandler exposes the snippet CRUD surface.
//
// Auth is resolved by middleware before these methods run: OptionalAuth on
// create/read (anonymous is a valid caller), RequireAuth on list-own and
// delete.
type SnippetHandler struct {
	snippets *service.SnippetService
	logger   *slog.Logger
}

// NewSnippetHandler creates a SnippetHandler.
func NewSnippetHandler(snippets *service.SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{snippets: snippets, logger: logger}
}

// createRequest is the body of POST /api/snippets.
type createRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Type     string `json:"type"`
	IsPublic bool   `json:"isPublic"`
}

// snippetResponse wraps a single snippet, matching the shape the web client
// expects.
type snippetResponse struct {
	Success bool           `json:"success"`
	Snippet *model.Snippet `json:"snippet"`
}

// HandleCreate saves a new snippet.
//
// HTTP: POST /api/snippets
//
// An invalid credential was already discarded by OptionalAuth, so the call
// proceeds as anonymous instead of failing; creation succeeds whenever the
// required fields are present (and the public/anonymous rule holds).
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid snippet JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	ownerID, _ := auth.UserIDFromContext(r.Context())

	snippet, err := h.snippets.Create(r.Context(), service.CreateInput{
		Title:    req.Title,
		Content:  req.Content,
		Type:     req.Type,
		IsPublic: req.IsPublic,
	}, ownerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, snippetResponse{Success: true, Snippet: snippet})
}

// HandleGetByID returns one snippet, subject to visibility.
//
// HTTP: GET /api/snippets/{id} and GET /share/{id}
func (h *SnippetHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	requesterID, _ := auth.UserIDFromContext(r.Context())

	snippet, err := h.snippets.GetByID(r.Context(), id, requesterID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snippetResponse{Success: true, Snippet: snippet})
}

// HandleListOwn returns the authenticated user's snippets, newest first.
//
// HTTP: GET /api/user/snippets (RequireAuth)
func (h *SnippetHandler) HandleListOwn(w http.ResponseWriter, r *http.Request) {
	requesterID, _ := auth.UserIDFromContext(r.Context())

	snippets, err := h.snippets.ListOwn(r.Context(), requesterID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"snippets": snippets})
}

// HandleListPublic returns metadata for recent public snippets.
//
// HTTP: GET /api/snippets/public/recent?type=json&limit=20
func (h *SnippetHandler) HandleListPublic(w http.ResponseWriter, r *http.Request) {
	typeFilter := r.URL.Query().Get("type")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: "limit must be an integer",
			})
			return
		}
		limit = parsed
	}

	metas, err := h.snippets.ListPublic(r.Context(), typeFilter, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"snippets": metas})
}

// HandleDelete removes a snippet owned by the caller.
//
// HTTP: DELETE /api/snippets/{id} (RequireAuth)
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	requesterID, _ := auth.UserIDFromContext(r.Context())

	if err := h.snippets.Delete(r.Context(), id, requesterID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
