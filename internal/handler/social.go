package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/service"
)

// ReactionHandler serves reactions on memories.
type ReactionHandler struct {
	reactions *service.ReactionService
	logger    *slog.Logger
}

func NewReactionHandler(reactions *service.ReactionService, logger *slog.Logger) *ReactionHandler {
	return &ReactionHandler{reactions: reactions, logger: logger}
}

type reactRequest struct {
	Type string `json:"type" validate:"max=20"`
}

type toggleResponse struct {
	Success bool            `json:"success"`
	Action  string          `json:"action"`
	Data    *model.Reaction `json:"data"`
}

// HandleToggle adds or removes the caller's reaction. The body is optional.
//
// HTTP: POST /api/reactions/{memoryId}  {"type": "love"}
func (h *ReactionHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	var req reactRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.reactions.Toggle(r.Context(), userID(r), r.PathValue("memoryId"), req.Type)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{Success: true, Action: res.Action, Data: res.Reaction})
}

// HTTP: GET /api/reactions/{memoryId}
func (h *ReactionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.reactions.List(r.Context(), userID(r), r.PathValue("memoryId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, list)
}

// HTTP: GET /api/reactions/{memoryId}/me
func (h *ReactionHandler) HandleMine(w http.ResponseWriter, r *http.Request) {
	mine, err := h.reactions.Mine(r.Context(), userID(r), r.PathValue("memoryId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, mine)
}

// CommentHandler serves comment threads.
type CommentHandler struct {
	comments *service.CommentService
	logger   *slog.Logger
}

func NewCommentHandler(comments *service.CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

type addCommentRequest struct {
	Content  string `json:"content" validate:"required,max=1000"`
	ParentID string `json:"parentId" validate:"max=64"`
}

// HTTP: GET /api/comments/{memoryId}
func (h *CommentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	tree, err := h.comments.List(r.Context(), userID(r), r.PathValue("memoryId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, tree)
}

// HTTP: POST /api/comments/{memoryId}  {"content": "...", "parentId": "..."}
func (h *CommentHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addCommentRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	c, err := h.comments.Add(r.Context(), userID(r), r.PathValue("memoryId"), req.Content, req.ParentID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, c)
}

// HTTP: GET /api/comments/{memoryId}/count
func (h *CommentHandler) HandleCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.comments.Count(r.Context(), userID(r), r.PathValue("memoryId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]int{"count": n})
}

// HTTP: DELETE /api/comments/item/{commentId}
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.comments.Delete(r.Context(), userID(r), r.PathValue("commentId")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, nil)
}
