package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/service"
)

// MemoryHandler serves journal entries.
type MemoryHandler struct {
	memories *service.MemoryService
	logger   *slog.Logger
}

func NewMemoryHandler(memories *service.MemoryService, logger *slog.Logger) *MemoryHandler {
	return &MemoryHandler{memories: memories, logger: logger}
}

type createMemoryRequest struct {
	Content   string          `json:"content" validate:"required,max=10000"`
	Mood      *string         `json:"mood" validate:"omitempty,max=50"`
	Photos    []string        `json:"photos" validate:"max=9,dive,required"`
	Location  *model.Location `json:"location"`
	VoiceNote *string         `json:"voiceNote"`
	Stickers  []string        `json:"stickers" validate:"max=50"`
}

type pageResponse struct {
	Success  bool           `json:"success"`
	Data     []model.Memory `json:"data"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
	HasMore  bool           `json:"hasMore"`
}

// queryInt reads a positive integer query parameter; anything else is 0 and
// the service applies its default.
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// HandleList returns one page of memories.
//
// HTTP: GET /api/memories?page=1&pageSize=20
//
// The page fields sit next to "success" rather than under "data":
//
//	{"success": true, "data": [...], "total": 42, "page": 1, "pageSize": 20, "hasMore": true}
func (h *MemoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := h.memories.List(r.Context(), userID(r), queryInt(r, "page"), queryInt(r, "pageSize"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse{
		Success:  true,
		Data:     page.Data,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
		HasMore:  page.HasMore,
	})
}

// HTTP: POST /api/memories
func (h *MemoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createMemoryRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	mem, err := h.memories.Create(r.Context(), userID(r), service.MemoryInput{
		Content:   req.Content,
		Mood:      req.Mood,
		Photos:    req.Photos,
		Location:  req.Location,
		VoiceNote: req.VoiceNote,
		Stickers:  req.Stickers,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, mem)
}

// HTTP: GET /api/memories/{id}
func (h *MemoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	mem, err := h.memories.Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, mem)
}

// HTTP: PUT /api/memories/{id}
func (h *MemoryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch service.MemoryPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	mem, err := h.memories.Update(r.Context(), userID(r), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, mem)
}

// HTTP: DELETE /api/memories/{id}
func (h *MemoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.memories.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Memory deleted successfully")
}
