package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/service"
)

// MilestoneHandler serves the couple's timeline.
type MilestoneHandler struct {
	milestones *service.MilestoneService
	logger     *slog.Logger
}

func NewMilestoneHandler(milestones *service.MilestoneService, logger *slog.Logger) *MilestoneHandler {
	return &MilestoneHandler{milestones: milestones, logger: logger}
}

type createMilestoneRequest struct {
	Title       string          `json:"title" validate:"required,max=100"`
	Description *string         `json:"description" validate:"omitempty,max=2000"`
	Date        string          `json:"date" validate:"required"`
	Type        string          `json:"type" validate:"max=30"`
	Icon        *string         `json:"icon" validate:"omitempty,max=20"`
	Photos      []string        `json:"photos" validate:"max=9,dive,required"`
	Location    *model.Location `json:"location"`
}

// HTTP: GET /api/milestones
func (h *MilestoneHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.milestones.List(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, list)
}

// HTTP: POST /api/milestones
func (h *MilestoneHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createMilestoneRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	ms, err := h.milestones.Create(r.Context(), userID(r), service.MilestoneInput{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Type:        req.Type,
		Icon:        req.Icon,
		Photos:      req.Photos,
		Location:    req.Location,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, ms)
}

// HTTP: GET /api/milestones/{id}
func (h *MilestoneHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ms, err := h.milestones.Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, ms)
}

// HTTP: PUT /api/milestones/{id}
func (h *MilestoneHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var upd model.MilestoneUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	ms, err := h.milestones.Update(r.Context(), userID(r), r.PathValue("id"), upd)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, ms)
}

// HTTP: DELETE /api/milestones/{id}
func (h *MilestoneHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.milestones.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Milestone deleted successfully")
}
