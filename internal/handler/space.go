package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/sanctuary/internal/service"
)

// SpaceHandler serves the couple's shared space.
type SpaceHandler struct {
	spaces *service.SpaceService
	logger *slog.Logger
}

func NewSpaceHandler(spaces *service.SpaceService, logger *slog.Logger) *SpaceHandler {
	return &SpaceHandler{spaces: spaces, logger: logger}
}

type createSpaceRequest struct {
	AnniversaryDate string `json:"anniversaryDate" validate:"required"`
}

type joinSpaceRequest struct {
	InviteCode string `json:"inviteCode" validate:"required,max=16"`
}

// HandleCreate opens a space.
//
// HTTP: POST /api/spaces  {"anniversaryDate": "2020-02-14"}
func (h *SpaceHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSpaceRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sp, err := h.spaces.Create(r.Context(), userID(r), req.AnniversaryDate)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, sp)
}

// HandleMine returns the caller's space, or data: null.
//
// HTTP: GET /api/spaces/my
func (h *SpaceHandler) HandleMine(w http.ResponseWriter, r *http.Request) {
	sp, err := h.spaces.Mine(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, sp)
}

// HandleJoin joins a space by invite code.
//
// HTTP: POST /api/spaces/join  {"inviteCode": "AB12CD"}
func (h *SpaceHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinSpaceRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sp, err := h.spaces.Join(r.Context(), userID(r), req.InviteCode)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, sp)
}

// HTTP: GET /api/spaces/pet-names
func (h *SpaceHandler) HandlePetNames(w http.ResponseWriter, r *http.Request) {
	names, err := h.spaces.PetNames(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, names)
}

// HTTP: PUT /api/spaces/pet-names  {"myPetName": "...", "partnerPetName": null}
func (h *SpaceHandler) HandleUpdatePetNames(w http.ResponseWriter, r *http.Request) {
	var upd service.PetNamesUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	names, err := h.spaces.UpdatePetNames(r.Context(), userID(r), upd)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, names)
}

// HTTP: GET /api/spaces/{id}
func (h *SpaceHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sp, err := h.spaces.Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, sp)
}

// HTTP: PUT /api/spaces/{id}  {"anniversaryDate": "2020-02-14"}
func (h *SpaceHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req createSpaceRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sp, err := h.spaces.UpdateAnniversary(r.Context(), userID(r), r.PathValue("id"), req.AnniversaryDate)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, sp)
}

// HandleDelete dissolves the space at once, without cooling off.
//
// HTTP: DELETE /api/spaces/{id}
func (h *SpaceHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.spaces.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Space deleted successfully")
}

// HTTP: GET /api/spaces/{id}/unbind
func (h *SpaceHandler) HandleUnbindStatus(w http.ResponseWriter, r *http.Request) {
	req, err := h.spaces.UnbindStatus(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, req)
}

// HTTP: POST /api/spaces/{id}/unbind
func (h *SpaceHandler) HandleRequestUnbind(w http.ResponseWriter, r *http.Request) {
	req, err := h.spaces.RequestUnbind(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, req)
}

// HTTP: DELETE /api/spaces/{id}/unbind
func (h *SpaceHandler) HandleCancelUnbind(w http.ResponseWriter, r *http.Request) {
	if err := h.spaces.CancelUnbind(r.Context(), userID(r), r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Unbind request cancelled")
}
