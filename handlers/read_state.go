package handlers

import (
	"net/http"

	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg"
	"github.com/hatchlab/hatchdesk/services"
)

// ReadStateHandler serves the read position endpoint.
type ReadStateHandler struct {
	readStateService services.ReadStateService
}

// NewReadStateHandler creates the handler.
func NewReadStateHandler(readStateService services.ReadStateService) *ReadStateHandler {
	return &ReadStateHandler{readStateService: readStateService}
}

// MarkRead handles POST /conversations/{id}/mark-read. Positions older
// than the stored one are accepted and ignored.
func (h *ReadStateHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req models.MarkReadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.readStateService.MarkRead(r.Context(), user.ID, id, &req); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.NoContent(w)
}
