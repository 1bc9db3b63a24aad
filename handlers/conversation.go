package handlers

import (
	"net/http"

	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg"
	"github.com/hatchlab/hatchdesk/services"
)

// ConversationHandler serves /conversations and /conversations/{id}.
type ConversationHandler struct {
	conversationService services.ConversationService
}

// NewConversationHandler creates the handler.
func NewConversationHandler(conversationService services.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// List handles GET /conversations?page&per_page&sort&order.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	params, err := models.ParseListParams(r.URL.Query())
	if err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, pkg.CodeBadRequest, err.Error())
		return
	}

	convs, pagination, err := h.conversationService.List(r.Context(), user.ID, params)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.List(w, convs, pagination)
}

// Get handles GET /conversations/{id}.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	conv, err := h.conversationService.Get(r.Context(), user.ID, id)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, conv)
}

// Create handles POST /conversations. It answers 201 for a new
// conversation and 200 when an existing direct conversation is returned.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.CreateConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	conv, created, err := h.conversationService.Create(r.Context(), user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	pkg.JSON(w, status, conv)
}
