package handlers

import (
	"net/http"
	"strconv"

	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg"
	"github.com/hatchlab/hatchdesk/pkg/ratelimit"
	"github.com/hatchlab/hatchdesk/services"
)

// MessageHandler serves /conversations/{id}/messages.
type MessageHandler struct {
	messageService services.MessageService
	sendLimiter    *ratelimit.MessageRateLimiter
}

// NewMessageHandler creates the handler. sendLimiter may be nil.
func NewMessageHandler(messageService services.MessageService, sendLimiter *ratelimit.MessageRateLimiter) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		sendLimiter:    sendLimiter,
	}
}

// List handles GET /conversations/{id}/messages?page&per_page. Page 1 holds
// the newest messages.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	page, ok := queryInt(w, r, "page", models.DefaultPage)
	if !ok {
		return
	}
	perPage, ok := queryInt(w, r, "per_page", models.DefaultPerPage)
	if !ok {
		return
	}

	messages, pagination, err := h.messageService.List(r.Context(), user.ID, id, page, perPage)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.List(w, messages, pagination)
}

// Send handles POST /conversations/{id}/messages.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if h.sendLimiter != nil {
		if allowed, wait := h.sendLimiter.Allow(user.ID); !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(ratelimit.RetryAfterSeconds(wait)))
			pkg.ErrorWithMessage(w, http.StatusTooManyRequests, pkg.CodeRateLimited, "you are sending messages too fast")
			return
		}
	}

	var req models.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.messageService.Send(r.Context(), user.ID, id, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, msg)
}
