package handlers

import (
	"net/http"

	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg"
	"github.com/hatchlab/hatchdesk/services"
)

// UserHandler serves /users.
type UserHandler struct {
	userService services.UserService
}

// NewUserHandler creates the handler.
func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Me handles GET /users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	pkg.JSON(w, http.StatusOK, user)
}

// List handles GET /users?q&page&per_page.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
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

	users, pagination, err := h.userService.List(r.Context(), r.URL.Query().Get("q"), page, perPage)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.List(w, users, pagination)
}
