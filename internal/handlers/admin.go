package handlers

import (
	"net/http"

	"github.com/shelfwise/apiserver/internal/services"
)

// AdminHandler serves role management.
type AdminHandler struct {
	userService *services.UserService
}

func NewAdminHandler(userService *services.UserService) *AdminHandler {
	return &AdminHandler{userService: userService}
}

// PromoteRequest identifies the target account by email.
type PromoteRequest struct {
	Email string `json:"email"`
}

// Promote grants the admin role to another user. The service re-checks the
// caller's role inside the same transaction as the update.
func (h *AdminHandler) Promote(w http.ResponseWriter, r *http.Request) {
	actorID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusForbidden, "unauthenticated", "missing or invalid credentials")
		return
	}

	var req PromoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, err.Error())
		return
	}

	user, err := h.userService.Promote(r.Context(), actorID, req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, user.Email+" is now an admin")
}
