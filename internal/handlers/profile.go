package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shelfwise/apiserver/internal/services"
)

// ProfileHandler serves the authenticated user's own account.
type ProfileHandler struct {
	userService *services.UserService
}

func NewProfileHandler(userService *services.UserService) *ProfileHandler {
	return &ProfileHandler{userService: userService}
}

// ProfileRouter registers profile routes. Callers must mount it behind
// RequireAuth.
func ProfileRouter(r chi.Router, handler *ProfileHandler) {
	r.Get("/", handler.GetProfile)
	r.Put("/password", handler.ChangePassword)
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusForbidden, "unauthenticated", "missing or invalid credentials")
		return
	}

	profile, err := h.userService.Profile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type ChangePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusForbidden, "unauthenticated", "missing or invalid credentials")
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, err.Error())
		return
	}

	if err := h.userService.ChangePassword(r.Context(), userID, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password updated")
}
