package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shelfwise/apiserver/internal/services"
)

// LibraryHandler manages the caller's reading list.
type LibraryHandler struct {
	libraryService *services.LibraryService
}

func NewLibraryHandler(libraryService *services.LibraryService) *LibraryHandler {
	return &LibraryHandler{libraryService: libraryService}
}

func LibraryRouter(r chi.Router, handler *LibraryHandler) {
	r.Get("/", handler.ListLibrary)
	r.Post("/", handler.AddToLibrary)
	r.Patch("/{bookID}", handler.UpdateStatus)
	r.Delete("/{bookID}", handler.RemoveFromLibrary)
}

type AddToLibraryRequest struct {
	BookID int    `json:"book_id"`
	Status string `json:"status"`
}

type UpdateStatusRequest struct {
	NewStatus string `json:"new_status"`
}

func (h *LibraryHandler) ListLibrary(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusForbidden, "unauthenticated", "missing or invalid credentials")
		return
	}

	shelves, err := h.libraryService.ListByStatus(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shelves)
}

func (h *LibraryHandler) AddToLibrary(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusForbidden, "unauthenticated", "missing or invalid credentials")
		return
	}

	var req AddToLibraryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, err.Error())
		return
	}
	if req.BookID < 1 {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, "book_id is required")
		return
	}

	entry, err := h.libraryService.Add(r.Context(), userID, req.BookID, req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *LibraryHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusForbidden, "unauthenticated", "missing or invalid credentials")
		return
	}
	bookID, err := parsePathID(r, "bookID")
	if err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, err.Error())
		return
	}

	var req UpdateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, err.Error())
		return
	}

	entry, err := h.libraryService.UpdateStatus(r.Context(), userID, bookID, req.NewStatus)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *LibraryHandler) RemoveFromLibrary(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusForbidden, "unauthenticated", "missing or invalid credentials")
		return
	}
	bookID, err := parsePathID(r, "bookID")
	if err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, err.Error())
		return
	}

	if err := h.libraryService.Remove(r.Context(), userID, bookID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Book removed from library")
}
