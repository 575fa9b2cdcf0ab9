package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shelfwise/apiserver/internal/services"
)

// ReviewHandler lets authors edit their reviews.
type ReviewHandler struct {
	reviewService *services.ReviewService
}

func NewReviewHandler(reviewService *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

func ReviewRouter(r chi.Router, handler *ReviewHandler) {
	r.Patch("/{reviewID}", handler.UpdateReview)
}

func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusForbidden, "unauthenticated", "missing or invalid credentials")
		return
	}
	reviewID, err := parsePathID(r, "reviewID")
	if err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, err.Error())
		return
	}

	var req services.ReviewInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, err.Error())
		return
	}

	review, err := h.reviewService.Update(r.Context(), userID, reviewID, req)
	if err != nil {
		if errors.Is(err, services.ErrAggregationFailed) {
			writeServiceErrorWith(w, r, err, ErrorResponse{ReviewID: review.ID})
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}
