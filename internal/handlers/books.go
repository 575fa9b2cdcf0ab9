package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/shelfwise/apiserver/internal/services"
	"github.com/shelfwise/apiserver/types"
)

const (
	maxMultipartMemory = 8 << 20
	formFieldCover     = "cover"
)

// BookHandler provides HTTP handlers for the catalog, reviews of a book,
// and cover images.
type BookHandler struct {
	bookService   *services.BookService
	reviewService *services.ReviewService
	ratings       services.Recomputer
}

func NewBookHandler(
	bookService *services.BookService,
	reviewService *services.ReviewService,
	ratings services.Recomputer,
) *BookHandler {
	return &BookHandler{
		bookService:   bookService,
		reviewService: reviewService,
		ratings:       ratings,
	}
}

// BookRouter registers book routes. Callers must mount it behind
// RequireAuth. adminOnly guards catalog mutations; when createNeedsAdmin is
// false any authenticated user may add books.
func BookRouter(r chi.Router, handler *BookHandler, adminOnly func(http.Handler) http.Handler, createNeedsAdmin bool) {
	r.Get("/", handler.SearchBooks)
	if createNeedsAdmin {
		r.With(adminOnly).Post("/", handler.CreateBook)
	} else {
		r.Post("/", handler.CreateBook)
	}
	r.Route("/{bookID}", func(r chi.Router) {
		r.Get("/", handler.GetBook)
		r.With(adminOnly).Patch("/", handler.UpdateBook)
		r.With(adminOnly).Delete("/", handler.DeleteBook)
		r.Post("/review", handler.AddReview)
		r.Post("/rating", handler.RecomputeRating)
		r.Get("/cover", handler.GetCover)
		r.With(adminOnly).Put("/cover", handler.UploadCover)
	})
}

func (h *BookHandler) SearchBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	books, err := h.bookService.Search(r.Context(), types.BookFilter{
		Title:  q.Get("title"),
		Author: q.Get("author"),
		Genre:  q.Get("genre"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if len(books) == 0 {
		writeError(w, http.StatusNotFound, "no_books_found", "No books found")
		return
	}

	items := make([]types.BookSummary, 0, len(books))
	for _, b := range books {
		items = append(items, b.Summary())
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "bookID")
	if err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, err.Error())
		return
	}

	detail, err := h.bookService.Detail(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req services.CreateBookInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, err.Error())
		return
	}

	book, err := h.bookService.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "bookID")
	if err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, err.Error())
		return
	}

	var patch types.BookPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, err.Error())
		return
	}

	book, err := h.bookService.Update(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "bookID")
	if err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, err.Error())
		return
	}

	if err := h.bookService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Book deleted")
}

// AddReview stores the caller's review. If the review is saved but the
// average could not be recomputed, the response is a 500 that carries the
// review id so the client can retry only the recompute.
func (h *BookHandler) AddReview(w http.ResponseWriter, r *http.Request) {
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

	var req services.ReviewInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, err.Error())
		return
	}

	review, err := h.reviewService.Add(r.Context(), userID, bookID, req)
	if err != nil {
		if errors.Is(err, services.ErrAggregationFailed) {
			writeServiceErrorWith(w, r, err, ErrorResponse{ReviewID: review.ID})
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

type RatingResponse struct {
	BookID        int     `json:"book_id"`
	AverageRating float64 `json:"average_rating"`
}

// RecomputeRating recomputes a book's average from its current reviews.
func (h *BookHandler) RecomputeRating(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "bookID")
	if err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, err.Error())
		return
	}

	avg, err := h.ratings.Recompute(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RatingResponse{BookID: id, AverageRating: avg})
}

// UploadCover replaces the book's cover with the multipart file "cover".
func (h *BookHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "bookID")
	if err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxCoverBytes+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServiceError(w, r, services.ErrCoverTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, "invalid multipart form")
		return
	}

	file, _, err := r.FormFile(formFieldCover)
	if err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, "cover file is required")
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, services.MaxCoverBytes+1))
	_ = file.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, "failed to read upload")
		return
	}

	book, err := h.bookService.SetCover(r.Context(), id, data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.BookDetail{Book: book, HasCover: book.HasCover(), Reviews: []types.BookReview{}})
}

func (h *BookHandler) GetCover(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "bookID")
	if err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Code, err.Error())
		return
	}

	rc, info, err := h.bookService.OpenCover(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Int("book_id", id).Msg("cover stream interrupted")
	}
}
