package handler

import (
	"net/http"
	"strconv"
	"strings"

	"taeu.kr/uploadhub/internal/journal"
	"taeu.kr/uploadhub/internal/platform/web"
	"taeu.kr/uploadhub/internal/upload"
)

type Handler struct {
	journalService *journal.Service
}

func NewHandler(journalService *journal.Service) *Handler {
	return &Handler{journalService: journalService}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/uploads/journal", web.Handler(h.handleList))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) *web.Error {
	query := r.URL.Query()

	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return &web.Error{
				Code:    http.StatusBadRequest,
				Message: "Invalid limit",
				Err:     err,
			}
		}
		limit = parsed
	}

	var (
		entries []*journal.Entry
		err     error
	)
	if uploadType := strings.TrimSpace(query.Get("uploadType")); uploadType != "" {
		entries, err = h.journalService.ListByUploadType(r.Context(), upload.UploadType(uploadType), limit)
	} else {
		entries, err = h.journalService.ListRecent(r.Context(), limit)
	}
	if err != nil {
		return &web.Error{
			Code:    http.StatusInternalServerError,
			Message: "Failed to list journal entries",
			Err:     err,
		}
	}

	web.WriteJSON(w, http.StatusOK, entries)
	return nil
}
