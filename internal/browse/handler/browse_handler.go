package handler

import (
	"errors"
	"net/http"
	"os"

	"taeu.kr/uploadhub/internal/browse"
	"taeu.kr/uploadhub/internal/platform/web"
	"taeu.kr/uploadhub/internal/upload"
)

type Handler struct {
	resolver *upload.Resolver
	builder  browse.Builder
}

func NewHandler(resolver *upload.Resolver, builder browse.Builder) *Handler {
	return &Handler{
		resolver: resolver,
		builder:  builder,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/uploads/tree", web.Handler(h.handleTree))
}

// type 파라미터가 없으면 설정된 모든 업로드 타입을 대상으로 한다
func (h *Handler) handleTree(w http.ResponseWriter, r *http.Request) *web.Error {
	query := r.URL.Query()
	useNameAsKey := query.Get("names") == "true"

	uploadTypes := make([]upload.UploadType, 0, len(query["type"]))
	for _, raw := range query["type"] {
		uploadTypes = append(uploadTypes, upload.NormalizeUploadType(raw))
	}
	if len(uploadTypes) == 0 {
		uploadTypes = h.resolver.Types()
	}

	roots := make([]string, 0, len(uploadTypes))
	typeByRoot := make(map[string]upload.UploadType, len(uploadTypes))
	for _, uploadType := range uploadTypes {
		root, err := h.resolver.RootFor(uploadType)
		if err != nil {
			return &web.Error{
				Code:    http.StatusNotFound,
				Message: "Upload type not found",
				Err:     err,
			}
		}
		if _, seen := typeByRoot[root]; seen {
			continue
		}
		roots = append(roots, root)
		typeByRoot[root] = uploadType
	}

	trees, err := h.builder.BuildMany(roots, useNameAsKey)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &web.Error{
				Code:    http.StatusNotFound,
				Message: "Directory not found",
				Err:     err,
			}
		}
		if errors.Is(err, os.ErrPermission) {
			return &web.Error{
				Code:    http.StatusForbidden,
				Message: "Permission denied",
				Err:     err,
			}
		}
		return &web.Error{
			Code:    http.StatusInternalServerError,
			Message: "Failed to build directory tree",
			Err:     err,
		}
	}

	response := make(map[upload.UploadType]browse.Tree, len(trees))
	for root, tree := range trees {
		response[typeByRoot[root]] = tree
	}

	web.WriteJSON(w, http.StatusOK, response)
	return nil
}
