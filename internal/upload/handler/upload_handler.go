package handler

import (
	"errors"
	"net/http"

	"taeu.kr/uploadhub/internal/platform/web"
	"taeu.kr/uploadhub/internal/upload"
)

// 결과 메시지와 함께 내려가는 사용자 알림 등급
const (
	flashSuccess = "success"
	flashWarning = "warning"
	flashDanger  = "danger"
)

type Handler struct {
	resolver     *upload.Resolver
	manager      *upload.Manager
	mover        *upload.Mover
	usageService *upload.UsageService
}

func NewHandler(resolver *upload.Resolver, manager *upload.Manager, mover *upload.Mover, usageService *upload.UsageService) *Handler {
	return &Handler{
		resolver:     resolver,
		manager:      manager,
		mover:        mover,
		usageService: usageService,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/uploads/types", web.Handler(h.handleListTypes))
	mux.Handle("POST /api/uploads/move", web.Handler(h.handleMove))
	mux.Handle("POST /api/uploads/{uploadType}/subdirectories", web.Handler(h.handleCreate))
	mux.Handle("POST /api/uploads/{uploadType}/subdirectories/rename", web.Handler(h.handleRename))
	mux.Handle("POST /api/uploads/{uploadType}/subdirectories/remove", web.Handler(h.handleRemove))
	mux.Handle("GET /api/uploads/{uploadType}/usage", web.Handler(h.handleUsage))
}

// 루트 경로는 노출하지 않는다
type uploadTypeResponse struct {
	UploadType upload.UploadType `json:"uploadType"`
	Available  bool              `json:"available"`
}

type resultResponse struct {
	Success bool   `json:"success"`
	Partial bool   `json:"partial"`
	Message string `json:"message"`
	Flash   string `json:"flash"`
}

type createRequest struct {
	Name *string `json:"name"`
}

type renameRequest struct {
	CurrentPath *string `json:"currentPath"`
	NewName     *string `json:"newName"`
}

type removeRequest struct {
	Path *string `json:"path"`
}

type moveRequest struct {
	CurrentUploadType   *string `json:"currentUploadType"`
	TargetUploadType    *string `json:"targetUploadType"`
	CurrentSubdirectory *string `json:"currentSubdirectory"`
	TargetSubdirectory  string  `json:"targetSubdirectory"`
	RemoveCurrent       bool    `json:"removeCurrent"`
	ConflictPolicy      string  `json:"conflictPolicy"`
}

func (h *Handler) handleListTypes(w http.ResponseWriter, r *http.Request) *web.Error {
	types := h.resolver.Types()
	items := make([]uploadTypeResponse, 0, len(types))
	for _, uploadType := range types {
		root, err := h.resolver.RootFor(uploadType)
		if err != nil {
			return &web.Error{Code: http.StatusInternalServerError, Message: "Failed to resolve upload type", Err: err}
		}
		items = append(items, uploadTypeResponse{UploadType: uploadType, Available: h.resolver.Exists(root, "")})
	}

	web.WriteJSON(w, http.StatusOK, items)
	return nil
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) *web.Error {
	uploadType := upload.UploadType(r.PathValue("uploadType"))

	var req createRequest
	if webErr := web.DecodeJSON(r, &req); webErr != nil {
		return webErr
	}
	if req.Name == nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "name is required"}
	}

	result := h.manager.Create(r.Context(), uploadType, *req.Name)
	h.invalidateUsage(uploadType)
	writeResult(w, result)
	return nil
}

func (h *Handler) handleRename(w http.ResponseWriter, r *http.Request) *web.Error {
	uploadType := upload.UploadType(r.PathValue("uploadType"))

	var req renameRequest
	if webErr := web.DecodeJSON(r, &req); webErr != nil {
		return webErr
	}
	if req.CurrentPath == nil || req.NewName == nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "currentPath and newName are required"}
	}

	result := h.manager.Rename(r.Context(), uploadType, *req.CurrentPath, *req.NewName)
	writeResult(w, result)
	return nil
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) *web.Error {
	uploadType := upload.UploadType(r.PathValue("uploadType"))

	var req removeRequest
	if webErr := web.DecodeJSON(r, &req); webErr != nil {
		return webErr
	}
	if req.Path == nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "path is required"}
	}

	result := h.manager.Remove(r.Context(), uploadType, *req.Path)
	h.invalidateUsage(uploadType)
	writeResult(w, result)
	return nil
}

func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request) *web.Error {
	var req moveRequest
	if webErr := web.DecodeJSON(r, &req); webErr != nil {
		return webErr
	}
	if req.CurrentUploadType == nil || req.TargetUploadType == nil || req.CurrentSubdirectory == nil {
		return &web.Error{
			Code:    http.StatusBadRequest,
			Message: "currentUploadType, targetUploadType and currentSubdirectory are required",
		}
	}

	policy, err := upload.ParseConflictPolicy(req.ConflictPolicy, h.mover.DefaultPolicy())
	if err != nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "Invalid conflict policy", Err: err}
	}

	currentType := upload.UploadType(*req.CurrentUploadType)
	targetType := upload.UploadType(*req.TargetUploadType)
	result := h.mover.MoveData(r.Context(), upload.MoveRequest{
		CurrentUploadType:   currentType,
		TargetUploadType:    targetType,
		CurrentSubdirectory: *req.CurrentSubdirectory,
		TargetSubdirectory:  req.TargetSubdirectory,
		RemoveCurrent:       req.RemoveCurrent,
		ConflictPolicy:      policy,
	})
	h.invalidateUsage(currentType, targetType)
	writeResult(w, result)
	return nil
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) *web.Error {
	uploadType := upload.UploadType(r.PathValue("uploadType"))

	usage, err := h.usageService.GetUsage(r.Context(), uploadType)
	if err != nil {
		if errors.Is(err, upload.ErrUnknownUploadType) {
			return &web.Error{Code: http.StatusNotFound, Message: "Upload type not found", Err: err}
		}
		return &web.Error{Code: http.StatusInternalServerError, Message: "Failed to get upload type usage", Err: err}
	}

	web.WriteJSON(w, http.StatusOK, usage)
	return nil
}

func (h *Handler) invalidateUsage(uploadTypes ...upload.UploadType) {
	if h.usageService != nil {
		h.usageService.Invalidate(uploadTypes...)
	}
}

func writeResult(w http.ResponseWriter, result upload.OperationResult) {
	web.WriteJSON(w, result.StatusCode, resultResponse{
		Success: result.Success,
		Partial: result.Partial,
		Message: result.Message,
		Flash:   flashType(result),
	})
}

func flashType(result upload.OperationResult) string {
	switch {
	case result.StatusCode == http.StatusOK:
		return flashSuccess
	case result.StatusCode == http.StatusMultiStatus:
		return flashWarning
	default:
		return flashDanger
	}
}
