package config

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"taeu.kr/uploadhub/internal/platform/web"
)

// Handler는 config API 핸들러입니다
type Handler struct {
	save func() error
}

type PublicConfigResponse struct {
	Server  Server        `json:"server"`
	Uploads PublicUploads `json:"uploads"`
}

// PublicUploads는 업로드 설정 중 공개 가능한 부분
type PublicUploads struct {
	Types          []string `json:"types"`
	ConflictPolicy string   `json:"conflictPolicy"`
	FollowSymlinks bool     `json:"followSymlinks"`
}

type UpdateConfigRequest struct {
	Server Server `json:"server"`
}

func NewHandler() *Handler {
	return &Handler{save: SaveConfig}
}

// RegisterRoutes는 라우트를 등록합니다
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/config", web.Handler(h.GetConfig))
	mux.Handle("PUT /api/config", web.Handler(h.UpdateConfig))
}

// GetConfig는 현재 설정을 반환합니다
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) *web.Error {
	types := make([]string, 0, len(Conf.Uploads.Types))
	for uploadType := range Conf.Uploads.Types {
		types = append(types, uploadType)
	}
	sort.Strings(types)

	web.WriteJSON(w, http.StatusOK, PublicConfigResponse{
		Server: Conf.Server,
		Uploads: PublicUploads{
			Types:          types,
			ConflictPolicy: Conf.Uploads.ConflictPolicy,
			FollowSymlinks: Conf.Uploads.FollowSymlinks,
		},
	})
	return nil
}

// UpdateConfig는 server 설정만 변경한다. 업로드 루트는 재시작 전까지 바뀌지 않는다
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) *web.Error {
	var req UpdateConfigRequest
	if webErr := web.DecodeJSON(r, &req); webErr != nil {
		return &web.Error{Err: webErr.Err, Code: http.StatusBadRequest, Message: "Invalid config format"}
	}

	req.Server.Port = strings.TrimSpace(req.Server.Port)
	req.Server.WebdavUser = strings.TrimSpace(req.Server.WebdavUser)
	// 비밀번호 해시는 API로 노출하거나 변경하지 않음
	req.Server.WebdavPasswordHash = Conf.Server.WebdavPasswordHash

	if webErr := validateServerConfig(req.Server); webErr != nil {
		return webErr
	}

	previous := Conf.Server
	Conf.Server = req.Server

	if err := h.save(); err != nil {
		Conf.Server = previous
		return &web.Error{Err: err, Code: http.StatusInternalServerError, Message: "Failed to save config"}
	}

	web.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Configuration updated successfully",
	})
	return nil
}

func validateServerConfig(server Server) *web.Error {
	port := strings.TrimSpace(server.Port)
	if port == "" {
		return &web.Error{Code: http.StatusBadRequest, Message: "server.port is required"}
	}
	if !isValidPort(port) {
		return &web.Error{Code: http.StatusBadRequest, Message: "server.port must be an integer between 1 and 65535"}
	}

	user := strings.TrimSpace(server.WebdavUser)
	if user != "" && server.WebdavPasswordHash == "" {
		return &web.Error{Code: http.StatusBadRequest, Message: "server.webdavUser requires a password hash in the config file"}
	}
	if strings.ContainsAny(user, ":") {
		return &web.Error{Code: http.StatusBadRequest, Message: "server.webdavUser must not contain ':'"}
	}

	return nil
}

func isValidPort(raw string) bool {
	port, err := strconv.Atoi(raw)
	if err != nil {
		return false
	}
	return port >= 1 && port <= 65535
}
