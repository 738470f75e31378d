package status

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/afero"
	"taeu.kr/uploadhub/internal/platform/web"
	"taeu.kr/uploadhub/internal/upload"
)

type ProtocolStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Port    string `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// UploadStatus는 업로드 타입 루트 디렉토리 상태
type UploadStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

type StatusResponse struct {
	Protocols map[string]ProtocolStatus `json:"protocols"`
	Uploads   map[string]UploadStatus   `json:"uploads"`
	Hosts     []string                  `json:"hosts"`
}

type Handler struct {
	db            *sql.DB
	resolver      *upload.Resolver
	fs            afero.Fs
	port          string
	webdavEnabled bool
}

func NewHandler(db *sql.DB, resolver *upload.Resolver, fs afero.Fs, port string, webdavEnabled bool) *Handler {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Handler{
		db:            db,
		resolver:      resolver,
		fs:            fs,
		port:          port,
		webdavEnabled: webdavEnabled,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/api/status", web.Handler(h.handleStatus))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) *web.Error {
	if r.Method != http.MethodGet {
		return &web.Error{
			Code:    http.StatusMethodNotAllowed,
			Message: "Method not allowed",
		}
	}

	protocols := make(map[string]ProtocolStatus)

	// HTTP (DB 연결 기반)
	protocols["http"] = h.checkHTTP(r.Context())
	protocols["webdav"] = h.checkWebDAV()

	web.WriteJSON(w, http.StatusOK, StatusResponse{
		Protocols: protocols,
		Uploads:   h.checkUploads(),
		Hosts:     h.getAccessibleHosts(),
	})

	return nil
}

func (h *Handler) checkHTTP(ctx context.Context) ProtocolStatus {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if h.db == nil || h.db.PingContext(ctx) != nil {
		return ProtocolStatus{
			Status:  "unhealthy",
			Message: "DB 연결 실패",
			Port:    h.port,
			Path:    "/api/",
		}
	}

	return ProtocolStatus{
		Status:  "healthy",
		Message: "정상",
		Port:    h.port,
		Path:    "/api/",
	}
}

func (h *Handler) checkWebDAV() ProtocolStatus {
	if !h.webdavEnabled {
		return ProtocolStatus{
			Status:  "unavailable",
			Message: "비활성화",
			Port:    h.port,
			Path:    "/dav/",
		}
	}

	if h.resolver == nil || len(h.resolver.Types()) == 0 {
		return ProtocolStatus{
			Status:  "unhealthy",
			Message: "업로드 타입 없음",
			Port:    h.port,
			Path:    "/dav/",
		}
	}

	return ProtocolStatus{
		Status:  "healthy",
		Message: "정상",
		Port:    h.port,
		Path:    "/dav/",
	}
}

func (h *Handler) checkUploads() map[string]UploadStatus {
	uploads := make(map[string]UploadStatus)
	if h.resolver == nil {
		return uploads
	}

	for _, uploadType := range h.resolver.Types() {
		root, err := h.resolver.RootFor(uploadType)
		if err != nil {
			continue
		}

		info, err := h.fs.Stat(root)
		switch {
		case err != nil:
			uploads[string(uploadType)] = UploadStatus{Status: "unhealthy", Message: "루트 디렉토리 없음", Path: root}
		case !info.IsDir():
			uploads[string(uploadType)] = UploadStatus{Status: "unhealthy", Message: "루트가 디렉토리가 아님", Path: root}
		default:
			uploads[string(uploadType)] = UploadStatus{Status: "healthy", Message: "정상", Path: root}
		}
	}

	return uploads
}

func (h *Handler) getAccessibleHosts() []string {
	hosts := []string{fmt.Sprintf("localhost:%s", h.port)}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return hosts
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() || ipNet.IP.To4() == nil {
			continue
		}
		hosts = append(hosts, fmt.Sprintf("%s:%s", ipNet.IP.String(), h.port))
	}

	return hosts
}
