package webdav

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"taeu.kr/uploadhub/internal/platform/web"
	"taeu.kr/uploadhub/internal/webdav"
)

// Credentials는 WebDAV 기본 인증 정보. User가 비어 있으면 인증하지 않는다
type Credentials struct {
	User         string
	PasswordHash string
}

type Handler struct {
	webDavService *webdav.Service
	credentials   Credentials
}

func NewHandler(webDavService *webdav.Service, credentials Credentials) *Handler {
	return &Handler{
		webDavService: webDavService,
		credentials:   credentials,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) *web.Error {
	// 루트 OPTIONS(/dav, /dav/)는 무인증으로 허용해 DAV 핸드셰이크를 통과시킨다.
	if r.Method == http.MethodOptions && isWebDAVRootPath(r.URL.Path) {
		if h.webDavService != nil {
			h.webDavService.Handler().ServeHTTP(w, r)
			return nil
		}
		writeWebDAVRootOptionsFallback(w)
		return nil
	}

	ctx := r.Context()
	if h.authRequired() {
		username, password, ok := r.BasicAuth()
		if !ok || !h.authenticate(username, password) {
			writeWebDAVUnauthorized(w)
			return nil
		}
		ctx = webdav.WithUsername(ctx, username)
	}

	if h.webDavService == nil {
		return &web.Error{
			Code:    http.StatusServiceUnavailable,
			Message: "WebDAV is not available",
		}
	}

	normalizePROPFINDDepth(r)

	h.webDavService.Handler().ServeHTTP(w, r.WithContext(ctx))
	return nil
}

func (h *Handler) authRequired() bool {
	return strings.TrimSpace(h.credentials.User) != ""
}

func (h *Handler) authenticate(username, password string) bool {
	if subtle.ConstantTimeCompare([]byte(username), []byte(h.credentials.User)) != 1 {
		return false
	}
	if h.credentials.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(h.credentials.PasswordHash), []byte(password)) == nil
}

func writeWebDAVUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Uploadhub WebDAV"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte("Unauthorized"))
}

func isWebDAVRootPath(path string) bool {
	trimmed := strings.TrimRight(strings.TrimSpace(path), "/")
	return trimmed == webdav.Prefix
}

func writeWebDAVRootOptionsFallback(w http.ResponseWriter) {
	w.Header().Set("DAV", "1, 2")
	w.Header().Set("MS-Author-Via", "DAV")
	w.WriteHeader(http.StatusOK)
}

func normalizePROPFINDDepth(r *http.Request) {
	if r.Method != "PROPFIND" {
		return
	}

	depth := strings.ToLower(strings.TrimSpace(r.Header.Get("Depth")))
	switch depth {
	case "0", "1":
		return
	default:
		// 무한/생략/비정상 Depth는 1로 고정해 재귀 전체 스캔을 방지한다.
		r.Header.Set("Depth", "1")
	}
}
