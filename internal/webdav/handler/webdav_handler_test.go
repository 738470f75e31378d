package webdav

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"golang.org/x/crypto/bcrypt"
	"taeu.kr/uploadhub/internal/upload"
	corewebdav "taeu.kr/uploadhub/internal/webdav"
)

func newTestService(t *testing.T) (*corewebdav.Service, string) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "avatars")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("failed to create root: %v", err)
	}
	roots, err := upload.NewRoots(map[string]string{"avatars": root})
	if err != nil {
		t.Fatalf("NewRoots returned error: %v", err)
	}
	resolver := upload.NewResolver(roots, afero.NewOsFs())
	return corewebdav.NewService(corewebdav.NewUploadTypeFS(resolver, afero.NewOsFs(), corewebdav.Hooks{})), root
}

func newCredentials(t *testing.T, user, password string) Credentials {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return Credentials{User: user, PasswordHash: string(hash)}
}

func TestServeHTTP_OPTIONS_Root_NoAuthAllowed(t *testing.T) {
	service, _ := newTestService(t)
	h := NewHandler(service, newCredentials(t, "admin", "secret"))
	testPaths := []string{"/dav", "/dav/"}
	for _, path := range testPaths {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, path, nil)
			rec := httptest.NewRecorder()

			if err := h.ServeHTTP(rec, req); err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}

			if rec.Code != http.StatusOK {
				t.Fatalf("expected %d, got %d", http.StatusOK, rec.Code)
			}
			if got := rec.Header().Get("DAV"); got != "1, 2" {
				t.Fatalf("expected DAV header %q, got %q", "1, 2", got)
			}
			if got := rec.Header().Get("MS-Author-Via"); got != "DAV" {
				t.Fatalf("expected MS-Author-Via header %q, got %q", "DAV", got)
			}
		})
	}
}

func TestServeHTTP_OPTIONS_Root_FallbackWithoutService(t *testing.T) {
	h := &Handler{}
	req := httptest.NewRequest(http.MethodOptions, "/dav", nil)
	rec := httptest.NewRecorder()

	if err := h.ServeHTTP(rec, req); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rec.Code != http.StatusOK || rec.Header().Get("DAV") != "1, 2" {
		t.Fatalf("expected fallback OPTIONS response, got %d %v", rec.Code, rec.Header())
	}
}

func TestServeHTTP_OPTIONS_NonRoot_NoAuthUnauthorized(t *testing.T) {
	service, _ := newTestService(t)
	h := NewHandler(service, newCredentials(t, "admin", "secret"))
	req := httptest.NewRequest(http.MethodOptions, "/dav/avatars", nil)
	rec := httptest.NewRecorder()

	if err := h.ServeHTTP(rec, req); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected %d, got %d", http.StatusUnauthorized, rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatalf("expected WWW-Authenticate header")
	}
}

func TestServeHTTP_WrongPasswordUnauthorized(t *testing.T) {
	service, _ := newTestService(t)
	h := NewHandler(service, newCredentials(t, "admin", "secret"))
	req := httptest.NewRequest("PROPFIND", "/dav/", nil)
	req.SetBasicAuth("admin", "wrong")
	rec := httptest.NewRecorder()

	if err := h.ServeHTTP(rec, req); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestServeHTTP_PutWithValidCredentials(t *testing.T) {
	service, root := newTestService(t)
	h := NewHandler(service, newCredentials(t, "admin", "secret"))
	req := httptest.NewRequest(http.MethodPut, "/dav/avatars/hello.txt", strings.NewReader("hi"))
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()

	if err := h.ServeHTTP(rec, req); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	data, err := os.ReadFile(filepath.Join(root, "hello.txt"))
	if err != nil || string(data) != "hi" {
		t.Fatalf("expected file content %q, got %q (%v)", "hi", string(data), err)
	}
}

func TestServeHTTP_NoCredentialsConfiguredAllowsAccess(t *testing.T) {
	service, _ := newTestService(t)
	h := NewHandler(service, Credentials{})
	req := httptest.NewRequest("PROPFIND", "/dav/", nil)
	req.Header.Set("Depth", "1")
	rec := httptest.NewRecorder()

	if err := h.ServeHTTP(rec, req); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("expected %d, got %d", http.StatusMultiStatus, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "avatars") {
		t.Fatalf("expected upload type in listing, got %s", rec.Body.String())
	}
}

func TestServeHTTP_DeleteUploadTypeRootForbidden(t *testing.T) {
	service, root := newTestService(t)
	h := NewHandler(service, Credentials{})
	req := httptest.NewRequest(http.MethodDelete, "/dav/avatars", nil)
	rec := httptest.NewRecorder()

	if err := h.ServeHTTP(rec, req); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rec.Code < 400 {
		t.Fatalf("expected failure status, got %d", rec.Code)
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("expected upload type root to survive: %v", err)
	}
}

func TestNormalizePROPFINDDepth(t *testing.T) {
	testCases := map[string]string{
		"":         "1",
		"infinity": "1",
		"0":        "0",
		"1":        "1",
		"banana":   "1",
	}
	for input, want := range testCases {
		req := httptest.NewRequest("PROPFIND", "/dav/", nil)
		if input != "" {
			req.Header.Set("Depth", input)
		}
		normalizePROPFINDDepth(req)
		if got := req.Header.Get("Depth"); got != want {
			t.Fatalf("Depth %q normalised to %q, want %q", input, got, want)
		}
	}
}

func TestServeHTTP_UnknownUploadTypeNotFound(t *testing.T) {
	service, _ := newTestService(t)
	h := NewHandler(service, Credentials{})
	req := httptest.NewRequest("PROPFIND", "/dav/videos/2024", nil)
	req.Header.Set("Depth", "0")
	rec := httptest.NewRecorder()

	if err := h.ServeHTTP(rec, req); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected %d, got %d", http.StatusNotFound, rec.Code)
	}
}
