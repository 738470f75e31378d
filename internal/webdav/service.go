package webdav

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/webdav"
)

const Prefix = "/dav"

type userContextKey struct{}

/*
모든 업로드 타입을 하나의 webdav.Handler로 노출한다.
파일 수정 시 충돌을 방지하는 LockSystem은 핸들러 하나가 공유한다.
*/
type Service struct {
	handler *webdav.Handler
}

func NewService(fileSystem webdav.FileSystem) *Service {
	return &Service{
		handler: &webdav.Handler{
			Prefix:     Prefix,
			FileSystem: fileSystem,
			LockSystem: webdav.NewMemLS(),
			Logger:     logRequest,
		},
	}
}

func (s *Service) Handler() http.Handler {
	return s.handler
}

func logRequest(r *http.Request, err error) {
	username, _ := UsernameFromContext(r.Context())
	if err != nil {
		log.Warn().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("user", username).
			Msg("WebDAV request failed")
		return
	}
	log.Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("user", username).
		Msg("WebDAV request")
}

// WithUsername은 인증된 WebDAV 사용자를 요청 로그에 남기기 위해 ctx에 싣는다
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userContextKey{}, username)
}

func UsernameFromContext(ctx context.Context) (string, bool) {
	username, _ := ctx.Value(userContextKey{}).(string)
	return username, username != ""
}
