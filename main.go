package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	xwebdav "golang.org/x/net/webdav"
	browse "taeu.kr/uploadhub/internal/browse"
	browseHandler "taeu.kr/uploadhub/internal/browse/handler"
	"taeu.kr/uploadhub/internal/config"
	journal "taeu.kr/uploadhub/internal/journal"
	journalHandler "taeu.kr/uploadhub/internal/journal/handler"
	journalStore "taeu.kr/uploadhub/internal/journal/store"
	"taeu.kr/uploadhub/internal/platform/database"
	"taeu.kr/uploadhub/internal/platform/web"
	"taeu.kr/uploadhub/internal/status"
	"taeu.kr/uploadhub/internal/upload"
	uploadHandler "taeu.kr/uploadhub/internal/upload/handler"
	webdav "taeu.kr/uploadhub/internal/webdav"
	webdavHandler "taeu.kr/uploadhub/internal/webdav/handler"
)

var goEnv string = "development"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Info().Msg("[Main] Starting Server...")
	log.Info().Msgf("[Main] environment: %s", goEnv)

	config.SetConfig(goEnv)
	setupLogger(config.Conf.Log)

	db, err := database.NewDB(config.Conf.Datasource.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("[Main] Failed to open database")
	}
	defer db.Close()

	roots, err := upload.NewRoots(config.Conf.Uploads.Types)
	if err != nil {
		log.Fatal().Err(err).Msg("[Main] Invalid upload type configuration")
	}

	fs := afero.NewOsFs()
	resolver := upload.NewResolver(roots, fs)
	if config.Conf.Uploads.CreateMissingRoots {
		if err := resolver.EnsureRoots(); err != nil {
			log.Fatal().Err(err).Msg("[Main] Failed to create upload roots")
		}
	}

	policy, err := upload.ParseConflictPolicy(config.Conf.Uploads.ConflictPolicy, upload.DefaultConflictPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("[Main] Invalid conflict policy")
	}

	journalService := journal.NewService(journalStore.NewStore(db))
	manager := upload.NewManager(resolver, fs, log.Logger, journalService)
	mover := upload.NewMover(resolver, fs, log.Logger, journalService, policy)
	usageService := upload.NewUsageService(resolver, fs)

	// 라우터 생성
	mux := http.NewServeMux()

	uploadHandler.NewHandler(resolver, manager, mover, usageService).RegisterRoutes(mux)
	browseHandler.NewHandler(resolver, browse.Builder{Fs: fs, FollowSymlinks: config.Conf.Uploads.FollowSymlinks}).RegisterRoutes(mux)
	journalHandler.NewHandler(journalService).RegisterRoutes(mux)
	config.NewHandler().RegisterRoutes(mux)
	mux.Handle("/api/health", web.Handler(handleHealth))

	webdavEnabled := registerWebDAV(mux, config.Conf.Server, webdav.NewUploadTypeFS(resolver, fs, webdav.Hooks{
		Recorder:   journalService,
		Invalidate: usageService.Invalidate,
	}))

	status.NewHandler(db, resolver, fs, config.Conf.Server.Port, webdavEnabled).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + config.Conf.Server.Port,
		Handler:           Logger(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Msgf("[Main] Server is running on port %s", config.Conf.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("[Main] Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("[Main] Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("[Main] Graceful shutdown failed")
	}
}

func setupLogger(conf config.Log) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(conf.Level)))
	if err != nil || conf.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if conf.Pretty || goEnv != "production" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// registerWebDAV는 설정이 허용할 때만 /dav 를 연다. 계정이 없으면 webdav_allow_anonymous가 필요하다
func registerWebDAV(mux *http.ServeMux, server config.Server, fileSystem xwebdav.FileSystem) bool {
	if !server.WebdavEnabled {
		return false
	}

	credentials := webdavHandler.Credentials{
		User:         strings.TrimSpace(server.WebdavUser),
		PasswordHash: server.WebdavPasswordHash,
	}
	if credentials.User == "" || credentials.PasswordHash == "" {
		if !server.WebdavAllowAnonymous {
			log.Warn().Msg("[Main] WebDAV disabled: webdav_user/webdav_password_hash not set and anonymous access not allowed")
			return false
		}
		log.Warn().Msg("[Main] WebDAV is open without authentication")
		credentials = webdavHandler.Credentials{}
	}

	davHandler := webdavHandler.NewHandler(webdav.NewService(fileSystem), credentials)
	registerWebDAVRoutes(mux, web.Handler(davHandler.ServeHTTP))
	log.Info().Msgf("[Main] WebDAV enabled at %s/", webdav.Prefix)
	return true
}

// /dav 와 /dav/ 모두 리다이렉트 없이 같은 핸들러로 보낸다
func registerWebDAVRoutes(mux *http.ServeMux, handler http.Handler) {
	mux.Handle(webdav.Prefix, handler)
	mux.Handle(webdav.Prefix+"/", handler)
}

func handleHealth(w http.ResponseWriter, r *http.Request) *web.Error {
	if r.Method != http.MethodGet {
		return &web.Error{Code: http.StatusMethodNotAllowed, Message: "Method not allowed"}
	}
	web.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

// Logger 미들웨어
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("remote", r.RemoteAddr).
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Dur("elapsed", time.Since(start)).
			Msg("[HTTP] request")
	})
}
