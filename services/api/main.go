// Основной API: беседы, сообщения, опросы, файлы, WebSocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chasmos/internal/config"
	"github.com/chasmos/internal/handler"
	"github.com/chasmos/internal/logger"
	"github.com/chasmos/internal/middleware"
	"github.com/chasmos/internal/push"
	"github.com/chasmos/internal/repository"
	"github.com/chasmos/internal/service"
	"github.com/chasmos/internal/startup"
	"github.com/chasmos/internal/storage"
	"github.com/chasmos/internal/storage/devstore"
	"github.com/chasmos/internal/ws"
	"github.com/chasmos/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL (no external DB required)")
	flag.Parse()

	logger.Info("starting API service")
	cfg := config.Load()

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second, "")
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}

	resetCtx, resetCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if _, err := pool.Exec(resetCtx, "UPDATE users SET is_online = false"); err != nil {
		logger.Errorf("reset online status: %v", err)
	}
	resetCancel()
	logger.Info("database connected, migrations applied")

	userRepo := repository.NewUserRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)
	pinnedRepo := repository.NewPinnedRepository(pool)
	pollRepo := repository.NewPollRepository(pool)
	archiveRepo := repository.NewArchiveRepository(pool)
	blockRepo := repository.NewBlockRepository(pool)
	screenshotRepo := repository.NewScreenshotRepository(pool)

	// Кеш профилей и флагов общий с auth-сервисом: Redis в проде, devstore в -dev.
	var store storage.SessionCacheStore
	if *dev {
		store = devstore.New(sessionRepo, userRepo)
	} else {
		redisClient := startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second, "")
		defer redisClient.Close()
		store = redisClient
	}
	authSvc := service.NewAuthService(userRepo, sessionRepo, store)

	pushClient := push.NewClient(cfg.PushServiceURL)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(convRepo, msgRepo, userRepo, pinnedRepo, blockRepo, cfg.MaxWSConnections, pushClient)

	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	chatH := handler.NewChatHandler(convRepo, userRepo, msgRepo, archiveRepo, blockRepo, hub)
	msgH := handler.NewMessageHandler(msgRepo, convRepo, userRepo, pinnedRepo, blockRepo, hub)
	pollH := handler.NewPollHandler(pollRepo, msgRepo, convRepo, userRepo, hub)
	archiveH := handler.NewArchiveHandler(archiveRepo, convRepo, hub)
	blockH := handler.NewBlockHandler(blockRepo, userRepo, convRepo, msgRepo, hub)
	screenshotH := handler.NewScreenshotHandler(screenshotRepo, convRepo, userRepo, msgRepo, hub)
	userH := handler.NewUserHandler(userRepo, authSvc, store)
	fileH := handler.NewFileHandler(cfg)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)
	configH := handler.NewConfigHandler(cfg)
	pushH := handler.NewPushHandler(pushClient)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(middleware.RecoverJSON)
	// Не сжимать WebSocket — иначе ResponseWriter не реализует http.Hijacker и upgrade даёт 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Get("/api/config/notifications", configH.GetNotificationConfig)
	r.Get("/api/config/push", configH.GetPushConfig)
	r.Get("/api/files/documents/{filename}", fileH.ServeDocument)
	r.Get("/api/files/screenshots/{filename}", fileH.ServeScreenshot)

	if cfg.AuthServiceURL != "" {
		authProxy := authProxyHandler(cfg.AuthServiceURL)
		r.Post("/api/auth/signup", authProxy)
		r.Post("/api/auth/login", authProxy)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthServiceValidate(cfg.AuthServiceURL, nil))
		r.Get("/api/users/me", userH.GetProfile)
		r.Put("/api/users/me", userH.UpdateProfile)
		r.Get("/api/users/search", userH.SearchUsers)
		r.Get("/api/users/me/preferences/{name}", userH.GetPreference)
		r.Put("/api/users/me/preferences/{name}", userH.SetPreference)
		r.Get("/api/users/{id}", userH.GetUser)

		r.Get("/api/conversations", chatH.List)
		r.Post("/api/conversations/direct", chatH.CreateDirect)
		r.Post("/api/conversations/group", chatH.CreateGroup)
		r.Get("/api/conversations/{id}", chatH.Get)
		r.Put("/api/conversations/{id}", chatH.Update)
		r.Post("/api/conversations/{id}/members", chatH.AddMembers)
		r.Delete("/api/conversations/{id}/members/{memberId}", chatH.RemoveMember)
		r.Post("/api/conversations/{id}/leave", chatH.Leave)
		r.Get("/api/archive", archiveH.List)
		r.Get("/api/conversations/{id}/archive", archiveH.Status)
		r.Post("/api/conversations/{id}/archive", archiveH.Archive)
		r.Delete("/api/conversations/{id}/archive", archiveH.Unarchive)
		r.Post("/api/conversations/{id}/archive/all", archiveH.ArchiveForAll)
		r.Delete("/api/conversations/{id}/archive/all", archiveH.UnarchiveForAll)
		r.Get("/api/conversations/{id}/polls", pollH.ListByConversation)
		r.Get("/api/conversations/{id}/screenshots", screenshotH.List)

		r.Get("/api/conversations/{conversationId}/messages", msgH.GetMessages)
		r.Post("/api/conversations/{conversationId}/messages", msgH.Send)
		r.Post("/api/conversations/{conversationId}/read", msgH.MarkAsRead)
		r.Get("/api/conversations/{conversationId}/messages/search", msgH.SearchMessages)
		r.Get("/api/conversations/{conversationId}/pinned", msgH.GetPinnedMessages)
		r.Put("/api/messages/{messageId}", msgH.Edit)
		r.Delete("/api/messages/{messageId}", msgH.Delete)
		r.Post("/api/messages/{messageId}/pin", msgH.Pin)
		r.Delete("/api/messages/{messageId}/pin", msgH.Unpin)

		r.Post("/api/polls", pollH.Create)
		r.Get("/api/polls/{id}", pollH.Get)
		r.Post("/api/polls/{id}/vote", pollH.Vote)
		r.Delete("/api/polls/{id}/vote/{optionId}", pollH.RemoveVote)
		r.Post("/api/polls/{id}/close", pollH.Close)

		r.Post("/api/block", blockH.Block)
		r.Delete("/api/block", blockH.Unblock)
		r.Get("/api/block", blockH.List)
		r.Get("/api/block/{userId}", blockH.Status)

		r.Post("/api/screenshot", screenshotH.Record)
		r.Delete("/api/screenshot/{id}", screenshotH.Delete)
		r.Post("/api/files/documents", fileH.UploadDocument)
		r.Post("/api/files/screenshots", fileH.UploadScreenshot)

		r.Post("/api/push/subscribe", pushH.Subscribe)
		r.Delete("/api/push/subscribe", pushH.Unsubscribe)
		r.Get("/ws", wsH.ServeWS)
	})

	webDist := "./web/dist"
	if info, err := os.Stat(webDist); err == nil && info.IsDir() {
		r.Get("/*", spaHandler(webDist))
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

func authProxyHandler(authBaseURL string) http.HandlerFunc {
	client := &http.Client{Timeout: 15 * time.Second}
	base := strings.TrimSuffix(authBaseURL, "/")
	return func(w http.ResponseWriter, r *http.Request) {
		proxyReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, base+r.URL.Path, r.Body)
		if err != nil {
			http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
			return
		}
		proxyReq.Header.Set("Content-Type", r.Header.Get("Content-Type"))
		if proxyReq.Header.Get("Content-Type") == "" {
			proxyReq.Header.Set("Content-Type", "application/json")
		}
		resp, err := client.Do(proxyReq)
		if err != nil {
			logger.Errorf("auth proxy: %v", err)
			http.Error(w, `{"error":"auth service unavailable"}`, http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
	}
}

func spaHandler(dir string) http.HandlerFunc {
	root := http.Dir(dir)
	fileServer := http.FileServer(root)
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(filepath.Clean(r.URL.Path), "/")
		if path == "" {
			path = "index.html"
		}
		if f, err := root.Open(path); err != nil {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
		} else {
			f.Close()
			fileServer.ServeHTTP(w, r)
		}
	}
}

func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := fs.ReadDir(migrations.Files, ".")
	if err != nil {
		logger.Errorf("read migrations: %v", err)
		os.Exit(1)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := migrations.Files.ReadFile(name)
		if err != nil {
			logger.Errorf("read migration %s: %v", name, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", name, err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "chasmos"
		password = "chasmos_secret"
		database = "chasmos"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
