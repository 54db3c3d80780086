package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dazeez1/notes-app/config"
	"github.com/dazeez1/notes-app/internal/db"
	"github.com/dazeez1/notes-app/internal/handlers"
	"github.com/dazeez1/notes-app/internal/mailer"
	"github.com/dazeez1/notes-app/internal/mq"
	"github.com/dazeez1/notes-app/internal/services"
	"github.com/dazeez1/notes-app/internal/storage"
	"github.com/dazeez1/notes-app/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server, router, and the process-wide resources
// (database pool, broker connection) constructed at startup and torn down
// on shutdown.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
	logger     *slog.Logger
}

// New constructs a Server: opens the database, wires repositories into
// services and handlers, and selects the mailer and storage backends from
// config. Everything is passed down explicitly; nothing global.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	devMode := cfg.Env == "dev"
	logger := newLogger(devMode)

	jwtSecret := strings.TrimSpace(cfg.JWT.Secret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	broker, mailBackend, err := buildMailer(ctx, cfg, logger)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	noteRepo := store.NewNoteRepository(dbConn)

	userService := services.NewUserService(userRepo, mailBackend, logger, cfg.OTP.TTL)
	noteService := services.NewNoteService(noteRepo)

	authMiddleware := handlers.RequireAuth(userService, []byte(jwtSecret))
	authHandler := handlers.NewAuthHandler(userService, []byte(jwtSecret), cfg.JWT.TTL, logger, devMode)
	noteHandler := handlers.NewNoteHandler(noteService, logger, devMode)

	var attachmentHandler *handlers.AttachmentHandler
	if cfg.Storage.Backend != "" {
		objectStorage, err := buildStorage(ctx, cfg)
		if err != nil {
			closeAll(dbConn, broker)
			return nil, err
		}
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			closeAll(dbConn, broker)
			return nil, err
		}
		attachmentRepo := store.NewAttachmentRepository(dbConn)
		attachmentService := services.NewAttachmentService(noteRepo, attachmentRepo, objectStorage)
		attachmentHandler = handlers.NewAttachmentHandler(attachmentService, cfg.Storage.MaxAttachmentBytes, logger, devMode)
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler, authMiddleware)
	})
	router.Route("/notes", func(r chi.Router) {
		r.Use(authMiddleware)
		handlers.NoteRouter(r, noteHandler, attachmentHandler)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Logger exposes the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests, then releases the broker and the
// database pool.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}

func newLogger(devMode bool) *slog.Logger {
	if devMode {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// buildMailer selects the OTP delivery path. The returned broker is nil
// for the log backend and must be closed on shutdown otherwise.
func buildMailer(ctx context.Context, cfg config.Config, logger *slog.Logger) (*mq.MQ, mailer.Mailer, error) {
	switch cfg.Mailer.Backend {
	case "", "log":
		return nil, mailer.NewLogMailer(logger), nil
	case "queue":
		backend, err := buildBroker(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		broker := mq.New(backend)
		return broker, mailer.NewQueueMailer(broker, cfg.Mailer.Channel, cfg.Mailer.From), nil
	default:
		return nil, nil, fmt.Errorf("unknown mailer backend %q", cfg.Mailer.Backend)
	}
}

func buildBroker(ctx context.Context, cfg config.Config) (mq.Backend, error) {
	switch cfg.Mailer.Broker {
	case "rabbitmq":
		return mq.NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		return mq.NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mailer broker %q", cfg.Mailer.Broker)
	}
}

func buildStorage(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	switch cfg.Storage.Backend {
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func closeAll(dbConn *sql.DB, broker *mq.MQ) {
	if broker != nil {
		_ = broker.Close()
	}
	if dbConn != nil {
		_ = dbConn.Close()
	}
}
