package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-room/internal/authority"
	"github.com/stemsi/exstem-room/internal/config"
	"github.com/stemsi/exstem-room/internal/database"
	"github.com/stemsi/exstem-room/internal/grading"
	"github.com/stemsi/exstem-room/internal/handler"
	"github.com/stemsi/exstem-room/internal/link"
	"github.com/stemsi/exstem-room/internal/logger"
	"github.com/stemsi/exstem-room/internal/middleware"
	"github.com/stemsi/exstem-room/internal/model"
	"github.com/stemsi/exstem-room/internal/registry"
	"github.com/stemsi/exstem-room/internal/repository"
	"github.com/stemsi/exstem-room/internal/router"
	"github.com/stemsi/exstem-room/internal/service"
	"github.com/stemsi/exstem-room/internal/validator"
	"github.com/stemsi/exstem-room/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreDriver).
		Str("registry", cfg.RegistryDriver).
		Msg("Starting exam room examiner")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Owner Store ───────────────────────────────────────────────────
	repo, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	// ─── Identifier Registry ───────────────────────────────────────────
	reg, closeRegistry := openRegistry(ctx, cfg, log)
	defer closeRegistry()

	// ─── Restore or Create the Room ────────────────────────────────────
	roomID, state := restoreRoom(ctx, repo, cfg, log)

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	persistWorker := worker.NewPersistWorker(repo, log)
	workerDone := make(chan struct{})
	go func() {
		persistWorker.Start(workerCtx)
		close(workerDone)
	}()

	// ─── Examiner Node ─────────────────────────────────────────────────
	links := link.NewManager(log)
	auth := authority.New(roomID, state, links, persistWorker, authority.Options{
		Rules:              grading.DefaultRules,
		DefaultDuration:    cfg.DefaultDuration,
		RegradeOnKeyChange: cfg.RegradeOnKey,
	}, log)
	node := authority.NewNode(authority.NodeConfig{
		Namespace: cfg.PeerNamespace,
		ClaimTTL:  cfg.PeerClaimTTL,
	}, auth, links, reg, log)

	if err := node.Claim(ctx); err != nil {
		if errors.Is(err, registry.ErrIdentifierTaken) {
			log.Fatal().Str("peer_id", node.PeerID()).Msg("Another examiner already holds this room")
		}
		log.Fatal().Err(err).Msg("Failed to claim peer identifier")
	}

	nodeCtx, nodeCancel := context.WithCancel(context.Background())
	nodeDone := make(chan struct{})
	go func() {
		node.Run(nodeCtx)
		close(nodeDone)
	}()

	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	go authLimiter.Start(ctx)

	// ─── Setup Router ──────────────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	if cfg.AdminPasswordHash == "" {
		log.Warn().Msg("ADMIN_PASSWORD_HASH is empty, the admin API will refuse every login")
	}
	handlers := &router.Handlers{
		Auth: handler.NewAuthHandler(authService),
		Room: handler.NewRoomHandler(node, cfg.ReportLocation(), log),
		Peer: handler.NewPeerHandler(nodeCtx, node, cfg.AllowedOrigins, log),
	}
	r := router.SetupRouter(authService, authLimiter, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("peer_id", node.PeerID()).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Close participant links and release the identifier.
	nodeCancel()
	<-nodeDone

	// 3. Flush pending room writes.
	workerCancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn().Int("pending", persistWorker.Pending()).Msg("Persist worker did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (repository.RoomRepository, func()) {
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		return repository.NewPostgresRoomRepository(pool), pool.Close
	case "sqlite":
		db, err := database.NewSQLiteDB(ctx, cfg.SQLitePath, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open SQLite store")
		}
		if err := repository.InitSQLiteSchema(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare SQLite schema")
		}
		return repository.NewSQLiteRoomRepository(db), func() { _ = db.Close() }
	default:
		log.Fatal().Str("driver", cfg.StoreDriver).Msg("Unknown STORE_DRIVER")
		return nil, nil
	}
}

func openRegistry(ctx context.Context, cfg *config.Config, log zerolog.Logger) (registry.Registry, func()) {
	switch cfg.RegistryDriver {
	case "redis":
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		return registry.NewRedisRegistry(rdb), func() { _ = rdb.Close() }
	case "memory":
		log.Warn().Msg("In-memory registry cannot detect examiners on other machines")
		return registry.NewMemoryRegistry(), func() {}
	default:
		log.Fatal().Str("driver", cfg.RegistryDriver).Msg("Unknown REGISTRY_DRIVER")
		return nil, nil
	}
}

// restoreRoom resumes the most recently active room, or draws a new room
// number when the store is empty.
func restoreRoom(ctx context.Context, repo repository.RoomRepository, cfg *config.Config, log zerolog.Logger) (int, model.SessionState) {
	rec, err := repo.LoadLatest(ctx)
	switch {
	case err == nil:
		log.Info().
			Int("room_id", rec.RoomID).
			Int("submissions", len(rec.State.Submissions)).
			Time("last_active", rec.LastActive).
			Msg("Room restored")
		return rec.RoomID, rec.State
	case errors.Is(err, repository.ErrNoRoom):
		roomID := link.NewRoomID()
		log.Info().Int("room_id", roomID).Msg("New room created")
		return roomID, model.NewSessionState(cfg.DefaultDuration)
	default:
		log.Fatal().Err(err).Msg("Failed to load room")
		return 0, model.SessionState{}
	}
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
