package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-room/internal/config"
	"github.com/stemsi/exstem-room/internal/handler"
	"github.com/stemsi/exstem-room/internal/middleware"
	"github.com/stemsi/exstem-room/internal/response"
	"github.com/stemsi/exstem-room/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth *handler.AuthHandler
	Room *handler.RoomHandler
	Peer *handler.PeerHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	authLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Peer Links (WebSocket) ─────────────────────────────────────
	router.GET("/peer/:peer_id", handlers.Peer.Connect)

	// ─── 2. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
	}

	// ─── 3. Admin Group (Examiner JWT) ─────────────────────────────────
	room := router.Group("/api/v1/admin/room")
	room.Use(middleware.RequireAdminJWT(authService), middleware.Brotli())
	{
		room.GET("", handlers.Room.GetRoom)
		room.PUT("/status", handlers.Room.SetStatus)
		room.PUT("/duration", handlers.Room.SetDuration)
		room.PUT("/fullscreen", handlers.Room.SetFullscreen)
		room.PUT("/review", handlers.Room.SetReview)

		room.PUT("/key/part1/:q", handlers.Room.SetPart1Key)
		room.PUT("/key/part2/:q", handlers.Room.SetPart2Key)
		room.PUT("/key/part3/:q", handlers.Room.SetPart3Key)

		room.POST("/reset", handlers.Room.Reset)

		room.GET("/submissions/:name/review", handlers.Room.ReviewSubmission)
		room.GET("/report.csv", handlers.Room.ExportCSV)
		room.GET("/stats", handlers.Room.Stats)
	}

	return router
}
