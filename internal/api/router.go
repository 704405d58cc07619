package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dishusingla001/door-lock-server/internal/api/handlers"
	"github.com/dishusingla001/door-lock-server/internal/api/ws"
	"github.com/dishusingla001/door-lock-server/internal/auth"
	"github.com/dishusingla001/door-lock-server/internal/device"
	"github.com/dishusingla001/door-lock-server/internal/engine"
	"github.com/dishusingla001/door-lock-server/internal/queue"
	"github.com/dishusingla001/door-lock-server/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	Engine   *engine.Engine
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore
	Producer *queue.Producer
	Notifier *device.Notifier
	Hub      *ws.Hub
	// EmbedFn extracts a face embedding from image bytes (vision pipeline).
	EmbedFn func(imageData []byte) ([]float32, error)
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket decision feed
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Verification (the door device's endpoints)
	accessH := handlers.NewAccessHandler(cfg.Engine, cfg.MinIO, cfg.Notifier)
	v1.POST("/verify/qr", accessH.VerifyQR)
	v1.POST("/verify/face", accessH.VerifyFace)
	v1.GET("/status", accessH.Status)

	// Enrollment & gallery administration
	identityH := handlers.NewIdentityHandler(cfg.DB, cfg.MinIO, cfg.Engine.Gallery())
	identityH.EmbedFn = cfg.EmbedFn
	v1.POST("/identities", identityH.Create)
	v1.GET("/identities", identityH.List)
	v1.POST("/identities/:name/faces", identityH.AddFace)
	v1.DELETE("/identities/:name/faces", identityH.DeleteFaces)
	v1.POST("/identities/:name/deactivate", identityH.Deactivate)
	v1.POST("/gallery/reload", identityH.ReloadGallery)

	// Audit trail
	logsH := handlers.NewLogsHandler(cfg.DB, cfg.MinIO)
	v1.GET("/logs", logsH.List)
	v1.GET("/logs/snapshot", logsH.Snapshot)

	return r
}
