package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go/jetstream"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/dishusingla001/door-lock-server/internal/api"
	"github.com/dishusingla001/door-lock-server/internal/api/ws"
	"github.com/dishusingla001/door-lock-server/internal/config"
	"github.com/dishusingla001/door-lock-server/internal/device"
	"github.com/dishusingla001/door-lock-server/internal/engine"
	"github.com/dishusingla001/door-lock-server/internal/models"
	"github.com/dishusingla001/door-lock-server/internal/observability"
	"github.com/dishusingla001/door-lock-server/internal/queue"
	"github.com/dishusingla001/door-lock-server/internal/storage"
	"github.com/dishusingla001/door-lock-server/internal/vision"
	"github.com/dishusingla001/door-lock-server/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// Local development convenience; production sets real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting door-lock server", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// MQTT door-controller notifier (optional)
	notifier, err := device.Connect(cfg.MQTT)
	if err != nil {
		slog.Warn("mqtt notifier unavailable — HTTP responses remain authoritative", "error", err)
	}
	defer notifier.Close()

	// Vision provider: both verification channels depend on it, so a failed
	// init means the access policy cannot be evaluated. Refuse to start.
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	provider, err := vision.NewProvider(cfg.Vision)
	if err != nil {
		slog.Error("init vision provider", "error", err)
		os.Exit(1)
	}
	defer provider.Close()

	// Assemble the decision engine
	gallery := engine.NewGallery()
	if count, err := gallery.Reload(context.Background(), db); err != nil {
		slog.Warn("load face gallery — recognition unavailable until reload", "error", err)
	} else if count == 0 {
		slog.Warn("no face encodings found — face channel will report unavailable")
	} else {
		slog.Info("face gallery loaded", "embeddings", count, "identities", gallery.KnownIdentityCount())
	}

	eng := engine.New(
		provider,
		engine.NewQRValidator(cfg.Access.QRAuthorizedValue),
		gallery,
		engine.NewFaceMatcher(gallery, provider, cfg.Access.RecognitionThreshold),
		engine.NewSessionIssuer(),
		engine.NewRecorder(db, producer),
	)

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Broadcast recorded decisions to connected dashboards
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create access consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeAccess(ctx, "api-access", func(ctx context.Context, msg jetstream.Msg) error {
		var event models.AccessEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			return err
		}

		evtType := "access_denied"
		if event.Outcome == models.OutcomeOpened {
			evtType = "access_granted"
		}

		hub.BroadcastEvent(&dto.WSEvent{
			Type:    evtType,
			Channel: string(event.Channel),
			Data:    event,
		})
		return nil
	})
	if err != nil {
		slog.Warn("start access consumer", "error", err)
	}

	// Attempt-snapshot retention sweeper
	go sweepSnapshots(ctx, minioStore, cfg.Access.SnapshotRetention)

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		Engine:   eng,
		DB:       db,
		MinIO:    minioStore,
		Producer: producer,
		Notifier: notifier,
		Hub:      hub,
		EmbedFn:  provider.EmbedImage,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// sweepSnapshots prunes archived attempt frames beyond the retention count,
// oldest first (keys sort chronologically by construction).
func sweepSnapshots(ctx context.Context, store *storage.MinIOStore, retention int) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, channel := range []models.Channel{models.ChannelQR, models.ChannelFace} {
			prefix := fmt.Sprintf("attempts/%s/", channel)
			keys, err := store.ListObjects(ctx, prefix)
			if err != nil {
				slog.Warn("sweep: list snapshots", "prefix", prefix, "error", err)
				continue
			}
			if len(keys) <= retention {
				continue
			}
			toDelete := keys[:len(keys)-retention]
			if err := store.DeleteObjects(ctx, toDelete); err != nil {
				slog.Warn("sweep: delete snapshots", "prefix", prefix, "error", err)
				continue
			}
			slog.Info("sweep: deleted old snapshots", "channel", channel, "deleted", len(toDelete), "remaining", retention)
		}
	}
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
