// Command enroll bulk-imports a face dataset into the identity store. The
// dataset directory contains one subdirectory per person, each holding that
// person's face images:
//
//	dataset/
//	  alice/
//	    front.jpg
//	    side.jpg
//	  bob/
//	    badge.png
//
// With -wipe NAME it instead removes all stored embeddings for that identity.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/dishusingla001/door-lock-server/internal/config"
	"github.com/dishusingla001/door-lock-server/internal/observability"
	"github.com/dishusingla001/door-lock-server/internal/storage"
	"github.com/dishusingla001/door-lock-server/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	datasetDir := flag.String("dataset", "", "directory of per-person image folders to enroll")
	wipeName := flag.String("wipe", "", "remove all embeddings for this identity and exit")
	role := flag.String("role", "member", "role assigned to newly created identities")
	keepSources := flag.Bool("upload-sources", true, "archive source images in object storage")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, "text")

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()

	if *wipeName != "" {
		deleted, err := db.DeleteEmbeddingsByOwner(ctx, *wipeName)
		if err != nil {
			slog.Error("wipe embeddings", "name", *wipeName, "error", err)
			os.Exit(1)
		}
		slog.Info("embeddings removed", "name", *wipeName, "deleted", deleted)
		return
	}

	if *datasetDir == "" {
		fmt.Fprintln(os.Stderr, "either -dataset or -wipe is required")
		flag.Usage()
		os.Exit(2)
	}

	ort.SetSharedLibraryPath(onnxLibPath())
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

	var minioStore *storage.MinIOStore
	if *keepSources {
		minioStore, err = storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Warn("minio unavailable, source images will not be archived", "error", err)
			minioStore = nil
		} else if err := minioStore.EnsureBucket(ctx); err != nil {
			slog.Warn("ensure minio bucket", "error", err)
		}
	}

	entries, err := os.ReadDir(*datasetDir)
	if err != nil {
		slog.Error("read dataset directory", "dir", *datasetDir, "error", err)
		os.Exit(1)
	}

	var enrolled, skipped int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()

		identity, err := db.FindOrCreateIdentity(ctx, name, *role)
		if err != nil {
			slog.Error("create identity", "name", name, "error", err)
			os.Exit(1)
		}

		personDir := filepath.Join(*datasetDir, name)
		images, err := os.ReadDir(personDir)
		if err != nil {
			slog.Error("read person directory", "dir", personDir, "error", err)
			os.Exit(1)
		}

		for _, img := range images {
			if img.IsDir() || !isImageFile(img.Name()) {
				continue
			}
			path := filepath.Join(personDir, img.Name())

			data, err := os.ReadFile(path)
			if err != nil {
				slog.Error("read image", "path", path, "error", err)
				os.Exit(1)
			}

			vector, err := provider.EmbedImage(data)
			if err != nil {
				slog.Warn("skipping image", "path", path, "error", err)
				skipped++
				continue
			}

			sourceLabel := img.Name()
			if minioStore != nil {
				key := fmt.Sprintf("faces/%s/%s", name, img.Name())
				if err := minioStore.PutObject(ctx, key, data, contentTypeFor(img.Name())); err != nil {
					slog.Warn("archive source image", "key", key, "error", err)
				} else {
					sourceLabel = key
				}
			}

			if _, err := db.AddFaceEmbedding(ctx, identity.Name, vector, sourceLabel); err != nil {
				slog.Error("store embedding", "name", name, "path", path, "error", err)
				os.Exit(1)
			}
			enrolled++
			slog.Info("enrolled", "name", name, "image", img.Name())
		}
	}

	slog.Info("enrollment complete", "enrolled", enrolled, "skipped", skipped)
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func contentTypeFor(name string) string {
	if strings.ToLower(filepath.Ext(name)) == ".png" {
		return "image/png"
	}
	return "image/jpeg"
}

// onnxLibPath returns the ONNX Runtime shared library path.
func onnxLibPath() string {
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
