package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dishusingla001/door-lock-server/internal/engine"
	"github.com/dishusingla001/door-lock-server/internal/models"
	"github.com/dishusingla001/door-lock-server/internal/storage"
	"github.com/dishusingla001/door-lock-server/pkg/dto"
)

// IdentityStore is the enrollment-facing slice of the credential store,
// satisfied by storage.PostgresStore.
type IdentityStore interface {
	engine.EmbeddingSource
	FindOrCreateIdentity(ctx context.Context, name, role string) (*models.Identity, error)
	ListIdentities(ctx context.Context) ([]models.Identity, error)
	DeactivateIdentity(ctx context.Context, name string) error
	AddFaceEmbedding(ctx context.Context, ownerName string, vector []float32, sourceLabel string) (*models.FaceEmbedding, error)
	DeleteEmbeddingsByOwner(ctx context.Context, ownerName string) (int64, error)
	CountEmbeddings(ctx context.Context, ownerName string) (int, error)
	EmbeddingCountsByOwner(ctx context.Context) (map[string]int, error)
}

// IdentityHandler covers enrollment: identities, their face embeddings, and
// administrative gallery reloads. Enrollment never touches the live gallery;
// a reload publishes new embeddings wholesale.
type IdentityHandler struct {
	db      IdentityStore
	minio   *storage.MinIOStore
	gallery *engine.Gallery
	// EmbedFn extracts a face embedding from encoded image bytes.
	// Unset when the vision pipeline failed to initialize.
	EmbedFn func(imageData []byte) ([]float32, error)
}

func NewIdentityHandler(db IdentityStore, minio *storage.MinIOStore, gallery *engine.Gallery) *IdentityHandler {
	return &IdentityHandler{db: db, minio: minio, gallery: gallery}
}

func (h *IdentityHandler) Create(c *gin.Context) {
	var req dto.CreateIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity, err := h.db.FindOrCreateIdentity(c.Request.Context(), req.Name, req.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	faceCount, err := h.db.CountEmbeddings(c.Request.Context(), identity.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, dto.IdentityResponse{
		ID:        identity.ID,
		Name:      identity.Name,
		Role:      identity.Role,
		Active:    identity.Active,
		FaceCount: faceCount,
		CreatedAt: identity.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

func (h *IdentityHandler) List(c *gin.Context) {
	identities, err := h.db.ListIdentities(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// One aggregate query instead of a count per identity.
	counts, err := h.db.EmbeddingCountsByOwner(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.IdentityResponse, 0, len(identities))
	for _, id := range identities {
		resp = append(resp, dto.IdentityResponse{
			ID:        id.ID,
			Name:      id.Name,
			Role:      id.Role,
			Active:    id.Active,
			FaceCount: counts[id.Name],
			CreatedAt: id.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	c.JSON(http.StatusOK, gin.H{"identities": resp, "total": len(resp)})
}

// AddFace accepts a multipart image upload, extracts the embedding, and
// stores it for the named identity (created on first enrollment).
func (h *IdentityHandler) AddFace(c *gin.Context) {
	name := c.Param("name")

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	if h.EmbedFn == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vision pipeline not initialized"})
		return
	}

	embedding, err := h.EmbedFn(imageData)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to extract face: " + err.Error()})
		return
	}

	if _, err := h.db.FindOrCreateIdentity(c.Request.Context(), name, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Keep the source image for re-enrollment with future models.
	sourceKey := "faces/" + name + "/" + uuid.New().String() + "_" + header.Filename
	if err := h.minio.PutObject(c.Request.Context(), sourceKey, imageData, header.Header.Get("Content-Type")); err != nil {
		slog.Warn("store enrollment image", "error", err, "name", name)
		sourceKey = ""
	}

	fe, err := h.db.AddFaceEmbedding(c.Request.Context(), name, embedding, sourceKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, dto.FaceEnrolledResponse{
		ID:          fe.ID,
		OwnerName:   fe.OwnerName,
		SourceLabel: fe.SourceLabel,
		CreatedAt:   fe.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

// DeleteFaces removes all embeddings for one identity (bulk delete is the
// only embedding mutation) along with archived enrollment images.
func (h *IdentityHandler) DeleteFaces(c *gin.Context) {
	name := c.Param("name")

	deleted, err := h.db.DeleteEmbeddingsByOwner(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if keys, err := h.minio.ListObjects(c.Request.Context(), "faces/"+name+"/"); err == nil && len(keys) > 0 {
		if err := h.minio.DeleteObjects(c.Request.Context(), keys); err != nil {
			slog.Warn("delete enrollment images", "error", err, "name", name)
		}
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *IdentityHandler) Deactivate(c *gin.Context) {
	name := c.Param("name")

	if err := h.db.DeactivateIdentity(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

// ReloadGallery handles POST /v1/gallery/reload: the administrative full
// reload with atomic swap. New enrollments take effect here, not before.
func (h *IdentityHandler) ReloadGallery(c *gin.Context) {
	count, err := h.gallery.Reload(c.Request.Context(), h.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.GalleryReloadResponse{
		Loaded:     h.gallery.Loaded(),
		Embeddings: count,
		KnownFaces: h.gallery.KnownIdentityCount(),
	})
}
