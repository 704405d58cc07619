package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dishusingla001/door-lock-server/internal/device"
	"github.com/dishusingla001/door-lock-server/internal/engine"
	"github.com/dishusingla001/door-lock-server/internal/models"
	"github.com/dishusingla001/door-lock-server/internal/storage"
	"github.com/dishusingla001/door-lock-server/internal/vision"
	"github.com/dishusingla001/door-lock-server/pkg/dto"
)

// AccessHandler frames the verification endpoints: decode the posted image,
// archive it, hand the pixels to the decision engine, and translate the
// decision into the wire response. No policy lives here.
type AccessHandler struct {
	engine    *engine.Engine
	snapshots *storage.MinIOStore
	notifier  *device.Notifier
}

func NewAccessHandler(eng *engine.Engine, snapshots *storage.MinIOStore, notifier *device.Notifier) *AccessHandler {
	return &AccessHandler{engine: eng, snapshots: snapshots, notifier: notifier}
}

// VerifyQR handles POST /v1/verify/qr.
func (h *AccessHandler) VerifyQR(c *gin.Context) {
	frame, raw, format, ok := h.decodeFrame(c)
	if !ok {
		return
	}

	key := h.archiveAttempt(c.Request.Context(), models.ChannelQR, raw, format)
	result := h.engine.VerifyQR(c.Request.Context(), frame, key)

	if result.Valid {
		h.notifier.Unlock("QR", models.ChannelQR)
		c.JSON(http.StatusOK, dto.VerifyQRResponse{Valid: true, SessionID: result.SessionID})
		return
	}

	c.JSON(http.StatusOK, dto.VerifyQRResponse{Valid: false})
}

// VerifyFace handles POST /v1/verify/face.
func (h *AccessHandler) VerifyFace(c *gin.Context) {
	frame, raw, format, ok := h.decodeFrame(c)
	if !ok {
		return
	}

	key := h.archiveAttempt(c.Request.Context(), models.ChannelFace, raw, format)
	result, err := h.engine.VerifyFace(c.Request.Context(), frame, key)
	if err != nil {
		// Unavailability, not a denial: nothing was evaluated.
		if errors.Is(err, engine.ErrGalleryNotLoaded) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No face encodings available"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "face recognition unavailable: " + err.Error()})
		return
	}

	if result.Recognized {
		h.notifier.Unlock(result.Name, models.ChannelFace)
		c.JSON(http.StatusOK, dto.VerifyFaceResponse{
			Recognized: true,
			Name:       result.Name,
			Confidence: result.Confidence,
			Access:     "granted",
		})
		return
	}

	c.JSON(http.StatusOK, dto.VerifyFaceResponse{Recognized: false, Access: "denied"})
}

// Status handles GET /v1/status.
func (h *AccessHandler) Status(c *gin.Context) {
	st := h.engine.Status()
	c.JSON(http.StatusOK, dto.StatusResponse{
		Online:      true,
		FacesLoaded: st.FacesLoaded,
		KnownFaces:  st.KnownFaces,
	})
}

// decodeFrame extracts the camera frame from the request body. Missing or
// undecodable payloads are client-input errors: a 4xx, never an access-log
// entry.
func (h *AccessHandler) decodeFrame(c *gin.Context) (image.Image, []byte, string, bool) {
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image"})
		return nil, nil, "", false
	}

	raw, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid base64 image"})
		return nil, nil, "", false
	}

	frame, format, err := vision.DecodeImage(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "undecodable image"})
		return nil, nil, "", false
	}

	return frame, raw, format, true
}

// archiveAttempt stores the attempt frame for audit, keyed and typed by the
// format it actually decoded as. Best effort: a failed write costs the
// snapshot, never the decision.
func (h *AccessHandler) archiveAttempt(ctx context.Context, channel models.Channel, raw []byte, format string) string {
	if h.snapshots == nil {
		return ""
	}

	ext, contentType := snapshotMeta(format)
	key := fmt.Sprintf("attempts/%s/%s_%s%s",
		channel, time.Now().UTC().Format("20060102_150405"), uuid.New().String(), ext)

	if err := h.snapshots.PutObject(ctx, key, raw, contentType); err != nil {
		slog.Warn("archive attempt frame", "error", err, "channel", channel)
		return ""
	}
	return key
}

// snapshotMeta maps a decoded image format to the archive key extension and
// content type. Unknown formats fall back to JPEG, the camera's native format.
func snapshotMeta(format string) (ext, contentType string) {
	switch format {
	case "png":
		return ".png", "image/png"
	case "gif":
		return ".gif", "image/gif"
	default:
		return ".jpg", "image/jpeg"
	}
}
