package handlers

import (
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dishusingla001/door-lock-server/internal/storage"
	"github.com/dishusingla001/door-lock-server/pkg/dto"
)

// LogsHandler serves the audit trail: access-log queries and attempt
// snapshots. Read-only by construction; the log has no mutation API.
type LogsHandler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
}

func NewLogsHandler(db *storage.PostgresStore, minio *storage.MinIOStore) *LogsHandler {
	return &LogsHandler{db: db, minio: minio}
}

// List handles GET /v1/logs?limit=&name=.
func (h *LogsHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	name := c.Query("name")

	entries, err := h.db.ListAccessLogs(c.Request.Context(), limit, name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.AccessLogResponse, 0, len(entries))
	for _, e := range entries {
		r := dto.AccessLogResponse{
			ID:          e.ID.String(),
			SubjectName: e.SubjectName,
			Outcome:     string(e.Outcome),
			Channel:     string(e.Channel),
			Confidence:  e.Confidence,
			Timestamp:   e.Timestamp.Format(time.RFC3339),
		}
		if e.SnapshotKey != "" {
			r.SnapshotURL = "/v1/logs/snapshot?key=" + e.SnapshotKey
		}
		resp = append(resp, r)
	}

	c.JSON(http.StatusOK, dto.AccessLogListResponse{Logs: resp, Total: len(resp)})
}

// Snapshot proxies an archived attempt frame from MinIO.
func (h *LogsHandler) Snapshot(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "snapshot key required"})
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
		return
	}

	contentType := "image/jpeg"
	switch path.Ext(key) {
	case ".png":
		contentType = "image/png"
	case ".gif":
		contentType = "image/gif"
	}
	c.Data(http.StatusOK, contentType, data)
}
