package dto

import "github.com/dishusingla001/door-lock-server/internal/models"

// VerifyRequest carries one camera frame as base64-encoded JPEG, the format
// the ESP32-CAM posts.
type VerifyRequest struct {
	Image string `json:"image" binding:"required"`
}

type VerifyQRResponse struct {
	Valid     bool   `json:"valid"`
	SessionID string `json:"session_id,omitempty"`
}

type VerifyFaceResponse struct {
	Recognized bool   `json:"recognized"`
	Name       string `json:"name,omitempty"`
	Confidence string `json:"confidence,omitempty"`
	Access     string `json:"access"`
}

type StatusResponse struct {
	Online      bool `json:"online"`
	FacesLoaded bool `json:"faces_loaded"`
	KnownFaces  int  `json:"known_faces"`
}

type AccessLogResponse struct {
	ID          string `json:"id"`
	SubjectName string `json:"subject_name"`
	Outcome     string `json:"outcome"`
	Channel     string `json:"channel"`
	Confidence  string `json:"confidence,omitempty"`
	SnapshotURL string `json:"snapshot_url,omitempty"`
	Timestamp   string `json:"timestamp"`
}

type AccessLogListResponse struct {
	Logs  []AccessLogResponse `json:"logs"`
	Total int                 `json:"total"`
}

// WSEvent is a WebSocket message carrying one access decision.
type WSEvent struct {
	Type    string             `json:"type"` // access_granted, access_denied
	Channel string             `json:"channel"`
	Data    models.AccessEvent `json:"data"`
}
