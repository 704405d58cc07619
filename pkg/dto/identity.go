package dto

import "github.com/google/uuid"

type CreateIdentityRequest struct {
	Name string `json:"name" binding:"required"`
	Role string `json:"role"`
}

type IdentityResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	FaceCount int       `json:"face_count"`
	CreatedAt string    `json:"created_at"`
}

type FaceEnrolledResponse struct {
	ID          uuid.UUID `json:"id"`
	OwnerName   string    `json:"owner_name"`
	SourceLabel string    `json:"source_label,omitempty"`
	CreatedAt   string    `json:"created_at"`
}

type GalleryReloadResponse struct {
	Loaded     bool `json:"loaded"`
	Embeddings int  `json:"embeddings"`
	KnownFaces int  `json:"known_faces"`
}
