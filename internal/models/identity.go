package models

import (
	"time"

	"github.com/google/uuid"
)

type Identity struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Role      string    `json:"role" db:"role"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FaceEmbedding is one enrolled face template. An identity may own many
// embeddings (different poses); they are immutable once stored and only
// deleted in bulk by owner name.
type FaceEmbedding struct {
	ID          uuid.UUID `json:"id" db:"id"`
	OwnerName   string    `json:"owner_name" db:"owner_name"`
	Vector      []float32 `json:"-" db:"embedding"`
	SourceLabel string    `json:"source_label,omitempty" db:"source_label"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
