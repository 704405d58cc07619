package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dishusingla001/door-lock-server/internal/models"
	"github.com/dishusingla001/door-lock-server/internal/observability"
)

// EmbeddingSource supplies all stored (vector, owner) pairs, satisfied by the
// Postgres store.
type EmbeddingSource interface {
	FetchAllEmbeddings(ctx context.Context) ([]models.FaceEmbedding, error)
}

// snapshot is one immutable generation of the gallery: parallel index-aligned
// slices, len(vectors) == len(names) always. A name may appear several times
// (one entry per enrolled pose).
type snapshot struct {
	vectors [][]float32
	names   []string
	loaded  bool
}

// Gallery is the process-wide cache of known embeddings. It is rebuilt
// wholesale by Reload and published atomically, so concurrent readers never
// observe a half-replaced pair of slices. There is no incremental update
// path: new enrollments take effect on the next reload.
type Gallery struct {
	snap atomic.Pointer[snapshot]
}

func NewGallery() *Gallery {
	g := &Gallery{}
	g.snap.Store(&snapshot{})
	return g
}

// Reload fetches every stored embedding and swaps in a fresh snapshot.
// Zero stored pairs is a legitimate "nobody enrolled yet" state: the gallery
// stays unloaded and empty, and no error is returned.
func (g *Gallery) Reload(ctx context.Context, src EmbeddingSource) (int, error) {
	embeddings, err := src.FetchAllEmbeddings(ctx)
	if err != nil {
		return 0, fmt.Errorf("reload gallery: %w", err)
	}

	next := &snapshot{
		vectors: make([][]float32, 0, len(embeddings)),
		names:   make([]string, 0, len(embeddings)),
		loaded:  len(embeddings) > 0,
	}
	for _, fe := range embeddings {
		next.vectors = append(next.vectors, fe.Vector)
		next.names = append(next.names, fe.OwnerName)
	}

	g.snap.Store(next)
	observability.GallerySize.Set(float64(len(next.vectors)))

	return len(next.vectors), nil
}

// Loaded reports whether at least one embedding is available for matching.
func (g *Gallery) Loaded() bool {
	return g.snap.Load().loaded
}

// Snapshot returns the current generation's parallel slices. Callers must
// treat them as read-only.
func (g *Gallery) Snapshot() ([][]float32, []string) {
	s := g.snap.Load()
	return s.vectors, s.names
}

// Size returns the number of embeddings in the gallery.
func (g *Gallery) Size() int {
	return len(g.snap.Load().vectors)
}

// KnownIdentityCount returns the number of distinct owner names, not
// embeddings.
func (g *Gallery) KnownIdentityCount() int {
	s := g.snap.Load()
	seen := make(map[string]struct{}, len(s.names))
	for _, name := range s.names {
		seen[name] = struct{}{}
	}
	return len(seen)
}
