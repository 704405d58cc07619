package engine

import (
	"context"
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dishusingla001/door-lock-server/internal/models"
)

func TestMatchNearestNeighbourWins(t *testing.T) {
	src := &fakeSource{}
	for _, e := range []struct {
		name string
		vec  []float32
	}{
		{"far", []float32{0.9}},
		{"near", []float32{0.2}},
		{"middle", []float32{0.6}},
	} {
		src.embeddings = append(src.embeddings, models.FaceEmbedding{OwnerName: e.name, Vector: e.vec})
	}
	g := NewGallery()
	_, err := g.Reload(context.Background(), src)
	require.NoError(t, err)

	vision := &fakeVision{
		regions:  []image.Rectangle{image.Rect(0, 0, 2, 2)},
		encoding: []float32{0},
	}
	m := NewFaceMatcher(g, vision, 0.5)

	result, err := m.Match(testFrame())
	require.NoError(t, err)

	assert.Equal(t, "near", result.Name)
	assert.Equal(t, "80.0%", result.Confidence)
	assert.Empty(t, result.Reason)
}

func TestMatchThresholdIsStrict(t *testing.T) {
	vision := &fakeVision{
		regions:  []image.Rectangle{image.Rect(0, 0, 2, 2)},
		encoding: []float32{0},
	}

	// Distance 0.5 puts confidence exactly on the threshold: rejected.
	g := loadedGallery(t, map[string][]float32{"alice": {0.5}})
	result, err := NewFaceMatcher(g, vision, 0.5).Match(testFrame())
	require.NoError(t, err)
	assert.Empty(t, result.Name)
	assert.Equal(t, ReasonNotRecognized, result.Reason)
	assert.Equal(t, "50.0%", result.Confidence, "rejections still report the computed confidence")

	// A hair above clears it.
	g = loadedGallery(t, map[string][]float32{"alice": {0.49}})
	result, err = NewFaceMatcher(g, vision, 0.5).Match(testFrame())
	require.NoError(t, err)
	assert.Equal(t, "alice", result.Name)
}

func TestMatchUnloadedGalleryShortCircuits(t *testing.T) {
	vision := &fakeVision{regions: []image.Rectangle{image.Rect(0, 0, 2, 2)}}
	m := NewFaceMatcher(NewGallery(), vision, 0.5)

	result, err := m.Match(testFrame())
	require.NoError(t, err)
	assert.Equal(t, ReasonNoEncodings, result.Reason)
	assert.Empty(t, result.Confidence)
}

func TestMatchNoFaceDetected(t *testing.T) {
	g := loadedGallery(t, map[string][]float32{"alice": {0.3}})
	vision := &fakeVision{regions: nil}
	m := NewFaceMatcher(g, vision, 0.5)

	result, err := m.Match(testFrame())
	require.NoError(t, err)
	assert.Equal(t, ReasonNoFace, result.Reason)
}

func TestMatchUsesFirstRegionOnly(t *testing.T) {
	g := loadedGallery(t, map[string][]float32{"alice": {0.1}})
	vision := &fakeVision{
		regions: []image.Rectangle{
			image.Rect(0, 0, 2, 2),
			image.Rect(2, 2, 4, 4),
		},
		encoding: []float32{0.1},
	}
	m := NewFaceMatcher(g, vision, 0.5)

	result, err := m.Match(testFrame())
	require.NoError(t, err)
	assert.Equal(t, "alice", result.Name)
	assert.Equal(t, "100.0%", result.Confidence)
}

// A reload that publishes a smaller gallery between the distance search and
// the name lookup must never be observed: both come from one snapshot.
func TestMatchStaysOnOneGenerationDuringReload(t *testing.T) {
	wide := &fakeSource{}
	for i := 0; i < 65; i++ {
		wide.embeddings = append(wide.embeddings, models.FaceEmbedding{
			OwnerName: "wide", Vector: []float32{0.2},
		})
	}
	narrow := &fakeSource{embeddings: []models.FaceEmbedding{
		{OwnerName: "narrow", Vector: []float32{0.3}},
	}}

	g := NewGallery()
	_, err := g.Reload(context.Background(), wide)
	require.NoError(t, err)

	vision := &fakeVision{
		regions:  []image.Rectangle{image.Rect(0, 0, 2, 2)},
		encoding: []float32{0},
	}
	m := NewFaceMatcher(g, vision, 0.5)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			_, _ = g.Reload(context.Background(), narrow)
			_, _ = g.Reload(context.Background(), wide)
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}

		result, err := m.Match(testFrame())
		require.NoError(t, err)
		if result.Name != "wide" && result.Name != "narrow" {
			t.Fatalf("matched name %q belongs to neither gallery generation", result.Name)
		}
	}
}

func TestMatchRejectsDimensionMismatch(t *testing.T) {
	g := loadedGallery(t, map[string][]float32{"alice": {0.1, 0.1}})
	vision := &fakeVision{
		regions:  []image.Rectangle{image.Rect(0, 0, 2, 2)},
		encoding: []float32{0}, // shorter than every gallery vector
	}

	_, err := NewFaceMatcher(g, vision, 0.5).Match(testFrame())
	require.Error(t, err, "a truncated comparison must not produce a decision")
}

func TestMatchSkipsMismatchedGalleryVectors(t *testing.T) {
	src := &fakeSource{embeddings: []models.FaceEmbedding{
		{OwnerName: "legacy", Vector: []float32{0, 0}},
		{OwnerName: "alice", Vector: []float32{0.2}},
	}}
	g := NewGallery()
	_, err := g.Reload(context.Background(), src)
	require.NoError(t, err)

	vision := &fakeVision{
		regions:  []image.Rectangle{image.Rect(0, 0, 2, 2)},
		encoding: []float32{0},
	}

	result, err := NewFaceMatcher(g, vision, 0.5).Match(testFrame())
	require.NoError(t, err)
	assert.Equal(t, "alice", result.Name, "only same-dimension vectors compete")
}

func TestEuclidean(t *testing.T) {
	assert.InDelta(t, 5.0, euclidean([]float32{0, 0}, []float32{3, 4}), 1e-9)
	assert.InDelta(t, 0.0, euclidean([]float32{1, 2}, []float32{1, 2}), 1e-9)
	assert.True(t, math.IsInf(euclidean([]float32{1}, []float32{1, 2}), 1))
}
