package engine

import (
	"fmt"
	"image"
	"math"
	"time"

	"github.com/dishusingla001/door-lock-server/internal/observability"
)

// Match reasons surfaced to the caller. ReasonNoEncodings is an availability
// condition, the other two are ordinary non-matches.
const (
	ReasonNoEncodings   = "No encodings loaded"
	ReasonNoFace        = "No face detected"
	ReasonNotRecognized = "Face not recognized"
)

// MatchResult carries the matcher's verdict. Name is empty unless the best
// gallery neighbour cleared the threshold. Confidence is formatted as a
// percentage string with one decimal ("70.0%") and is present whenever a
// probe was actually compared, even on rejection.
type MatchResult struct {
	Name       string
	Confidence string
	Reason     string
}

// FaceMatcher identifies the first face in a frame by nearest-neighbour
// search over the gallery.
type FaceMatcher struct {
	gallery   *Gallery
	vision    VisionProvider
	threshold float64
}

func NewFaceMatcher(gallery *Gallery, vision VisionProvider, threshold float64) *FaceMatcher {
	return &FaceMatcher{gallery: gallery, vision: vision, threshold: threshold}
}

// Match runs detect → encode → nearest-neighbour → threshold. The returned
// error is reserved for vision-provider failures; every normal non-match is
// expressed through MatchResult.Reason. Only the first detected face is
// considered; multi-face frames are not disambiguated.
func (m *FaceMatcher) Match(frame image.Image) (MatchResult, error) {
	// Capture one gallery generation up front. A concurrent Reload may
	// publish a new snapshot mid-match; vectors and names must come from
	// the same generation or bestIdx indexes the wrong slice.
	vectors, names := m.gallery.Snapshot()
	if len(vectors) == 0 {
		return MatchResult{Reason: ReasonNoEncodings}, nil
	}

	start := time.Now()
	regions, err := m.vision.DetectFaces(frame)
	if err != nil {
		return MatchResult{}, fmt.Errorf("detect faces: %w", err)
	}
	observability.MatchDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	if len(regions) == 0 {
		return MatchResult{Reason: ReasonNoFace}, nil
	}

	start = time.Now()
	probe, err := m.vision.EncodeFace(frame, regions[0])
	if err != nil {
		return MatchResult{}, fmt.Errorf("encode face: %w", err)
	}
	observability.MatchDuration.WithLabelValues("encode").Observe(time.Since(start).Seconds())

	start = time.Now()
	bestIdx, bestDist := nearest(vectors, probe)
	observability.MatchDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())

	if math.IsInf(bestDist, 1) {
		return MatchResult{}, fmt.Errorf("embedding dimension %d matches no gallery vector", len(probe))
	}

	confidence := 1 - bestDist
	formatted := fmt.Sprintf("%.1f%%", confidence*100)

	// Strict inequality: a probe sitting exactly on the threshold is rejected.
	if confidence > m.threshold {
		return MatchResult{Name: names[bestIdx], Confidence: formatted}, nil
	}

	return MatchResult{Confidence: formatted, Reason: ReasonNotRecognized}, nil
}

// nearest returns the index and Euclidean distance of the vector closest to
// the probe. vectors is known to be non-empty here; entries of a different
// dimension are skipped.
func nearest(vectors [][]float32, probe []float32) (int, float64) {
	bestIdx := 0
	bestDist := math.Inf(1)
	for i, v := range vectors {
		d := euclidean(probe, v)
		if d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	return bestIdx, bestDist
}

// euclidean reports +Inf on dimension mismatch so a malformed vector can
// never win the nearest-neighbour search with a truncated distance.
func euclidean(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
