// Package engine holds the access-control decision core: QR credential
// validation, face matching against the in-memory gallery, session issuance,
// and immutable decision recording. Everything around it (HTTP framing, image
// transport, storage drivers) is plumbing that feeds this package decoded
// frames and persists what it decides.
package engine

import (
	"context"
	"errors"
	"image"
)

// VisionProvider converts pixel buffers into decoded sensor data. The engine
// never touches raw pixels beyond handing them to the provider.
type VisionProvider interface {
	// DecodeQR returns the decoded QR payload and whether a symbol was found.
	DecodeQR(frame image.Image) (string, bool)
	// DetectFaces returns detected face regions, best first.
	DetectFaces(frame image.Image) ([]image.Rectangle, error)
	// EncodeFace computes the fixed-length embedding for one face region.
	EncodeFace(frame image.Image, region image.Rectangle) ([]float32, error)
}

// ErrGalleryNotLoaded signals that recognition is unavailable because no
// embeddings have been loaded. This is a configuration/availability state,
// not a denial: no evaluation has occurred and nothing is logged.
var ErrGalleryNotLoaded = errors.New("no face encodings loaded")

// QRResult is the caller-visible outcome of a QR verification.
type QRResult struct {
	Valid     bool
	SessionID string
}

// FaceResult is the caller-visible outcome of a face verification.
type FaceResult struct {
	Recognized bool
	Name       string
	Confidence string
}

// Status reports gallery availability for the status endpoint.
type Status struct {
	FacesLoaded bool
	KnownFaces  int
}

// Engine owns the full decision flow for both verification channels. State
// (gallery, sessions) is injected and explicitly owned, never ambient.
type Engine struct {
	vision   VisionProvider
	qr       *QRValidator
	matcher  *FaceMatcher
	gallery  *Gallery
	sessions *SessionIssuer
	recorder *Recorder
}

func New(vision VisionProvider, qr *QRValidator, gallery *Gallery, matcher *FaceMatcher, sessions *SessionIssuer, recorder *Recorder) *Engine {
	return &Engine{
		vision:   vision,
		qr:       qr,
		matcher:  matcher,
		gallery:  gallery,
		sessions: sessions,
		recorder: recorder,
	}
}

// VerifyQR decodes a QR symbol from the frame, validates it against the
// configured credential, mints a session on success, and records the decision
// either way. snapshotKey is the already-archived frame location ("" if the
// archive write failed) and is carried into the audit entry.
func (e *Engine) VerifyQR(ctx context.Context, frame image.Image, snapshotKey string) QRResult {
	payload, found := e.vision.DecodeQR(frame)

	if e.qr.Validate(payload, found) {
		sessionID := e.sessions.Issue()
		e.recorder.Record(ctx, "QR", OutcomeOpened, ChannelQR, "", snapshotKey)
		return QRResult{Valid: true, SessionID: sessionID}
	}

	e.recorder.Record(ctx, "QR", OutcomeDenied, ChannelQR, "", snapshotKey)
	return QRResult{Valid: false}
}

// VerifyFace matches the frame against the gallery and records the decision.
// An unloaded gallery returns ErrGalleryNotLoaded without logging: that is
// unavailability, not a denial. All other non-matches (no face, below
// threshold) are normal denied outcomes and are logged.
func (e *Engine) VerifyFace(ctx context.Context, frame image.Image, snapshotKey string) (FaceResult, error) {
	match, err := e.matcher.Match(frame)
	if err != nil {
		return FaceResult{}, err
	}
	if match.Reason == ReasonNoEncodings {
		return FaceResult{}, ErrGalleryNotLoaded
	}

	if match.Name != "" {
		e.recorder.Record(ctx, match.Name, OutcomeOpened, ChannelFace, match.Confidence, snapshotKey)
		return FaceResult{Recognized: true, Name: match.Name, Confidence: match.Confidence}, nil
	}

	// The matcher computes a confidence even for sub-threshold probes, but
	// the denial path drops it here to keep the caller-visible contract of
	// the original deployment. Candidate for hardening: log it.
	e.recorder.Record(ctx, SubjectUnknown, OutcomeDenied, ChannelFace, "", snapshotKey)
	return FaceResult{Recognized: false}, nil
}

// Status reports whether the gallery is usable and how many distinct
// identities it covers (owners, not embeddings).
func (e *Engine) Status() Status {
	return Status{
		FacesLoaded: e.gallery.Loaded(),
		KnownFaces:  e.gallery.KnownIdentityCount(),
	}
}

// Gallery exposes the engine's gallery for administrative reload.
func (e *Engine) Gallery() *Gallery {
	return e.gallery
}

// Sessions exposes the session issuer, e.g. for session introspection.
func (e *Engine) Sessions() *SessionIssuer {
	return e.sessions
}
