package engine

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dishusingla001/door-lock-server/internal/models"
)

// fakeVision scripts the provider outputs for one test case.
type fakeVision struct {
	qrPayload string
	qrFound   bool
	regions   []image.Rectangle
	detectErr error
	encoding  []float32
	encodeErr error
}

func (f *fakeVision) DecodeQR(image.Image) (string, bool) {
	return f.qrPayload, f.qrFound
}

func (f *fakeVision) DetectFaces(image.Image) ([]image.Rectangle, error) {
	return f.regions, f.detectErr
}

func (f *fakeVision) EncodeFace(image.Image, image.Rectangle) ([]float32, error) {
	return f.encoding, f.encodeErr
}

// fakeSource feeds the gallery fixed embeddings.
type fakeSource struct {
	embeddings []models.FaceEmbedding
	err        error
}

func (f *fakeSource) FetchAllEmbeddings(context.Context) ([]models.FaceEmbedding, error) {
	return f.embeddings, f.err
}

// fakeAppender captures audit entries, optionally failing every write.
type fakeAppender struct {
	entries []models.AccessLogEntry
	err     error
}

func (f *fakeAppender) AppendAccessLog(_ context.Context, entry models.AccessLogEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

type fakePublisher struct {
	events []models.AccessEvent
}

func (f *fakePublisher) PublishAccess(_ context.Context, event models.AccessEvent) error {
	f.events = append(f.events, event)
	return nil
}

func loadedGallery(t *testing.T, pairs map[string][]float32) *Gallery {
	t.Helper()
	src := &fakeSource{}
	for name, vec := range pairs {
		src.embeddings = append(src.embeddings, models.FaceEmbedding{OwnerName: name, Vector: vec})
	}
	g := NewGallery()
	_, err := g.Reload(context.Background(), src)
	require.NoError(t, err)
	return g
}

func testFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 4, 4))
}

func newTestEngine(vision *fakeVision, gallery *Gallery, appender *fakeAppender) *Engine {
	return New(
		vision,
		NewQRValidator("SECRET"),
		gallery,
		NewFaceMatcher(gallery, vision, 0.5),
		NewSessionIssuer(),
		NewRecorder(appender, nil),
	)
}

func TestVerifyQRGrantIssuesSessionAndLogs(t *testing.T) {
	vision := &fakeVision{qrPayload: "SECRET", qrFound: true}
	appender := &fakeAppender{}
	eng := newTestEngine(vision, NewGallery(), appender)

	result := eng.VerifyQR(context.Background(), testFrame(), "attempts/qr/x.jpg")

	assert.True(t, result.Valid)
	assert.NotEmpty(t, result.SessionID)
	assert.True(t, eng.Sessions().Valid(result.SessionID))

	require.Len(t, appender.entries, 1)
	entry := appender.entries[0]
	assert.Equal(t, "QR", entry.SubjectName)
	assert.Equal(t, models.OutcomeOpened, entry.Outcome)
	assert.Equal(t, models.ChannelQR, entry.Channel)
	assert.Empty(t, entry.Confidence)
	assert.Equal(t, "attempts/qr/x.jpg", entry.SnapshotKey)
}

func TestVerifyQRDenialLogsWithoutSession(t *testing.T) {
	vision := &fakeVision{qrPayload: "wrong", qrFound: true}
	appender := &fakeAppender{}
	eng := newTestEngine(vision, NewGallery(), appender)

	result := eng.VerifyQR(context.Background(), testFrame(), "")

	assert.False(t, result.Valid)
	assert.Empty(t, result.SessionID)
	assert.Equal(t, 0, eng.Sessions().Count())

	require.Len(t, appender.entries, 1)
	assert.Equal(t, models.OutcomeDenied, appender.entries[0].Outcome)
	assert.Equal(t, "QR", appender.entries[0].SubjectName)
}

func TestVerifyQRNoSymbolIsDenied(t *testing.T) {
	vision := &fakeVision{qrFound: false}
	appender := &fakeAppender{}
	eng := newTestEngine(vision, NewGallery(), appender)

	result := eng.VerifyQR(context.Background(), testFrame(), "")

	assert.False(t, result.Valid)
	require.Len(t, appender.entries, 1)
	assert.Equal(t, models.OutcomeDenied, appender.entries[0].Outcome)
}

func TestVerifyFaceGrant(t *testing.T) {
	gallery := loadedGallery(t, map[string][]float32{"alice": {0.3}})
	vision := &fakeVision{
		regions:  []image.Rectangle{image.Rect(0, 0, 2, 2)},
		encoding: []float32{0},
	}
	appender := &fakeAppender{}
	eng := newTestEngine(vision, gallery, appender)

	result, err := eng.VerifyFace(context.Background(), testFrame(), "attempts/face/x.jpg")
	require.NoError(t, err)

	assert.True(t, result.Recognized)
	assert.Equal(t, "alice", result.Name)
	assert.Equal(t, "70.0%", result.Confidence)

	require.Len(t, appender.entries, 1)
	entry := appender.entries[0]
	assert.Equal(t, "alice", entry.SubjectName)
	assert.Equal(t, models.OutcomeOpened, entry.Outcome)
	assert.Equal(t, models.ChannelFace, entry.Channel)
	assert.Equal(t, "70.0%", entry.Confidence)
	assert.Equal(t, "attempts/face/x.jpg", entry.SnapshotKey)
}

func TestVerifyFaceBelowThresholdDeniedAsUnknown(t *testing.T) {
	gallery := loadedGallery(t, map[string][]float32{"alice": {0.8}})
	vision := &fakeVision{
		regions:  []image.Rectangle{image.Rect(0, 0, 2, 2)},
		encoding: []float32{0},
	}
	appender := &fakeAppender{}
	eng := newTestEngine(vision, gallery, appender)

	result, err := eng.VerifyFace(context.Background(), testFrame(), "")
	require.NoError(t, err)

	assert.False(t, result.Recognized)
	assert.Empty(t, result.Name)
	assert.Empty(t, result.Confidence)

	require.Len(t, appender.entries, 1)
	entry := appender.entries[0]
	assert.Equal(t, models.SubjectUnknown, entry.SubjectName)
	assert.Equal(t, models.OutcomeDenied, entry.Outcome)
	assert.Empty(t, entry.Confidence)
}

func TestVerifyFaceNoFaceDetectedIsLoggedDenial(t *testing.T) {
	gallery := loadedGallery(t, map[string][]float32{"alice": {0.3}})
	vision := &fakeVision{regions: nil}
	appender := &fakeAppender{}
	eng := newTestEngine(vision, gallery, appender)

	result, err := eng.VerifyFace(context.Background(), testFrame(), "")
	require.NoError(t, err)

	assert.False(t, result.Recognized)
	require.Len(t, appender.entries, 1)
	assert.Equal(t, models.SubjectUnknown, appender.entries[0].SubjectName)
	assert.Equal(t, models.OutcomeDenied, appender.entries[0].Outcome)
}

func TestVerifyFaceUnloadedGalleryIsUnavailableNotDenied(t *testing.T) {
	vision := &fakeVision{regions: []image.Rectangle{image.Rect(0, 0, 2, 2)}}
	appender := &fakeAppender{}
	eng := newTestEngine(vision, NewGallery(), appender)

	_, err := eng.VerifyFace(context.Background(), testFrame(), "")

	assert.ErrorIs(t, err, ErrGalleryNotLoaded)
	assert.Empty(t, appender.entries, "availability errors must not produce audit entries")
}

func TestVerifyFaceDetectorErrorProducesNoLog(t *testing.T) {
	gallery := loadedGallery(t, map[string][]float32{"alice": {0.3}})
	vision := &fakeVision{detectErr: errors.New("session crashed")}
	appender := &fakeAppender{}
	eng := newTestEngine(vision, gallery, appender)

	_, err := eng.VerifyFace(context.Background(), testFrame(), "")

	require.Error(t, err)
	assert.Empty(t, appender.entries)
}

func TestStatusReflectsGallery(t *testing.T) {
	gallery := loadedGallery(t, map[string][]float32{"alice": {0.1}, "bob": {0.9}})
	eng := newTestEngine(&fakeVision{}, gallery, &fakeAppender{})

	status := eng.Status()
	assert.True(t, status.FacesLoaded)
	assert.Equal(t, 2, status.KnownFaces)

	empty := newTestEngine(&fakeVision{}, NewGallery(), &fakeAppender{})
	status = empty.Status()
	assert.False(t, status.FacesLoaded)
	assert.Equal(t, 0, status.KnownFaces)
}
