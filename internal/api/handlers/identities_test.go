package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dishusingla001/door-lock-server/internal/engine"
	"github.com/dishusingla001/door-lock-server/internal/models"
)

// fakeIdentityStore scripts the credential store for handler tests and
// records how often each query ran.
type fakeIdentityStore struct {
	identities []models.Identity
	counts     map[string]int
	countsErr  error

	countQueries     int
	aggregateQueries int
}

func (f *fakeIdentityStore) FetchAllEmbeddings(context.Context) ([]models.FaceEmbedding, error) {
	return nil, nil
}

func (f *fakeIdentityStore) FindOrCreateIdentity(_ context.Context, name, role string) (*models.Identity, error) {
	if role == "" {
		role = "member"
	}
	return &models.Identity{ID: uuid.New(), Name: name, Role: role, Active: true, CreatedAt: time.Now()}, nil
}

func (f *fakeIdentityStore) ListIdentities(context.Context) ([]models.Identity, error) {
	return f.identities, nil
}

func (f *fakeIdentityStore) DeactivateIdentity(context.Context, string) error { return nil }

func (f *fakeIdentityStore) AddFaceEmbedding(context.Context, string, []float32, string) (*models.FaceEmbedding, error) {
	return nil, errors.New("not used")
}

func (f *fakeIdentityStore) DeleteEmbeddingsByOwner(context.Context, string) (int64, error) {
	return 0, nil
}

func (f *fakeIdentityStore) CountEmbeddings(_ context.Context, name string) (int, error) {
	f.countQueries++
	if f.countsErr != nil {
		return 0, f.countsErr
	}
	return f.counts[name], nil
}

func (f *fakeIdentityStore) EmbeddingCountsByOwner(context.Context) (map[string]int, error) {
	f.aggregateQueries++
	if f.countsErr != nil {
		return nil, f.countsErr
	}
	return f.counts, nil
}

func newIdentityRouter(store *fakeIdentityStore) *gin.Engine {
	h := NewIdentityHandler(store, nil, engine.NewGallery())
	r := gin.New()
	r.POST("/v1/identities", h.Create)
	r.GET("/v1/identities", h.List)
	return r
}

func TestListIdentitiesAggregatesFaceCounts(t *testing.T) {
	store := &fakeIdentityStore{
		identities: []models.Identity{
			{ID: uuid.New(), Name: "alice", Role: "member", Active: true},
			{ID: uuid.New(), Name: "bob", Role: "member", Active: true},
			{ID: uuid.New(), Name: "carol", Role: "member", Active: true},
		},
		counts: map[string]int{"alice": 3, "bob": 1},
	}
	r := newIdentityRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/v1/identities", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Identities []struct {
			Name      string `json:"name"`
			FaceCount int    `json:"face_count"`
		} `json:"identities"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 3, resp.Total)
	assert.Equal(t, 3, resp.Identities[0].FaceCount)
	assert.Equal(t, 1, resp.Identities[1].FaceCount)
	assert.Equal(t, 0, resp.Identities[2].FaceCount, "identity without embeddings counts zero")

	assert.Equal(t, 1, store.aggregateQueries, "counts come from one aggregate query")
	assert.Equal(t, 0, store.countQueries, "no per-identity count queries")
}

func TestListIdentitiesSurfacesCountError(t *testing.T) {
	store := &fakeIdentityStore{
		identities: []models.Identity{{ID: uuid.New(), Name: "alice", Active: true}},
		countsErr:  errors.New("db down"),
	}
	r := newIdentityRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/v1/identities", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCreateIdentitySurfacesCountError(t *testing.T) {
	store := &fakeIdentityStore{countsErr: errors.New("db down")}
	r := newIdentityRouter(store)

	body := bytes.NewBufferString(`{"name":"alice"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/identities", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
