package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"cehpoint/project-portal/project-portal-backend/internal/projects"
)

var _ projects.Indexer = (*ProjectIndex)(nil)
var _ projects.Indexer = Noop{}

// fakeElastic answers like a single Elasticsearch node
func fakeElastic(t *testing.T, handler http.HandlerFunc) *ProjectIndex {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient([]string{srv.URL}, "", "")
	require.NoError(t, err)
	return NewProjectIndex(client, "projects", nil)
}

func TestIndexSendsDocument(t *testing.T) {
	id := primitive.NewObjectID()
	var got map[string]interface{}

	idx := fakeElastic(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/_doc/"+id.Hex(), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	err := idx.Index(context.Background(), &projects.Project{
		ID:               id,
		ProjectName:      "Inventory Portal",
		DevelopmentAreas: []string{"Web"},
		Status:           "pending",
		SubmittedAt:      time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "Inventory Portal", got["projectName"])
	assert.Equal(t, "2025-01-02T03:04:05Z", got["submittedAt"])
}

func TestSearchReturnsIDs(t *testing.T) {
	idx := fakeElastic(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/_search", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"multi_match"`)
		assert.Contains(t, string(body), `"inventory"`)
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_id":"a1"},{"_id":"b2"}]}}`))
	})

	ids, err := idx.Search(context.Background(), "inventory")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "b2"}, ids)
}

func TestSearchErrorStatus(t *testing.T) {
	idx := fakeElastic(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"parsing_exception"}`))
	})

	_, err := idx.Search(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "400"))
}

func TestEnsureIndexCreatesMissingIndex(t *testing.T) {
	var created bool
	idx := fakeElastic(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			created = true
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		}
	})

	require.NoError(t, idx.EnsureIndex(context.Background()))
	assert.True(t, created)
}
