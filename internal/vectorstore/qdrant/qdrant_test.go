package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscalia/docindex/config"
	"github.com/fiscalia/docindex/internal/models"
	"github.com/fiscalia/docindex/internal/vectorstore"
)

type capturedRequest struct {
	method string
	path   string
	query  string
	body   map[string]interface{}
}

func newTestServer(t *testing.T, respond func(r capturedRequest) interface{}) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := capturedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req.body)
		}
		captured = append(captured, req)

		resp := respond(req)
		if resp == nil {
			resp = map[string]interface{}{"status": "ok"}
		}
		json.NewEncoder(w).Encode(resp)
	}))

	return srv, &captured
}

func newTestStore(url string) *Client {
	return NewClient(&config.QdrantConfig{
		URL:        url,
		Collection: "chunks_test",
		Timeout:    5 * time.Second,
	})
}

func TestEnsureCollection(t *testing.T) {
	srv, captured := newTestServer(t, func(capturedRequest) interface{} { return nil })
	defer srv.Close()

	require.NoError(t, newTestStore(srv.URL).EnsureCollection(context.Background(), 768))

	req := (*captured)[0]
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/collections/chunks_test", req.path)
	vectors := req.body["vectors"].(map[string]interface{})
	assert.Equal(t, float64(768), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
}

func TestEnsureCollectionInvalidDimension(t *testing.T) {
	require.Error(t, newTestStore("http://unused").EnsureCollection(context.Background(), 0))
}

func TestUpsertBatch(t *testing.T) {
	srv, captured := newTestServer(t, func(capturedRequest) interface{} { return nil })
	defer srv.Close()

	docID := uuid.New()
	points := []vectorstore.Point{
		{
			ID:     uuid.NewString(),
			Vector: []float32{0.1, 0.2},
			Payload: models.Chunk{
				Text:       "segment one",
				DocumentID: docID,
				Domain:     "TVA",
				ChunkIndex: 0,
			},
		},
	}

	require.NoError(t, newTestStore(srv.URL).UpsertBatch(context.Background(), points))

	req := (*captured)[0]
	assert.Equal(t, "/collections/chunks_test/points", req.path)
	assert.Equal(t, "wait=true", req.query)

	sent := req.body["points"].([]interface{})[0].(map[string]interface{})
	payload := sent["payload"].(map[string]interface{})
	assert.Equal(t, "segment one", payload["text"])
	assert.Equal(t, docID.String(), payload["document_id"])
}

func TestUpsertBatchEmpty(t *testing.T) {
	// No request must be issued for an empty batch.
	require.NoError(t, newTestStore("http://unused").UpsertBatch(context.Background(), nil))
}

func TestSearchWithFilter(t *testing.T) {
	srv, captured := newTestServer(t, func(r capturedRequest) interface{} {
		return map[string]interface{}{
			"result": []map[string]interface{}{
				{"id": "p1", "score": 0.92, "payload": map[string]interface{}{"text": "hit", "domain": "TVA"}},
				{"id": "p2", "score": 0.81, "payload": map[string]interface{}{"text": "second", "domain": "TVA"}},
			},
		}
	})
	defer srv.Close()

	hits, err := newTestStore(srv.URL).Search(context.Background(),
		[]float32{0.5, 0.5}, &vectorstore.Filter{Field: "domain", Value: "TVA"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "p1", hits[0].ID)
	assert.InDelta(t, 0.92, hits[0].Score, 1e-9)
	assert.Equal(t, "hit", hits[0].Payload.Text)

	req := (*captured)[0]
	assert.Equal(t, "/collections/chunks_test/points/search", req.path)
	filter := req.body["filter"].(map[string]interface{})
	must := filter["must"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "domain", must["key"])
	assert.Equal(t, true, req.body["with_payload"])
}

func TestDeletePoints(t *testing.T) {
	srv, captured := newTestServer(t, func(capturedRequest) interface{} { return nil })
	defer srv.Close()

	require.NoError(t, newTestStore(srv.URL).DeletePoints(context.Background(), []string{"a", "b"}))

	req := (*captured)[0]
	assert.Equal(t, "/collections/chunks_test/points/delete", req.path)
	assert.Equal(t, []interface{}{"a", "b"}, req.body["points"])
}

func TestDeleteByFilter(t *testing.T) {
	srv, captured := newTestServer(t, func(capturedRequest) interface{} { return nil })
	defer srv.Close()

	docID := uuid.NewString()
	err := newTestStore(srv.URL).DeleteByFilter(context.Background(),
		vectorstore.Filter{Field: "document_id", Value: docID})
	require.NoError(t, err)

	req := (*captured)[0]
	assert.Equal(t, "/collections/chunks_test/points/delete", req.path)
	filter := req.body["filter"].(map[string]interface{})
	must := filter["must"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "document_id", must["key"])
	assert.Equal(t, docID, must["match"].(map[string]interface{})["value"])
}

func TestCollectionStats(t *testing.T) {
	srv, _ := newTestServer(t, func(capturedRequest) interface{} {
		return map[string]interface{}{
			"result": map[string]interface{}{
				"points_count":          1234,
				"indexed_vectors_count": 1200,
				"status":                "green",
			},
		}
	})
	defer srv.Close()

	stats, err := newTestStore(srv.URL).CollectionStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1234), stats.PointsCount)
	assert.Equal(t, "green", stats.Status)
}

func TestErrorStatusPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":{"error":"collection not found"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestStore(srv.URL).CollectionStats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
