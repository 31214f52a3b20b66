package handlers_test

import (
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/fiscalia/docindex/api/handlers"
	"github.com/fiscalia/docindex/api/routes"
	"github.com/fiscalia/docindex/internal/eventlog/memory"
	"github.com/fiscalia/docindex/internal/models"
	"github.com/fiscalia/docindex/internal/repository"
	"github.com/fiscalia/docindex/internal/service/ingest"
	"github.com/fiscalia/docindex/pkg/logger"
)

// stubService records which operations the handlers reached and returns a
// canned error when one is set.
type stubService struct {
	calls []string
	err   error
	doc   *models.Document
	job   *models.IngestJob
}

func (s *stubService) UploadDocuments(context.Context, []*multipart.FileHeader, ingest.UploadMetadata) ([]ingest.UploadResult, error) {
	s.calls = append(s.calls, "UploadDocuments")
	return nil, s.err
}

func (s *stubService) GetDocument(context.Context, uuid.UUID) (*models.Document, error) {
	s.calls = append(s.calls, "GetDocument")
	return s.doc, s.err
}

func (s *stubService) ListDocuments(context.Context, repository.DocumentFilter) ([]models.Document, error) {
	s.calls = append(s.calls, "ListDocuments")
	return nil, s.err
}

func (s *stubService) DeleteDocument(context.Context, uuid.UUID) error {
	s.calls = append(s.calls, "DeleteDocument")
	return s.err
}

func (s *stubService) Reindex(context.Context, uuid.UUID) (*ingest.UploadResult, error) {
	s.calls = append(s.calls, "Reindex")
	return nil, s.err
}

func (s *stubService) GetJob(context.Context, uuid.UUID) (*models.IngestJob, error) {
	s.calls = append(s.calls, "GetJob")
	return s.job, s.err
}

func (s *stubService) ListJobs(context.Context, repository.JobFilter) ([]models.IngestJob, error) {
	s.calls = append(s.calls, "ListJobs")
	return nil, s.err
}

func (s *stubService) RollbackJob(context.Context, uuid.UUID) error {
	s.calls = append(s.calls, "RollbackJob")
	return s.err
}

func (s *stubService) Search(context.Context, string, string, int) ([]ingest.SearchResult, error) {
	s.calls = append(s.calls, "Search")
	return nil, s.err
}

func (s *stubService) Stats(context.Context) (*ingest.Stats, error) {
	s.calls = append(s.calls, "Stats")
	return nil, s.err
}

func newRouter(svc ingest.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	routes.SetupRoutes(r, handlers.NewHandlers(svc, memory.NewLog(), logger.NewTestLogger()))
	return r
}

func doRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestMalformedIDReturnsBadRequest(t *testing.T) {
	requests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/documents/not-a-uuid"},
		{http.MethodDelete, "/api/v1/documents/not-a-uuid"},
		{http.MethodPost, "/api/v1/documents/not-a-uuid/reindex"},
		{http.MethodGet, "/api/v1/pipeline/jobs/not-a-uuid"},
		{http.MethodPost, "/api/v1/pipeline/jobs/not-a-uuid/rollback"},
		{http.MethodGet, "/api/v1/pipeline/jobs/not-a-uuid/stream"},
	}

	for _, req := range requests {
		svc := &stubService{}
		w := doRequest(newRouter(svc), req.method, req.path)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%s %s", req.method, req.path)
		assert.Empty(t, svc.calls, "%s %s must not reach the service", req.method, req.path)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	svc := &stubService{err: repository.ErrNotFound}
	w := doRequest(newRouter(svc), http.MethodGet, "/api/v1/documents/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, []string{"GetDocument"}, svc.calls)
}

func TestGetJobNotFound(t *testing.T) {
	svc := &stubService{err: repository.ErrNotFound}
	w := doRequest(newRouter(svc), http.MethodGet, "/api/v1/pipeline/jobs/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, []string{"GetJob"}, svc.calls)
}

func TestReindexActiveJobConflict(t *testing.T) {
	svc := &stubService{err: repository.ErrActiveJobExists}
	w := doRequest(newRouter(svc), http.MethodPost, "/api/v1/documents/"+uuid.NewString()+"/reindex")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, []string{"Reindex"}, svc.calls)
}
