package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscalia/docindex/config"
	"github.com/fiscalia/docindex/internal/models"
	"github.com/fiscalia/docindex/internal/repository"
	"github.com/fiscalia/docindex/internal/vectorstore"
	"github.com/fiscalia/docindex/pkg/logger"
	"github.com/fiscalia/docindex/pkg/queue"
)

type fakeDocs struct {
	created []*models.Document
	byID    map[uuid.UUID]*models.Document
	deleted []uuid.UUID
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{byID: make(map[uuid.UUID]*models.Document)}
}

func (f *fakeDocs) Create(_ context.Context, doc *models.Document) error {
	f.created = append(f.created, doc)
	f.byID[doc.ID] = doc
	return nil
}

func (f *fakeDocs) Get(_ context.Context, id uuid.UUID) (*models.Document, error) {
	doc, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, repository.ErrNotFound)
	}
	return doc, nil
}

func (f *fakeDocs) List(context.Context, repository.DocumentFilter) ([]models.Document, error) {
	docs := make([]models.Document, 0, len(f.byID))
	for _, d := range f.byID {
		docs = append(docs, *d)
	}
	return docs, nil
}

func (f *fakeDocs) Update(_ context.Context, doc *models.Document) error {
	f.byID[doc.ID] = doc
	return nil
}

func (f *fakeDocs) Delete(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	delete(f.byID, id)
	return nil
}

func (f *fakeDocs) CountByStatus(context.Context) (map[models.DocumentStatus]int64, error) {
	counts := make(map[models.DocumentStatus]int64)
	for _, d := range f.byID {
		counts[d.Status]++
	}
	return counts, nil
}

type fakeJobs struct {
	created []*models.IngestJob
	active  map[uuid.UUID]bool
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{active: make(map[uuid.UUID]bool)}
}

func (f *fakeJobs) Create(_ context.Context, job *models.IngestJob) error {
	if f.active[job.DocumentID] {
		return repository.ErrActiveJobExists
	}
	f.active[job.DocumentID] = true
	f.created = append(f.created, job)
	return nil
}

func (f *fakeJobs) Get(_ context.Context, id uuid.UUID) (*models.IngestJob, error) {
	for _, j := range f.created {
		if j.ID == id {
			return j, nil
		}
	}
	return nil, fmt.Errorf("job %s: %w", id, repository.ErrNotFound)
}

func (f *fakeJobs) List(context.Context, repository.JobFilter) ([]models.IngestJob, error) {
	jobs := make([]models.IngestJob, 0, len(f.created))
	for _, j := range f.created {
		jobs = append(jobs, *j)
	}
	return jobs, nil
}

func (f *fakeJobs) Update(context.Context, *models.IngestJob) error { return nil }

func (f *fakeJobs) ActiveForDocument(_ context.Context, documentID uuid.UUID) (bool, error) {
	return f.active[documentID], nil
}

type fakeStorage struct {
	stored  map[string][]byte
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{stored: make(map[string][]byte)}
}

func (f *fakeStorage) Store(_ context.Context, reader io.Reader, key string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	f.stored[key] = data
	return key, nil
}

func (f *fakeStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.stored[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.stored, key)
	return nil
}

type fakeQueue struct {
	tasks []queue.IngestTask
}

func (f *fakeQueue) EnqueueIngest(_ context.Context, task queue.IngestTask) error {
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeQueue) Inflight() (int, error) { return len(f.tasks), nil }

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (fakeEmbedder) Dimension() int { return 2 }

type fakeIndex struct {
	searchFilter  *vectorstore.Filter
	searchResults []vectorstore.ScoredPoint
	deleteFilters []vectorstore.Filter
}

func (f *fakeIndex) EnsureCollection(context.Context, int) error { return nil }

func (f *fakeIndex) UpsertBatch(context.Context, []vectorstore.Point) error { return nil }

func (f *fakeIndex) Search(_ context.Context, _ []float32, filter *vectorstore.Filter, _ int) ([]vectorstore.ScoredPoint, error) {
	f.searchFilter = filter
	return f.searchResults, nil
}

func (f *fakeIndex) GetPoint(context.Context, string) (*vectorstore.Point, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeIndex) SetPayload(context.Context, string, map[string]interface{}) error { return nil }

func (f *fakeIndex) DeletePoints(context.Context, []string) error { return nil }

func (f *fakeIndex) DeleteByFilter(_ context.Context, filter vectorstore.Filter) error {
	f.deleteFilters = append(f.deleteFilters, filter)
	return nil
}

func (f *fakeIndex) CollectionStats(context.Context) (*vectorstore.CollectionStats, error) {
	return &vectorstore.CollectionStats{PointsCount: 42, Status: "green"}, nil
}

type fakeRollbacker struct {
	rolled []uuid.UUID
}

func (f *fakeRollbacker) RollbackJob(_ context.Context, jobID uuid.UUID) error {
	f.rolled = append(f.rolled, jobID)
	return nil
}

type env struct {
	docs     *fakeDocs
	jobs     *fakeJobs
	storage  *fakeStorage
	queue    *fakeQueue
	index    *fakeIndex
	rollback *fakeRollbacker
	svc      Service
}

func newEnv() *env {
	e := &env{
		docs:     newFakeDocs(),
		jobs:     newFakeJobs(),
		storage:  newFakeStorage(),
		queue:    &fakeQueue{},
		index:    &fakeIndex{},
		rollback: &fakeRollbacker{},
	}
	cfg := &config.PipelineConfig{
		ChunkSize:       800,
		ChunkOverlap:    100,
		EmbedBatchSize:  50,
		MaxUploadSizeMB: 1,
		MaxUploadFiles:  2,
	}
	e.svc = NewService(e.docs, e.jobs, e.storage, e.queue, fakeEmbedder{}, e.index, e.rollback, logger.NewTestLogger(), cfg)
	return e
}

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("files", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	return form.File["files"][0]
}

func TestUploadDocuments(t *testing.T) {
	e := newEnv()

	files := []*multipart.FileHeader{
		fileHeader(t, "loi_finances_2024.pdf", []byte("%PDF-1")),
		fileHeader(t, "circulaire_tva.pdf", []byte("%PDF-2")),
	}
	meta := UploadMetadata{DocType: models.DocTypeLaw, Year: 2024, Domain: "TVA", Tags: []string{"budget"}}

	results, err := e.svc.UploadDocuments(context.Background(), files, meta)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		assert.Equal(t, models.DocStatusPending, r.Document.Status)
		assert.Equal(t, models.JobStatusQueued, r.Job.Status)
		assert.Equal(t, r.Document.ID, r.Job.DocumentID)
		assert.Equal(t,
			fmt.Sprintf("documents/%s/%s", r.Document.ID, r.Document.Filename),
			r.Document.StorageKey)
		assert.Contains(t, e.storage.stored, r.Document.StorageKey)
	}

	require.Len(t, e.queue.tasks, 2)
	enqueued := map[string]bool{}
	for _, task := range e.queue.tasks {
		enqueued[task.JobID] = true
	}
	for _, r := range results {
		assert.True(t, enqueued[r.Job.ID.String()])
	}
}

func TestUploadRejectsTooManyFiles(t *testing.T) {
	e := newEnv()

	files := []*multipart.FileHeader{
		fileHeader(t, "a.pdf", []byte("1")),
		fileHeader(t, "b.pdf", []byte("2")),
		fileHeader(t, "c.pdf", []byte("3")),
	}
	_, err := e.svc.UploadDocuments(context.Background(), files, UploadMetadata{})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, e.docs.created)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	e := newEnv()

	files := []*multipart.FileHeader{fileHeader(t, "notes.docx", []byte("x"))}
	_, err := e.svc.UploadDocuments(context.Background(), files, UploadMetadata{})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, e.storage.stored)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	e := newEnv()

	big := bytes.Repeat([]byte("a"), 2*1024*1024)
	files := []*multipart.FileHeader{fileHeader(t, "big.pdf", big)}
	_, err := e.svc.UploadDocuments(context.Background(), files, UploadMetadata{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUploadRejectsSecondActiveJob(t *testing.T) {
	e := newEnv()

	files := []*multipart.FileHeader{fileHeader(t, "doc.pdf", []byte("%PDF"))}
	results, err := e.svc.UploadDocuments(context.Background(), files, UploadMetadata{})
	require.NoError(t, err)

	// A reindex while the first job is still active must be refused.
	_, err = e.svc.Reindex(context.Background(), results[0].Document.ID)
	assert.ErrorIs(t, err, repository.ErrActiveJobExists)
}

func TestDeleteIndexedDocument(t *testing.T) {
	e := newEnv()

	doc := &models.Document{
		ID:         uuid.New(),
		Filename:   "doc.pdf",
		StorageKey: "documents/x/doc.pdf",
		Status:     models.DocStatusIndexed,
	}
	require.NoError(t, e.docs.Create(context.Background(), doc))
	e.storage.stored[doc.StorageKey] = []byte("%PDF")

	require.NoError(t, e.svc.DeleteDocument(context.Background(), doc.ID))

	require.Len(t, e.index.deleteFilters, 1)
	assert.Equal(t, "document_id", e.index.deleteFilters[0].Field)
	assert.Equal(t, doc.ID.String(), e.index.deleteFilters[0].Value)
	assert.Contains(t, e.storage.deleted, doc.StorageKey)
	assert.Contains(t, e.docs.deleted, doc.ID)
}

func TestDeletePendingDocumentSkipsIndex(t *testing.T) {
	e := newEnv()

	doc := &models.Document{
		ID:         uuid.New(),
		Filename:   "doc.pdf",
		StorageKey: "documents/x/doc.pdf",
		Status:     models.DocStatusPending,
	}
	require.NoError(t, e.docs.Create(context.Background(), doc))

	require.NoError(t, e.svc.DeleteDocument(context.Background(), doc.ID))
	assert.Empty(t, e.index.deleteFilters)
}

func TestReindexClearsVectorsAndQueuesNewJob(t *testing.T) {
	e := newEnv()

	now := time.Now()
	doc := &models.Document{
		ID:         uuid.New(),
		Filename:   "doc.pdf",
		StorageKey: "documents/x/doc.pdf",
		Status:     models.DocStatusIndexed,
		ChunkCount: 7,
		IndexedAt:  &now,
	}
	require.NoError(t, e.docs.Create(context.Background(), doc))

	result, err := e.svc.Reindex(context.Background(), doc.ID)
	require.NoError(t, err)

	require.Len(t, e.index.deleteFilters, 1)
	assert.Equal(t, doc.ID.String(), e.index.deleteFilters[0].Value)
	assert.Equal(t, models.DocStatusPending, result.Document.Status)
	assert.Equal(t, 0, result.Document.ChunkCount)
	assert.Nil(t, result.Document.IndexedAt)
	require.Len(t, e.queue.tasks, 1)
	assert.Equal(t, result.Job.ID.String(), e.queue.tasks[0].JobID)
}

func TestReindexRejectedWhileJobActiveTouchesNothing(t *testing.T) {
	e := newEnv()

	doc := &models.Document{
		ID:         uuid.New(),
		Filename:   "doc.pdf",
		StorageKey: "documents/x/doc.pdf",
		Status:     models.DocStatusProcessing,
		ChunkCount: 7,
	}
	require.NoError(t, e.docs.Create(context.Background(), doc))
	e.jobs.active[doc.ID] = true

	_, err := e.svc.Reindex(context.Background(), doc.ID)
	assert.ErrorIs(t, err, repository.ErrActiveJobExists)

	// The running job's vectors and the document record are untouched.
	assert.Empty(t, e.index.deleteFilters)
	assert.Empty(t, e.queue.tasks)
	stored, err := e.docs.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusProcessing, stored.Status)
	assert.Equal(t, 7, stored.ChunkCount)
}

func TestSearchAppliesDomainFilter(t *testing.T) {
	e := newEnv()
	e.index.searchResults = []vectorstore.ScoredPoint{
		{ID: "p1", Score: 0.9, Payload: models.Chunk{Text: "article 12"}},
	}

	results, err := e.svc.Search(context.Background(), "taux de TVA", "TVA", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "article 12", results[0].Chunk.Text)

	require.NotNil(t, e.index.searchFilter)
	assert.Equal(t, "domain", e.index.searchFilter.Field)
	assert.Equal(t, "TVA", e.index.searchFilter.Value)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	e := newEnv()
	_, err := e.svc.Search(context.Background(), "   ", "", 5)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRollbackDelegates(t *testing.T) {
	e := newEnv()
	jobID := uuid.New()

	require.NoError(t, e.svc.RollbackJob(context.Background(), jobID))
	assert.Equal(t, []uuid.UUID{jobID}, e.rollback.rolled)
}

func TestStats(t *testing.T) {
	e := newEnv()
	doc := &models.Document{ID: uuid.New(), Status: models.DocStatusIndexed}
	require.NoError(t, e.docs.Create(context.Background(), doc))

	stats, err := e.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Documents[models.DocStatusIndexed])
	require.NotNil(t, stats.Index)
	assert.Equal(t, int64(42), stats.Index.PointsCount)
}
