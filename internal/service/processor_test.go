package service

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AmirMahdi-for/pipeline/internal/domain"
)

// fakeStore is an in-memory StateStore that mimics the paired-update
// discipline: every Mark/Set call mutates the document and appends the
// audit entry in one step.
type fakeStore struct {
	docs map[uint]*domain.Document
	logs map[uint][]string

	claimErr     error
	markDoneErr  error
	markFailErr  error
	setThumbErr  error
	appendLogErr error
}

func newFakeStore(docs ...*domain.Document) *fakeStore {
	s := &fakeStore{
		docs: make(map[uint]*domain.Document),
		logs: make(map[uint][]string),
	}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

func (s *fakeStore) ClaimForProcessing(_ context.Context, id uint) (*domain.Document, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc.Status = domain.StatusProcessing
	doc.ErrorMessage = nil
	copied := *doc
	return &copied, nil
}

func (s *fakeStore) MarkDone(_ context.Context, id uint, message string) error {
	if s.markDoneErr != nil {
		return s.markDoneErr
	}
	s.docs[id].Status = domain.StatusDone
	s.logs[id] = append(s.logs[id], message)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id uint, message string) error {
	if s.markFailErr != nil {
		return s.markFailErr
	}
	s.docs[id].Status = domain.StatusFailed
	s.docs[id].ErrorMessage = &message
	s.logs[id] = append(s.logs[id], message)
	return nil
}

func (s *fakeStore) SetThumbnail(_ context.Context, id uint, path, message string) error {
	if s.setThumbErr != nil {
		return s.setThumbErr
	}
	s.docs[id].ThumbnailPath = &path
	s.logs[id] = append(s.logs[id], message)
	return nil
}

func (s *fakeStore) AppendLog(_ context.Context, id uint, message string) error {
	if s.appendLogErr != nil {
		return s.appendLogErr
	}
	s.logs[id] = append(s.logs[id], message)
	return nil
}

type fakeStorage struct {
	objects map[string][]byte
	uploads map[string][]byte
	types   map[string]string

	downloadErr   error
	uploadErr     error
	downloadPanic bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		objects: make(map[string][]byte),
		uploads: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (s *fakeStorage) Download(_ context.Context, key string) ([]byte, error) {
	if s.downloadPanic {
		panic("storage client broke")
	}
	if s.downloadErr != nil {
		return nil, &domain.StorageError{Op: "download", Key: key, Err: s.downloadErr}
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, &domain.StorageError{Op: "download", Key: key, Err: errors.New("NoSuchKey")}
	}
	return data, nil
}

func (s *fakeStorage) Upload(_ context.Context, key string, body []byte, contentType string) (string, error) {
	if s.uploadErr != nil {
		return "", &domain.StorageError{Op: "upload", Key: key, Err: s.uploadErr}
	}
	s.uploads[key] = body
	s.types[key] = contentType
	return "http://localhost:9000/documents/" + key, nil
}

func newTestProcessor(store *fakeStore, storage *fakeStorage) Processor {
	log := zap.NewNop()
	return NewProcessor(store, storage, NewThumbnailGenerator(log), log)
}

func textDocument(id uint) *domain.Document {
	return &domain.Document{
		ID:               id,
		OwnerID:          1,
		OriginalFilename: "notes.txt",
		Extension:        "txt",
		Status:           domain.StatusPending,
	}
}

func imageDocument(id uint) *domain.Document {
	return &domain.Document{
		ID:               id,
		OwnerID:          1,
		OriginalFilename: "photo.png",
		Extension:        "png",
		Status:           domain.StatusPending,
	}
}

func TestRun_TextDocumentSucceeds(t *testing.T) {
	store := newFakeStore(textDocument(1))
	storage := newFakeStorage()
	storage.objects["notes.txt"] = []byte("hello")

	out := newTestProcessor(store, storage).Run(context.Background(), 1)

	assert.Equal(t, OutcomeSuccess, out.Kind)
	assert.Equal(t, domain.StatusDone, store.docs[1].Status)
	assert.Nil(t, store.docs[1].ThumbnailPath)
	assert.Nil(t, store.docs[1].ErrorMessage)
	assert.Equal(t, []string{"Processing completed successfully"}, store.logs[1])
	assert.Empty(t, storage.uploads)
}

func TestRun_ImageDocumentGetsThumbnail(t *testing.T) {
	store := newFakeStore(imageDocument(2))
	storage := newFakeStorage()
	storage.objects["photo.png"] = encodePNG(t, solidImage(1000, 500, color.RGBA{R: 128, A: 255}))

	out := newTestProcessor(store, storage).Run(context.Background(), 2)

	assert.Equal(t, OutcomeSuccess, out.Kind)
	assert.Equal(t, domain.StatusDone, store.docs[2].Status)
	require.NotNil(t, store.docs[2].ThumbnailPath)
	assert.Equal(t, "http://localhost:9000/documents/thumb_photo.png", *store.docs[2].ThumbnailPath)
	assert.Equal(t, []string{"Thumbnail uploaded", "Processing completed successfully"}, store.logs[2])

	thumb, ok := storage.uploads["thumb_photo.png"]
	require.True(t, ok)
	assert.Equal(t, "image/png", storage.types["thumb_photo.png"])

	w, h, _ := decodeDims(t, thumb)
	assert.Equal(t, 256, w)
	assert.Equal(t, 128, h)
}

func TestRun_JpgDocumentUploadsJpegContentType(t *testing.T) {
	doc := imageDocument(3)
	doc.OriginalFilename = "scan.jpg"
	doc.Extension = "jpg"
	store := newFakeStore(doc)
	storage := newFakeStorage()
	storage.objects["scan.jpg"] = encodeJPEG(t, solidImage(500, 1000, color.RGBA{B: 128, A: 255}))

	out := newTestProcessor(store, storage).Run(context.Background(), 3)

	assert.Equal(t, OutcomeSuccess, out.Kind)
	assert.Equal(t, "image/jpeg", storage.types["thumb_scan.jpg"])
}

func TestRun_DownloadFailureMarksFailed(t *testing.T) {
	store := newFakeStore(textDocument(4))
	storage := newFakeStorage()
	storage.downloadErr = errors.New("connection refused")

	out := newTestProcessor(store, storage).Run(context.Background(), 4)

	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Equal(t, domain.StatusFailed, store.docs[4].Status)
	require.NotNil(t, store.docs[4].ErrorMessage)
	assert.Contains(t, *store.docs[4].ErrorMessage, "Download failed")
	assert.Nil(t, store.docs[4].ThumbnailPath)
	assert.Len(t, store.logs[4], 1)
}

func TestRun_ThumbnailUploadFailureMarksFailed(t *testing.T) {
	store := newFakeStore(imageDocument(5))
	storage := newFakeStorage()
	storage.objects["photo.png"] = encodePNG(t, solidImage(1000, 500, color.RGBA{A: 255}))
	storage.uploadErr = errors.New("access denied")

	out := newTestProcessor(store, storage).Run(context.Background(), 5)

	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Equal(t, domain.StatusFailed, store.docs[5].Status)
	require.NotNil(t, store.docs[5].ErrorMessage)
	assert.Contains(t, *store.docs[5].ErrorMessage, "Thumbnail upload failed")
	assert.Nil(t, store.docs[5].ThumbnailPath)
	assert.Len(t, store.logs[5], 1)
}

func TestRun_CorruptImageDoesNotFailDocument(t *testing.T) {
	store := newFakeStore(imageDocument(6))
	storage := newFakeStorage()
	storage.objects["photo.png"] = []byte("not really a png")

	out := newTestProcessor(store, storage).Run(context.Background(), 6)

	assert.Equal(t, OutcomeSuccess, out.Kind)
	assert.Equal(t, domain.StatusDone, store.docs[6].Status)
	assert.Nil(t, store.docs[6].ThumbnailPath)
	assert.Equal(t, []string{
		"Thumbnail generation produced no result",
		"Processing completed successfully",
	}, store.logs[6])
}

func TestRun_MissingDocumentMutatesNothing(t *testing.T) {
	store := newFakeStore()
	storage := newFakeStorage()

	out := newTestProcessor(store, storage).Run(context.Background(), 99)

	assert.Equal(t, OutcomeNotFound, out.Kind)
	assert.Empty(t, store.docs)
	assert.Empty(t, store.logs)
	assert.Empty(t, storage.uploads)
}

func TestRun_ClaimErrorMutatesNothing(t *testing.T) {
	store := newFakeStore(textDocument(7))
	store.claimErr = errors.New("connection pool exhausted")
	storage := newFakeStorage()

	out := newTestProcessor(store, storage).Run(context.Background(), 7)

	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Equal(t, domain.StatusPending, store.docs[7].Status)
	assert.Empty(t, store.logs)
}

func TestRun_PanicAfterClaimRecordsFailure(t *testing.T) {
	store := newFakeStore(textDocument(8))
	storage := newFakeStorage()
	storage.downloadPanic = true

	out := newTestProcessor(store, storage).Run(context.Background(), 8)

	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Contains(t, out.Message, "Unexpected error")
	assert.Equal(t, domain.StatusFailed, store.docs[8].Status)
	require.NotNil(t, store.docs[8].ErrorMessage)
	assert.Contains(t, *store.docs[8].ErrorMessage, "Unexpected error")
	assert.Len(t, store.logs[8], 1)
}

func TestRun_FinalizeErrorRecordsFailure(t *testing.T) {
	store := newFakeStore(textDocument(9))
	store.markDoneErr = errors.New("disk full")
	storage := newFakeStorage()
	storage.objects["notes.txt"] = []byte("hello")

	out := newTestProcessor(store, storage).Run(context.Background(), 9)

	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Equal(t, domain.StatusFailed, store.docs[9].Status)
	require.NotNil(t, store.docs[9].ErrorMessage)
	assert.Contains(t, *store.docs[9].ErrorMessage, "Unexpected error")
}

func TestRun_SecondaryFailureIsNotEscalated(t *testing.T) {
	store := newFakeStore(textDocument(10))
	store.markFailErr = errors.New("database gone")
	storage := newFakeStorage()
	storage.downloadErr = errors.New("connection refused")

	out := newTestProcessor(store, storage).Run(context.Background(), 10)

	// The run still reports the original failure; the secondary one is
	// observable only through the log channel.
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Contains(t, out.Message, "Download failed")
}

func TestRun_RedeliveryOfCompletedDocumentStaysTerminal(t *testing.T) {
	store := newFakeStore(textDocument(11))
	storage := newFakeStorage()
	storage.objects["notes.txt"] = []byte("hello")
	proc := newTestProcessor(store, storage)

	first := proc.Run(context.Background(), 11)
	second := proc.Run(context.Background(), 11)

	assert.Equal(t, OutcomeSuccess, first.Kind)
	assert.Equal(t, OutcomeSuccess, second.Kind)
	assert.Equal(t, domain.StatusDone, store.docs[11].Status)
	assert.True(t, store.docs[11].Status.Terminal())
}

func TestRun_ClaimErrorMessageSurfacesCause(t *testing.T) {
	store := newFakeStore()
	store.claimErr = fmt.Errorf("query timeout")
	storage := newFakeStorage()

	out := newTestProcessor(store, storage).Run(context.Background(), 12)

	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Contains(t, out.Message, "query timeout")
}
