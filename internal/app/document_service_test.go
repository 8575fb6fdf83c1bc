package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"thinkr-backend/internal/model"
)

type documentFixture struct {
	users     *MockUserRepository
	docs      *MockDocumentRepository
	sets      *MockStudySetRepository
	blobs     *MockBlobStore
	extractor *MockExtractor
	indexer   *MockIndexer
	jobs      *MockPublisher
	svc       *DocumentService
}

func newDocumentFixture() *documentFixture {
	f := &documentFixture{
		users:     new(MockUserRepository),
		docs:      new(MockDocumentRepository),
		sets:      new(MockStudySetRepository),
		blobs:     new(MockBlobStore),
		extractor: new(MockExtractor),
		indexer:   new(MockIndexer),
		jobs:      new(MockPublisher),
	}
	f.svc = NewDocumentService(f.users, f.docs, f.sets, f.blobs, f.extractor, f.indexer, f.jobs, DocumentOptions{
		MaxUploadSize: 1024,
		PresignTTL:    time.Hour,
	})
	f.svc.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }
	return f
}

func textFile(name, body string) UploadFile {
	return UploadFile{
		Name:        name,
		ContentType: "application/pdf",
		Size:        int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

var ada = &model.User{ID: 1, Email: "ada@example.com", GoogleID: "g-1"}

func TestUploadIndexesAndQueuesJob(t *testing.T) {
	ctx := context.Background()
	f := newDocumentFixture()

	f.users.On("GetByID", mock.Anything, uint(1)).Return(ada, nil).Once()
	f.blobs.On("Put", mock.Anything, "ada@example.com-bio.pdf", "application/pdf", mock.Anything, int64(4)).Return(nil).Once()
	f.docs.On("Upsert", mock.Anything, mock.MatchedBy(func(d *model.Document) bool {
		return d.Name == "bio.pdf" && d.StorageKey == "ada@example.com-bio.pdf" &&
			d.UploadTime == "2024-05-06 07:08:09" && !d.ActivityGenerationComplete
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*model.Document).ID = 11
	}).Return(nil).Once()
	f.extractor.On("ExtractText", mock.Anything, "ada@example.com-bio.pdf").Return("Cells.\n\nTissues.", nil).Once()
	f.indexer.On("Ingest", mock.Anything, IngestInput{UserID: 1, DocumentID: 11, Source: "bio.pdf", Text: "Cells.\n\nTissues."}).Return(1, nil).Once()
	f.jobs.On("Publish", mock.Anything, model.StudyJob{UserID: 1, DocumentID: 11, UploadTime: "2024-05-06 07:08:09"}).Return(nil).Once()

	docs, err := f.svc.Upload(ctx, 1, []UploadFile{textFile("uploads/bio.pdf", "%PDF")})
	require.NoError(t, err)
	assert.Equal(t, []UploadedDocument{{ID: 11, Name: "bio.pdf", UploadTime: "2024-05-06 07:08:09"}}, docs)

	f.blobs.AssertExpectations(t)
	f.docs.AssertExpectations(t)
	f.indexer.AssertExpectations(t)
	f.jobs.AssertExpectations(t)
}

func TestUploadEmptyTextCompletesImmediately(t *testing.T) {
	ctx := context.Background()
	f := newDocumentFixture()

	f.users.On("GetByID", mock.Anything, uint(1)).Return(ada, nil).Once()
	f.blobs.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	f.docs.On("Upsert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*model.Document).ID = 12
	}).Return(nil).Once()
	f.extractor.On("ExtractText", mock.Anything, "ada@example.com-scan.pdf").Return("  \n", nil).Once()
	f.indexer.On("DeleteDocumentChunks", mock.Anything, uint(1), uint(12)).Return(nil).Once()
	f.docs.On("MarkActivityGenerated", mock.Anything, uint(12)).Return(nil).Once()

	docs, err := f.svc.Upload(ctx, 1, []UploadFile{textFile("scan.pdf", "%PDF")})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	f.indexer.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
	f.jobs.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	f.docs.AssertExpectations(t)
}

func TestUploadRejectsBeforeAnyWork(t *testing.T) {
	ctx := context.Background()
	f := newDocumentFixture()

	_, err := f.svc.Upload(ctx, 1, []UploadFile{textFile("big.pdf", strings.Repeat("x", 2048))})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = f.svc.Upload(ctx, 1, []UploadFile{textFile("a.pdf", "x"), textFile("dir/a.pdf", "y")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Upload(ctx, 1, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	f.users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	f.blobs.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadPropagatesFailure(t *testing.T) {
	ctx := context.Background()
	f := newDocumentFixture()

	f.users.On("GetByID", mock.Anything, uint(1)).Return(ada, nil).Once()
	f.blobs.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket gone")).Once()

	_, err := f.svc.Upload(ctx, 1, []UploadFile{textFile("bio.pdf", "%PDF")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")
	f.docs.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestDeleteCascadeOrder(t *testing.T) {
	ctx := context.Background()
	f := newDocumentFixture()
	doc := &model.Document{ID: 11, UserID: 1, Name: "bio.pdf", StorageKey: "ada@example.com-bio.pdf"}

	var order []string
	record := func(step string) func(mock.Arguments) {
		return func(mock.Arguments) { order = append(order, step) }
	}
	f.docs.On("GetByUserAndName", ctx, uint(1), "bio.pdf").Return(doc, nil).Once()
	f.indexer.On("DeleteDocumentChunks", mock.Anything, uint(1), uint(11)).Run(record("chunks")).Return(nil).Once()
	f.sets.On("DeleteByDocument", mock.Anything, uint(1), uint(11)).Run(record("sets")).Return(nil).Once()
	f.docs.On("DeleteByIDAndUser", mock.Anything, uint(11), uint(1)).Run(record("row")).Return(nil).Once()
	f.blobs.On("Delete", mock.Anything, "ada@example.com-bio.pdf").Run(record("blob")).Return(nil).Once()

	require.NoError(t, f.svc.Delete(ctx, 1, []string{"bio.pdf"}))
	assert.Equal(t, []string{"chunks", "sets", "row", "blob"}, order)
}

func TestDeleteStopsAtFailedStep(t *testing.T) {
	ctx := context.Background()
	f := newDocumentFixture()
	doc := &model.Document{ID: 11, UserID: 1, Name: "bio.pdf", StorageKey: "k"}

	f.docs.On("GetByUserAndName", ctx, uint(1), "bio.pdf").Return(doc, nil).Once()
	f.indexer.On("DeleteDocumentChunks", mock.Anything, uint(1), uint(11)).Return(nil).Once()
	f.sets.On("DeleteByDocument", mock.Anything, uint(1), uint(11)).Return(errors.New("db locked")).Once()

	err := f.svc.Delete(ctx, 1, []string{"bio.pdf"})
	assert.EqualError(t, err, "db locked")
	f.docs.AssertNotCalled(t, "DeleteByIDAndUser", mock.Anything, mock.Anything, mock.Anything)
	f.blobs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteUnknownName(t *testing.T) {
	ctx := context.Background()
	f := newDocumentFixture()
	f.docs.On("GetByUserAndName", ctx, uint(1), "nope.pdf").Return(nil, nil).Once()

	err := f.svc.Delete(ctx, 1, []string{"nope.pdf"})
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestGetPresignsDocuments(t *testing.T) {
	ctx := context.Background()
	f := newDocumentFixture()

	f.docs.On("ListByUserAndNames", ctx, uint(1), []string{"bio.pdf"}).Return([]model.Document{
		{ID: 11, Name: "bio.pdf", StorageKey: "ada@example.com-bio.pdf", UploadTime: "2024-05-06 07:08:09", ActivityGenerationComplete: true},
	}, nil).Once()
	f.blobs.On("PresignGet", mock.Anything, "ada@example.com-bio.pdf", time.Hour).Return("https://signed/bio", nil).Once()

	views, err := f.svc.Get(ctx, 1, []string{"bio.pdf", "bio.pdf"})
	require.NoError(t, err)
	assert.Equal(t, []DocumentView{{
		ID:                         11,
		Name:                       "bio.pdf",
		URL:                        "https://signed/bio",
		UploadTime:                 "2024-05-06 07:08:09",
		ActivityGenerationComplete: true,
	}}, views)
}

func TestGetAllAndMissing(t *testing.T) {
	ctx := context.Background()
	f := newDocumentFixture()

	f.docs.On("ListByUser", ctx, uint(1)).Return([]model.Document{}, nil).Once()
	views, err := f.svc.Get(ctx, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, views)

	f.docs.On("ListByUserAndNames", ctx, uint(1), []string{"a.pdf", "b.pdf"}).Return([]model.Document{{ID: 1, Name: "a.pdf"}}, nil).Once()
	_, err = f.svc.Get(ctx, 1, []string{"a.pdf", "b.pdf"})
	require.ErrorIs(t, err, ErrDocumentNotFound)
	assert.Contains(t, err.Error(), "b.pdf")
}
