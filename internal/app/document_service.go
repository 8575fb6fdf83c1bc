package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"thinkr-backend/internal/model"
)

var ErrFileTooLarge = errors.New("file exceeds the upload size limit")

type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type TextExtractor interface {
	ExtractText(ctx context.Context, key string) (string, error)
}

type DocumentIndexer interface {
	Ingest(ctx context.Context, input IngestInput) (int, error)
	DeleteDocumentChunks(ctx context.Context, userID, documentID uint) error
}

type JobPublisher interface {
	Publish(ctx context.Context, job any) error
}

type DocumentOptions struct {
	MaxUploadSize int64
	PresignTTL    time.Duration
}

type DocumentService struct {
	userRepo  UserRepository
	docRepo   DocumentRepository
	setRepo   StudySetRepository
	blobs     BlobStore
	extractor TextExtractor
	indexer   DocumentIndexer
	jobs      JobPublisher
	opts      DocumentOptions
	now       func() time.Time
}

// UploadFile is one file of a multipart upload. Open is called once.
type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type UploadedDocument struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	UploadTime string `json:"uploadTime"`
}

type DocumentView struct {
	ID                         uint   `json:"id"`
	Name                       string `json:"name"`
	URL                        string `json:"url"`
	UploadTime                 string `json:"uploadTime"`
	ActivityGenerationComplete bool   `json:"activityGenerationComplete"`
}

func NewDocumentService(
	userRepo UserRepository,
	docRepo DocumentRepository,
	setRepo StudySetRepository,
	blobs BlobStore,
	extractor TextExtractor,
	indexer DocumentIndexer,
	jobs JobPublisher,
	opts DocumentOptions,
) *DocumentService {
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = time.Hour
	}
	return &DocumentService{
		userRepo:  userRepo,
		docRepo:   docRepo,
		setRepo:   setRepo,
		blobs:     blobs,
		extractor: extractor,
		indexer:   indexer,
		jobs:      jobs,
		opts:      opts,
		now:       time.Now,
	}
}

// Upload stores every file, indexes its text for retrieval and queues study
// material generation. Files are processed concurrently; the first failure
// cancels the rest.
func (s *DocumentService) Upload(ctx context.Context, userID uint, files []UploadFile) ([]UploadedDocument, error) {
	if userID == 0 || len(files) == 0 {
		return nil, ErrInvalidInput
	}
	seen := make(map[string]struct{}, len(files))
	for i := range files {
		name := cleanFileName(files[i].Name)
		if name == "" || files[i].Open == nil {
			return nil, ErrInvalidInput
		}
		if _, dup := seen[name]; dup {
			return nil, ErrInvalidInput
		}
		seen[name] = struct{}{}
		if s.opts.MaxUploadSize > 0 && files[i].Size > s.opts.MaxUploadSize {
			return nil, fmt.Errorf("%w: %s", ErrFileTooLarge, name)
		}
		files[i].Name = name
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	results := make([]UploadedDocument, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			doc, err := s.uploadOne(gctx, user, f)
			if err != nil {
				return fmt.Errorf("upload %s failed: %w", f.Name, err)
			}
			results[i] = UploadedDocument{ID: doc.ID, Name: doc.Name, UploadTime: doc.UploadTime}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *DocumentService) uploadOne(ctx context.Context, user *model.User, f UploadFile) (*model.Document, error) {
	key := fmt.Sprintf("%s-%s", user.Email, f.Name)

	body, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open file failed: %w", err)
	}
	err = s.blobs.Put(ctx, key, f.ContentType, body, f.Size)
	_ = body.Close()
	if err != nil {
		return nil, err
	}

	doc := &model.Document{
		UserID:      user.ID,
		Name:        f.Name,
		StorageKey:  key,
		ContentType: f.ContentType,
		Size:        f.Size,
		UploadTime:  s.now().UTC().Format(model.UploadTimeLayout),
	}
	if err := s.docRepo.Upsert(ctx, doc); err != nil {
		return nil, err
	}

	text, err := s.extractor.ExtractText(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("extract text failed: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		// Nothing to study; drop chunks of any earlier version and finish now.
		if err := s.indexer.DeleteDocumentChunks(ctx, user.ID, doc.ID); err != nil {
			return nil, err
		}
		if err := s.docRepo.MarkActivityGenerated(ctx, doc.ID); err != nil {
			return nil, err
		}
		doc.ActivityGenerationComplete = true
		return doc, nil
	}

	if _, err := s.indexer.Ingest(ctx, IngestInput{
		UserID:     user.ID,
		DocumentID: doc.ID,
		Source:     f.Name,
		Text:       text,
	}); err != nil {
		return nil, err
	}
	if err := s.jobs.Publish(ctx, model.StudyJob{UserID: user.ID, DocumentID: doc.ID, UploadTime: doc.UploadTime}); err != nil {
		return nil, fmt.Errorf("enqueue study job failed: %w", err)
	}
	return doc, nil
}

// Delete removes the named documents. Each document is torn down in the
// order chunks, study sets, row, blob, so a failed delete can be retried.
func (s *DocumentService) Delete(ctx context.Context, userID uint, names []string) error {
	if userID == 0 || len(names) == 0 {
		return ErrInvalidInput
	}
	docs := make([]*model.Document, 0, len(names))
	for _, name := range names {
		doc, err := s.docRepo.GetByUserAndName(ctx, userID, cleanFileName(name))
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
		}
		docs = append(docs, doc)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			return s.deleteOne(gctx, doc)
		})
	}
	return g.Wait()
}

func (s *DocumentService) deleteOne(ctx context.Context, doc *model.Document) error {
	if err := s.indexer.DeleteDocumentChunks(ctx, doc.UserID, doc.ID); err != nil {
		return err
	}
	if err := s.setRepo.DeleteByDocument(ctx, doc.UserID, doc.ID); err != nil {
		return err
	}
	if err := s.docRepo.DeleteByIDAndUser(ctx, doc.ID, doc.UserID); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
		return fmt.Errorf("delete blob failed: %w", err)
	}
	return nil
}

// Get returns presigned download links for the named documents, or for all
// of the user's documents when names is empty.
func (s *DocumentService) Get(ctx context.Context, userID uint, names []string) ([]DocumentView, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}

	var (
		docs []model.Document
		err  error
	)
	if len(names) == 0 {
		docs, err = s.docRepo.ListByUser(ctx, userID)
	} else {
		unique := uniqueNames(names)
		docs, err = s.docRepo.ListByUserAndNames(ctx, userID, unique)
		if err == nil && len(docs) < len(unique) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, missingName(unique, docs))
		}
	}
	if err != nil {
		return nil, err
	}

	views := make([]DocumentView, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			url, err := s.blobs.PresignGet(gctx, doc.StorageKey, s.opts.PresignTTL)
			if err != nil {
				return fmt.Errorf("presign %s failed: %w", doc.Name, err)
			}
			views[i] = DocumentView{
				ID:                         doc.ID,
				Name:                       doc.Name,
				URL:                        url,
				UploadTime:                 doc.UploadTime,
				ActivityGenerationComplete: doc.ActivityGenerationComplete,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

func cleanFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	base := path.Base(name)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = cleanFileName(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func missingName(names []string, docs []model.Document) string {
	found := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		found[d.Name] = struct{}{}
	}
	for _, n := range names {
		if _, ok := found[n]; !ok {
			return n
		}
	}
	return ""
}
