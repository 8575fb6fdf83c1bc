package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"thinkr-backend/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Upsert inserts the document or overwrites the row with the same (user, name).
// On return doc.ID holds the persisted id in both cases.
func (r *DocumentRepository) Upsert(ctx context.Context, doc *model.Document) error {
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"storage_key",
			"content_type",
			"size",
			"upload_time",
			"activity_generation_complete",
			"updated_at",
		}),
	}).Create(doc).Error
	if err != nil {
		return fmt.Errorf("upsert document failed: %w", err)
	}

	// MySQL does not report the id of an updated row, so read it back.
	var stored model.Document
	if err := db.Select("id", "created_at").
		Where("user_id = ? AND name = ?", doc.UserID, doc.Name).
		First(&stored).Error; err != nil {
		return fmt.Errorf("reload upserted document failed: %w", err)
	}
	doc.ID = stored.ID
	doc.CreatedAt = stored.CreatedAt
	return nil
}

func (r *DocumentRepository) GetByIDAndUser(ctx context.Context, id, userID uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query document by id failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByUserAndName(ctx context.Context, userID uint, name string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("user_id = ? AND name = ?", userID, name).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query document by name failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByUser(ctx context.Context, userID uint) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

// ListByUserAndNames returns the user's documents whose name is in names. Missing
// names are simply absent from the result.
func (r *DocumentRepository) ListByUserAndNames(ctx context.Context, userID uint, names []string) ([]model.Document, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var docs []model.Document
	if err := r.db.WithContext(ctx).Where("user_id = ? AND name IN ?", userID, names).Order("id ASC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents by name failed: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) MarkActivityGenerated(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", id).Update("activity_generation_complete", true)
	if res.Error != nil {
		return fmt.Errorf("mark document activity generated failed: %w", res.Error)
	}
	return nil
}

func (r *DocumentRepository) DeleteByIDAndUser(ctx context.Context, id, userID uint) error {
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}
