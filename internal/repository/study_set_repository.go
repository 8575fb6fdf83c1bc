package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"thinkr-backend/internal/model"
)

type StudySetRepository struct {
	db *gorm.DB
}

func NewStudySetRepository(db *gorm.DB) *StudySetRepository {
	return &StudySetRepository{db: db}
}

var userDocumentConflict = []clause.Column{{Name: "user_id"}, {Name: "document_id"}}

// UpsertFlashcards replaces the set stored for (UserID, DocumentID).
func (r *StudySetRepository) UpsertFlashcards(ctx context.Context, set *model.FlashcardSet) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   userDocumentConflict,
		DoUpdates: clause.AssignmentColumns([]string{"flashcards", "updated_at"}),
	}).Create(set).Error
	if err != nil {
		return fmt.Errorf("upsert flashcard set failed: %w", err)
	}
	return nil
}

// UpsertQuiz replaces the set stored for (UserID, DocumentID).
func (r *StudySetRepository) UpsertQuiz(ctx context.Context, set *model.QuizSet) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   userDocumentConflict,
		DoUpdates: clause.AssignmentColumns([]string{"quiz", "updated_at"}),
	}).Create(set).Error
	if err != nil {
		return fmt.Errorf("upsert quiz set failed: %w", err)
	}
	return nil
}

// ListFlashcards returns the user's sets; an empty documentIDs means all documents.
func (r *StudySetRepository) ListFlashcards(ctx context.Context, userID uint, documentIDs []uint) ([]model.FlashcardSet, error) {
	var sets []model.FlashcardSet
	if err := scopeUserDocuments(r.db.WithContext(ctx), userID, documentIDs).Find(&sets).Error; err != nil {
		return nil, fmt.Errorf("list flashcard sets failed: %w", err)
	}
	return sets, nil
}

// ListQuizzes returns the user's sets; an empty documentIDs means all documents.
func (r *StudySetRepository) ListQuizzes(ctx context.Context, userID uint, documentIDs []uint) ([]model.QuizSet, error) {
	var sets []model.QuizSet
	if err := scopeUserDocuments(r.db.WithContext(ctx), userID, documentIDs).Find(&sets).Error; err != nil {
		return nil, fmt.Errorf("list quiz sets failed: %w", err)
	}
	return sets, nil
}

// DeleteByDocument removes both study sets of a document in one transaction.
func (r *StudySetRepository) DeleteByDocument(ctx context.Context, userID, documentID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND document_id = ?", userID, documentID).Delete(&model.FlashcardSet{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ? AND document_id = ?", userID, documentID).Delete(&model.QuizSet{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete study sets failed: %w", err)
	}
	return nil
}

func scopeUserDocuments(db *gorm.DB, userID uint, documentIDs []uint) *gorm.DB {
	db = db.Where("user_id = ?", userID)
	if len(documentIDs) > 0 {
		db = db.Where("document_id IN ?", documentIDs)
	}
	return db.Order("document_id ASC")
}
