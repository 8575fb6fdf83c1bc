package model

import (
	"time"

	"gorm.io/datatypes"
)

type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

type QuizQuestion struct {
	Question string            `json:"question"`
	Answer   string            `json:"answer"`
	Options  map[string]string `json:"options"`
}

// FlashcardSet is unique per (user, document); regeneration replaces Flashcards.
type FlashcardSet struct {
	ID         uint                           `gorm:"primaryKey" json:"id"`
	UserID     uint                           `gorm:"not null;uniqueIndex:idx_flashcard_sets_user_document" json:"userId"`
	DocumentID uint                           `gorm:"not null;uniqueIndex:idx_flashcard_sets_user_document" json:"documentId"`
	Flashcards datatypes.JSONSlice[Flashcard] `json:"flashcards"`
	CreatedAt  time.Time                      `json:"createdAt"`
	UpdatedAt  time.Time                      `json:"updatedAt"`
}

// QuizSet is unique per (user, document); regeneration replaces Quiz.
type QuizSet struct {
	ID         uint                              `gorm:"primaryKey" json:"id"`
	UserID     uint                              `gorm:"not null;uniqueIndex:idx_quiz_sets_user_document" json:"userId"`
	DocumentID uint                              `gorm:"not null;uniqueIndex:idx_quiz_sets_user_document" json:"documentId"`
	Quiz       datatypes.JSONSlice[QuizQuestion] `json:"quiz"`
	CreatedAt  time.Time                         `json:"createdAt"`
	UpdatedAt  time.Time                         `json:"updatedAt"`
}
