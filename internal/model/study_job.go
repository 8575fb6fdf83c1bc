package model

// StudyJob asks the background worker to generate flashcards and a quiz for a document.
// UploadTime pins the job to the upload that queued it.
type StudyJob struct {
	UserID     uint   `json:"userId"`
	DocumentID uint   `json:"documentId"`
	UploadTime string `json:"uploadTime,omitempty"`
}
