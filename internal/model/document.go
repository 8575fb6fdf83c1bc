package model

import "time"

// UploadTimeLayout is the wire format of Document.UploadTime.
const UploadTimeLayout = "2006-01-02 15:04:05"

type Document struct {
	ID                         uint      `gorm:"primaryKey" json:"id"`
	UserID                     uint      `gorm:"not null;uniqueIndex:idx_documents_user_name" json:"userId"`
	Name                       string    `gorm:"size:255;not null;uniqueIndex:idx_documents_user_name" json:"name"`
	StorageKey                 string    `gorm:"size:512;not null" json:"-"`
	ContentType                string    `gorm:"size:128" json:"contentType"`
	Size                       int64     `json:"size"`
	UploadTime                 string    `gorm:"size:19;not null" json:"uploadTime"`
	ActivityGenerationComplete bool      `gorm:"not null;default:false" json:"activityGenerationComplete"`
	CreatedAt                  time.Time `json:"createdAt"`
	UpdatedAt                  time.Time `json:"updatedAt"`
}
