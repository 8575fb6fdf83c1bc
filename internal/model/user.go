package model

import "time"

type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	GoogleID   string    `gorm:"size:64;not null;uniqueIndex" json:"googleId"`
	Email      string    `gorm:"size:128;not null;index" json:"email"`
	Name       string    `gorm:"size:128" json:"name"`
	Subscribed bool      `gorm:"not null;default:false" json:"subscribed"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
