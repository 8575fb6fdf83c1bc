package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type ChatMessage struct {
	Role      string    `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// ChatSession is stored as a single MongoDB document with its messages embedded.
type ChatSession struct {
	SessionID  string                 `bson:"_id" json:"sessionId"`
	UserID     uint                   `bson:"userId" json:"userId"`
	DocumentID *uint                  `bson:"documentId,omitempty" json:"documentId,omitempty"`
	Messages   []ChatMessage          `bson:"messages" json:"messages"`
	Metadata   map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt  time.Time              `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time              `bson:"updatedAt" json:"updatedAt"`
}

func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}
