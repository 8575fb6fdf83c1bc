package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"thinkr-backend/internal/model"
)

const chatSessionCollection = "chat_sessions"

type ChatSessionRepository struct {
	coll *mongo.Collection
}

func NewChatSessionRepository(db *mongo.Database) *ChatSessionRepository {
	return &ChatSessionRepository{coll: db.Collection(chatSessionCollection)}
}

func (r *ChatSessionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "updatedAt", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "documentId", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create chat session indexes failed: %w", err)
	}
	return nil
}

func (r *ChatSessionRepository) Create(ctx context.Context, session *model.ChatSession) error {
	if _, err := r.coll.InsertOne(ctx, session); err != nil {
		return fmt.Errorf("create chat session failed: %w", err)
	}
	return nil
}

func (r *ChatSessionRepository) Get(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	var session model.ChatSession
	if err := r.coll.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&session); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("query chat session failed: %w", err)
	}
	return &session, nil
}

// ListByUser returns the user's sessions, most recently updated first.
// A non-nil documentID restricts the result to sessions scoped to that document.
func (r *ChatSessionRepository) ListByUser(ctx context.Context, userID uint, documentID *uint) ([]model.ChatSession, error) {
	filter := bson.M{"userId": userID}
	if documentID != nil {
		filter["documentId"] = *documentID
	}
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list chat sessions failed: %w", err)
	}
	sessions := make([]model.ChatSession, 0)
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("decode chat sessions failed: %w", err)
	}
	return sessions, nil
}

// AppendMessages pushes messages in order with a single atomic update and
// returns the updated session, or nil when it does not exist.
func (r *ChatSessionRepository) AppendMessages(ctx context.Context, sessionID string, messages ...model.ChatMessage) (*model.ChatSession, error) {
	update := bson.M{
		"$push": bson.M{"messages": bson.M{"$each": messages}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var session model.ChatSession
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": sessionID}, update, opts).Decode(&session); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("append chat messages failed: %w", err)
	}
	return &session, nil
}

// Delete reports whether a session was removed.
func (r *ChatSessionRepository) Delete(ctx context.Context, sessionID string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": sessionID})
	if err != nil {
		return false, fmt.Errorf("delete chat session failed: %w", err)
	}
	return res.DeletedCount > 0, nil
}
