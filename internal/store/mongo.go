package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/capitalize-ai/alpine-chat/internal/model"
)

const (
	usersCollection         = "users"
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
	countersCollection      = "counters"
)

// MongoStore implements Repository on a MongoDB database.
type MongoStore struct {
	client        *mongo.Client
	users         *mongo.Collection
	conversations *mongo.Collection
	messages      *mongo.Collection
	counters      *mongo.Collection
}

type userDoc struct {
	ID           string `bson:"id"`
	Email        string `bson:"email"`
	FullName     string `bson:"full_name"`
	PasswordHash string `bson:"password_hash"`
	IsActive     bool   `bson:"is_active"`
	CreatedAt    string `bson:"created_at"`
}

type conversationDoc struct {
	ID        string `bson:"id"`
	UserID    string `bson:"user_id"`
	Title     string `bson:"title"`
	CreatedAt string `bson:"created_at"`
	UpdatedAt string `bson:"updated_at"`
}

type messageDoc struct {
	ID             string `bson:"id"`
	ConversationID string `bson:"conversation_id"`
	Role           string `bson:"role"`
	Content        string `bson:"content"`
	HasAttachment  bool   `bson:"has_attachment"`
	AttachmentData string `bson:"attachment_data,omitempty"`
	AttachmentType string `bson:"attachment_type,omitempty"`
	CreatedAt      string `bson:"created_at"`
	Seq            int64  `bson:"seq"`
}

// NewMongo connects to MongoDB and ensures indexes exist.
func NewMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:        client,
		users:         db.Collection(usersCollection),
		conversations: db.Collection(conversationsCollection),
		messages:      db.Collection(messagesCollection),
		counters:      db.Collection(countersCollection),
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	if _, err := s.conversations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("create conversation indexes: %w", err)
	}
	if _, err := s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "seq", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create message indexes: %w", err)
	}
	return nil
}

// Ping verifies connectivity.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// CreateUser inserts a user.
func (s *MongoStore) CreateUser(ctx context.Context, user *model.User) error {
	_, err := s.users.InsertOne(ctx, userDoc{
		ID:           user.ID,
		Email:        user.Email,
		FullName:     user.FullName,
		PasswordHash: user.PasswordHash,
		IsActive:     user.IsActive,
		CreatedAt:    formatTime(user.CreatedAt),
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *MongoStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"id": userID})
}

// GetUserByEmail retrieves a user by email.
func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*model.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	createdAt, err := parseTime(doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse user created_at: %w", err)
	}
	return &model.User{
		ID:           doc.ID,
		Email:        doc.Email,
		FullName:     doc.FullName,
		PasswordHash: doc.PasswordHash,
		IsActive:     doc.IsActive,
		CreatedAt:    createdAt,
	}, nil
}

// CreateConversation inserts a conversation.
func (s *MongoStore) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	_, err := s.conversations.InsertOne(ctx, conversationDoc{
		ID:        conv.ID,
		UserID:    conv.UserID,
		Title:     conv.Title,
		CreatedAt: formatTime(conv.CreatedAt),
		UpdatedAt: formatTime(conv.UpdatedAt),
	})
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves an owned conversation.
func (s *MongoStore) GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	var doc conversationDoc
	err := s.conversations.FindOne(ctx, bson.M{"id": conversationID, "user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return doc.toModel()
}

// ListConversations returns a user's conversations, newest update first.
func (s *MongoStore) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "created_at", Value: -1}})
	cursor, err := s.conversations.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find conversations: %w", err)
	}
	defer cursor.Close(ctx)

	convs := []model.Conversation{}
	for cursor.Next(ctx) {
		var doc conversationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode conversation: %w", err)
		}
		conv, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return convs, nil
}

func (d *conversationDoc) toModel() (*model.Conversation, error) {
	createdAt, err := parseTime(d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse conversation created_at: %w", err)
	}
	updatedAt, err := parseTime(d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse conversation updated_at: %w", err)
	}
	return &model.Conversation{
		ID:        d.ID,
		UserID:    d.UserID,
		Title:     d.Title,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// UpdateConversation bumps updated_at and optionally sets the title.
func (s *MongoStore) UpdateConversation(ctx context.Context, conversationID string, updatedAt time.Time, title *string) error {
	set := bson.M{"updated_at": formatTime(updatedAt)}
	if title != nil {
		set["title"] = *title
	}

	result, err := s.conversations.UpdateOne(ctx, bson.M{"id": conversationID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes an owned conversation, then its messages.
// The conversation goes first so that no listing can reach the messages
// once the ownership check starts failing.
func (s *MongoStore) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	result, err := s.conversations.DeleteOne(ctx, bson.M{"id": conversationID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}

	if _, err := s.messages.DeleteMany(ctx, bson.M{"conversation_id": conversationID}); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

// AppendMessage inserts a message while its conversation exists. A delete
// racing the insert is detected afterwards and the message is removed.
func (s *MongoStore) AppendMessage(ctx context.Context, msg *model.Message) error {
	exists, err := s.conversationExists(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}

	seq, err := s.nextSeq(ctx, messagesCollection)
	if err != nil {
		return err
	}

	if _, err := s.messages.InsertOne(ctx, messageDoc{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           string(msg.Role),
		Content:        msg.Content,
		HasAttachment:  msg.HasAttachment,
		AttachmentData: msg.AttachmentData,
		AttachmentType: msg.AttachmentType,
		CreatedAt:      formatTime(msg.CreatedAt),
		Seq:            seq,
	}); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if exists, err = s.conversationExists(ctx, msg.ConversationID); err != nil {
		return err
	}
	if !exists {
		if _, err := s.messages.DeleteOne(ctx, bson.M{"id": msg.ID}); err != nil {
			return fmt.Errorf("remove orphaned message: %w", err)
		}
		return ErrNotFound
	}

	msg.Seq = seq
	return nil
}

func (s *MongoStore) conversationExists(ctx context.Context, conversationID string) (bool, error) {
	n, err := s.conversations.CountDocuments(ctx, bson.M{"id": conversationID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count conversations: %w", err)
	}
	return n > 0, nil
}

func (s *MongoStore) nextSeq(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return counter.Seq, nil
}

// ListMessages returns a conversation's messages in creation order.
func (s *MongoStore) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "seq", Value: 1}})
	cursor, err := s.messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	defer cursor.Close(ctx)

	msgs := []model.Message{}
	for cursor.Next(ctx) {
		var doc messageDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		createdAt, err := parseTime(doc.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse message created_at: %w", err)
		}
		msgs = append(msgs, model.Message{
			ID:             doc.ID,
			ConversationID: doc.ConversationID,
			Role:           model.Role(doc.Role),
			Content:        doc.Content,
			HasAttachment:  doc.HasAttachment,
			AttachmentData: doc.AttachmentData,
			AttachmentType: doc.AttachmentType,
			CreatedAt:      createdAt,
			Seq:            doc.Seq,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}
