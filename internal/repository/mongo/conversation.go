package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/Rrens/chat-assistant/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	fieldID          = "_id"
	fieldOwnerUserID = "owner_user_id"
	fieldGuestID     = "guest_id"
	fieldTitle       = "title"
	fieldMessages    = "messages"
	fieldContent     = "messages.content"
	fieldCreatedAt   = "created_at"
	fieldUpdatedAt   = "updated_at"
)

type conversationDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	OwnerUserID string             `bson:"owner_user_id,omitempty"`
	GuestID     string             `bson:"guest_id,omitempty"`
	Title       string             `bson:"title"`
	Messages    []domain.Message   `bson:"messages"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func (d *conversationDoc) toDomain() *domain.Conversation {
	messages := d.Messages
	if messages == nil {
		messages = []domain.Message{}
	}
	return &domain.Conversation{
		ID:          d.ID.Hex(),
		OwnerUserID: d.OwnerUserID,
		GuestID:     d.GuestID,
		Title:       d.Title,
		Messages:    messages,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

var errConversationNotFound = &domain.NotFoundError{Resource: "conversation"}

// ConversationRepository stores conversations of one owner kind in a single
// collection. ownerField names the document field holding the owner.
type ConversationRepository struct {
	coll       *mongo.Collection
	ownerField string
}

// NewConversationRepository returns the store for authenticated users
func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{
		coll:       db.db.Collection(ConversationsCollection),
		ownerField: fieldOwnerUserID,
	}
}

// Create inserts an empty conversation with the default title
func (r *ConversationRepository) Create(ctx context.Context, owner string) (*domain.Conversation, error) {
	ts := now()
	doc := conversationDoc{
		Title:     domain.DefaultConversationTitle,
		Messages:  []domain.Message{},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	r.setOwner(&doc, owner)

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("failed to create conversation: unexpected id type %T", res.InsertedID)
	}
	doc.ID = oid

	return doc.toDomain(), nil
}

// GetByID returns the conversation only if owner matches
func (r *ConversationRepository) GetByID(ctx context.Context, id, owner string) (*domain.Conversation, error) {
	filter, ok := r.byID(id, owner)
	if !ok {
		return nil, errConversationNotFound
	}

	var doc conversationDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return doc.toDomain(), nil
}

// ListByOwner returns all conversations of owner, most recently updated first
func (r *ConversationRepository) ListByOwner(ctx context.Context, owner string) ([]domain.Conversation, error) {
	return r.find(ctx, bson.M{r.ownerField: owner})
}

// Rename sets the title and bumps updated_at
func (r *ConversationRepository) Rename(ctx context.Context, id, owner, title string) (*domain.Conversation, error) {
	filter, ok := r.byID(id, owner)
	if !ok {
		return nil, errConversationNotFound
	}

	update := bson.M{"$set": bson.M{fieldTitle: title, fieldUpdatedAt: now()}}
	return r.findOneAndUpdate(ctx, filter, update, "rename conversation")
}

// Delete removes the conversation, reporting whether anything was deleted
func (r *ConversationRepository) Delete(ctx context.Context, id, owner string) (bool, error) {
	filter, ok := r.byID(id, owner)
	if !ok {
		return false, nil
	}

	res, err := r.coll.DeleteOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("failed to delete conversation: %w", err)
	}

	return res.DeletedCount > 0, nil
}

// AppendMessages pushes all messages and bumps updated_at in one document update
func (r *ConversationRepository) AppendMessages(ctx context.Context, id, owner string, messages []domain.Message) (*domain.Conversation, error) {
	filter, ok := r.byID(id, owner)
	if !ok {
		return nil, errConversationNotFound
	}

	update := bson.M{
		"$push": bson.M{fieldMessages: bson.M{"$each": messages}},
		"$set":  bson.M{fieldUpdatedAt: now()},
	}
	return r.findOneAndUpdate(ctx, filter, update, "append messages")
}

// SearchByOwner matches query case-insensitively against the title and every
// message body. The query is matched literally.
func (r *ConversationRepository) SearchByOwner(ctx context.Context, owner, query string) ([]domain.Conversation, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{
		r.ownerField: owner,
		"$or": bson.A{
			bson.M{fieldTitle: pattern},
			bson.M{fieldContent: pattern},
		},
	}
	return r.find(ctx, filter)
}

func (r *ConversationRepository) find(ctx context.Context, filter bson.M) ([]domain.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: fieldUpdatedAt, Value: -1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	conversations := []domain.Conversation{}
	for cursor.Next(ctx) {
		var doc conversationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode conversation: %w", err)
		}
		conversations = append(conversations, *doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}

	return conversations, nil
}

func (r *ConversationRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M, op string) (*domain.Conversation, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc conversationDoc
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errConversationNotFound
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	return doc.toDomain(), nil
}

// byID builds the owner-scoped id filter. Malformed ids never match.
func (r *ConversationRepository) byID(id, owner string) (bson.M, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false
	}
	return bson.M{fieldID: oid, r.ownerField: owner}, true
}

func (r *ConversationRepository) setOwner(doc *conversationDoc, owner string) {
	if r.ownerField == fieldGuestID {
		doc.GuestID = owner
		return
	}
	doc.OwnerUserID = owner
}

// GuestConversationRepository stores guest conversations, one per guest ID
type GuestConversationRepository struct {
	*ConversationRepository
}

// NewGuestConversationRepository returns the store for guest conversations
func NewGuestConversationRepository(db *DB) *GuestConversationRepository {
	return &GuestConversationRepository{
		ConversationRepository: &ConversationRepository{
			coll:       db.db.Collection(GuestConversationsCollection),
			ownerField: fieldGuestID,
		},
	}
}

// FindOrCreate upserts the conversation keyed by guestID. Two concurrent
// upserts can race to insert; the loser hits the unique index and reads the
// winner's document instead.
func (r *GuestConversationRepository) FindOrCreate(ctx context.Context, guestID string) (*domain.Conversation, error) {
	ts := now()
	filter := bson.M{fieldGuestID: guestID}
	update := bson.M{"$setOnInsert": bson.M{
		fieldGuestID:   guestID,
		fieldTitle:     domain.DefaultConversationTitle,
		fieldMessages:  bson.A{},
		fieldCreatedAt: ts,
		fieldUpdatedAt: ts,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc conversationDoc
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		err = r.coll.FindOne(ctx, filter).Decode(&doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find or create guest conversation: %w", err)
	}

	return doc.toDomain(), nil
}

// now is truncated to the millisecond precision BSON dates store
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
