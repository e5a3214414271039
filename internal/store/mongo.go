package store

import (
	"context"
	"errors"
	"time"

	"github.com/AnshRaj112/whisper-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoUserStore keeps one document per user with the messages embedded.
// Every write touches exactly one document, so Mongo's per-document
// atomicity is the only coordination needed.
type MongoUserStore struct {
	col *mongo.Collection
}

func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{col: db.Collection(usersCollection)}
}

// EnsureIndexes creates the unique username and email indexes.
// Called on startup from main after Mongo has connected.
func (s *MongoUserStore) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetName("uniq_username").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("uniq_email").SetUnique(true),
		},
	}
	_, err := s.col.Indexes().CreateMany(ctx, indexes)
	return err
}

// profileProjection leaves the message array out of single-user lookups.
var profileProjection = bson.M{"messages": 0}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	err := s.col.FindOne(ctx, filter, options.FindOne().SetProjection(profileProjection)).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *MongoUserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoUserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

// FindByIdentifier matches either the email or the (case-sensitive) username.
func (s *MongoUserStore) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"email": identifier},
		bson.M{"username": identifier},
	}})
}

func (s *MongoUserStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	n, err := s.col.CountDocuments(ctx, bson.M{"username": username}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *MongoUserStore) Create(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Messages == nil {
		u.Messages = []models.Message{}
	}

	_, err := s.col.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

// UpdateAccount persists the account fields of u. The message array and the
// acceptance flag have their own targeted updates and are never overwritten here.
func (s *MongoUserStore) UpdateAccount(ctx context.Context, u *models.User) error {
	u.UpdatedAt = time.Now().UTC()
	set := bson.M{
		"username":           u.Username,
		"email":              u.Email,
		"password":           u.Password,
		"verify_code":        u.VerifyCode,
		"verify_code_expiry": u.VerifyCodeExpiry,
		"is_verified":        u.IsVerified,
		"providers":          u.Providers,
		"updated_at":         u.UpdatedAt,
	}
	res, err := s.col.UpdateByID(ctx, u.ID, bson.M{"$set": set})
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoUserStore) SetAcceptingMessages(ctx context.Context, id primitive.ObjectID, accept bool) error {
	return s.setFields(ctx, id, bson.M{"is_accepting_messages": accept})
}

func (s *MongoUserStore) SetAvatarURL(ctx context.Context, id primitive.ObjectID, url string) error {
	return s.setFields(ctx, id, bson.M{"avatar_url": url})
}

func (s *MongoUserStore) setFields(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	set["updated_at"] = time.Now().UTC()
	res, err := s.col.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage pushes msg onto the owner's array only while the acceptance
// flag is on; the flag check and the push are one atomic update.
func (s *MongoUserStore) AppendMessage(ctx context.Context, userID primitive.ObjectID, msg models.Message) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": userID, "is_accepting_messages": true},
		bson.M{"$push": bson.M{"messages": msg}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// Nothing matched: either the user is gone or the flag is off.
	if _, err := s.FindByID(ctx, userID); err != nil {
		return err
	}
	return ErrNotAccepting
}

func (s *MongoUserStore) ListMessages(ctx context.Context, userID primitive.ObjectID) ([]models.Message, error) {
	var doc struct {
		Messages []models.Message `bson:"messages"`
	}
	err := s.col.FindOne(ctx, bson.M{"_id": userID},
		options.FindOne().SetProjection(bson.M{"messages": 1})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.Messages, nil
}

// RemoveMessage pulls messageID from the owner's array. The bool reports
// whether a message was actually removed.
func (s *MongoUserStore) RemoveMessage(ctx context.Context, userID, messageID primitive.ObjectID) (bool, error) {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"messages": bson.M{"_id": messageID}}},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, ErrNotFound
	}
	return res.ModifiedCount > 0, nil
}
