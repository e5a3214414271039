package store

import (
	"context"
	"testing"
	"time"

	"github.com/AnshRaj112/whisper-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func mockStore(mt *mtest.T) *MongoUserStore {
	return &MongoUserStore{col: mt.Coll}
}

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

// updateResult is the reply to an update command matching n documents and
// modifying nModified of them.
func updateResult(n, nModified int32) bson.D {
	return mtest.CreateSuccessResponse(
		bson.E{Key: "n", Value: n},
		bson.E{Key: "nModified", Value: nModified},
	)
}

func userDoc(id primitive.ObjectID, username string, accepting bool, messages ...bson.D) bson.D {
	msgs := bson.A{}
	for _, m := range messages {
		msgs = append(msgs, m)
	}
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "username", Value: username},
		{Key: "email", Value: username + "@example.com"},
		{Key: "is_verified", Value: true},
		{Key: "is_accepting_messages", Value: accepting},
		{Key: "messages", Value: msgs},
	}
}

func duplicateKeyError() bson.D {
	return mtest.CreateWriteErrorsResponse(mtest.WriteError{
		Index:   0,
		Code:    11000,
		Message: "E11000 duplicate key error collection: whisper.users index: uniq_username",
	})
}

func TestMongoUserStore_AppendMessage(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	msg := models.Message{ID: primitive.NewObjectID(), Content: "hi", CreatedAt: time.Now().UTC()}

	mt.Run("pushes while accepting", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(updateResult(1, 1))

		require.NoError(mt, mockStore(mt).AppendMessage(ctx, id, msg))

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "update", started.CommandName)
	})

	mt.Run("not accepting", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			updateResult(0, 0),
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, userDoc(id, "john", false)),
		)

		err := mockStore(mt).AppendMessage(ctx, id, msg)
		assert.ErrorIs(mt, err, ErrNotAccepting)
	})

	mt.Run("unknown user", func(mt *mtest.T) {
		mt.AddMockResponses(
			updateResult(0, 0),
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch),
		)

		err := mockStore(mt).AppendMessage(ctx, primitive.NewObjectID(), msg)
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestMongoUserStore_ListMessages(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("decodes embedded messages", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		first, second := primitive.NewObjectID(), primitive.NewObjectID()
		at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, userDoc(id, "john", true,
			bson.D{{Key: "_id", Value: first}, {Key: "content", Value: "one"}, {Key: "created_at", Value: at}},
			bson.D{{Key: "_id", Value: second}, {Key: "content", Value: "two"}, {Key: "created_at", Value: at.Add(time.Minute)}},
		)))

		msgs, err := mockStore(mt).ListMessages(ctx, id)
		require.NoError(mt, err)
		require.Len(mt, msgs, 2)
		assert.Equal(mt, first, msgs[0].ID)
		assert.Equal(mt, "one", msgs[0].Content)
		assert.True(mt, at.Equal(msgs[0].CreatedAt))
		assert.Equal(mt, "two", msgs[1].Content)
	})

	mt.Run("unknown user", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := mockStore(mt).ListMessages(ctx, primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestMongoUserStore_RemoveMessage(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("removed", func(mt *mtest.T) {
		mt.AddMockResponses(updateResult(1, 1))

		removed, err := mockStore(mt).RemoveMessage(ctx, primitive.NewObjectID(), primitive.NewObjectID())
		require.NoError(mt, err)
		assert.True(mt, removed)
	})

	mt.Run("absent message", func(mt *mtest.T) {
		mt.AddMockResponses(updateResult(1, 0))

		removed, err := mockStore(mt).RemoveMessage(ctx, primitive.NewObjectID(), primitive.NewObjectID())
		require.NoError(mt, err)
		assert.False(mt, removed)
	})

	mt.Run("unknown user", func(mt *mtest.T) {
		mt.AddMockResponses(updateResult(0, 0))

		removed, err := mockStore(mt).RemoveMessage(ctx, primitive.NewObjectID(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)
		assert.False(mt, removed)
	})
}

func TestMongoUserStore_DuplicateKeys(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("create", func(mt *mtest.T) {
		mt.AddMockResponses(duplicateKeyError())

		err := mockStore(mt).Create(ctx, &models.User{Username: "john", Email: "john@example.com"})
		assert.ErrorIs(mt, err, ErrDuplicate)
	})

	mt.Run("update account", func(mt *mtest.T) {
		mt.AddMockResponses(duplicateKeyError())

		err := mockStore(mt).UpdateAccount(ctx, &models.User{ID: primitive.NewObjectID(), Username: "john"})
		assert.ErrorIs(mt, err, ErrDuplicate)
	})

	mt.Run("update account of missing user", func(mt *mtest.T) {
		mt.AddMockResponses(updateResult(0, 0))

		err := mockStore(mt).UpdateAccount(ctx, &models.User{ID: primitive.NewObjectID(), Username: "john"})
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("create fills defaults", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		u := &models.User{Username: "jane", Email: "jane@example.com"}
		require.NoError(mt, mockStore(mt).Create(ctx, u))
		assert.False(mt, u.ID.IsZero())
		assert.False(mt, u.CreatedAt.IsZero())
		assert.NotNil(mt, u.Messages)
	})
}

func TestMongoUserStore_FindByIdentifier(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("found", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, userDoc(id, "john", true)))

		u, err := mockStore(mt).FindByIdentifier(ctx, "john")
		require.NoError(mt, err)
		assert.Equal(mt, id, u.ID)
		assert.Equal(mt, "john", u.Username)
		assert.True(mt, u.IsAcceptingMessages)
	})

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := mockStore(mt).FindByIdentifier(ctx, "ghost")
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}
