package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.mongodb.org/mongo-driver/mongo/options"

	"estatehub/internal/model"
)

func TestChatUpsert(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	now := time.Now()

	abFilter, abUpdate := chatUpsert(model.NewChat(a, b, now))
	baFilter, _ := chatUpsert(model.NewChat(b, a, now))
	assert.Equal(t, abFilter, baFilter)
	assert.Equal(t, bson.M{"pair_key": model.PairKey(a, b)}, abFilter)
	assert.Equal(t, bson.M{"$setOnInsert": model.NewChat(a, b, now)}, abUpdate)
}

func TestMarkReadUpdate(t *testing.T) {
	chatID, reader := primitive.NewObjectID(), primitive.NewObjectID()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	filter, update, arrayFilters := markReadUpdate(chatID, reader, now)
	assert.Equal(t, bson.M{
		"_id":      chatID,
		"messages": bson.M{"$elemMatch": bson.M{"sender": bson.M{"$ne": reader}, "is_read": false}},
	}, filter)
	assert.Equal(t, bson.M{"$set": bson.M{
		"messages.$[m].is_read": true,
		"updated_at":            primitive.NewDateTimeFromTime(now),
	}}, update)
	assert.Equal(t, options.ArrayFilters{Filters: []interface{}{
		bson.M{"m.sender": bson.M{"$ne": reader}, "m.is_read": false},
	}}, arrayFilters)
}

func chatDoc(id, a, b primitive.ObjectID) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "participants", Value: bson.A{a, b}},
		{Key: "pair_key", Value: model.PairKey(a, b)},
		{Key: "messages", Value: bson.A{}},
	}
}

func TestChatFindOrCreate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	a, b, id := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	mt.Run("same pair key either way round", func(mt *mtest.T) {
		found := mtest.CreateSuccessResponse(bson.E{Key: "value", Value: chatDoc(id, a, b)})
		mt.AddMockResponses(found, found)

		db := Database{mt.DB}
		ab, err := db.ChatFindOrCreate(context.Background(), a, b)
		require.NoError(mt, err)
		ba, err := db.ChatFindOrCreate(context.Background(), b, a)
		require.NoError(mt, err)
		assert.Equal(mt, id, ab.ID)
		assert.Equal(mt, ab.ID, ba.ID)

		var keys []string
		for i := 0; i < 2; i++ {
			ev := mt.GetStartedEvent()
			require.NotNil(mt, ev)
			require.Equal(mt, "findAndModify", ev.CommandName)
			assert.True(mt, ev.Command.Lookup("upsert").Boolean())
			keys = append(keys, ev.Command.Lookup("query", "pair_key").StringValue())
		}
		assert.Equal(mt, []string{model.PairKey(a, b), model.PairKey(a, b)}, keys)
	})

	mt.Run("lost upsert race reads the winner", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11000, Message: "E11000 duplicate key error", Name: "DuplicateKey"}),
			mtest.CreateCursorResponse(0, "estatehub.chats", mtest.FirstBatch, chatDoc(id, a, b)),
		)

		c, err := Database{mt.DB}.ChatFindOrCreate(context.Background(), b, a)
		require.NoError(mt, err)
		assert.Equal(mt, id, c.ID)
	})
}

func TestChatMessagesMarkRead(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	chatID, reader := primitive.NewObjectID(), primitive.NewObjectID()

	mt.Run("unread messages", func(mt *mtest.T) {
		mt.AddMockResponses(updated(1, 1))

		changed, err := Database{mt.DB}.ChatMessagesMarkRead(context.Background(), chatID, reader)
		require.NoError(mt, err)
		assert.True(mt, changed)

		q, _ := sentUpdate(mt)
		assert.Equal(mt, reader, q.Lookup("messages", "$elemMatch", "sender", "$ne").ObjectID())
	})

	mt.Run("nothing to mark", func(mt *mtest.T) {
		mt.AddMockResponses(updated(0, 0))

		changed, err := Database{mt.DB}.ChatMessagesMarkRead(context.Background(), chatID, reader)
		require.NoError(mt, err)
		assert.False(mt, changed)
	})
}
