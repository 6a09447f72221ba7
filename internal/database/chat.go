package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"estatehub/internal/model"
)

// ChatFindOrCreate returns the single chat between a and b, creating it on
// first contact. The unique pair_key index keeps concurrent callers on one
// document.
func (db Database) ChatFindOrCreate(ctx context.Context, a, b primitive.ObjectID) (model.Chat, error) {
	c := model.NewChat(a, b, time.Now())
	coll := db.Collection(CollectionChats)

	filter, update := chatUpsert(c)
	var out model.Chat
	err := coll.FindOneAndUpdate(
		ctx,
		filter,
		update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	if mongo.IsDuplicateKeyError(err) {
		// lost the upsert race, the other writer's document is there now
		err = coll.FindOne(ctx, filter).Decode(&out)
	}
	return out, classify(err, "error finding or creating Chat: %s", c.PairKey)
}

// chatUpsert matches on the unordered pair key and only writes the new chat
// when no document exists for the pair.
func chatUpsert(c model.Chat) (bson.M, bson.M) {
	return bson.M{"pair_key": c.PairKey}, bson.M{"$setOnInsert": c}
}

func (db Database) ChatFindByID(ctx context.Context, id primitive.ObjectID) (model.Chat, error) {
	var c model.Chat
	err := db.Collection(CollectionChats).FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	return c, classify(err, "error finding Chat with ID: %s", id.Hex())
}

// ChatsFindByParticipant returns the user's chats, most recently active first.
func (db Database) ChatsFindByParticipant(ctx context.Context, userID primitive.ObjectID) ([]model.Chat, error) {
	cur, err := db.Collection(CollectionChats).Find(
		ctx,
		bson.M{"participants": userID},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "error finding Chats of User: %s", userID.Hex())
	}
	cs := []model.Chat{}
	err = cur.All(ctx, &cs)
	return cs, errors.Wrapf(err, "error decoding Chats of User: %s", userID.Hex())
}

func (db Database) ChatMessageAppend(ctx context.Context, chatID primitive.ObjectID, m model.Message) error {
	res, err := db.Collection(CollectionChats).UpdateOne(
		ctx,
		bson.M{"_id": chatID},
		bson.M{
			"$push": bson.M{"messages": m},
			"$set":  bson.M{"updated_at": m.Timestamp},
		},
	)
	if err != nil {
		return errors.Wrapf(err, "error appending Message to Chat: %s", chatID.Hex())
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNotFound, "appending Message to Chat: %s", chatID.Hex())
	}
	return nil
}

// ChatMessagesMarkRead flags every unread message not sent by reader as
// read. The filter only matches when something would change, so a chat with
// nothing to mark is not written.
func (db Database) ChatMessagesMarkRead(ctx context.Context, chatID, reader primitive.ObjectID) (bool, error) {
	filter, update, arrayFilters := markReadUpdate(chatID, reader, time.Now())
	res, err := db.Collection(CollectionChats).UpdateOne(
		ctx,
		filter,
		update,
		options.Update().SetArrayFilters(arrayFilters),
	)
	if err != nil {
		return false, errors.Wrapf(err, "error marking Messages read in Chat: %s", chatID.Hex())
	}
	return res.ModifiedCount > 0, nil
}

func markReadUpdate(chatID, reader primitive.ObjectID, now time.Time) (bson.M, bson.M, options.ArrayFilters) {
	filter := bson.M{
		"_id":      chatID,
		"messages": bson.M{"$elemMatch": bson.M{"sender": bson.M{"$ne": reader}, "is_read": false}},
	}
	update := bson.M{"$set": bson.M{
		"messages.$[m].is_read": true,
		"updated_at":            primitive.NewDateTimeFromTime(now),
	}}
	arrayFilters := options.ArrayFilters{Filters: []interface{}{
		bson.M{"m.sender": bson.M{"$ne": reader}, "m.is_read": false},
	}}
	return filter, update, arrayFilters
}

func (db Database) ChatDelete(ctx context.Context, id primitive.ObjectID) error {
	res, err := db.Collection(CollectionChats).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrapf(err, "error deleting Chat with ID: %s", id.Hex())
	}
	if res.DeletedCount == 0 {
		return errors.Wrapf(ErrNotFound, "deleting Chat with ID: %s", id.Hex())
	}
	return nil
}
