package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"estatehub/internal/model"
)

func (db Database) ReminderInsert(ctx context.Context, r model.Reminder) (primitive.ObjectID, error) {
	r.Fired = false
	r.CreatedAt = primitive.NewDateTimeFromTime(time.Now())
	res, err := db.Collection(CollectionReminders).InsertOne(ctx, r)
	if err != nil {
		return primitive.NilObjectID, errors.Wrapf(err, "error inserting Reminder for User: %s", r.UserID.Hex())
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func (db Database) RemindersFindByUser(ctx context.Context, userID primitive.ObjectID) ([]model.Reminder, error) {
	cur, err := db.Collection(CollectionReminders).Find(
		ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "due_at", Value: 1}}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "error finding Reminders of User: %s", userID.Hex())
	}
	rs := []model.Reminder{}
	err = cur.All(ctx, &rs)
	return rs, errors.Wrapf(err, "error decoding Reminders of User: %s", userID.Hex())
}

// ReminderClaimDue atomically marks the oldest due, unfired reminder as fired
// and returns it. It returns ErrNotFound when nothing is due.
func (db Database) ReminderClaimDue(ctx context.Context, now time.Time) (model.Reminder, error) {
	var r model.Reminder
	at := primitive.NewDateTimeFromTime(now)
	err := db.Collection(CollectionReminders).FindOneAndUpdate(
		ctx,
		bson.M{"fired": false, "due_at": bson.M{"$lte": at}},
		bson.M{"$set": bson.M{"fired": true, "fired_at": at}},
		options.FindOneAndUpdate().
			SetSort(bson.D{{Key: "due_at", Value: 1}}).
			SetReturnDocument(options.After),
	).Decode(&r)
	return r, classify(err, "error claiming due Reminder")
}
