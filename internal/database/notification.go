package database

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"estatehub/internal/model"
)

const notificationsLimit = 100

func (db Database) NotificationInsert(ctx context.Context, n model.Notification) (primitive.ObjectID, error) {
	res, err := db.Collection(CollectionNotifications).InsertOne(ctx, n)
	if err != nil {
		return primitive.NilObjectID, errors.Wrapf(err, "error inserting Notification for User: %s", n.UserID.Hex())
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

// NotificationsFindByUser returns the user's latest notifications, newest first.
func (db Database) NotificationsFindByUser(ctx context.Context, userID primitive.ObjectID) ([]model.Notification, error) {
	cur, err := db.Collection(CollectionNotifications).Find(
		ctx,
		bson.M{"user_id": userID},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(notificationsLimit),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "error finding Notifications of User: %s", userID.Hex())
	}
	ns := []model.Notification{}
	err = cur.All(ctx, &ns)
	return ns, errors.Wrapf(err, "error decoding Notifications of User: %s", userID.Hex())
}
