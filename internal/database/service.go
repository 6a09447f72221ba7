package database

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"estatehub/internal/model"
)

func (db Database) ServiceRequestInsert(ctx context.Context, r model.ServiceRequest) (primitive.ObjectID, error) {
	res, err := db.Collection(CollectionServiceRequests).InsertOne(ctx, r)
	if err != nil {
		return primitive.NilObjectID, errors.Wrapf(err, "error inserting ServiceRequest for User: %s", r.UserID.Hex())
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func (db Database) ServiceRequestsFindByUser(ctx context.Context, userID primitive.ObjectID) ([]model.ServiceRequest, error) {
	cur, err := db.Collection(CollectionServiceRequests).Find(
		ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "error finding ServiceRequests of User: %s", userID.Hex())
	}
	rs := []model.ServiceRequest{}
	err = cur.All(ctx, &rs)
	return rs, errors.Wrapf(err, "error decoding ServiceRequests of User: %s", userID.Hex())
}
