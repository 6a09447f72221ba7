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

// SavedPropertyInsert fails with ErrDuplicate when the user already saved the
// property.
func (db Database) SavedPropertyInsert(ctx context.Context, userID, propertyID primitive.ObjectID) (model.SavedProperty, error) {
	s := model.SavedProperty{
		UserID:     userID,
		PropertyID: propertyID,
		CreatedAt:  primitive.NewDateTimeFromTime(time.Now()),
	}
	r, err := db.Collection(CollectionSavedProperties).InsertOne(ctx, s)
	if err != nil {
		return s, classify(err, "error saving Property: %s for User: %s", propertyID.Hex(), userID.Hex())
	}
	s.ID = r.InsertedID.(primitive.ObjectID)
	return s, nil
}

// SavedPropertyDelete reports whether a saved entry existed.
func (db Database) SavedPropertyDelete(ctx context.Context, userID, propertyID primitive.ObjectID) (bool, error) {
	res, err := db.Collection(CollectionSavedProperties).DeleteOne(ctx, bson.M{
		"user_id":     userID,
		"property_id": propertyID,
	})
	if err != nil {
		return false, errors.Wrapf(err, "error unsaving Property: %s for User: %s", propertyID.Hex(), userID.Hex())
	}
	return res.DeletedCount > 0, nil
}

func (db Database) SavedPropertiesFind(ctx context.Context, userID primitive.ObjectID) ([]model.SavedProperty, error) {
	cur, err := db.Collection(CollectionSavedProperties).Find(
		ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "error finding saved Properties of User: %s", userID.Hex())
	}
	ss := []model.SavedProperty{}
	err = cur.All(ctx, &ss)
	return ss, errors.Wrapf(err, "error decoding saved Properties of User: %s", userID.Hex())
}
