package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"estatehub/internal/geo"
	"estatehub/internal/model"
)

// propertyFilter translates a model.PropertyQuery into a mongo filter.
func propertyFilter(q model.PropertyQuery) bson.M {
	f := bson.M{}

	owner := bson.M{}
	if q.OwnerID != nil {
		owner["$eq"] = *q.OwnerID
	}
	if q.NotOwnerID != nil {
		owner["$ne"] = *q.NotOwnerID
	}
	if len(owner) > 0 {
		f["owner_id"] = owner
	}

	purpose := bson.M{}
	if q.Purpose != "" {
		purpose["$eq"] = q.Purpose
	}
	if q.NotPurpose != "" {
		purpose["$ne"] = q.NotPurpose
	}
	if len(purpose) > 0 {
		f["purpose"] = purpose
	}

	if q.Sold != nil {
		f["is_sold"] = *q.Sold
	}
	if q.PropertyType != "" {
		f["property_type"] = q.PropertyType
	}
	if q.CommercialType != "" {
		f["commercial_type"] = q.CommercialType
	}
	if q.ResidentialType != "" {
		f["residential_type"] = q.ResidentialType
	}
	return f
}

// nearFilter matches properties within radiusMeters of center, nearest first,
// excluding those owned by exclude.
func nearFilter(center geo.Point, radiusMeters float64, exclude primitive.ObjectID) bson.M {
	return bson.M{
		"location": bson.M{
			"$nearSphere": bson.M{
				"$geometry":    model.NewGeoPoint(center),
				"$maxDistance": radiusMeters,
			},
		},
		"owner_id": bson.M{"$ne": exclude},
	}
}

func decodeProperties(ctx context.Context, cur *mongo.Cursor) ([]model.Property, error) {
	ps := []model.Property{}
	if err := cur.All(ctx, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

func (db Database) PropertyInsert(ctx context.Context, p model.Property) (primitive.ObjectID, error) {
	r, err := db.Collection(CollectionProperties).InsertOne(ctx, p)
	if err != nil {
		return primitive.NilObjectID, errors.Wrapf(err, "error inserting Property of owner: %s", p.OwnerID.Hex())
	}
	return r.InsertedID.(primitive.ObjectID), nil
}

func (db Database) PropertyFindByID(ctx context.Context, id primitive.ObjectID) (model.Property, error) {
	var p model.Property
	err := db.Collection(CollectionProperties).FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	return p, classify(err, "error finding Property with ID: %s", id.Hex())
}

// PropertiesFind returns the properties matching q, newest first.
func (db Database) PropertiesFind(ctx context.Context, q model.PropertyQuery) ([]model.Property, error) {
	cur, err := db.Collection(CollectionProperties).Find(
		ctx,
		propertyFilter(q),
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "error finding Properties")
	}
	ps, err := decodeProperties(ctx, cur)
	return ps, errors.Wrap(err, "error decoding Properties")
}

func (db Database) PropertiesFindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]model.Property, error) {
	if len(ids) == 0 {
		return []model.Property{}, nil
	}
	cur, err := db.Collection(CollectionProperties).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, errors.Wrapf(err, "error finding %d Properties by ID", len(ids))
	}
	ps, err := decodeProperties(ctx, cur)
	return ps, errors.Wrap(err, "error decoding Properties")
}

func (db Database) PropertiesNear(ctx context.Context, center geo.Point, radiusMeters float64, exclude primitive.ObjectID) ([]model.Property, error) {
	cur, err := db.Collection(CollectionProperties).Find(ctx, nearFilter(center, radiusMeters, exclude))
	if err != nil {
		return nil, errors.Wrapf(err, "error finding Properties near %f,%f", center.Lat, center.Lng)
	}
	ps, err := decodeProperties(ctx, cur)
	return ps, errors.Wrap(err, "error decoding Properties")
}

// PropertyDetailsUpdate replaces the editable attributes and returns the
// updated document. loc is only written when non-nil.
func (db Database) PropertyDetailsUpdate(ctx context.Context, id primitive.ObjectID, d model.PropertyDetails, loc *geo.Point) (model.Property, error) {
	set := bson.M{
		"address":          d.Address,
		"area":             d.Area,
		"availability":     d.Availability,
		"price":            d.Price,
		"description":      d.Description,
		"furnishing":       d.Furnishing,
		"parking":          d.Parking,
		"purpose":          d.Purpose,
		"property_type":    d.PropertyType,
		"commercial_type":  d.CommercialType,
		"residential_type": d.ResidentialType,
		"phone":            d.Phone,
		"updated_at":       primitive.NewDateTimeFromTime(time.Now()),
	}
	if loc != nil {
		set["location"] = model.NewGeoPoint(*loc)
	}

	var p model.Property
	err := db.Collection(CollectionProperties).FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	return p, classify(err, "error updating Property with ID: %s", id.Hex())
}

// PropertySoldToggle flips is_sold in a single pipeline update.
func (db Database) PropertySoldToggle(ctx context.Context, id primitive.ObjectID) (model.Property, error) {
	var p model.Property
	err := db.Collection(CollectionProperties).FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		soldToggleUpdate(time.Now()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	return p, classify(err, "error toggling sold flag of Property with ID: %s", id.Hex())
}

func soldToggleUpdate(now time.Time) mongo.Pipeline {
	return mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"is_sold":    bson.M{"$not": bson.A{"$is_sold"}},
		"updated_at": primitive.NewDateTimeFromTime(now),
	}}}}
}

// PropertyDelete removes a property. With onlySold the delete only applies
// while the property is still marked as sold.
func (db Database) PropertyDelete(ctx context.Context, id primitive.ObjectID, onlySold bool) error {
	f := bson.M{"_id": id}
	if onlySold {
		f["is_sold"] = true
	}
	res, err := db.Collection(CollectionProperties).DeleteOne(ctx, f)
	if err != nil {
		return errors.Wrapf(err, "error deleting Property with ID: %s", id.Hex())
	}
	if res.DeletedCount == 0 {
		return errors.Wrapf(ErrNotFound, "deleting Property with ID: %s", id.Hex())
	}
	return nil
}

// PropertyVisitRecord increments the visit count and appends userID to
// visited_by unless already present. It reports whether this was the user's
// first visit.
func (db Database) PropertyVisitRecord(ctx context.Context, id, userID primitive.ObjectID, at time.Time) (bool, error) {
	coll := db.Collection(CollectionProperties)

	filter, update := firstVisitUpdate(id, userID, at)
	res, err := coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, errors.Wrapf(err, "error recording first visit of User: %s on Property: %s", userID.Hex(), id.Hex())
	}
	if res.ModifiedCount > 0 {
		return true, nil
	}

	filter, update = repeatVisitUpdate(id)
	res, err = coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, errors.Wrapf(err, "error recording visit of User: %s on Property: %s", userID.Hex(), id.Hex())
	}
	if res.MatchedCount == 0 {
		return false, errors.Wrapf(ErrNotFound, "recording visit on Property: %s", id.Hex())
	}
	return false, nil
}

// firstVisitUpdate only matches while userID is absent from visited_by.
func firstVisitUpdate(id, userID primitive.ObjectID, at time.Time) (bson.M, bson.M) {
	filter := bson.M{"_id": id, "visited_by.user_id": bson.M{"$ne": userID}}
	update := bson.M{
		"$push": bson.M{"visited_by": model.Visit{UserID: userID, VisitedAt: primitive.NewDateTimeFromTime(at)}},
		"$inc":  bson.M{"visit_count": 1},
	}
	return filter, update
}

func repeatVisitUpdate(id primitive.ObjectID) (bson.M, bson.M) {
	return bson.M{"_id": id}, bson.M{"$inc": bson.M{"visit_count": 1}}
}
