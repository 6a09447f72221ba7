package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/internal/model"
)

func (db Database) UserInsert(ctx context.Context, u model.User) (primitive.ObjectID, error) {
	u.LoginTokens = []model.LoginToken{}
	u.CreatedAt = primitive.NewDateTimeFromTime(time.Now())
	u.UpdatedAt = primitive.NewDateTimeFromTime(time.Now())

	r, err := db.Collection(CollectionUsers).InsertOne(ctx, u)
	if err != nil {
		return primitive.NilObjectID, classify(err, "error inserting User with email: %s", u.Email)
	}
	return r.InsertedID.(primitive.ObjectID), nil
}

func (db Database) UserFindByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := db.Collection(CollectionUsers).FindOne(ctx, bson.M{"email": email}).Decode(&u)
	return u, classify(err, "error finding User with email: %s", email)
}

func (db Database) UserFindByID(ctx context.Context, id primitive.ObjectID) (model.User, error) {
	var u model.User
	err := db.Collection(CollectionUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	return u, classify(err, "error finding User with ID: %s", id.Hex())
}

func (db Database) UserAddLoginToken(ctx context.Context, userID primitive.ObjectID, lt model.LoginToken) error {
	lt.CreatedAt = primitive.NewDateTimeFromTime(time.Now())

	res, err := db.Collection(CollectionUsers).UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$push": bson.M{
			"login_tokens": bson.M{
				"$each":     []model.LoginToken{lt},
				"$position": 0,
				"$slice":    8,
			},
		}},
	)
	if err != nil {
		return errors.Wrapf(err, "error when adding login token to User with ID: %s", userID.Hex())
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNotFound, "adding login token to User with ID: %s", userID.Hex())
	}
	return nil
}

func (db Database) UserRemoveLoginToken(ctx context.Context, userID primitive.ObjectID, tokenID string) error {
	res, err := db.Collection(CollectionUsers).UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"login_tokens": bson.M{"token_id": tokenID}}},
	)
	if err != nil {
		return errors.Wrapf(err, "error when removing login token from User with ID: %s, token ID: %s", userID.Hex(), tokenID)
	}
	if res.ModifiedCount == 0 {
		return errors.Wrapf(ErrNoDocumentsModified, "removing login token from User with ID: %s, token ID: %s", userID.Hex(), tokenID)
	}
	return nil
}

// UserPasswordUpdate replaces the password hash and revokes every login token.
func (db Database) UserPasswordUpdate(ctx context.Context, userID primitive.ObjectID, hash []byte) error {
	res, err := db.Collection(CollectionUsers).UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{
			"password":     hash,
			"login_tokens": []model.LoginToken{},
			"updated_at":   primitive.NewDateTimeFromTime(time.Now()),
		}},
	)
	if err != nil {
		return errors.Wrapf(err, "error updating password of User with ID: %s", userID.Hex())
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNotFound, "updating password of User with ID: %s", userID.Hex())
	}
	return nil
}

func (db Database) UserFCMTokenUpdate(ctx context.Context, userID primitive.ObjectID, token string) error {
	res, err := db.Collection(CollectionUsers).UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{
			"fcm_token":  token,
			"updated_at": primitive.NewDateTimeFromTime(time.Now()),
		}},
	)
	if err != nil {
		return errors.Wrapf(err, "error updating FCM token of User with ID: %s", userID.Hex())
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNotFound, "updating FCM token of User with ID: %s", userID.Hex())
	}
	return nil
}

// UserFCMTokensExcept returns the distinct non-empty push tokens of every user
// other than exclude.
func (db Database) UserFCMTokensExcept(ctx context.Context, exclude primitive.ObjectID) ([]string, error) {
	vals, err := db.Collection(CollectionUsers).Distinct(ctx, "fcm_token", bson.M{
		"_id":       bson.M{"$ne": exclude},
		"fcm_token": bson.M{"$nin": bson.A{"", nil}},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error finding FCM tokens excluding User with ID: %s", exclude.Hex())
	}

	tokens := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok && s != "" {
			tokens = append(tokens, s)
		}
	}
	return tokens, nil
}

// UserCounterIncrement atomically adds delta to one of the user's counters.
func (db Database) UserCounterIncrement(ctx context.Context, userID primitive.ObjectID, c model.UserCounter, delta int) error {
	res, err := db.Collection(CollectionUsers).UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$inc": bson.M{string(c): delta}},
	)
	if err != nil {
		return errors.Wrapf(err, "error incrementing %s of User with ID: %s", c, userID.Hex())
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNotFound, "incrementing %s of User with ID: %s", c, userID.Hex())
	}
	return nil
}
