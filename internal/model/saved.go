package model

import "go.mongodb.org/mongo-driver/bson/primitive"

type SavedProperty struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"user_id" json:"userId"`
	PropertyID primitive.ObjectID `bson:"property_id" json:"propertyId"`
	CreatedAt  primitive.DateTime `bson:"created_at" json:"createdAt"`
}
