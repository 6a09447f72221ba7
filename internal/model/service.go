package model

import "go.mongodb.org/mongo-driver/bson/primitive"

const ServiceStatusPending = "Pending"

type ServiceRequest struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"userId"`
	PropertyID  primitive.ObjectID `bson:"property_id" json:"propertyId"`
	ServiceType string             `bson:"service_type" json:"serviceType" validate:"required,oneof=cleaning plumbing electrical painting pest-control shifting"`
	ScheduledAt primitive.DateTime `bson:"scheduled_at" json:"scheduledAt"`
	DistanceKm  float64            `bson:"distance_km" json:"distanceKm"`
	Price       float64            `bson:"price" json:"price"`
	Status      string             `bson:"status" json:"status"`
	CreatedAt   primitive.DateTime `bson:"created_at" json:"createdAt"`
}
