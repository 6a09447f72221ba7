package model

import "go.mongodb.org/mongo-driver/bson/primitive"

type Reminder struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"userId"`
	Title     string             `bson:"title" json:"title"`
	Body      string             `bson:"body" json:"body"`
	DueAt     primitive.DateTime `bson:"due_at" json:"dueAt"`
	Fired     bool               `bson:"fired" json:"fired"`
	FiredAt   primitive.DateTime `bson:"fired_at,omitempty" json:"firedAt,omitempty"`
	CreatedAt primitive.DateTime `bson:"created_at" json:"createdAt"`
}

const NotificationReminder = "reminder"

type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"userId"`
	Kind      string             `bson:"kind" json:"kind"`
	Title     string             `bson:"title" json:"title"`
	Body      string             `bson:"body" json:"body"`
	RefID     primitive.ObjectID `bson:"ref_id,omitempty" json:"refId,omitempty"`
	IsRead    bool               `bson:"is_read" json:"isRead"`
	CreatedAt primitive.DateTime `bson:"created_at" json:"createdAt"`
}
