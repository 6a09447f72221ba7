package model

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/internal/apperror"
)

type Message struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Sender    primitive.ObjectID `bson:"sender" json:"sender"`
	Text      string             `bson:"text" json:"text"`
	IsRead    bool               `bson:"is_read" json:"isRead"`
	Timestamp primitive.DateTime `bson:"timestamp" json:"timestamp"`
}

func NewMessage(sender primitive.ObjectID, text string, now time.Time) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, apperror.Validation("Message text is required")
	}
	return Message{
		ID:        primitive.NewObjectIDFromTimestamp(now),
		Sender:    sender,
		Text:      text,
		Timestamp: primitive.NewDateTimeFromTime(now),
	}, nil
}

type Chat struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Participants []primitive.ObjectID `bson:"participants" json:"participants"`
	PairKey      string               `bson:"pair_key" json:"-"`
	Messages     []Message            `bson:"messages" json:"messages"`
	CreatedAt    primitive.DateTime   `bson:"created_at" json:"createdAt"`
	UpdatedAt    primitive.DateTime   `bson:"updated_at" json:"updatedAt"`
}

// PairKey is identical for (a, b) and (b, a).
func PairKey(a, b primitive.ObjectID) string {
	x, y := a.Hex(), b.Hex()
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}

func NewChat(a, b primitive.ObjectID, now time.Time) Chat {
	return Chat{
		Participants: []primitive.ObjectID{a, b},
		PairKey:      PairKey(a, b),
		Messages:     []Message{},
		CreatedAt:    primitive.NewDateTimeFromTime(now),
		UpdatedAt:    primitive.NewDateTimeFromTime(now),
	}
}

func (c Chat) HasParticipant(userID primitive.ObjectID) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not userID.
func (c Chat) OtherParticipant(userID primitive.ObjectID) primitive.ObjectID {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return primitive.NilObjectID
}

// MarkReadFor flags every message not sent by reader as read and reports
// whether any message changed.
func (c *Chat) MarkReadFor(reader primitive.ObjectID) bool {
	changed := false
	for i := range c.Messages {
		if c.Messages[i].Sender != reader && !c.Messages[i].IsRead {
			c.Messages[i].IsRead = true
			changed = true
		}
	}
	return changed
}

func (c Chat) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

func (c Chat) UnreadFor(reader primitive.ObjectID) int {
	n := 0
	for _, m := range c.Messages {
		if m.Sender != reader && !m.IsRead {
			n++
		}
	}
	return n
}
