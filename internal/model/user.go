package model

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserCounter string

const (
	CounterListings    UserCounter = "listings_count"
	CounterShortlisted UserCounter = "shortlisted_count"
	CounterEnquiries   UserCounter = "enquiries_count"
)

type Address struct {
	Street  string `bson:"street" json:"street"`
	City    string `bson:"city" json:"city"`
	State   string `bson:"state" json:"state"`
	PinCode string `bson:"pin_code" json:"pinCode" validate:"omitempty,numeric,len=6"`
}

// String joins the non-empty parts into a geocodable line.
func (a Address) String() string {
	var parts []string
	for _, s := range []string{a.Street, a.City, a.State, a.PinCode} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

type User struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name             string             `bson:"name" json:"name"`
	Email            string             `bson:"email" json:"email"`
	Password         []byte             `bson:"password" json:"-"`
	Phone            string             `bson:"phone" json:"phone"`
	Address          Address            `bson:"address" json:"address"`
	FCMToken         string             `bson:"fcm_token" json:"-"`
	LoginTokens      []LoginToken       `bson:"login_tokens" json:"-"`
	ListingsCount    int                `bson:"listings_count" json:"listingsCount"`
	ShortlistedCount int                `bson:"shortlisted_count" json:"shortlistedCount"`
	EnquiriesCount   int                `bson:"enquiries_count" json:"enquiriesCount"`
	CreatedAt        primitive.DateTime `bson:"created_at" json:"createdAt"`
	UpdatedAt        primitive.DateTime `bson:"updated_at" json:"updatedAt"`
}

type LoginToken struct {
	TokenID    string             `bson:"token_id"`
	Token      []byte             `bson:"token"`
	Expiration primitive.DateTime `bson:"expiration"`
	CreatedAt  primitive.DateTime `bson:"created_at"`
}

func (u *User) Counter(c UserCounter) int {
	switch c {
	case CounterListings:
		return u.ListingsCount
	case CounterShortlisted:
		return u.ShortlistedCount
	case CounterEnquiries:
		return u.EnquiriesCount
	}
	return 0
}

func (u *User) AddToCounter(c UserCounter, delta int) {
	switch c {
	case CounterListings:
		u.ListingsCount += delta
	case CounterShortlisted:
		u.ShortlistedCount += delta
	case CounterEnquiries:
		u.EnquiriesCount += delta
	}
}
