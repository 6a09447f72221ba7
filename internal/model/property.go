package model

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/internal/apperror"
	"estatehub/internal/geo"
)

type (
	Availability string
	Furnishing   string
	Parking      string
	Purpose      string
	PropertyType string
)

const (
	ReadyToMove       Availability = "Ready-to-Move"
	UnderConstruction Availability = "Under-Construction"

	Furnished     Furnishing = "Furnished"
	SemiFurnished Furnishing = "Semi-Furnished"
	Unfurnished   Furnishing = "Unfurnished"

	ParkingAvailable    Parking = "Available"
	ParkingNotAvailable Parking = "Not-Available"

	PurposeSell        Purpose = "Sell"
	PurposeRentLease   Purpose = "Rent/Lease"
	PurposePayingGuest Purpose = "Paying-Guest"

	Residential PropertyType = "Residential"
	Commercial  PropertyType = "Commercial"
)

var residentialTypes = map[string]bool{
	"apartment":         true,
	"villa":             true,
	"independent-house": true,
	"builder-floor":     true,
	"plot":              true,
	"farmhouse":         true,
}

var commercialTypes = map[string]bool{
	"office":          true,
	"shop":            true,
	"showroom":        true,
	"warehouse":       true,
	"commercial-land": true,
}

// GeoPoint is a GeoJSON point, coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

func NewGeoPoint(p geo.Point) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{p.Lng, p.Lat}}
}

func (g GeoPoint) Point() geo.Point {
	if len(g.Coordinates) != 2 {
		return geo.Point{}
	}
	return geo.Point{Lat: g.Coordinates[1], Lng: g.Coordinates[0]}
}

type Visit struct {
	UserID    primitive.ObjectID `bson:"user_id" json:"userId"`
	VisitedAt primitive.DateTime `bson:"visited_at" json:"visitedAt"`
}

// PropertyDetails are the owner-editable listing attributes.
type PropertyDetails struct {
	Address         string       `bson:"address" json:"address" validate:"required"`
	Area            float64      `bson:"area" json:"area" validate:"gt=0"`
	Availability    Availability `bson:"availability" json:"availability" validate:"required,oneof=Ready-to-Move Under-Construction"`
	Price           float64      `bson:"price" json:"price" validate:"gt=0"`
	Description     string       `bson:"description" json:"description" validate:"required"`
	Furnishing      Furnishing   `bson:"furnishing" json:"furnishing" validate:"required,oneof=Furnished Semi-Furnished Unfurnished"`
	Parking         Parking      `bson:"parking" json:"parking" validate:"required,oneof=Available Not-Available"`
	Purpose         Purpose      `bson:"purpose" json:"purpose" validate:"required,oneof=Sell Rent/Lease Paying-Guest"`
	PropertyType    PropertyType `bson:"property_type" json:"propertyType" validate:"required,oneof=Residential Commercial"`
	CommercialType  string       `bson:"commercial_type,omitempty" json:"commercialType,omitempty"`
	ResidentialType string       `bson:"residential_type,omitempty" json:"residentialType,omitempty"`
	Phone           string       `bson:"phone" json:"phone" validate:"required,phone"`
}

// Normalize trims free text and lowercases the sub-category.
func (d *PropertyDetails) Normalize() {
	d.Address = strings.TrimSpace(d.Address)
	d.Description = strings.TrimSpace(d.Description)
	d.Phone = strings.TrimSpace(d.Phone)
	d.CommercialType = strings.ToLower(strings.TrimSpace(d.CommercialType))
	d.ResidentialType = strings.ToLower(strings.TrimSpace(d.ResidentialType))
}

// Validate enforces field formats and that exactly one sub-category is set,
// matching PropertyType.
func (d PropertyDetails) Validate() error {
	if err := Validate(d); err != nil {
		return err
	}
	switch d.PropertyType {
	case Commercial:
		if !commercialTypes[d.CommercialType] {
			return apperror.Validation("Invalid commercialType")
		}
		if d.ResidentialType != "" {
			return apperror.Validation("Invalid residentialType")
		}
	case Residential:
		if !residentialTypes[d.ResidentialType] {
			return apperror.Validation("Invalid residentialType")
		}
		if d.CommercialType != "" {
			return apperror.Validation("Invalid commercialType")
		}
	}
	return nil
}

type Property struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID         primitive.ObjectID `bson:"owner_id" json:"ownerId"`
	PropertyDetails `bson:",inline"`
	Location        GeoPoint           `bson:"location" json:"location"`
	Photos          []string           `bson:"photos" json:"photos"`
	IsSold          bool               `bson:"is_sold" json:"isSold"`
	VisitCount      int                `bson:"visit_count" json:"visitCount"`
	VisitedBy       []Visit            `bson:"visited_by" json:"visitedBy"`
	CreatedAt       primitive.DateTime `bson:"created_at" json:"createdAt"`
	UpdatedAt       primitive.DateTime `bson:"updated_at" json:"updatedAt"`
}

func NewProperty(owner primitive.ObjectID, d PropertyDetails, loc geo.Point, photos []string, now time.Time) Property {
	if photos == nil {
		photos = []string{}
	}
	return Property{
		OwnerID:         owner,
		PropertyDetails: d,
		Location:        NewGeoPoint(loc),
		Photos:          photos,
		VisitedBy:       []Visit{},
		CreatedAt:       primitive.NewDateTimeFromTime(now),
		UpdatedAt:       primitive.NewDateTimeFromTime(now),
	}
}

func (p Property) OwnedBy(userID primitive.ObjectID) bool {
	return p.OwnerID == userID
}

func (p Property) VisitedByUser(userID primitive.ObjectID) bool {
	for _, v := range p.VisitedBy {
		if v.UserID == userID {
			return true
		}
	}
	return false
}

// RecordVisit counts every view and appends userID to VisitedBy only once.
// It reports whether this was the user's first visit.
func (p *Property) RecordVisit(userID primitive.ObjectID, at time.Time) bool {
	p.VisitCount++
	if p.VisitedByUser(userID) {
		return false
	}
	p.VisitedBy = append(p.VisitedBy, Visit{UserID: userID, VisitedAt: primitive.NewDateTimeFromTime(at)})
	return true
}
