package model

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/internal/apperror"
)

type ListMode string

const (
	ListMine      ListMode = "mine"
	ListOthers    ListMode = "allOther"
	ListSold      ListMode = "sold"
	ListMySold    ListMode = "my-sold"
	ListRent      ListMode = "rent"
	ListMyRent    ListMode = "my-rent"
	ListOtherRent ListMode = "other-rent"
	ListMySell    ListMode = "my-sell-properties"
)

// PropertyQuery is a storage-agnostic property filter. Zero fields match anything.
type PropertyQuery struct {
	OwnerID         *primitive.ObjectID
	NotOwnerID      *primitive.ObjectID
	Purpose         Purpose
	NotPurpose      Purpose
	Sold            *bool
	PropertyType    PropertyType
	CommercialType  string
	ResidentialType string
}

func (q PropertyQuery) Matches(p Property) bool {
	switch {
	case q.OwnerID != nil && p.OwnerID != *q.OwnerID:
		return false
	case q.NotOwnerID != nil && p.OwnerID == *q.NotOwnerID:
		return false
	case q.Purpose != "" && p.Purpose != q.Purpose:
		return false
	case q.NotPurpose != "" && p.Purpose == q.NotPurpose:
		return false
	case q.Sold != nil && p.IsSold != *q.Sold:
		return false
	case q.PropertyType != "" && p.PropertyType != q.PropertyType:
		return false
	case q.CommercialType != "" && p.CommercialType != q.CommercialType:
		return false
	case q.ResidentialType != "" && p.ResidentialType != q.ResidentialType:
		return false
	}
	return true
}

// ListQuery builds the visibility filter a viewer gets for mode.
func ListQuery(mode ListMode, viewer primitive.ObjectID) (PropertyQuery, error) {
	if viewer.IsZero() {
		return PropertyQuery{}, apperror.Authentication("Authentication required")
	}
	sold := true
	switch mode {
	case ListMine:
		return PropertyQuery{OwnerID: &viewer}, nil
	case ListOthers:
		// Rent/Lease listings stay out of the general feed.
		return PropertyQuery{NotOwnerID: &viewer, NotPurpose: PurposeRentLease}, nil
	case ListSold:
		return PropertyQuery{Sold: &sold}, nil
	case ListMySold:
		return PropertyQuery{Sold: &sold, OwnerID: &viewer}, nil
	case ListRent:
		return PropertyQuery{Purpose: PurposeRentLease}, nil
	case ListMyRent:
		return PropertyQuery{Purpose: PurposeRentLease, OwnerID: &viewer}, nil
	case ListOtherRent:
		return PropertyQuery{Purpose: PurposeRentLease, NotOwnerID: &viewer}, nil
	case ListMySell:
		return PropertyQuery{Purpose: PurposeSell, OwnerID: &viewer}, nil
	}
	return PropertyQuery{}, apperror.NotFound("Listing")
}

// CategoryQuery maps a category path segment such as "apartment" or "office"
// to its property type and sub-type. ok is false for unknown categories.
func CategoryQuery(category string) (q PropertyQuery, ok bool) {
	c := strings.ToLower(strings.TrimSpace(category))
	switch {
	case residentialTypes[c]:
		return PropertyQuery{PropertyType: Residential, ResidentialType: c}, true
	case commercialTypes[c]:
		return PropertyQuery{PropertyType: Commercial, CommercialType: c}, true
	}
	return PropertyQuery{}, false
}

func FilterProperties(ps []Property, q PropertyQuery) []Property {
	out := make([]Property, 0, len(ps))
	for _, p := range ps {
		if q.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}
