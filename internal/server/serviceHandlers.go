package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/internal/apperror"
	"estatehub/internal/geo"
	"estatehub/internal/model"
)

// serviceBook prices a service visit by haversine distance from the service
// hub to the property.
func (s Server) serviceBook() http.HandlerFunc {
	type request struct {
		PropertyID  string    `json:"propertyId" validate:"required"`
		ServiceType string    `json:"serviceType" validate:"required,oneof=cleaning plumbing electrical painting pest-control shifting"`
		ScheduledAt time.Time `json:"scheduledAt" validate:"required"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "serviceBook", err)
			return
		}
		req := request{}
		if err = decodeJSON(r, &req); err != nil {
			s.writeError(w, r, "serviceBook", err)
			return
		}
		req.ServiceType = strings.ToLower(strings.TrimSpace(req.ServiceType))
		if err = model.Validate(req); err != nil {
			s.writeError(w, r, "serviceBook", err)
			return
		}
		propertyID, err := primitive.ObjectIDFromHex(req.PropertyID)
		if err != nil {
			s.writeError(w, r, "serviceBook", apperror.Validation("Invalid propertyId"))
			return
		}
		p, err := s.DB.PropertyFindByID(r.Context(), propertyID)
		if err != nil {
			s.writeError(w, r, "serviceBook", storeError(err, "Property"))
			return
		}

		loc := p.Location.Point()
		if loc.IsZero() {
			s.writeError(w, r, "serviceBook", apperror.Validation("Property location is not resolved"))
			return
		}
		quote, err := s.Settings.ServicePricing.Quote(loc)
		if errors.Is(err, geo.ErrTooFar) {
			s.writeError(w, r, "serviceBook", apperror.Validation("Property is outside the service area"))
			return
		}
		if err != nil {
			s.writeError(w, r, "serviceBook", err)
			return
		}

		sr := model.ServiceRequest{
			UserID:      uc.user.ID,
			PropertyID:  p.ID,
			ServiceType: req.ServiceType,
			ScheduledAt: primitive.NewDateTimeFromTime(req.ScheduledAt),
			DistanceKm:  quote.DistanceKm,
			Price:       quote.Price,
			Status:      model.ServiceStatusPending,
			CreatedAt:   primitive.NewDateTimeFromTime(time.Now()),
		}
		if sr.ID, err = s.DB.ServiceRequestInsert(r.Context(), sr); err != nil {
			s.writeError(w, r, "serviceBook", storeError(err, "Service request"))
			return
		}
		s.writeData(w, "Service booked", sr, http.StatusCreated)
	}
}

func (s Server) serviceList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "serviceList", err)
			return
		}
		rs, err := s.DB.ServiceRequestsFindByUser(r.Context(), uc.user.ID)
		if err != nil {
			s.writeError(w, r, "serviceList", storeError(err, "Service request"))
			return
		}
		s.writeData(w, "", rs, http.StatusOK)
	}
}
