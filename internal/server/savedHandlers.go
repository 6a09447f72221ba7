package server

import (
	"net/http"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/internal/apperror"
	"estatehub/internal/database"
	"estatehub/internal/model"
)

func (s Server) savedAdd() http.HandlerFunc {
	type response struct {
		Saved   model.SavedProperty `json:"saved"`
		Warning string              `json:"warning,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "savedAdd", err)
			return
		}
		propertyID, err := pathID(r, "propertyId", "Property")
		if err != nil {
			s.writeError(w, r, "savedAdd", err)
			return
		}
		if _, err = s.DB.PropertyFindByID(r.Context(), propertyID); err != nil {
			s.writeError(w, r, "savedAdd", storeError(err, "Property"))
			return
		}

		sp, err := s.DB.SavedPropertyInsert(r.Context(), uc.user.ID, propertyID)
		if err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				s.writeError(w, r, "savedAdd", apperror.Conflict("Property already saved"))
				return
			}
			s.writeError(w, r, "savedAdd", storeError(err, "Saved property"))
			return
		}
		warning := s.adjustCounter(r.Context(), "savedAdd", tid, uc.user.ID, model.CounterShortlisted, 1)
		s.writeData(w, "Property saved", response{Saved: sp, Warning: warning}, http.StatusCreated)
	}
}

func (s Server) savedRemove() http.HandlerFunc {
	type response struct {
		Warning string `json:"warning,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "savedRemove", err)
			return
		}
		propertyID, err := pathID(r, "propertyId", "Saved property")
		if err != nil {
			s.writeError(w, r, "savedRemove", err)
			return
		}
		removed, err := s.DB.SavedPropertyDelete(r.Context(), uc.user.ID, propertyID)
		if err != nil {
			s.writeError(w, r, "savedRemove", storeError(err, "Saved property"))
			return
		}
		if !removed {
			s.writeError(w, r, "savedRemove", apperror.NotFound("Saved property"))
			return
		}
		warning := s.adjustCounter(r.Context(), "savedRemove", tid, uc.user.ID, model.CounterShortlisted, -1)
		s.writeData(w, "Property removed from saved", response{Warning: warning}, http.StatusOK)
	}
}

// savedList returns the saved properties in save order, newest first.
// Entries whose property has since been deleted are skipped.
func (s Server) savedList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "savedList", err)
			return
		}
		saved, err := s.DB.SavedPropertiesFind(r.Context(), uc.user.ID)
		if err != nil {
			s.writeError(w, r, "savedList", storeError(err, "Saved property"))
			return
		}
		ids := make([]primitive.ObjectID, 0, len(saved))
		for _, sp := range saved {
			ids = append(ids, sp.PropertyID)
		}
		ps, err := s.DB.PropertiesFindByIDs(r.Context(), ids)
		if err != nil {
			s.writeError(w, r, "savedList", storeError(err, "Property"))
			return
		}

		byID := make(map[primitive.ObjectID]model.Property, len(ps))
		for _, p := range ps {
			byID[p.ID] = p
		}
		out := make([]model.Property, 0, len(ids))
		for _, id := range ids {
			if p, ok := byID[id]; ok {
				out = append(out, p)
			}
		}
		s.writeData(w, "", propertiesResponse{Count: len(out), Properties: out}, http.StatusOK)
	}
}
