package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"estatehub/internal/model"
)

type propertiesResponse struct {
	Count      int              `json:"count"`
	Properties []model.Property `json:"properties"`
}

func (s Server) propertiesList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "propertiesList", err)
			return
		}
		q, err := model.ListQuery(model.ListMode(mux.Vars(r)["mode"]), uc.user.ID)
		if err != nil {
			s.writeError(w, r, "propertiesList", err)
			return
		}
		ps, err := s.DB.PropertiesFind(r.Context(), q)
		if err != nil {
			s.writeError(w, r, "propertiesList", storeError(err, "Property"))
			return
		}
		s.writeData(w, "", propertiesResponse{Count: len(ps), Properties: ps}, http.StatusOK)
	}
}

// propertiesByCategory answers unknown categories with an empty list.
func (s Server) propertiesByCategory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := mux.Vars(r)["category"]
		q, ok := model.CategoryQuery(category)
		if !ok {
			s.Logger.Debugf("propertiesByCategory: Unknown category: %s, TraceID: %s", category, getTraceContext(r.Context()).traceID)
			s.writeData(w, "", propertiesResponse{Properties: []model.Property{}}, http.StatusOK)
			return
		}
		ps, err := s.DB.PropertiesFind(r.Context(), q)
		if err != nil {
			s.writeError(w, r, "propertiesByCategory", storeError(err, "Property"))
			return
		}
		s.writeData(w, "", propertiesResponse{Count: len(ps), Properties: ps}, http.StatusOK)
	}
}
