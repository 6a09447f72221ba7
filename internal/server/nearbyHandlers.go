package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"estatehub/internal/apperror"
	"estatehub/internal/client"
	"estatehub/internal/geo"
	"estatehub/internal/model"
)

const (
	geocodingService      = "Geocoding service"
	defaultNearbyRadiusKm = 20
)

type nearbyCenter struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label"`
}

type nearbyParams struct {
	point    *geo.Point
	location string
	radiusKm float64
}

func parseNearbyParams(q url.Values, defaultRadiusKm float64) (nearbyParams, error) {
	p := nearbyParams{location: strings.TrimSpace(q.Get("location")), radiusKm: defaultRadiusKm}

	lat, lng := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lng"))
	if lat != "" || lng != "" {
		la, errLat := strconv.ParseFloat(lat, 64)
		ln, errLng := strconv.ParseFloat(lng, 64)
		if errLat != nil || errLng != nil || la < -90 || la > 90 || ln < -180 || ln > 180 {
			return p, apperror.Validation("Invalid lat/lng")
		}
		p.point = &geo.Point{Lat: la, Lng: ln}
	}

	if d := strings.TrimSpace(q.Get("distance")); d != "" {
		km, err := strconv.ParseFloat(d, 64)
		if err != nil || km <= 0 {
			return p, apperror.Validation("Invalid distance")
		}
		p.radiusKm = km
	}
	return p, nil
}

// resolveCenter picks the search point: explicit coordinates, then an
// explicit place name, then the viewer's profile address, then the
// configured default.
func (s Server) resolveCenter(ctx context.Context, tid string, p nearbyParams, viewer model.User) (nearbyCenter, error) {
	switch {
	case p.point != nil:
		c := nearbyCenter{Lat: p.point.Lat, Lng: p.point.Lng}
		res, err := s.Geocoder.ReverseGeocode(ctx, *p.point)
		if err != nil {
			s.Logger.Warnf("resolveCenter: Reverse geocoding failed for %f,%f, err: %v, TraceID: %s", c.Lat, c.Lng, err, tid)
			c.Label = fmt.Sprintf("%.4f, %.4f", c.Lat, c.Lng)
			return c, nil
		}
		c.Label = res.Label
		return c, nil

	case p.location != "":
		res, err := s.Geocoder.Geocode(ctx, p.location)
		if errors.Is(err, client.ErrGeocodeNoResults) {
			return nearbyCenter{}, apperror.New(apperror.KindNotFound, "Location not found", err)
		}
		if err != nil {
			return nearbyCenter{}, apperror.External(geocodingService, err)
		}
		return nearbyCenter{Lat: res.Point.Lat, Lng: res.Point.Lng, Label: res.Label}, nil
	}

	fallback := nearbyCenter{Lat: s.Settings.DefaultPoint.Lat, Lng: s.Settings.DefaultPoint.Lng, Label: s.Settings.DefaultLabel}
	address := viewer.Address.String()
	if address == "" {
		return fallback, nil
	}
	res, err := s.Geocoder.Geocode(ctx, address)
	if errors.Is(err, client.ErrGeocodeNoResults) {
		s.Logger.Debugf("resolveCenter: Profile address of User: %s not found, using default, TraceID: %s", viewer.ID.Hex(), tid)
		return fallback, nil
	}
	if err != nil {
		return nearbyCenter{}, apperror.External(geocodingService, err)
	}
	return nearbyCenter{Lat: res.Point.Lat, Lng: res.Point.Lng, Label: res.Label}, nil
}

func (s Server) propertyNearby() http.HandlerFunc {
	type response struct {
		Count      int              `json:"count"`
		RadiusKm   float64          `json:"radiusKm"`
		Center     nearbyCenter     `json:"center"`
		Properties []model.Property `json:"properties"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "propertyNearby", err)
			return
		}
		radiusKm := s.Settings.DefaultRadiusKm
		if radiusKm <= 0 {
			radiusKm = defaultNearbyRadiusKm
		}
		params, err := parseNearbyParams(r.URL.Query(), radiusKm)
		if err != nil {
			s.writeError(w, r, "propertyNearby", err)
			return
		}
		center, err := s.resolveCenter(r.Context(), tid, params, uc.user)
		if err != nil {
			s.writeError(w, r, "propertyNearby", err)
			return
		}

		ps, err := s.DB.PropertiesNear(r.Context(), geo.Point{Lat: center.Lat, Lng: center.Lng}, geo.KmToMeters(params.radiusKm), uc.user.ID)
		if err != nil {
			s.writeError(w, r, "propertyNearby", storeError(err, "Property"))
			return
		}
		s.writeData(w, "", response{
			Count:      len(ps),
			RadiusKm:   params.radiusKm,
			Center:     center,
			Properties: ps,
		}, http.StatusOK)
	}
}
