package client

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-redis/redis/v9"
	"github.com/pkg/errors"

	"estatehub/internal/geo"
	"estatehub/internal/misc"
)

const geocodeCacheKeyPrefix = "geocode:"

var (
	ErrGeocoder         = errors.New("geocoder error")
	ErrGeocodeNoResults = errors.New("geocoder returned no results")
)

type GeocodeResult struct {
	Point geo.Point `json:"point"`
	Label string    `json:"label"`
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves a free-text address to its first matching point,
// restricted to the configured country.
func (c Client) Geocode(ctx context.Context, address string) (GeocodeResult, error) {
	address = strings.Join(strings.Fields(address), " ")
	if address == "" {
		return GeocodeResult{}, ErrGeocodeNoResults
	}
	q := url.Values{}
	q.Set("address", address)
	if c.GeocoderCountry != "" {
		q.Set("components", "country:"+c.GeocoderCountry)
	}
	return c.geocode(ctx, q)
}

// ReverseGeocode returns the formatted address closest to p.
func (c Client) ReverseGeocode(ctx context.Context, p geo.Point) (GeocodeResult, error) {
	q := url.Values{}
	q.Set("latlng", fmt.Sprintf("%f,%f", p.Lat, p.Lng))
	r, err := c.geocode(ctx, q)
	if err != nil {
		return r, err
	}
	// the label describes the requested point, not the matched one
	r.Point = p
	return r, nil
}

func (c Client) geocode(ctx context.Context, q url.Values) (GeocodeResult, error) {
	var r GeocodeResult
	cacheKey := geocodeCacheKey(q)
	if c.getCached(ctx, cacheKey, &r) {
		return r, nil
	}

	if c.GeocoderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.GeocoderTimeout)
		defer cancel()
	}

	base := c.GeocoderBaseURL
	if base == "" {
		base = DefaultGeocoderURL
	}
	q.Set("key", c.GeocoderAPIKey)
	req, err := newRequest(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return r, errors.Wrap(err, "geocode: error creating request")
	}

	c.Logger.Debugf("geocode: Sending request to %s, key: %s", base, cacheKey)
	resp, err := c.Do(req)
	if err != nil {
		return r, errors.Wrapf(err, "geocode: error doing request to %s", base)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, 512*1024))
	if err != nil {
		return r, errors.Wrapf(err, "geocode: error reading response body, status: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return r, errors.Wrapf(ErrGeocoder, "geocode: status: %s, body: %s", resp.Status, misc.StringLimit(string(body), 2000))
	}

	gr := geocodeResponse{}
	if err = json.Unmarshal(body, &gr); err != nil {
		return r, errors.Wrapf(err, "geocode: error unmarshalling response body: %s", misc.StringLimit(string(body), 2000))
	}
	switch gr.Status {
	case "OK":
	case "ZERO_RESULTS":
		return r, ErrGeocodeNoResults
	default:
		return r, errors.Wrapf(ErrGeocoder, "geocode: status: %s, message: %s", gr.Status, gr.ErrorMessage)
	}
	if len(gr.Results) == 0 {
		return r, ErrGeocodeNoResults
	}

	first := gr.Results[0]
	r = GeocodeResult{
		Point: geo.Point{Lat: first.Geometry.Location.Lat, Lng: first.Geometry.Location.Lng},
		Label: first.FormattedAddress,
	}
	c.setCached(ctx, cacheKey, r)
	return r, nil
}

func geocodeCacheKey(q url.Values) string {
	// Encode sorts by key, so equal queries hash equally.
	sum := md5.Sum([]byte(strings.ToLower(q.Encode())))
	return geocodeCacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (c Client) getCached(ctx context.Context, key string, dest any) bool {
	if c.Redis == nil {
		return false
	}
	cached, err := c.Redis.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.Logger.Errorf("getCached: Error getting Redis cache with key: %s, err: %v", key, err)
		}
		return false
	}
	if err = json.Unmarshal([]byte(cached), dest); err != nil {
		c.Logger.Errorf("getCached: Error unmarshalling cache, key: %s, err: %v", key, err)
		return false
	}
	c.Logger.Debugf("getCached: Cache found, key: %s", key)
	return true
}

func (c Client) setCached(ctx context.Context, key string, v any) {
	if c.Redis == nil || c.GeocodeCacheTTL <= 0 {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		c.Logger.Errorf("setCached: Error marshalling value, key: %s, err: %v", key, err)
		return
	}
	if err = c.Redis.Set(ctx, key, b, c.GeocodeCacheTTL).Err(); err != nil {
		c.Logger.Errorf("setCached: Error caching value, key: %s, err: %v", key, err)
	}
}
