package client

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-redis/redis/v9"
)

const (
	DefaultFCMURL      = "https://fcm.googleapis.com/fcm/send"
	DefaultGeocoderURL = "https://maps.googleapis.com/maps/api/geocode/json"
)

type Client struct {
	*http.Client
	Redis  *redis.Client
	Logger logger

	FCMKey string
	FCMURL string

	GeocoderBaseURL string
	GeocoderAPIKey  string
	GeocoderCountry string
	GeocoderTimeout time.Duration
	GeocodeCacheTTL time.Duration
}

type logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

// PushMessage is one notification addressed to a batch of device tokens.
type PushMessage struct {
	Tokens []string
	Title  string
	Body   string
	Data   map[string]string
}

type TokenFailure struct {
	Token  string
	Reason string
}

type PushResult struct {
	Success int
	Failure int
	Failed  []TokenFailure
}

func newRequest(ctx context.Context, method string, url string, body io.Reader) (*http.Request, error) {
	r, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	setDefaultRequestHeader(r)
	return r, nil
}

func setDefaultRequestHeader(r *http.Request) {
	r.Header.Set("User-Agent", "estatehub/1.0")
	r.Header.Set("Accept", "application/json")
}
