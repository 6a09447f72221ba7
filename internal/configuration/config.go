package configuration

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/pkg/errors"

	"estatehub/internal/geo"
	"estatehub/internal/logger"
)

type Location struct {
	Point geo.Point
	Label string
}

type Config struct {
	ServerAddress         string
	DatabaseURI           string
	DatabaseName          string
	RedisAddress          string
	RedisPassword         string
	LogLevel              logger.Level
	LogToFile             bool
	AuthSecretKey         jwk.Key
	FCMKey                string
	FCMCredentialsFile    string
	GeocoderBaseURL       string
	GeocoderAPIKey        string
	GeocoderCountry       string
	GeocoderTimeout       time.Duration
	GeocodeCacheTTL       time.Duration
	PushTimeout           time.Duration
	DefaultLocation       Location
	DefaultNearbyRadiusKm float64
	ReminderPollInterval  time.Duration
	OTPTTL                time.Duration
	UploadDir             string
	ServicePricing        geo.Pricing
}

type tomlConfig struct {
	ServerAddress         string  `toml:"server_address"`
	DatabaseURI           string  `toml:"database_uri"`
	DatabaseName          string  `toml:"database_name"`
	RedisAddress          string  `toml:"redis_address"`
	RedisPassword         string  `toml:"redis_password"`
	LogLevel              string  `toml:"log_level"`
	LogToFile             bool    `toml:"log_to_file"`
	AuthSecretKey         string  `toml:"auth_secret_key"`
	FCMKey                string  `toml:"fcm_key"`
	FCMCredentialsFile    string  `toml:"fcm_credentials_file"`
	GeocoderBaseURL       string  `toml:"geocoder_base_url"`
	GeocoderAPIKey        string  `toml:"geocoder_api_key"`
	GeocoderCountry       string  `toml:"geocoder_country"`
	GeocoderTimeout       string  `toml:"geocoder_timeout"`
	GeocodeCacheTTL       string  `toml:"geocode_cache_ttl"`
	PushTimeout           string  `toml:"push_timeout"`
	DefaultNearbyRadiusKm float64 `toml:"default_nearby_radius_km"`
	ReminderPollInterval  string  `toml:"reminder_poll_interval"`
	OTPTTL                string  `toml:"otp_ttl"`
	UploadDir             string  `toml:"upload_dir"`
	DefaultLocation       struct {
		Lat   float64 `toml:"lat"`
		Lng   float64 `toml:"lng"`
		Label string  `toml:"label"`
	} `toml:"default_location"`
	ServicePricing struct {
		HubLat        float64 `toml:"hub_lat"`
		HubLng        float64 `toml:"hub_lng"`
		BaseFee       float64 `toml:"base_fee"`
		PerKmFee      float64 `toml:"per_km_fee"`
		MaxDistanceKm float64 `toml:"max_distance_km"`
	} `toml:"service_pricing"`
}

// secret environment variables take precedence over the file
var envOverrides = map[string]func(tc *tomlConfig, v string){
	"AUTH_SECRET_KEY":  func(tc *tomlConfig, v string) { tc.AuthSecretKey = v },
	"FCM_KEY":          func(tc *tomlConfig, v string) { tc.FCMKey = v },
	"GEOCODER_API_KEY": func(tc *tomlConfig, v string) { tc.GeocoderAPIKey = v },
	"REDIS_PASSWORD":   func(tc *tomlConfig, v string) { tc.RedisPassword = v },
	"DATABASE_URI":     func(tc *tomlConfig, v string) { tc.DatabaseURI = v },
}

func GetConfig(path string, envFiles ...string) (*Config, error) {
	var tc tomlConfig
	_, err := toml.DecodeFile(path, &tc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode toml file with path: %s", path)
	}

	if err = godotenv.Load(envFiles...); err != nil && !os.IsNotExist(errors.Cause(err)) {
		return nil, errors.Wrap(err, "failed to load env file")
	}
	for key, apply := range envOverrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			apply(&tc, v)
		}
	}

	if tc.ServerAddress == "" {
		tc.ServerAddress = "localhost:8888"
	}
	if tc.DatabaseURI == "" {
		tc.DatabaseURI = "mongodb://localhost:27017"
	}
	if tc.DatabaseName == "" {
		tc.DatabaseName = "estatehub_db"
	}
	if tc.RedisAddress == "" {
		tc.RedisAddress = "localhost:6379"
	}
	if tc.GeocoderBaseURL == "" {
		tc.GeocoderBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"
	}
	if tc.GeocoderCountry == "" {
		tc.GeocoderCountry = "IN"
	}
	if tc.DefaultNearbyRadiusKm <= 0 {
		tc.DefaultNearbyRadiusKm = 20
	}
	if tc.UploadDir == "" {
		tc.UploadDir = "uploads"
	}
	if tc.DefaultLocation.Lat == 0 && tc.DefaultLocation.Lng == 0 {
		tc.DefaultLocation.Lat, tc.DefaultLocation.Lng = 28.6139, 77.2090
		tc.DefaultLocation.Label = "New Delhi, Delhi, India"
	}

	logLevel := logger.LevelInfo
	if tc.LogLevel != "" {
		if logLevel, err = logger.ParseLevel(tc.LogLevel); err != nil {
			return nil, errors.Wrap(err, "failed to parse log_level")
		}
	}

	geocoderTimeout, err := parseDuration("geocoder_timeout", tc.GeocoderTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	geocodeCacheTTL, err := parseDuration("geocode_cache_ttl", tc.GeocodeCacheTTL, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	pushTimeout, err := parseDuration("push_timeout", tc.PushTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	otpTTL, err := parseDuration("otp_ttl", tc.OTPTTL, 10*time.Minute)
	if err != nil {
		return nil, err
	}

	if tc.ReminderPollInterval == "" {
		return nil, errors.New("reminder_poll_interval is not set")
	}
	reminderPollInterval, err := time.ParseDuration(tc.ReminderPollInterval)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse reminder_poll_interval: %s", tc.ReminderPollInterval)
	}
	if reminderPollInterval < 15*time.Second {
		return nil, errors.Errorf("reminder_poll_interval too short (%v), minimum interval: 15s", reminderPollInterval)
	}

	if tc.AuthSecretKey == "" {
		return nil, errors.New("auth_secret_key is not set")
	}
	authSecretKey, err := jwk.FromRaw([]byte(tc.AuthSecretKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create key from auth_secret_key")
	}

	if tc.FCMKey == "" && tc.FCMCredentialsFile == "" {
		return nil, errors.New("one of fcm_key or fcm_credentials_file must be set")
	}

	sp := tc.ServicePricing
	if sp.BaseFee < 0 || sp.PerKmFee < 0 || sp.MaxDistanceKm < 0 {
		return nil, errors.Errorf("service_pricing values must not be negative: %+v", sp)
	}

	return &Config{
		ServerAddress:         tc.ServerAddress,
		DatabaseURI:           tc.DatabaseURI,
		DatabaseName:          tc.DatabaseName,
		RedisAddress:          tc.RedisAddress,
		RedisPassword:         tc.RedisPassword,
		LogLevel:              logLevel,
		LogToFile:             tc.LogToFile,
		AuthSecretKey:         authSecretKey,
		FCMKey:                tc.FCMKey,
		FCMCredentialsFile:    tc.FCMCredentialsFile,
		GeocoderBaseURL:       tc.GeocoderBaseURL,
		GeocoderAPIKey:        tc.GeocoderAPIKey,
		GeocoderCountry:       tc.GeocoderCountry,
		GeocoderTimeout:       geocoderTimeout,
		GeocodeCacheTTL:       geocodeCacheTTL,
		PushTimeout:           pushTimeout,
		DefaultLocation: Location{
			Point: geo.Point{Lat: tc.DefaultLocation.Lat, Lng: tc.DefaultLocation.Lng},
			Label: tc.DefaultLocation.Label,
		},
		DefaultNearbyRadiusKm: tc.DefaultNearbyRadiusKm,
		ReminderPollInterval:  reminderPollInterval,
		OTPTTL:                otpTTL,
		UploadDir:             tc.UploadDir,
		ServicePricing: geo.Pricing{
			Hub:           geo.Point{Lat: sp.HubLat, Lng: sp.HubLng},
			BaseFee:       sp.BaseFee,
			PerKmFee:      sp.PerKmFee,
			MaxDistanceKm: sp.MaxDistanceKm,
		},
	}, nil
}

func parseDuration(key, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to parse %s: %s", key, value)
	}
	if d <= 0 {
		return 0, errors.Errorf("%s must be positive, got: %v", key, d)
	}
	return d, nil
}
