package server

import (
	"context"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/internal/client"
	"estatehub/internal/geo"
	"estatehub/internal/model"
)

type Server struct {
	DB            store
	Pusher        pusher
	Geocoder      geocoder
	Realtime      realtime
	OTP           otpStore
	Logger        logger
	AuthSecretKey jwk.Key
	Settings      Settings
}

type Settings struct {
	DefaultPoint    geo.Point
	DefaultLabel    string
	DefaultRadiusKm float64
	PushTimeout     time.Duration
	UploadDir       string
	MaxUploadBytes  int64
	ServicePricing  geo.Pricing
}

type logger interface {
	Trace(v ...any)
	Debug(v ...any)
	Info(v ...any)
	Error(v ...any)
	Tracef(format string, v ...any)
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

type pusher interface {
	Push(ctx context.Context, m client.PushMessage) (client.PushResult, error)
}

type geocoder interface {
	Geocode(ctx context.Context, address string) (client.GeocodeResult, error)
	ReverseGeocode(ctx context.Context, p geo.Point) (client.GeocodeResult, error)
}

type realtime interface {
	Publish(topic string, eventType string, data any) int
	Serve(w http.ResponseWriter, r *http.Request, topic string) error
}

type otpStore interface {
	Issue(ctx context.Context, subject string) (requestID string, code string, err error)
	Verify(ctx context.Context, requestID string, code string) (subject string, err error)
}

// store is implemented by database.Database.
type store interface {
	UserInsert(ctx context.Context, u model.User) (primitive.ObjectID, error)
	UserFindByEmail(ctx context.Context, email string) (model.User, error)
	UserFindByID(ctx context.Context, id primitive.ObjectID) (model.User, error)
	UserAddLoginToken(ctx context.Context, userID primitive.ObjectID, lt model.LoginToken) error
	UserRemoveLoginToken(ctx context.Context, userID primitive.ObjectID, tokenID string) error
	UserPasswordUpdate(ctx context.Context, userID primitive.ObjectID, hash []byte) error
	UserFCMTokenUpdate(ctx context.Context, userID primitive.ObjectID, token string) error
	UserFCMTokensExcept(ctx context.Context, exclude primitive.ObjectID) ([]string, error)
	UserCounterIncrement(ctx context.Context, userID primitive.ObjectID, c model.UserCounter, delta int) error

	PropertyInsert(ctx context.Context, p model.Property) (primitive.ObjectID, error)
	PropertyFindByID(ctx context.Context, id primitive.ObjectID) (model.Property, error)
	PropertiesFind(ctx context.Context, q model.PropertyQuery) ([]model.Property, error)
	PropertiesFindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]model.Property, error)
	PropertiesNear(ctx context.Context, center geo.Point, radiusMeters float64, exclude primitive.ObjectID) ([]model.Property, error)
	PropertyDetailsUpdate(ctx context.Context, id primitive.ObjectID, d model.PropertyDetails, loc *geo.Point) (model.Property, error)
	PropertySoldToggle(ctx context.Context, id primitive.ObjectID) (model.Property, error)
	PropertyDelete(ctx context.Context, id primitive.ObjectID, onlySold bool) error
	PropertyVisitRecord(ctx context.Context, id, userID primitive.ObjectID, at time.Time) (bool, error)

	SavedPropertyInsert(ctx context.Context, userID, propertyID primitive.ObjectID) (model.SavedProperty, error)
	SavedPropertyDelete(ctx context.Context, userID, propertyID primitive.ObjectID) (bool, error)
	SavedPropertiesFind(ctx context.Context, userID primitive.ObjectID) ([]model.SavedProperty, error)

	ChatFindOrCreate(ctx context.Context, a, b primitive.ObjectID) (model.Chat, error)
	ChatFindByID(ctx context.Context, id primitive.ObjectID) (model.Chat, error)
	ChatsFindByParticipant(ctx context.Context, userID primitive.ObjectID) ([]model.Chat, error)
	ChatMessageAppend(ctx context.Context, chatID primitive.ObjectID, m model.Message) error
	ChatMessagesMarkRead(ctx context.Context, chatID, reader primitive.ObjectID) (bool, error)
	ChatDelete(ctx context.Context, id primitive.ObjectID) error

	ReminderInsert(ctx context.Context, r model.Reminder) (primitive.ObjectID, error)
	RemindersFindByUser(ctx context.Context, userID primitive.ObjectID) ([]model.Reminder, error)
	ReminderClaimDue(ctx context.Context, now time.Time) (model.Reminder, error)
	NotificationInsert(ctx context.Context, n model.Notification) (primitive.ObjectID, error)
	NotificationsFindByUser(ctx context.Context, userID primitive.ObjectID) ([]model.Notification, error)

	ServiceRequestInsert(ctx context.Context, r model.ServiceRequest) (primitive.ObjectID, error)
	ServiceRequestsFindByUser(ctx context.Context, userID primitive.ObjectID) ([]model.ServiceRequest, error)
}
