package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/internal/client"
	"estatehub/internal/database"
	"estatehub/internal/geo"
	"estatehub/internal/model"
	"estatehub/internal/otp"
)

type nearCall struct {
	center       geo.Point
	radiusMeters float64
	exclude      primitive.ObjectID
}

// fakeStore is an in-memory store with the same observable semantics as
// database.Database.
type fakeStore struct {
	mu            sync.Mutex
	users         map[primitive.ObjectID]model.User
	properties    map[primitive.ObjectID]model.Property
	saved         []model.SavedProperty
	chats         map[primitive.ObjectID]model.Chat
	reminders     map[primitive.ObjectID]model.Reminder
	notifications []model.Notification
	services      []model.ServiceRequest

	failCounters   bool
	failInserts    bool
	nearCalls      []nearCall
	markReadWrites int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      map[primitive.ObjectID]model.User{},
		properties: map[primitive.ObjectID]model.Property{},
		chats:      map[primitive.ObjectID]model.Chat{},
		reminders:  map[primitive.ObjectID]model.Reminder{},
	}
}

var errFakeStore = errors.New("fake store failure")

func notFound(what string) error {
	return errors.Wrap(database.ErrNotFound, what)
}

func (f *fakeStore) UserInsert(_ context.Context, u model.User) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return primitive.NilObjectID, errors.Wrap(database.ErrDuplicate, "email")
		}
	}
	u.ID = primitive.NewObjectID()
	u.LoginTokens = []model.LoginToken{}
	f.users[u.ID] = u
	return u.ID, nil
}

func (f *fakeStore) UserFindByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, notFound("user")
}

func (f *fakeStore) UserFindByID(_ context.Context, id primitive.ObjectID) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return u, notFound("user")
	}
	return u, nil
}

func (f *fakeStore) UserAddLoginToken(_ context.Context, userID primitive.ObjectID, lt model.LoginToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return notFound("user")
	}
	u.LoginTokens = append([]model.LoginToken{lt}, u.LoginTokens...)
	f.users[userID] = u
	return nil
}

func (f *fakeStore) UserRemoveLoginToken(_ context.Context, userID primitive.ObjectID, tokenID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[userID]
	kept := u.LoginTokens[:0]
	for _, t := range u.LoginTokens {
		if t.TokenID != tokenID {
			kept = append(kept, t)
		}
	}
	u.LoginTokens = kept
	f.users[userID] = u
	return nil
}

func (f *fakeStore) UserPasswordUpdate(_ context.Context, userID primitive.ObjectID, hash []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return notFound("user")
	}
	u.Password = hash
	u.LoginTokens = []model.LoginToken{}
	f.users[userID] = u
	return nil
}

func (f *fakeStore) UserFCMTokenUpdate(_ context.Context, userID primitive.ObjectID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return notFound("user")
	}
	u.FCMToken = token
	f.users[userID] = u
	return nil
}

func (f *fakeStore) UserFCMTokensExcept(_ context.Context, exclude primitive.ObjectID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var tokens []string
	for id, u := range f.users {
		if id != exclude && u.FCMToken != "" {
			tokens = append(tokens, u.FCMToken)
		}
	}
	sort.Strings(tokens)
	return tokens, nil
}

func (f *fakeStore) UserCounterIncrement(_ context.Context, userID primitive.ObjectID, c model.UserCounter, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCounters {
		return errFakeStore
	}
	u, ok := f.users[userID]
	if !ok {
		return notFound("user")
	}
	u.AddToCounter(c, delta)
	f.users[userID] = u
	return nil
}

func (f *fakeStore) PropertyInsert(_ context.Context, p model.Property) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInserts {
		return primitive.NilObjectID, errFakeStore
	}
	p.ID = primitive.NewObjectID()
	f.properties[p.ID] = p
	return p.ID, nil
}

func (f *fakeStore) PropertyFindByID(_ context.Context, id primitive.ObjectID) (model.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.properties[id]
	if !ok {
		return p, notFound("property")
	}
	return p, nil
}

func (f *fakeStore) sortedProperties() []model.Property {
	ps := make([]model.Property, 0, len(f.properties))
	for _, p := range f.properties {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID.Hex() < ps[j].ID.Hex() })
	return ps
}

func (f *fakeStore) PropertiesFind(_ context.Context, q model.PropertyQuery) ([]model.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.FilterProperties(f.sortedProperties(), q), nil
}

func (f *fakeStore) PropertiesFindByIDs(_ context.Context, ids []primitive.ObjectID) ([]model.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Property{}
	for _, id := range ids {
		if p, ok := f.properties[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) PropertiesNear(_ context.Context, center geo.Point, radiusMeters float64, exclude primitive.ObjectID) ([]model.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nearCalls = append(f.nearCalls, nearCall{center: center, radiusMeters: radiusMeters, exclude: exclude})
	out := []model.Property{}
	for _, p := range f.sortedProperties() {
		if p.OwnerID != exclude && geo.KmToMeters(geo.DistanceKm(center, p.Location.Point())) <= radiusMeters {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) PropertyDetailsUpdate(_ context.Context, id primitive.ObjectID, d model.PropertyDetails, loc *geo.Point) (model.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.properties[id]
	if !ok {
		return p, notFound("property")
	}
	p.PropertyDetails = d
	if loc != nil {
		p.Location = model.NewGeoPoint(*loc)
	}
	f.properties[id] = p
	return p, nil
}

func (f *fakeStore) PropertySoldToggle(_ context.Context, id primitive.ObjectID) (model.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.properties[id]
	if !ok {
		return p, notFound("property")
	}
	p.IsSold = !p.IsSold
	f.properties[id] = p
	return p, nil
}

func (f *fakeStore) PropertyDelete(_ context.Context, id primitive.ObjectID, onlySold bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.properties[id]
	if !ok || (onlySold && !p.IsSold) {
		return notFound("property")
	}
	delete(f.properties, id)
	return nil
}

func (f *fakeStore) PropertyVisitRecord(_ context.Context, id, userID primitive.ObjectID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.properties[id]
	if !ok {
		return false, notFound("property")
	}
	first := p.RecordVisit(userID, at)
	f.properties[id] = p
	return first, nil
}

func (f *fakeStore) SavedPropertyInsert(_ context.Context, userID, propertyID primitive.ObjectID) (model.SavedProperty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sp := range f.saved {
		if sp.UserID == userID && sp.PropertyID == propertyID {
			return model.SavedProperty{}, errors.Wrap(database.ErrDuplicate, "saved")
		}
	}
	sp := model.SavedProperty{ID: primitive.NewObjectID(), UserID: userID, PropertyID: propertyID}
	f.saved = append(f.saved, sp)
	return sp, nil
}

func (f *fakeStore) SavedPropertyDelete(_ context.Context, userID, propertyID primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, sp := range f.saved {
		if sp.UserID == userID && sp.PropertyID == propertyID {
			f.saved = append(f.saved[:i], f.saved[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) SavedPropertiesFind(_ context.Context, userID primitive.ObjectID) ([]model.SavedProperty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.SavedProperty{}
	for i := len(f.saved) - 1; i >= 0; i-- {
		if f.saved[i].UserID == userID {
			out = append(out, f.saved[i])
		}
	}
	return out, nil
}

func (f *fakeStore) ChatFindOrCreate(_ context.Context, a, b primitive.ObjectID) (model.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := model.PairKey(a, b)
	for _, c := range f.chats {
		if c.PairKey == key {
			return c, nil
		}
	}
	c := model.NewChat(a, b, time.Now())
	c.ID = primitive.NewObjectID()
	f.chats[c.ID] = c
	return c, nil
}

func (f *fakeStore) ChatFindByID(_ context.Context, id primitive.ObjectID) (model.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[id]
	if !ok {
		return c, notFound("chat")
	}
	c.Messages = append([]model.Message(nil), c.Messages...)
	return c, nil
}

func (f *fakeStore) ChatsFindByParticipant(_ context.Context, userID primitive.ObjectID) ([]model.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Chat{}
	for _, c := range f.chats {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) ChatMessageAppend(_ context.Context, chatID primitive.ObjectID, m model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[chatID]
	if !ok {
		return notFound("chat")
	}
	c.Messages = append(c.Messages, m)
	c.UpdatedAt = m.Timestamp
	f.chats[chatID] = c
	return nil
}

func (f *fakeStore) ChatMessagesMarkRead(_ context.Context, chatID, reader primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[chatID]
	if !ok {
		return false, nil
	}
	c.Messages = append([]model.Message(nil), c.Messages...)
	if !c.MarkReadFor(reader) {
		return false, nil
	}
	f.markReadWrites++
	c.UpdatedAt = primitive.NewDateTimeFromTime(time.Now().Add(time.Second))
	f.chats[chatID] = c
	return true, nil
}

func (f *fakeStore) ChatDelete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.chats[id]; !ok {
		return notFound("chat")
	}
	delete(f.chats, id)
	return nil
}

func (f *fakeStore) ReminderInsert(_ context.Context, r model.Reminder) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = primitive.NewObjectID()
	f.reminders[r.ID] = r
	return r.ID, nil
}

func (f *fakeStore) RemindersFindByUser(_ context.Context, userID primitive.ObjectID) ([]model.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Reminder{}
	for _, r := range f.reminders {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ReminderClaimDue(_ context.Context, now time.Time) (model.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due *model.Reminder
	for _, r := range f.reminders {
		r := r
		if r.Fired || r.DueAt.Time().After(now) {
			continue
		}
		if due == nil || r.DueAt < due.DueAt {
			due = &r
		}
	}
	if due == nil {
		return model.Reminder{}, notFound("reminder")
	}
	due.Fired = true
	due.FiredAt = primitive.NewDateTimeFromTime(now)
	f.reminders[due.ID] = *due
	return *due, nil
}

func (f *fakeStore) NotificationInsert(_ context.Context, n model.Notification) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = primitive.NewObjectID()
	f.notifications = append(f.notifications, n)
	return n.ID, nil
}

func (f *fakeStore) NotificationsFindByUser(_ context.Context, userID primitive.ObjectID) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Notification{}
	for _, n := range f.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) ServiceRequestInsert(_ context.Context, r model.ServiceRequest) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = primitive.NewObjectID()
	f.services = append(f.services, r)
	return r.ID, nil
}

func (f *fakeStore) ServiceRequestsFindByUser(_ context.Context, userID primitive.ObjectID) ([]model.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.ServiceRequest{}
	for _, r := range f.services {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

// fakePusher fails the tokens listed in failTokens, or the whole dispatch
// when err is set.
type fakePusher struct {
	mu         sync.Mutex
	failTokens map[string]bool
	err        error
	calls      []client.PushMessage
}

func (p *fakePusher) Push(_ context.Context, m client.PushMessage) (client.PushResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, m)
	if p.err != nil {
		return client.PushResult{}, p.err
	}
	res := client.PushResult{}
	for _, t := range m.Tokens {
		if p.failTokens[t] {
			res.Failure++
			res.Failed = append(res.Failed, client.TokenFailure{Token: t, Reason: "NotRegistered"})
		} else {
			res.Success++
		}
	}
	return res, nil
}

func (p *fakePusher) sentTokens() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, c := range p.calls {
		out = append(out, c.Tokens...)
	}
	return out
}

type fakeGeocoder struct {
	places     map[string]client.GeocodeResult
	err        error
	reverseErr error
	queries    []string
}

func (g *fakeGeocoder) Geocode(_ context.Context, address string) (client.GeocodeResult, error) {
	g.queries = append(g.queries, address)
	if g.err != nil {
		return client.GeocodeResult{}, g.err
	}
	r, ok := g.places[address]
	if !ok {
		return r, client.ErrGeocodeNoResults
	}
	return r, nil
}

func (g *fakeGeocoder) ReverseGeocode(_ context.Context, p geo.Point) (client.GeocodeResult, error) {
	if g.reverseErr != nil {
		return client.GeocodeResult{}, g.reverseErr
	}
	return client.GeocodeResult{Point: p, Label: "Reverse label"}, nil
}

type fakeOTP struct {
	codes map[string][2]string
}

func (o *fakeOTP) Issue(_ context.Context, subject string) (string, string, error) {
	id := primitive.NewObjectID().Hex()
	o.codes[id] = [2]string{subject, "123456"}
	return id, "123456", nil
}

func (o *fakeOTP) Verify(_ context.Context, requestID string, code string) (string, error) {
	c, ok := o.codes[requestID]
	if !ok {
		return "", otp.ErrExpired
	}
	if c[1] != code {
		return "", otp.ErrInvalidCode
	}
	delete(o.codes, requestID)
	return c[0], nil
}
