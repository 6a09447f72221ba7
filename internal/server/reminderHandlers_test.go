package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/internal/model"
	rt "estatehub/internal/realtime"
)

func TestReminderAdd(t *testing.T) {
	e := newTestEnv(t)
	u, lt := e.addUser("Asha", "")

	due := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	rec := e.do(http.MethodPost, "/api/reminders", lt, map[string]any{"title": " Site visit ", "body": "Bring documents", "dueAt": due})
	_, got := decode[struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Fired bool   `json:"fired"`
	}](t, rec, http.StatusCreated)
	assert.Equal(t, "Site visit", got.Title)
	assert.False(t, got.Fired)
	require.Len(t, e.db.reminders, 1)
	for _, r := range e.db.reminders {
		assert.Equal(t, u.ID, r.UserID)
		assert.True(t, due.Equal(r.DueAt.Time()))
	}

	assertError(t, e.do(http.MethodPost, "/api/reminders", lt, map[string]any{"title": "Late", "dueAt": time.Now().Add(-2 * time.Hour)}), http.StatusBadRequest, "Invalid dueAt")
	assertError(t, e.do(http.MethodPost, "/api/reminders", lt, map[string]any{"title": "  ", "dueAt": due}), http.StatusBadRequest, "Invalid title")
	assertError(t, e.do(http.MethodPost, "/api/reminders", lt, map[string]any{"title": "No date"}), http.StatusBadRequest, "Invalid dueAt")

	_, list := decode[[]json.RawMessage](t, e.do(http.MethodGet, "/api/reminders", lt, nil), http.StatusOK)
	assert.Len(t, list, 1)
}

func (e *testEnv) addReminder(userID primitive.ObjectID, title string, due time.Time) primitive.ObjectID {
	e.t.Helper()
	id, err := e.db.ReminderInsert(context.Background(), model.Reminder{
		UserID: userID,
		Title:  title,
		Body:   title + " body",
		DueAt:  primitive.NewDateTimeFromTime(due),
	})
	require.NoError(e.t, err)
	return id
}

func TestFireDueReminders(t *testing.T) {
	e := newTestEnv(t)
	u, lt := e.addUser("Asha", "tok-asha")
	silent, _ := e.addUser("Bilal", "")
	now := time.Now()

	dueID := e.addReminder(u.ID, "Call the broker", now.Add(-time.Minute))
	e.addReminder(silent.ID, "Pay deposit", now.Add(-time.Second))
	futureID := e.addReminder(u.ID, "Sign lease", now.Add(time.Hour))

	events, unsubscribe := e.hub.Subscribe(userTopic(u.ID))
	defer unsubscribe()

	assert.Equal(t, 2, e.srv.fireDueReminders(context.Background(), now))
	assert.Equal(t, 0, e.srv.fireDueReminders(context.Background(), now))

	assert.True(t, e.db.reminders[dueID].Fired)
	assert.False(t, e.db.reminders[futureID].Fired)
	require.Len(t, e.db.notifications, 2)

	var ev rt.Event
	require.NoError(t, json.Unmarshal(<-events, &ev))
	assert.Equal(t, "notification", ev.Type)
	assert.Equal(t, userTopic(u.ID), ev.Topic)

	// only the user with a token gets a push
	require.Len(t, e.pusher.calls, 1)
	assert.Equal(t, []string{"tok-asha"}, e.pusher.calls[0].Tokens)
	assert.Equal(t, dueID.Hex(), e.pusher.calls[0].Data["reminderId"])

	_, list := decode[[]struct {
		Kind  string `json:"kind"`
		Title string `json:"title"`
		RefID string `json:"refId"`
	}](t, e.do(http.MethodGet, "/api/notifications", lt, nil), http.StatusOK)
	require.Len(t, list, 1)
	assert.Equal(t, model.NotificationReminder, list[0].Kind)
	assert.Equal(t, "Call the broker", list[0].Title)
	assert.Equal(t, dueID.Hex(), list[0].RefID)

	assert.Equal(t, 1, e.srv.fireDueReminders(context.Background(), now.Add(2*time.Hour)))
}

func TestPollRemindersInInterval(t *testing.T) {
	e := newTestEnv(t)
	u, _ := e.addUser("Asha", "")
	e.addReminder(u.ID, "Call the broker", time.Now().Add(-time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.srv.PollRemindersInInterval(ctx, time.NewTicker(10*time.Millisecond))
		close(done)
	}()

	assert.Eventually(t, func() bool {
		ns, _ := e.db.NotificationsFindByUser(context.Background(), u.ID)
		return len(ns) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}
