package server

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/internal/client"
	"estatehub/internal/database"
	"estatehub/internal/model"
)

// maxRemindersPerTick bounds one poll so a backlog cannot starve the ticker.
const maxRemindersPerTick = 100

func (s Server) PollRemindersInInterval(ctx context.Context, ticker *time.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("PollRemindersInInterval: Stopping reminder poller")
			return
		case <-ticker.C:
			s.fireDueReminders(ctx, time.Now())
		}
	}
}

// fireDueReminders claims due reminders one at a time, so concurrent pollers
// never fire the same reminder twice, and turns each into a persisted
// notification plus a realtime event.
func (s Server) fireDueReminders(ctx context.Context, now time.Time) int {
	fired := 0
	for fired < maxRemindersPerTick {
		rem, err := s.DB.ReminderClaimDue(ctx, now)
		if errors.Is(err, database.ErrNotFound) {
			break
		}
		if err != nil {
			s.Logger.Errorf("fireDueReminders: Error claiming due Reminder, err: %v", err)
			break
		}
		fired++

		n := model.Notification{
			UserID:    rem.UserID,
			Kind:      model.NotificationReminder,
			Title:     rem.Title,
			Body:      rem.Body,
			RefID:     rem.ID,
			CreatedAt: primitive.NewDateTimeFromTime(now),
		}
		if n.ID, err = s.DB.NotificationInsert(ctx, n); err != nil {
			s.Logger.Errorf("fireDueReminders: Error inserting Notification for Reminder: %s, err: %v", rem.ID.Hex(), err)
			continue
		}
		delivered := s.Realtime.Publish(userTopic(rem.UserID), "notification", n)
		s.Logger.Debugf("fireDueReminders: Reminder: %s published to %d subscriber(s)", rem.ID.Hex(), delivered)

		u, err := s.DB.UserFindByID(ctx, rem.UserID)
		if err != nil {
			s.Logger.Errorf("fireDueReminders: Error finding User: %s, err: %v", rem.UserID.Hex(), err)
			continue
		}
		if u.FCMToken != "" {
			s.fanOut(ctx, "reminder-"+rem.ID.Hex(), client.PushMessage{
				Tokens: []string{u.FCMToken},
				Title:  rem.Title,
				Body:   rem.Body,
				Data:   map[string]string{"type": "reminder", "reminderId": rem.ID.Hex()},
			})
		}
	}
	if fired > 0 {
		s.Logger.Infof("fireDueReminders: Fired %d Reminder(s)", fired)
	}
	return fired
}
