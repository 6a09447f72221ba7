package server

import (
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/internal/apperror"
	"estatehub/internal/model"
)

func userTopic(id primitive.ObjectID) string {
	return "user:" + id.Hex()
}

func (s Server) reminderAdd() http.HandlerFunc {
	type request struct {
		Title string    `json:"title" validate:"required"`
		Body  string    `json:"body"`
		DueAt time.Time `json:"dueAt" validate:"required"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "reminderAdd", err)
			return
		}
		req := request{}
		if err = decodeJSON(r, &req); err != nil {
			s.writeError(w, r, "reminderAdd", err)
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		if err = model.Validate(req); err != nil {
			s.writeError(w, r, "reminderAdd", err)
			return
		}
		if req.DueAt.Before(time.Now().Add(-time.Minute)) {
			s.writeError(w, r, "reminderAdd", apperror.Validation("Invalid dueAt"))
			return
		}

		rem := model.Reminder{
			UserID: uc.user.ID,
			Title:  req.Title,
			Body:   strings.TrimSpace(req.Body),
			DueAt:  primitive.NewDateTimeFromTime(req.DueAt),
		}
		if rem.ID, err = s.DB.ReminderInsert(r.Context(), rem); err != nil {
			s.writeError(w, r, "reminderAdd", storeError(err, "Reminder"))
			return
		}
		s.writeData(w, "Reminder scheduled", rem, http.StatusCreated)
	}
}

func (s Server) reminderList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "reminderList", err)
			return
		}
		rs, err := s.DB.RemindersFindByUser(r.Context(), uc.user.ID)
		if err != nil {
			s.writeError(w, r, "reminderList", storeError(err, "Reminder"))
			return
		}
		s.writeData(w, "", rs, http.StatusOK)
	}
}

func (s Server) notificationList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "notificationList", err)
			return
		}
		ns, err := s.DB.NotificationsFindByUser(r.Context(), uc.user.ID)
		if err != nil {
			s.writeError(w, r, "notificationList", storeError(err, "Notification"))
			return
		}
		s.writeData(w, "", ns, http.StatusOK)
	}
}

func (s Server) notificationSubscribe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "notificationSubscribe", err)
			return
		}
		if err = s.Realtime.Serve(w, r, userTopic(uc.user.ID)); err != nil {
			s.Logger.Debugf("notificationSubscribe: %v, TraceID: %s", err, getTraceContext(r.Context()).traceID)
		}
	}
}
