package server

import (
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/internal/apperror"
	"estatehub/internal/model"
)

func chatTopic(id primitive.ObjectID) string {
	return "chat:" + id.Hex()
}

// participantChat loads a chat and checks the caller takes part in it.
func (s Server) participantChat(r *http.Request, chatID primitive.ObjectID, uc userContext) (model.Chat, error) {
	c, err := s.DB.ChatFindByID(r.Context(), chatID)
	if err != nil {
		return c, storeError(err, "Chat")
	}
	if !c.HasParticipant(uc.user.ID) {
		return c, apperror.Authorization("Not a participant of this chat")
	}
	return c, nil
}

func (s Server) chatGetOrCreate() http.HandlerFunc {
	type request struct {
		ParticipantID string `json:"participantId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "chatGetOrCreate", err)
			return
		}
		req := request{}
		if err = decodeJSON(r, &req); err != nil {
			s.writeError(w, r, "chatGetOrCreate", err)
			return
		}
		other, err := primitive.ObjectIDFromHex(req.ParticipantID)
		if err != nil {
			s.writeError(w, r, "chatGetOrCreate", apperror.Validation("Invalid participantId"))
			return
		}
		if other == uc.user.ID {
			s.writeError(w, r, "chatGetOrCreate", apperror.Validation("Cannot start a chat with yourself"))
			return
		}
		if _, err = s.DB.UserFindByID(r.Context(), other); err != nil {
			s.writeError(w, r, "chatGetOrCreate", storeError(err, "User"))
			return
		}

		c, err := s.DB.ChatFindOrCreate(r.Context(), uc.user.ID, other)
		if err != nil {
			s.writeError(w, r, "chatGetOrCreate", storeError(err, "Chat"))
			return
		}
		s.writeData(w, "", c, http.StatusOK)
	}
}

func (s Server) chatSend() http.HandlerFunc {
	type request struct {
		ChatID string `json:"chatId"`
		Text   string `json:"text"`
	}
	type response struct {
		Message      model.Message `json:"message"`
		Notification fanoutResult  `json:"notification"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "chatSend", err)
			return
		}
		req := request{}
		if err = decodeJSON(r, &req); err != nil {
			s.writeError(w, r, "chatSend", err)
			return
		}
		chatID, err := primitive.ObjectIDFromHex(req.ChatID)
		if err != nil {
			s.writeError(w, r, "chatSend", apperror.NotFound("Chat"))
			return
		}
		m, err := model.NewMessage(uc.user.ID, req.Text, time.Now())
		if err != nil {
			s.writeError(w, r, "chatSend", err)
			return
		}
		c, err := s.participantChat(r, chatID, uc)
		if err != nil {
			s.writeError(w, r, "chatSend", err)
			return
		}

		if err = s.DB.ChatMessageAppend(r.Context(), c.ID, m); err != nil {
			s.writeError(w, r, "chatSend", storeError(err, "Chat"))
			return
		}
		delivered := s.Realtime.Publish(chatTopic(c.ID), "message", m)
		s.Logger.Debugf("chatSend: Message published to %d subscriber(s) of Chat: %s, TraceID: %s", delivered, c.ID.Hex(), tid)

		notification := s.notifyChatMessage(r.Context(), tid, c, uc.user, m)
		s.writeData(w, "Message sent", response{Message: m, Notification: notification}, http.StatusCreated)
	}
}

// chatMessages returns the thread and marks the other side's messages read.
func (s Server) chatMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "chatMessages", err)
			return
		}
		chatID, err := pathID(r, "chatId", "Chat")
		if err != nil {
			s.writeError(w, r, "chatMessages", err)
			return
		}
		c, err := s.participantChat(r, chatID, uc)
		if err != nil {
			s.writeError(w, r, "chatMessages", err)
			return
		}

		if c.UnreadFor(uc.user.ID) > 0 {
			changed, err := s.DB.ChatMessagesMarkRead(r.Context(), c.ID, uc.user.ID)
			if err != nil {
				s.writeError(w, r, "chatMessages", storeError(err, "Chat"))
				return
			}
			if changed {
				if c, err = s.DB.ChatFindByID(r.Context(), c.ID); err != nil {
					s.writeError(w, r, "chatMessages", storeError(err, "Chat"))
					return
				}
				s.Realtime.Publish(chatTopic(c.ID), "read", map[string]string{"readerId": uc.user.ID.Hex()})
			}
		}
		s.writeData(w, "", c, http.StatusOK)
	}
}

func (s Server) chatHistory() http.HandlerFunc {
	type summary struct {
		ID               primitive.ObjectID `json:"id"`
		OtherParticipant primitive.ObjectID `json:"otherParticipant"`
		LastMessage      *model.Message     `json:"lastMessage"`
		UnreadCount      int                `json:"unreadCount"`
		UpdatedAt        primitive.DateTime `json:"updatedAt"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "chatHistory", err)
			return
		}
		cs, err := s.DB.ChatsFindByParticipant(r.Context(), uc.user.ID)
		if err != nil {
			s.writeError(w, r, "chatHistory", storeError(err, "Chat"))
			return
		}
		out := make([]summary, 0, len(cs))
		for _, c := range cs {
			out = append(out, summary{
				ID:               c.ID,
				OtherParticipant: c.OtherParticipant(uc.user.ID),
				LastMessage:      c.LastMessage(),
				UnreadCount:      c.UnreadFor(uc.user.ID),
				UpdatedAt:        c.UpdatedAt,
			})
		}
		s.writeData(w, "", out, http.StatusOK)
	}
}

func (s Server) chatDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "chatDelete", err)
			return
		}
		chatID, err := pathID(r, "chatId", "Chat")
		if err != nil {
			s.writeError(w, r, "chatDelete", err)
			return
		}
		c, err := s.participantChat(r, chatID, uc)
		if err != nil {
			s.writeError(w, r, "chatDelete", err)
			return
		}
		if err = s.DB.ChatDelete(r.Context(), c.ID); err != nil {
			s.writeError(w, r, "chatDelete", storeError(err, "Chat"))
			return
		}
		s.Realtime.Publish(chatTopic(c.ID), "deleted", nil)
		s.writeData(w, "Chat deleted", nil, http.StatusOK)
	}
}

func (s Server) chatSubscribe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "chatSubscribe", err)
			return
		}
		chatID, err := pathID(r, "chatId", "Chat")
		if err != nil {
			s.writeError(w, r, "chatSubscribe", err)
			return
		}
		c, err := s.participantChat(r, chatID, uc)
		if err != nil {
			s.writeError(w, r, "chatSubscribe", err)
			return
		}
		if err = s.Realtime.Serve(w, r, chatTopic(c.ID)); err != nil {
			s.Logger.Debugf("chatSubscribe: %v, TraceID: %s", err, getTraceContext(r.Context()).traceID)
		}
	}
}
