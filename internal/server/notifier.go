package server

import (
	"context"
	"fmt"

	"estatehub/internal/client"
	"estatehub/internal/misc"
	"estatehub/internal/model"
)

// FCM accepts at most 500 tokens per multicast.
const pushBatchSize = 500

type fanoutResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// fanOut delivers m to its deduplicated tokens in batches. It never fails:
// a batch whose dispatch errors counts every token in it as failed, so
// Sent+Failed always equals the number of distinct tokens.
func (s Server) fanOut(ctx context.Context, tid string, m client.PushMessage) fanoutResult {
	res := fanoutResult{}
	tokens := misc.Dedup(m.Tokens)
	if len(tokens) == 0 {
		return res
	}

	// delivery outlives the request that triggered it
	ctx = context.WithoutCancel(ctx)
	if s.Settings.PushTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Settings.PushTimeout)
		defer cancel()
	}

	for _, batch := range misc.Chunk(tokens, pushBatchSize) {
		bm := m
		bm.Tokens = batch
		pr, err := s.Pusher.Push(ctx, bm)
		if err != nil {
			s.Logger.Errorf("fanOut: Error sending notification to %d token(s), title: %s, err: %v, TraceID: %s",
				len(batch), m.Title, err, tid)
			res.Failed += len(batch)
			continue
		}

		sent := misc.Max(0, misc.Min(pr.Success, len(batch)))
		res.Sent += sent
		res.Failed += len(batch) - sent
		for _, f := range pr.Failed {
			s.Logger.Warnf("fanOut: Push to token: %s failed, reason: %s, TraceID: %s",
				misc.StringLimit(f.Token, 16), f.Reason, tid)
		}
	}

	s.Logger.Infof("fanOut: Send notification results, title: %s, tokens: %d, sent: %d, failed: %d, TraceID: %s",
		m.Title, len(tokens), res.Sent, res.Failed, tid)
	return res
}

// notifyNewProperty pushes a new listing to every other user with a token.
func (s Server) notifyNewProperty(ctx context.Context, tid string, p model.Property) fanoutResult {
	tokens, err := s.DB.UserFCMTokensExcept(ctx, p.OwnerID)
	if err != nil {
		s.Logger.Errorf("notifyNewProperty: Error finding FCM tokens for Property: %s, err: %v, TraceID: %s", p.ID.Hex(), err, tid)
		return fanoutResult{}
	}
	s.Logger.Debugf("notifyNewProperty: Found %d token(s) for Property: %s, TraceID: %s", len(tokens), p.ID.Hex(), tid)

	kind := p.ResidentialType
	if p.PropertyType == model.Commercial {
		kind = p.CommercialType
	}
	return s.fanOut(ctx, tid, client.PushMessage{
		Tokens: tokens,
		Title:  "New property listed",
		Body:   misc.StringLimit(fmt.Sprintf("%s for %s at %s", kind, p.Purpose, p.Address), 120),
		Data: map[string]string{
			"type":       "property",
			"propertyId": p.ID.Hex(),
		},
	})
}

// notifyChatMessage pushes m to the other participant. A participant without
// a token is skipped, not failed.
func (s Server) notifyChatMessage(ctx context.Context, tid string, c model.Chat, sender model.User, m model.Message) fanoutResult {
	recipientID := c.OtherParticipant(sender.ID)
	recipient, err := s.DB.UserFindByID(ctx, recipientID)
	if err != nil {
		s.Logger.Errorf("notifyChatMessage: Error finding recipient: %s, err: %v, TraceID: %s", recipientID.Hex(), err, tid)
		return fanoutResult{}
	}
	if recipient.FCMToken == "" {
		s.Logger.Debugf("notifyChatMessage: Recipient: %s has no push token, TraceID: %s", recipientID.Hex(), tid)
		return fanoutResult{}
	}
	return s.fanOut(ctx, tid, client.PushMessage{
		Tokens: []string{recipient.FCMToken},
		Title:  sender.Name,
		Body:   misc.StringLimit(misc.PlainText(m.Text), 100),
		Data: map[string]string{
			"type":   "chat",
			"chatId": c.ID.Hex(),
		},
	})
}
