package client

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// multicaster is the part of *messaging.Client FirebasePusher needs.
type multicaster interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FirebasePusher sends through the FCM HTTP v1 API using a service account.
type FirebasePusher struct {
	Messaging multicaster
}

func NewFirebasePusher(ctx context.Context, credentialsFile string) (*FirebasePusher, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, errors.Wrapf(err, "error initializing Firebase app from: %s", credentialsFile)
	}
	m, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error initializing Firebase messaging client")
	}
	return &FirebasePusher{Messaging: m}, nil
}

func (f *FirebasePusher) Push(ctx context.Context, m PushMessage) (PushResult, error) {
	br, err := f.Messaging.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens: m.Tokens,
		Data:   m.Data,
		Notification: &messaging.Notification{
			Title: m.Title,
			Body:  m.Body,
		},
	})
	if err != nil {
		return PushResult{}, errors.Wrapf(err, "error sending multicast to %d tokens", len(m.Tokens))
	}

	res := PushResult{Success: br.SuccessCount, Failure: br.FailureCount}
	for i, r := range br.Responses {
		if r == nil || r.Success || i >= len(m.Tokens) {
			continue
		}
		reason := "unknown"
		if r.Error != nil {
			reason = r.Error.Error()
		}
		res.Failed = append(res.Failed, TokenFailure{Token: m.Tokens[i], Reason: reason})
	}
	return res, nil
}
