package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"estatehub/internal/misc"
)

type FCMSendResponse struct {
	Success int             `json:"success"`
	Failure int             `json:"failure"`
	Results []FCMSendResult `json:"results"`
}

type FCMSendResult struct {
	MessageID string  `json:"message_id,omitempty"`
	Error     *string `json:"error"`
}

type FCMSendRequest struct {
	Notification    FCMNotification   `json:"notification"`
	Data            map[string]string `json:"data,omitempty"`
	RegistrationIDs []string          `json:"registration_ids"`
}

type FCMNotification struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	ClickAction string `json:"click_action,omitempty"`
	Sound       string `json:"sound"`
}

func (c Client) FCMSendNotification(ctx context.Context, fcmReqBody FCMSendRequest) (FCMSendResponse, error) {
	reqBody, err := json.Marshal(fcmReqBody)
	if err != nil {
		return FCMSendResponse{}, errors.Wrapf(err, "FCMSendNotification: FCMSendRequest JSON marshalling error, req: %+v", fcmReqBody)
	}

	url := c.FCMURL
	if url == "" {
		url = DefaultFCMURL
	}
	req, err := newRequest(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return FCMSendResponse{}, errors.Wrapf(err, "FCMSendNotification: error creating HTTP request from body: %s", reqBody)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.FCMKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return FCMSendResponse{}, errors.Wrapf(err, "FCMSendNotification: error doing request to %s", url)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.Logger.Errorf("FCMSendNotification: error closing response body, err: %v", err)
		}
	}()

	fcmSendResp := FCMSendResponse{}
	respBody, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, 300000))
	if err != nil {
		return fcmSendResp, errors.Wrapf(err,
			"FCMSendNotification: error reading FCMSendAPI response body, status: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return fcmSendResp, errors.Errorf("FCMSendNotification: FCMSendAPI returned status: %s, body: %s",
			resp.Status, misc.StringLimit(string(respBody), 2000))
	}
	err = json.Unmarshal(respBody, &fcmSendResp)
	return fcmSendResp, errors.Wrapf(err,
		"FCMSendNotification: error unmarshalling FCMSendAPI response body: %s", misc.StringLimit(string(respBody), 2000))
}

// Push sends m through the legacy batch API. Results are matched to tokens by
// position.
func (c Client) Push(ctx context.Context, m PushMessage) (PushResult, error) {
	resp, err := c.FCMSendNotification(ctx, FCMSendRequest{
		Notification: FCMNotification{
			Title: m.Title,
			Body:  m.Body,
			Sound: "default",
		},
		Data:            m.Data,
		RegistrationIDs: m.Tokens,
	})
	if err != nil {
		return PushResult{}, err
	}

	res := PushResult{Success: resp.Success, Failure: resp.Failure}
	for i, r := range resp.Results {
		if r.Error == nil || i >= len(m.Tokens) {
			continue
		}
		res.Failed = append(res.Failed, TokenFailure{Token: m.Tokens[i], Reason: *r.Error})
	}
	return res, nil
}
