package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resty.dev/v3"
)

// API is the slice of the backend the subscriber mutates through. Local state
// is optimistic; these calls are the authority.
type API interface {
	MarkRead(ctx context.Context, notificationID string) error
	MarkUnread(ctx context.Context, notificationID string) error
	Delete(ctx context.Context, notificationID string) error
	Respond(ctx context.Context, notificationID, decision string) error
}

var ErrUnexpectedStatus = errors.New("unexpected response status")

// HTTPClient talks to the notification endpoints with a bearer token.
type HTTPClient struct {
	client *resty.Client
}

func NewHTTPClient(baseURL, accessToken string) *HTTPClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(accessToken).
		SetTimeout(10 * time.Second)

	return &HTTPClient{client: client}
}

func (c *HTTPClient) Close() error {
	return c.client.Close()
}

func (c *HTTPClient) MarkRead(ctx context.Context, notificationID string) error {
	return c.patchAction(ctx, notificationID, "mark_read")
}

func (c *HTTPClient) MarkUnread(ctx context.Context, notificationID string) error {
	return c.patchAction(ctx, notificationID, "mark_unread")
}

func (c *HTTPClient) patchAction(ctx context.Context, notificationID, action string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", notificationID).
		SetBody(map[string]string{"action": action}).
		Patch("/v1/notifications/{id}")
	if err != nil {
		return err
	}
	return checkStatus(resp)
}

func (c *HTTPClient) Delete(ctx context.Context, notificationID string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", notificationID).
		Delete("/v1/notifications/{id}")
	if err != nil {
		return err
	}
	return checkStatus(resp)
}

func (c *HTTPClient) Respond(ctx context.Context, notificationID, decision string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", notificationID).
		SetBody(map[string]string{"decision": decision}).
		Post("/v1/notifications/{id}/respond")
	if err != nil {
		return err
	}
	return checkStatus(resp)
}

func checkStatus(resp *resty.Response) error {
	if resp.IsError() {
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status())
	}
	return nil
}
