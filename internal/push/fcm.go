package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
)

// FCMProvider implements Provider on Firebase Cloud Messaging.
type FCMProvider struct {
	client *messaging.Client
}

func NewFCMProvider(ctx context.Context, firebaseApp *firebase.App) (*FCMProvider, error) {
	client, err := firebaseApp.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}

	return &FCMProvider{client: client}, nil
}

func (p *FCMProvider) SendMulticast(ctx context.Context, tokens []string, msg Message) (BatchResult, error) {
	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Webpush: &messaging.WebpushConfig{
			FCMOptions: &messaging.WebpushFCMOptions{
				Link: msg.Link,
			},
		},
	}

	response, err := p.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{
		SuccessCount: response.SuccessCount,
		FailureCount: response.FailureCount,
	}
	for i, item := range response.Responses {
		if item.Success {
			continue
		}
		// Only tokens the provider reports as gone for good are pruned.
		if messaging.IsRegistrationTokenNotRegistered(item.Error) {
			result.InvalidTokens = append(result.InvalidTokens, tokens[i])
		}
	}

	return result, nil
}
