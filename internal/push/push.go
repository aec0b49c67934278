package push

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/careloop/careteam-BE/internal/docstore"
	"github.com/careloop/careteam-BE/internal/notification"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	CollectionUsers = "users"

	// A recipient may accumulate stale registrations across devices; the
	// multicast caps out rather than failing.
	maxTokensPerSend = 20
)

// Service fans one notification out to every registered endpoint of its
// recipient and self-heals the endpoint set when the provider reports a
// token as permanently invalid.
type Service struct {
	store    docstore.Store
	provider Provider
}

func NewService(store docstore.Store, provider Provider) *Service {
	return &Service{store: store, provider: provider}
}

// Deliver is best-effort at-most-once: no registered endpoints is a no-op,
// and transient provider failures are logged, never retried here. The
// notification record stays the durable source of truth either way.
func (s *Service) Deliver(ctx context.Context, notif notification.Notification) error {
	userDoc, err := s.store.Get(ctx, CollectionUsers, notif.RecipientID)
	if errors.Is(err, docstore.ErrNoSuchDocument) {
		return nil
	}
	if err != nil {
		return err
	}

	tokens := endpointTokens(userDoc.Data["fcmTokens"])
	if len(tokens) == 0 {
		return nil
	}

	link := notif.Href
	if link == "" {
		link = "/notifications"
	}

	result, err := s.provider.SendMulticast(ctx, tokens, Message{
		Title: notif.Title,
		Body:  notif.Body,
		Link:  link,
		Data: map[string]string{
			"notificationId": notif.ID,
			"type":           string(notif.Type),
			"href":           notif.Href,
			// Random nonce defeats provider-side de-duplication of
			// visually identical notifications.
			"nonce": uuid.NewString()[:8],
		},
	})
	if err != nil {
		log.Error().Err(err).Str("recipientID", notif.RecipientID).Msg("push multicast failed")
		return nil
	}

	if len(result.InvalidTokens) > 0 {
		s.pruneTokens(ctx, notif.RecipientID, tokens, result.InvalidTokens)
	}

	log.Info().
		Str("notificationID", notif.ID).
		Int("success", result.SuccessCount).
		Int("failure", result.FailureCount).
		Msg("push fan-out complete")
	return nil
}

// RegisterToken attaches an endpoint token to the account, stealing it from
// any previous owner. Registering the same token twice is a no-op.
func (s *Service) RegisterToken(ctx context.Context, userID, token string) error {
	owners, err := s.store.GetAll(ctx, docstore.Query{
		Collection: CollectionUsers,
		Field:      "fcmTokens",
		Op:         docstore.OpArrayContains,
		Value:      token,
	})
	if err != nil {
		return err
	}

	for _, owner := range owners {
		if owner.ID == userID {
			continue
		}
		if err := s.writeTokens(ctx, owner.ID, removeToken(endpointTokens(owner.Data["fcmTokens"]), token)); err != nil {
			return err
		}
	}

	userDoc, err := s.store.Get(ctx, CollectionUsers, userID)
	var tokens []string
	if err == nil {
		tokens = endpointTokens(userDoc.Data["fcmTokens"])
	} else if !errors.Is(err, docstore.ErrNoSuchDocument) {
		return err
	}

	for _, existing := range tokens {
		if existing == token {
			return nil
		}
	}

	return s.writeTokens(ctx, userID, append(tokens, token))
}

// UnregisterToken detaches an endpoint token. Unknown tokens are ignored.
func (s *Service) UnregisterToken(ctx context.Context, userID, token string) error {
	userDoc, err := s.store.Get(ctx, CollectionUsers, userID)
	if errors.Is(err, docstore.ErrNoSuchDocument) {
		return nil
	}
	if err != nil {
		return err
	}

	return s.writeTokens(ctx, userID, removeToken(endpointTokens(userDoc.Data["fcmTokens"]), token))
}

func (s *Service) pruneTokens(ctx context.Context, recipientID string, sent, invalid []string) {
	gone := make(map[string]bool, len(invalid))
	for _, token := range invalid {
		gone[token] = true
	}

	kept := make([]string, 0, len(sent))
	for _, token := range sent {
		if !gone[token] {
			kept = append(kept, token)
		}
	}

	if err := s.writeTokens(ctx, recipientID, kept); err != nil {
		log.Error().Err(err).Str("recipientID", recipientID).Msg("failed to prune stale push endpoints")
		return
	}
	log.Info().Str("recipientID", recipientID).Int("pruned", len(invalid)).Msg("stale push endpoints removed")
}

func (s *Service) writeTokens(ctx context.Context, userID string, tokens []string) error {
	return s.store.Merge(ctx, CollectionUsers, userID, map[string]any{
		"fcmTokens": tokens,
		"updatedAt": time.Now(),
	})
}

func removeToken(tokens []string, token string) []string {
	kept := make([]string, 0, len(tokens))
	for _, existing := range tokens {
		if existing != token {
			kept = append(kept, existing)
		}
	}
	return kept
}

func endpointTokens(value any) []string {
	var raw []string
	switch v := value.(type) {
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}

	seen := make(map[string]bool, len(raw))
	tokens := make([]string, 0, len(raw))
	for _, token := range raw {
		token = strings.TrimSpace(token)
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
		if len(tokens) == maxTokensPerSend {
			break
		}
	}
	return tokens
}
