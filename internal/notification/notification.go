package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/careloop/careteam-BE/internal/docstore"
	"github.com/careloop/careteam-BE/internal/event"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound          = errors.New("notification not found")
	ErrForbidden         = errors.New("notification belongs to another account")
	ErrRecipientRequired = errors.New("notification recipient is required")
	ErrUnknownType       = errors.New("unknown notification type")
)

const (
	defaultListLimit = 25
	maxListLimit     = 100
)

// TaskDispatcher enqueues the asynchronous push fan-out. Dispatch failures
// never surface to the caller of Create.
type TaskDispatcher interface {
	DispatchDeliverNotification(ctx context.Context, notificationID string) error
}

type CreateInput struct {
	RecipientID string
	ActorID     string
	ActorName   string
	Type        Type
	Title       string
	Body        string
	Href        string
	Metadata    map[string]any
}

// Service owns notification records and the recipient-ownership invariant.
type Service struct {
	store       docstore.Store
	distributor TaskDispatcher
	eventSender event.EventSender
}

func NewService(store docstore.Store, distributor TaskDispatcher, eventSender event.EventSender) *Service {
	return &Service{
		store:       store,
		distributor: distributor,
		eventSender: eventSender,
	}
}

// Create validates and persists a notification, then dispatches push
// delivery. Delivery runs detached from the request: a failed dispatch is
// logged and swallowed so creation never depends on the push pipeline.
func (s *Service) Create(ctx context.Context, input CreateInput) (Notification, error) {
	recipientID := SanitizeText(input.RecipientID, maxRecipientIDLength)
	if recipientID == "" {
		return Notification{}, ErrRecipientRequired
	}
	if !input.Type.Valid() {
		return Notification{}, ErrUnknownType
	}

	actionStatus := ActionStatusNone
	if input.Type == TypeTeamInvite {
		actionStatus = ActionStatusPending
	}

	metadata := input.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	now := time.Now()
	id := s.store.NewID()
	data := map[string]any{
		"recipientId":  recipientID,
		"actorId":      input.ActorID,
		"actorName":    SanitizeText(input.ActorName, maxTitleLength),
		"type":         string(input.Type),
		"title":        SanitizeText(input.Title, maxTitleLength),
		"body":         SanitizeText(input.Body, maxBodyLength),
		"href":         input.Href,
		"read":         false,
		"actionStatus": string(actionStatus),
		"metadata":     metadata,
		"createdAt":    now,
		"updatedAt":    now,
	}

	if err := s.store.Set(ctx, CollectionNotifications, id, data); err != nil {
		return Notification{}, fmt.Errorf("failed to create notification: %w", err)
	}

	created := FromDocument(docstore.Document{ID: id, Data: data})

	if err := s.distributor.DispatchDeliverNotification(ctx, id); err != nil {
		log.Error().Err(err).Str("notificationID", id).Msg("push delivery skipped")
	}
	s.broadcastFeedChanged(recipientID)

	return created, nil
}

func (s *Service) Get(ctx context.Context, id string) (Notification, error) {
	doc, err := s.store.Get(ctx, CollectionNotifications, id)
	if errors.Is(err, docstore.ErrNoSuchDocument) {
		return Notification{}, ErrNotFound
	}
	if err != nil {
		return Notification{}, err
	}

	return FromDocument(doc), nil
}

// ListByRecipient returns the recipient's feed ordered by creation time
// descending. limit defaults to 25 and clamps to [1, 100].
func (s *Service) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	docs, err := s.store.GetAll(ctx, docstore.Query{
		Collection: CollectionNotifications,
		Field:      "recipientId",
		Op:         docstore.OpEqual,
		Value:      recipientID,
		OrderBy:    "createdAt",
		Desc:       true,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}

	notifications := make([]Notification, 0, len(docs))
	for _, doc := range docs {
		notifications = append(notifications, FromDocument(doc))
	}
	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})

	return notifications, nil
}

func (s *Service) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	docs, err := s.store.GetAll(ctx, docstore.Query{
		Collection: CollectionNotifications,
		Field:      "recipientId",
		Op:         docstore.OpEqual,
		Value:      recipientID,
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, doc := range docs {
		if doc.Data["read"] != true {
			count++
		}
	}
	return count, nil
}

// SetRead marks a notification read or unread. Only the recipient may do so.
func (s *Service) SetRead(ctx context.Context, id, requesterID string, read bool) (Notification, error) {
	existing, err := s.requireOwned(ctx, id, requesterID)
	if err != nil {
		return Notification{}, err
	}

	err = s.store.Update(ctx, CollectionNotifications, id, map[string]any{
		"read":      read,
		"updatedAt": time.Now(),
	})
	if errors.Is(err, docstore.ErrNoSuchDocument) {
		return Notification{}, ErrNotFound
	}
	if err != nil {
		return Notification{}, err
	}

	existing.Read = read
	s.broadcastFeedChanged(requesterID)
	return existing, nil
}

// Delete removes the record entirely. There is no soft delete.
func (s *Service) Delete(ctx context.Context, id, requesterID string) error {
	if _, err := s.requireOwned(ctx, id, requesterID); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, CollectionNotifications, id); err != nil {
		return err
	}

	s.broadcastFeedChanged(requesterID)
	return nil
}

func (s *Service) requireOwned(ctx context.Context, id, requesterID string) (Notification, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if existing.RecipientID != requesterID {
		return Notification{}, ErrForbidden
	}
	return existing, nil
}

func (s *Service) broadcastFeedChanged(recipientID string) {
	if s.eventSender == nil {
		return
	}
	s.eventSender.Broadcast(event.Event{
		Topic: event.UserTopic(recipientID),
		Type:  event.EventTypeFeedChanged,
	})
}
