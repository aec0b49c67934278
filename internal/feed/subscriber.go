package feed

import (
	"context"
	"sort"
	"sync"

	"github.com/careloop/careteam-BE/internal/docstore"
	"github.com/careloop/careteam-BE/internal/notification"
	"github.com/rs/zerolog/log"
)

// Subscriber mirrors one recipient's notification feed. It consumes snapshot
// streams from the store, keeps a createdAt-descending local list, and applies
// user actions optimistically: the local copy changes first, the backend call
// follows, and a failed call restores the pre-action snapshot.
type Subscriber struct {
	store       docstore.Store
	api         API
	recipientID string

	mu       sync.RWMutex
	items    []notification.Notification
	seen     map[string]bool
	hydrated bool

	alerts chan notification.Notification
}

func NewSubscriber(store docstore.Store, api API, recipientID string) *Subscriber {
	return &Subscriber{
		store:       store,
		api:         api,
		recipientID: recipientID,
		seen:        make(map[string]bool),
		alerts:      make(chan notification.Notification, 16),
	}
}

// Subscribe starts consuming feed snapshots until ctx is done. The alerts
// channel closes when the stream ends.
func (s *Subscriber) Subscribe(ctx context.Context) error {
	updates, err := s.store.Watch(ctx, docstore.Query{
		Collection: notification.CollectionNotifications,
		Field:      "recipientId",
		Op:         docstore.OpEqual,
		Value:      s.recipientID,
	})
	if err != nil {
		return err
	}

	go func() {
		defer close(s.alerts)
		for docs := range updates {
			s.apply(docs)
		}
	}()
	return nil
}

// Alerts emits unread notifications the subscriber has not seen before.
// Notifications already present when the subscription starts never alert.
func (s *Subscriber) Alerts() <-chan notification.Notification {
	return s.alerts
}

// Items returns the current feed, newest first.
func (s *Subscriber) Items() []notification.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]notification.Notification, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Subscriber) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, item := range s.items {
		if !item.Read {
			count++
		}
	}
	return count
}

func (s *Subscriber) apply(docs []docstore.Document) {
	items := make([]notification.Notification, 0, len(docs))
	for _, doc := range docs {
		items = append(items, notification.FromDocument(doc))
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	s.mu.Lock()
	firstSnapshot := !s.hydrated
	s.hydrated = true

	var fresh []notification.Notification
	for _, item := range items {
		if !s.seen[item.ID] {
			s.seen[item.ID] = true
			if !firstSnapshot && !item.Read {
				fresh = append(fresh, item)
			}
		}
	}
	s.items = items
	s.mu.Unlock()

	for _, item := range fresh {
		select {
		case s.alerts <- item:
		default:
			// Slow consumer. Dropping the alert is fine, the item is
			// still in the feed.
			log.Warn().Str("notificationID", item.ID).Msg("alert dropped")
		}
	}
}

// MarkRead optimistically marks the local copy read, then confirms with the
// backend. On failure the local feed is restored and the error returned.
func (s *Subscriber) MarkRead(ctx context.Context, notificationID string) error {
	return s.optimistic(ctx, notificationID,
		func(item *notification.Notification) {
			item.Read = true
		},
		func(ctx context.Context) error {
			return s.api.MarkRead(ctx, notificationID)
		},
	)
}

func (s *Subscriber) MarkUnread(ctx context.Context, notificationID string) error {
	return s.optimistic(ctx, notificationID,
		func(item *notification.Notification) {
			item.Read = false
		},
		func(ctx context.Context) error {
			return s.api.MarkUnread(ctx, notificationID)
		},
	)
}

// Delete removes the item locally before asking the backend.
func (s *Subscriber) Delete(ctx context.Context, notificationID string) error {
	s.mu.Lock()
	snapshot := s.snapshotLocked()
	kept := s.items[:0:0]
	for _, item := range s.items {
		if item.ID != notificationID {
			kept = append(kept, item)
		}
	}
	s.items = kept
	s.mu.Unlock()

	if err := s.api.Delete(ctx, notificationID); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

// Respond resolves a team invitation, optimistically moving the local copy
// into its terminal state.
func (s *Subscriber) Respond(ctx context.Context, notificationID, decision string) error {
	return s.optimistic(ctx, notificationID,
		func(item *notification.Notification) {
			item.ActionStatus = notification.ActionStatus(decision)
			item.Read = true
		},
		func(ctx context.Context) error {
			return s.api.Respond(ctx, notificationID, decision)
		},
	)
}

func (s *Subscriber) optimistic(ctx context.Context, notificationID string, mutate func(*notification.Notification), call func(context.Context) error) error {
	s.mu.Lock()
	snapshot := s.snapshotLocked()
	for i := range s.items {
		if s.items[i].ID == notificationID {
			mutate(&s.items[i])
			break
		}
	}
	s.mu.Unlock()

	if err := call(ctx); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

func (s *Subscriber) snapshotLocked() []notification.Notification {
	snapshot := make([]notification.Notification, len(s.items))
	copy(snapshot, s.items)
	return snapshot
}

func (s *Subscriber) restore(snapshot []notification.Notification) {
	s.mu.Lock()
	s.items = snapshot
	s.mu.Unlock()
}
