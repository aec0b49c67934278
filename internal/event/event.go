package event

// Event is a server-pushed signal scoped to one topic.
type Event struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
}

const (
	// EventTypeFeedChanged tells a subscribed client its notification feed
	// changed and should be re-read from the authoritative store.
	EventTypeFeedChanged = "feed_changed"
)

// UserTopic is the per-account topic notification feed events publish to.
func UserTopic(userID string) string {
	return "user:" + userID
}

// EventSender is the server side of the live-push channel to clients.
type EventSender interface {
	Register(topic string, client chan Event)
	Unregister(topic string, client chan Event)
	Broadcast(event Event)
	Run()
}
