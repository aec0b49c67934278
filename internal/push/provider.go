package push

import "context"

// Message is one multicast payload sent to every endpoint of a recipient.
type Message struct {
	Title string
	Body  string
	Link  string
	Data  map[string]string
}

// BatchResult reports a multicast send. InvalidTokens carries only endpoints
// the provider rejected permanently; transient failures count toward
// FailureCount but are not pruned.
type BatchResult struct {
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
}

// Provider is the push gateway contract: one batch send to N endpoint tokens
// with per-token outcomes.
type Provider interface {
	SendMulticast(ctx context.Context, tokens []string, msg Message) (BatchResult, error)
}
