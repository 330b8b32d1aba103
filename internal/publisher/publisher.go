// Package publisher defines the message publishing port used for lead
// records and pixel commands.
package publisher

import "context"

// Publisher sends a JSON-serializable payload to a topic and returns the
// broker-assigned message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
