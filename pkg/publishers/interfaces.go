package publishers

import "context"

// Publisher sends the release digest to a downstream sink (Slack, SQS, HTTP, etc).
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}
