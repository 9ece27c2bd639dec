package service

import "context"

// EventPublisher is the notification collaborator as the services see it.
// Publishing is best-effort; failures are logged, never propagated into
// the request path.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}
