package ports

import (
	"context"

	"hexcolony/internal/domain/territory"
)

// EventPublisher fans committed events out to live subscribers. Delivery
// is best effort; callers log errors and carry on.
type EventPublisher interface {
	Publish(ctx context.Context, events []territory.CaptureEvent) error
}
