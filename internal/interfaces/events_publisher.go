package interfaces

import (
	"context"

	"github.com/sheikh-saqib/token-ledger/internal/models"
)

// EventPublisher delivers a stamped event to an external subscriber.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}
