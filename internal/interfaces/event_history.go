package interfaces

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sheikh-saqib/token-ledger/internal/models"
)

// EventHistory answers per-account queries over delivered events.
type EventHistory interface {
	EventsByAccount(ctx context.Context, account common.Address) ([]models.Event, error)
}
