package interfaces

import "github.com/sheikh-saqib/token-ledger/internal/models"

// EventLog is the append-only side channel the ledger writes to. The ledger
// never reads it back; Append returns the stamped copy for callers that care.
type EventLog interface {
	Append(event models.Event) models.Event
}
