package models

import (
	"time"
)

// EventKind names the observable ledger notification.
type EventKind string

const (
	EventTransfer EventKind = "Transfer"
	EventApproval EventKind = "Approval"
)

// Event is the envelope written to the event log for every successful
// mutation. Exactly one of Transfer or Approval is set, matching Kind.
type Event struct {
	ID         string    `json:"id"`
	Sequence   uint64    `json:"sequence"`
	Kind       EventKind `json:"kind"`
	Token      string    `json:"token"`
	Transfer   *Transfer `json:"transfer,omitempty"`
	Approval   *Approval `json:"approval,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewTransferEvent builds an unstamped Transfer envelope.
func NewTransferEvent(token string, t Transfer) Event {
	return Event{Kind: EventTransfer, Token: token, Transfer: &t}
}

// NewApprovalEvent builds an unstamped Approval envelope.
func NewApprovalEvent(token string, a Approval) Event {
	return Event{Kind: EventApproval, Token: token, Approval: &a}
}
