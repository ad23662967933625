package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/lib/pq" // registers the "postgres" driver

	interfaces "github.com/sheikh-saqib/token-ledger/internal/interfaces"
	"github.com/sheikh-saqib/token-ledger/internal/models"
)

// Journal is an append-only audit trail of ledger events in PostgreSQL.
// Inserts are idempotent on the event ID so a relay may safely redeliver.
type Journal struct {
	db *sql.DB
}

func NewJournal(db *sql.DB) *Journal {
	return &Journal{
		db: db,
	}
}

// Open connects to PostgreSQL with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

// Publish records the event. It satisfies EventPublisher so the journal can be
// driven by the relay like any other subscriber.
func (j *Journal) Publish(ctx context.Context, event models.Event) error {
	const query = `INSERT INTO ledger_events (id, sequence, token, kind, transfer_kind, account, counterparty, amount, payload, occurred_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	ON CONFLICT (id) DO NOTHING`

	transferKind, account, counterparty, amount, err := parties(event)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %d: %w", event.Sequence, err)
	}

	_, err = j.db.ExecContext(ctx, query,
		event.ID,
		int64(event.Sequence),
		event.Token,
		string(event.Kind),
		string(transferKind),
		account.Hex(),
		counterparty.Hex(),
		amount,
		payload,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert event %d: %w", event.Sequence, err)
	}
	return nil
}

// EventsByAccount returns, in sequence order, every journaled event in which
// the account appears on either side.
func (j *Journal) EventsByAccount(ctx context.Context, account common.Address) ([]models.Event, error) {
	const query = `SELECT payload FROM ledger_events
	WHERE account = $1 OR counterparty = $1
	ORDER BY token, sequence`

	rows, err := j.db.QueryContext(ctx, query, account.Hex())
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		var event models.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("decode journaled event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func parties(event models.Event) (models.TransferKind, common.Address, common.Address, string, error) {
	switch {
	case event.Kind == models.EventTransfer && event.Transfer != nil:
		t := event.Transfer
		return t.Kind, t.From, t.To, t.Amount.Dec(), nil
	case event.Kind == models.EventApproval && event.Approval != nil:
		a := event.Approval
		return "", a.Owner, a.Spender, a.Amount.Dec(), nil
	default:
		return "", common.Address{}, common.Address{}, "", fmt.Errorf("event %d: kind %q has no matching payload", event.Sequence, event.Kind)
	}
}

var _ interfaces.EventPublisher = (*Journal)(nil)

var _ interfaces.EventHistory = (*Journal)(nil)
