package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/token-ledger/internal/models"
)

var (
	alice = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xb0b0000000000000000000000000000000000002")
)

func newMockJournal(t *testing.T) (*Journal, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewJournal(db), mock
}

func stamped(e models.Event, seq uint64) models.Event {
	e.ID = "6b7f3e2c-1111-4222-8333-000000000001"
	e.Sequence = seq
	e.OccurredAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return e
}

func TestJournal_PublishTransfer(t *testing.T) {
	j, mock := newMockJournal(t)
	event := stamped(models.NewTransferEvent("CE20", models.Transfer{Kind: models.TransferMove, From: alice, To: bob, Amount: uint256.NewInt(1500)}), 3)
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_events")).
		WithArgs(event.ID, int64(3), "CE20", "Transfer", "move", alice.Hex(), bob.Hex(), "1500", payload, event.OccurredAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, j.Publish(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournal_PublishApproval(t *testing.T) {
	j, mock := newMockJournal(t)
	event := stamped(models.NewApprovalEvent("CE20", models.Approval{Owner: alice, Spender: bob, Amount: uint256.NewInt(9)}), 4)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_events")).
		WithArgs(event.ID, int64(4), "CE20", "Approval", "", alice.Hex(), bob.Hex(), "9", sqlmock.AnyArg(), event.OccurredAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, j.Publish(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournal_PublishBurnIsDistinctFromTransferToZero(t *testing.T) {
	j, mock := newMockJournal(t)
	move := stamped(models.NewTransferEvent("CE20", models.Transfer{Kind: models.TransferMove, From: alice, To: common.Address{}, Amount: uint256.NewInt(5)}), 7)
	burn := stamped(models.NewTransferEvent("CE20", models.Transfer{Kind: models.TransferBurn, From: alice, To: common.Address{}, Amount: uint256.NewInt(5)}), 8)
	burn.ID = "6b7f3e2c-1111-4222-8333-000000000002"

	zeroHex := common.Address{}.Hex()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_events")).
		WithArgs(move.ID, int64(7), "CE20", "Transfer", "move", alice.Hex(), zeroHex, "5", sqlmock.AnyArg(), move.OccurredAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_events")).
		WithArgs(burn.ID, int64(8), "CE20", "Transfer", "burn", alice.Hex(), zeroHex, "5", sqlmock.AnyArg(), burn.OccurredAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, j.Publish(context.Background(), move))
	require.NoError(t, j.Publish(context.Background(), burn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournal_PublishRejectsEmptyPayload(t *testing.T) {
	j, mock := newMockJournal(t)

	err := j.Publish(context.Background(), models.Event{Kind: models.EventTransfer, Sequence: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no matching payload")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournal_PublishExecError(t *testing.T) {
	j, mock := newMockJournal(t)
	event := stamped(models.NewTransferEvent("CE20", models.Transfer{From: alice, To: bob, Amount: uint256.NewInt(1)}), 1)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_events")).
		WillReturnError(errors.New("connection reset"))

	err := j.Publish(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestJournal_EventsByAccount(t *testing.T) {
	j, mock := newMockJournal(t)
	first := stamped(models.NewTransferEvent("CE20", models.Transfer{From: alice, To: bob, Amount: uint256.NewInt(10)}), 1)
	second := stamped(models.NewApprovalEvent("CE20", models.Approval{Owner: bob, Spender: alice, Amount: uint256.NewInt(2)}), 2)
	p1, err := json.Marshal(first)
	require.NoError(t, err)
	p2, err := json.Marshal(second)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM ledger_events")).
		WithArgs(bob.Hex()).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(p1).AddRow(p2))

	events, err := j.EventsByAccount(context.Background(), bob)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventTransfer, events[0].Kind)
	assert.Equal(t, uint256.NewInt(10), events[0].Transfer.Amount)
	assert.Equal(t, models.EventApproval, events[1].Kind)
	assert.Equal(t, alice, events[1].Approval.Spender)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournal_EventsByAccountBadPayload(t *testing.T) {
	j, mock := newMockJournal(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM ledger_events")).
		WithArgs(alice.Hex()).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte("{not json")))

	_, err := j.EventsByAccount(context.Background(), alice)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode journaled event")
}
