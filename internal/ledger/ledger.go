package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	interfaces "github.com/sheikh-saqib/token-ledger/internal/interfaces"
	"github.com/sheikh-saqib/token-ledger/internal/models"
)

// Config holds the construction parameters supplied by the deployer.
type Config struct {
	Name     string
	Symbol   string
	Decimals uint8
	// InitialSupply is credited to Owner. It is taken as raw units unless
	// ScaleInitialSupply is set, in which case it is multiplied by 10^Decimals.
	InitialSupply      *uint256.Int
	ScaleInitialSupply bool
	// Owner is the privileged account, the only caller allowed to mint or burn.
	Owner common.Address
}

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// Ledger is a fungible-token state machine over a balance mapping and an
// allowance mapping. It performs no locking: the host must run one operation
// at a time. Absent map entries read as zero and zero values are never stored.
type Ledger struct {
	name        string
	symbol      string
	decimals    uint8
	owner       common.Address
	totalSupply *uint256.Int
	balances    map[common.Address]*uint256.Int
	allowances  map[allowanceKey]*uint256.Int
	log         interfaces.EventLog
}

// New builds a ledger and credits the whole initial supply to cfg.Owner.
// A nil log discards events. The only possible error is ErrOverflow when the
// scaled initial supply does not fit in 256 bits.
func New(cfg Config, log interfaces.EventLog) (*Ledger, error) {
	supply := new(uint256.Int).Set(orZero(cfg.InitialSupply))
	if cfg.ScaleInitialSupply {
		scaled, err := scale(supply, cfg.Decimals)
		if err != nil {
			return nil, fmt.Errorf("initialize: scale %s by 10^%d: %w", supply.Dec(), cfg.Decimals, err)
		}
		supply = scaled
	}
	if log == nil {
		log = discardLog{}
	}

	l := &Ledger{
		name:        cfg.Name,
		symbol:      cfg.Symbol,
		decimals:    cfg.Decimals,
		owner:       cfg.Owner,
		totalSupply: supply,
		balances:    make(map[common.Address]*uint256.Int),
		allowances:  make(map[allowanceKey]*uint256.Int),
		log:         log,
	}
	if !supply.IsZero() {
		l.balances[cfg.Owner] = new(uint256.Int).Set(supply)
		l.emitTransfer(models.TransferMint, common.Address{}, cfg.Owner, supply)
	}
	return l, nil
}

// Name returns the token name fixed at construction.
func (l *Ledger) Name() string { return l.name }

// Symbol returns the token symbol. It also tags every emitted event.
func (l *Ledger) Symbol() string { return l.symbol }

// Decimals returns the display precision. It never affects arithmetic.
func (l *Ledger) Decimals() uint8 { return l.decimals }

// Owner returns the privileged account allowed to mint and burn.
func (l *Ledger) Owner() common.Address { return l.owner }

// TotalSupply returns a copy of the current supply.
func (l *Ledger) TotalSupply() *uint256.Int {
	return new(uint256.Int).Set(l.totalSupply)
}

// BalanceOf returns a copy of the account's balance, zero if never credited.
func (l *Ledger) BalanceOf(account common.Address) *uint256.Int {
	return new(uint256.Int).Set(l.balance(account))
}

// Allowance returns how much spender may still move out of owner's balance.
func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	return new(uint256.Int).Set(l.allowance(owner, spender))
}

// Transfer moves amount from caller to to.
func (l *Ledger) Transfer(caller, to common.Address, amount *uint256.Int) error {
	amount = orZero(amount)
	fromBal, toBal, err := l.planMove(caller, to, amount)
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}

	l.setBalance(caller, fromBal)
	l.setBalance(to, toBal)
	l.emitTransfer(models.TransferMove, caller, to, amount)
	return nil
}

// Approve sets the caller's allowance for spender to amount. The previous
// value is overwritten, never added to.
func (l *Ledger) Approve(caller, spender common.Address, amount *uint256.Int) {
	amount = orZero(amount)
	l.setAllowance(caller, spender, new(uint256.Int).Set(amount))
	l.log.Append(models.NewApprovalEvent(l.symbol, models.Approval{
		Owner:   caller,
		Spender: spender,
		Amount:  new(uint256.Int).Set(amount),
	}))
}

// TransferFrom moves amount from owner to to, spending the allowance owner
// granted to caller. The allowance is checked before the balance.
func (l *Ledger) TransferFrom(caller, owner, to common.Address, amount *uint256.Int) error {
	amount = orZero(amount)
	current := l.allowance(owner, caller)
	if current.Lt(amount) {
		return fmt.Errorf("transferFrom: %w: allowance %s, amount %s", ErrInsufficientAllowance, current.Dec(), amount.Dec())
	}
	remaining, err := sub(current, amount)
	if err != nil {
		return fmt.Errorf("transferFrom: %w", err)
	}
	fromBal, toBal, err := l.planMove(owner, to, amount)
	if err != nil {
		return fmt.Errorf("transferFrom: %w", err)
	}

	l.setAllowance(owner, caller, remaining)
	l.setBalance(owner, fromBal)
	l.setBalance(to, toBal)
	l.emitTransfer(models.TransferMove, owner, to, amount)
	return nil
}

// Mint creates amount new units and credits them to to.
func (l *Ledger) Mint(caller, to common.Address, amount *uint256.Int) error {
	amount = orZero(amount)
	if caller != l.owner {
		return fmt.Errorf("mint: %w", ErrUnauthorized)
	}
	supply, err := add(l.totalSupply, amount)
	if err != nil {
		return fmt.Errorf("mint: total supply: %w", err)
	}
	toBal, err := add(l.balance(to), amount)
	if err != nil {
		return fmt.Errorf("mint: balance: %w", err)
	}

	l.totalSupply = supply
	l.setBalance(to, toBal)
	l.emitTransfer(models.TransferMint, common.Address{}, to, amount)
	return nil
}

// Burn destroys amount units held by from.
func (l *Ledger) Burn(caller, from common.Address, amount *uint256.Int) error {
	amount = orZero(amount)
	if caller != l.owner {
		return fmt.Errorf("burn: %w", ErrUnauthorized)
	}
	bal := l.balance(from)
	if bal.Lt(amount) {
		return fmt.Errorf("burn: %w: balance %s, amount %s", ErrInsufficientBalance, bal.Dec(), amount.Dec())
	}
	fromBal, err := sub(bal, amount)
	if err != nil {
		return fmt.Errorf("burn: balance: %w", err)
	}
	supply, err := sub(l.totalSupply, amount)
	if err != nil {
		return fmt.Errorf("burn: total supply: %w", err)
	}

	l.totalSupply = supply
	l.setBalance(from, fromBal)
	l.emitTransfer(models.TransferBurn, from, common.Address{}, amount)
	return nil
}

// CheckConservation recomputes the sum of all balances and reports an error
// if it differs from the total supply.
func (l *Ledger) CheckConservation() error {
	sum := new(uint256.Int)
	for account, bal := range l.balances {
		next, err := add(sum, bal)
		if err != nil {
			return fmt.Errorf("conservation: summing balance of %s: %w", account.Hex(), err)
		}
		sum = next
	}
	if !sum.Eq(l.totalSupply) {
		return fmt.Errorf("conservation: balances sum to %s, total supply is %s", sum.Dec(), l.totalSupply.Dec())
	}
	return nil
}

// planMove computes the post-move balances of from and to without touching
// state. When from == to the credit is applied on top of the debit so the
// net result is the original balance.
func (l *Ledger) planMove(from, to common.Address, amount *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	bal := l.balance(from)
	if bal.Lt(amount) {
		return nil, nil, fmt.Errorf("%w: balance %s, amount %s", ErrInsufficientBalance, bal.Dec(), amount.Dec())
	}
	fromBal, err := sub(bal, amount)
	if err != nil {
		return nil, nil, err
	}

	base := l.balance(to)
	if from == to {
		base = fromBal
	}
	toBal, err := add(base, amount)
	if err != nil {
		return nil, nil, err
	}
	return fromBal, toBal, nil
}

func (l *Ledger) balance(account common.Address) *uint256.Int {
	if v, ok := l.balances[account]; ok {
		return v
	}
	return new(uint256.Int)
}

func (l *Ledger) allowance(owner, spender common.Address) *uint256.Int {
	if v, ok := l.allowances[allowanceKey{owner, spender}]; ok {
		return v
	}
	return new(uint256.Int)
}

func (l *Ledger) setBalance(account common.Address, v *uint256.Int) {
	if v.IsZero() {
		delete(l.balances, account)
		return
	}
	l.balances[account] = v
}

func (l *Ledger) setAllowance(owner, spender common.Address, v *uint256.Int) {
	key := allowanceKey{owner, spender}
	if v.IsZero() {
		delete(l.allowances, key)
		return
	}
	l.allowances[key] = v
}

func (l *Ledger) emitTransfer(kind models.TransferKind, from, to common.Address, amount *uint256.Int) {
	l.log.Append(models.NewTransferEvent(l.symbol, models.Transfer{
		Kind:   kind,
		From:   from,
		To:     to,
		Amount: new(uint256.Int).Set(amount),
	}))
}

type discardLog struct{}

func (discardLog) Append(e models.Event) models.Event { return e }
