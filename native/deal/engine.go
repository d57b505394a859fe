package deal

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"dealledger/core/events"
	"dealledger/core/types"
)

var (
	errNilState = errors.New("deal engine: state not configured")
	errNilRails = errors.New("deal engine: rails not configured")
	errNilRoles = errors.New("deal engine: roles not configured")
)

// DefaultCommissionRate is the process-wide rate installed at engine
// creation until the owner changes it.
const DefaultCommissionRate uint32 = 10

// State is the persistence backend consumed by the engine. Identifier
// assignment follows the reserved-slot convention: the counter is initialised
// to 1, NextDealID pre-increments, so the first deal observes id 2 and
// DealCount on an empty store reads 1.
type State interface {
	DealPut(*Deal) error
	DealGet(id uint64) (*Deal, bool, error)
	NextDealID() (uint64, error)
	DealCount() (uint64, error)
	DealIndexUser(user [20]byte, id uint64) error
	DealIDsByUser(user [20]byte) ([]uint64, error)
	PoolBalance(rail Rail) (*big.Int, error)
	PoolCredit(rail Rail, amount *big.Int) error
	PoolDebit(rail Rail, amount *big.Int) error
}

// Rails is the value-transfer collaborator: one custody ledger covering every
// token rail plus the native currency. TransferIn pulls funds from a payer
// into custody; TransferOut pushes custody funds to a payee. A rejection from
// either aborts the enclosing engine operation with no partial effect.
type Rails interface {
	TransferIn(rail Rail, from [20]byte, amount *big.Int) error
	TransferOut(rail Rail, to [20]byte, amount *big.Int) error
	BalanceOf(rail Rail, holder [20]byte) (*big.Int, error)
}

// RoleSet is the authorization collaborator holding the owner identity and
// the mutable admin set.
type RoleSet interface {
	IsOwner(addr [20]byte) bool
	IsAdmin(addr [20]byte) bool
	SetAdmin(addr [20]byte, enabled bool) error
}

type dealEvent struct {
	evt *types.Event
}

func (e dealEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e dealEvent) Event() *types.Event { return e.evt }

// Engine wires the deal lifecycle and settlement accounting with external
// state, rails, roles and event emitters. A single mutex serialises every
// mutating operation so transitions, rate changes and pool movements are each
// committed as one atomic unit.
type Engine struct {
	mu             sync.Mutex
	state          State
	rails          Rails
	roles          RoleSet
	emitter        events.Emitter
	commissionRate uint32
	nowFn          func() int64
}

// NewEngine creates an engine with the default commission rate and a no-op
// emitter. Callers wire the collaborators via the setters.
func NewEngine() *Engine {
	return &Engine{
		emitter:        events.NoopEmitter{},
		commissionRate: DefaultCommissionRate,
		nowFn:          func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the persistence backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetRails configures the value-transfer collaborator.
func (e *Engine) SetRails(rails Rails) { e.rails = rails }

// SetRoles configures the owner/admin authorization collaborator.
func (e *Engine) SetRoles(roles RoleSet) { e.roles = roles }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(dealEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) collaborators() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.rails == nil {
		return errNilRails
	}
	if e.roles == nil {
		return errNilRoles
	}
	return nil
}

// role names one row of the authorization matrix.
type role uint8

const (
	rolePerformer role = iota
	roleCreator
	roleParticipant
	roleAdmin
	roleOwner
)

// authorize holds the whole role matrix in one place. Participant failures
// surface as ErrInvalidParty (the caller is a stranger to the deal), the rest
// as ErrUnauthorized.
func (e *Engine) authorize(caller [20]byte, d *Deal, r role) error {
	switch r {
	case rolePerformer:
		if d == nil || caller != d.Performer {
			return fmt.Errorf("%w: caller is not the performer", ErrUnauthorized)
		}
	case roleCreator:
		if d == nil || caller != d.Creator {
			return fmt.Errorf("%w: caller is not the creator", ErrUnauthorized)
		}
	case roleParticipant:
		if d == nil || (caller != d.Creator && caller != d.Performer) {
			return fmt.Errorf("%w: caller does not participate in this deal", ErrInvalidParty)
		}
	case roleAdmin:
		if !e.roles.IsAdmin(caller) {
			return fmt.Errorf("%w: caller is not an admin", ErrUnauthorized)
		}
	case roleOwner:
		if !e.roles.IsOwner(caller) {
			return fmt.Errorf("%w: caller is not the owner", ErrUnauthorized)
		}
	}
	return nil
}

func (e *Engine) loadDeal(id uint64) (*Deal, error) {
	d, ok, err := e.state.DealGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

// CommissionRate returns the process-wide rate applied to deals created now.
func (e *Engine) CommissionRate() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commissionRate
}

// SetCommissionRate installs the configured rate at boot time, before the
// engine serves operations. Owner-driven changes at runtime go through
// ChangeCommission.
func (e *Engine) SetCommissionRate(rate uint32) error {
	if rate == 0 || rate >= 100 {
		return ErrCommissionRange
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commissionRate = rate
	return nil
}

// Create locks a token-rail amount from the creator and records a new
// Pending deal.
func (e *Engine) Create(creator, performer [20]byte, token string, amount *big.Int) (*Deal, error) {
	return e.create(creator, performer, TokenRail(token), amount)
}

// CreateNative locks a native-currency amount from the creator and records a
// new Pending deal.
func (e *Engine) CreateNative(creator, performer [20]byte, amount *big.Int) (*Deal, error) {
	return e.create(creator, performer, NativeRail(), amount)
}

func (e *Engine) create(creator, performer [20]byte, rail Rail, amount *big.Int) (*Deal, error) {
	if err := e.collaborators(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if performer == ([20]byte{}) {
		return nil, fmt.Errorf("%w: performer cannot be zero", ErrInvalidParty)
	}
	if performer == creator {
		return nil, fmt.Errorf("%w: performer cannot be creator", ErrInvalidParty)
	}
	rail, err := NormalizeRail(rail)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if err := e.rails.TransferIn(rail, creator, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	id, err := e.state.NextDealID()
	if err != nil {
		return nil, err
	}
	d := &Deal{
		ID:         id,
		Creator:    creator,
		Performer:  performer,
		Rail:       rail,
		Amount:     new(big.Int).Set(amount),
		CreatedAt:  now,
		Commission: e.commissionRate,
		Status:     StatusPending,
	}
	if err := e.state.DealPut(d); err != nil {
		return nil, err
	}
	if err := e.state.DealIndexUser(creator, id); err != nil {
		return nil, err
	}
	if err := e.state.DealIndexUser(performer, id); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(d))
	return d.Clone(), nil
}

// Confirm marks a Pending deal as Confirmed. Only the performer may confirm.
func (e *Engine) Confirm(id uint64, caller [20]byte) error {
	if err := e.collaborators(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.loadDeal(id)
	if err != nil {
		return err
	}
	if err := e.authorize(caller, d, rolePerformer); err != nil {
		return err
	}
	if d.Status != StatusPending {
		return fmt.Errorf("%w: deal is not pending", ErrInvalidState)
	}
	d.Status = StatusConfirmed
	if err := e.state.DealPut(d); err != nil {
		return err
	}
	e.emit(NewConfirmedEvent(d, e.now()))
	return nil
}

// Complete settles the deal in favour of the performer: the performer
// receives the commission-reduced payout and the retained cut is credited to
// the rail's withdrawable pool. Only the creator may complete, and only while
// the deal is not yet Done. A never-confirmed Pending deal may be completed
// directly.
func (e *Engine) Complete(id uint64, caller [20]byte) error {
	if err := e.collaborators(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.loadDeal(id)
	if err != nil {
		return err
	}
	if err := e.authorize(caller, d, roleCreator); err != nil {
		return err
	}
	if d.Status == StatusDone {
		return fmt.Errorf("%w: deal is closed", ErrInvalidState)
	}
	payout, retained, err := e.settle(d, d.Performer)
	if err != nil {
		return err
	}
	e.emit(NewCompletedEvent(d, payout, retained, e.now()))
	return nil
}

// Cancel refunds the full amount to the creator with no commission retained.
// Either participant may cancel, but only while the deal is Pending.
func (e *Engine) Cancel(id uint64, caller [20]byte) error {
	if err := e.collaborators(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.loadDeal(id)
	if err != nil {
		return err
	}
	if err := e.authorize(caller, d, roleParticipant); err != nil {
		return err
	}
	if d.Status != StatusPending {
		return fmt.Errorf("%w: deal is not pending", ErrInvalidState)
	}
	refund, err := RefundAmount(d)
	if err != nil {
		return err
	}
	if err := e.rails.TransferOut(d.Rail, d.Creator, refund); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	d.Status = StatusDone
	if err := e.state.DealPut(d); err != nil {
		return err
	}
	e.emit(NewCancelledEvent(d, refund, e.now()))
	return nil
}

// Close force-settles a deal without performer confirmation. Only an admin
// may close, and only while the deal is not yet Done. The payout goes to the
// performer when toPerformer is set, otherwise back to the creator; the
// retained cut is credited to the pool either way.
func (e *Engine) Close(id uint64, caller [20]byte, toPerformer bool) error {
	if err := e.collaborators(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.loadDeal(id)
	if err != nil {
		return err
	}
	if err := e.authorize(caller, d, roleAdmin); err != nil {
		return err
	}
	if d.Status == StatusDone {
		return fmt.Errorf("%w: deal is closed", ErrInvalidState)
	}
	payee := d.Creator
	if toPerformer {
		payee = d.Performer
	}
	payout, retained, err := e.settle(d, payee)
	if err != nil {
		return err
	}
	e.emit(NewClosedEvent(d, payout, retained, toPerformer, e.now()))
	return nil
}

// settle applies the commission split: transfer-out to the payee and pool
// credit of the retained cut, then the terminal state write. Callers hold the
// engine mutex.
func (e *Engine) settle(d *Deal, payee [20]byte) (*big.Int, *big.Int, error) {
	payout, retained, err := Split(d.Amount, d.Commission)
	if err != nil {
		return nil, nil, err
	}
	if err := e.rails.TransferOut(d.Rail, payee, payout); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.state.PoolCredit(d.Rail, retained); err != nil {
		return nil, nil, err
	}
	d.Status = StatusDone
	if err := e.state.DealPut(d); err != nil {
		return nil, nil, err
	}
	return payout, retained, nil
}

// Withdraw pays out collected token-rail commission to the receiver. Only
// the owner may withdraw, and never beyond the tracked pool balance:
// principal still locked in open deals is untouchable.
func (e *Engine) Withdraw(caller, receiver [20]byte, token string, amount *big.Int) error {
	return e.withdraw(caller, receiver, TokenRail(token), amount)
}

// WithdrawNative pays out collected native-currency commission.
func (e *Engine) WithdrawNative(caller, receiver [20]byte, amount *big.Int) error {
	return e.withdraw(caller, receiver, NativeRail(), amount)
}

func (e *Engine) withdraw(caller, receiver [20]byte, rail Rail, amount *big.Int) error {
	if err := e.collaborators(); err != nil {
		return err
	}
	if err := e.authorize(caller, nil, roleOwner); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if receiver == ([20]byte{}) {
		return fmt.Errorf("%w: receiver cannot be zero", ErrInvalidParty)
	}
	rail, err := NormalizeRail(rail)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	balance, err := e.state.PoolBalance(rail)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrPoolExceeded
	}
	if err := e.rails.TransferOut(rail, receiver, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.state.PoolDebit(rail, amount); err != nil {
		return err
	}
	e.emit(NewWithdrawnEvent(receiver, rail, amount, e.now()))
	return nil
}

// ChangeCommission updates the process-wide rate for deals created from now
// on. Existing deals keep their snapshots. Only the owner may change the
// rate, which must stay strictly inside (0, 100).
func (e *Engine) ChangeCommission(caller [20]byte, rate uint32) error {
	if err := e.collaborators(); err != nil {
		return err
	}
	if err := e.authorize(caller, nil, roleOwner); err != nil {
		return err
	}
	if rate == 0 || rate >= 100 {
		return ErrCommissionRange
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commissionRate = rate
	e.emit(NewCommissionChangedEvent(rate, e.now()))
	return nil
}

// SetAdmin grants or revokes the admin capability. Only the owner may mutate
// the admin set.
func (e *Engine) SetAdmin(caller, addr [20]byte, enabled bool) error {
	if err := e.collaborators(); err != nil {
		return err
	}
	if err := e.authorize(caller, nil, roleOwner); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.roles.SetAdmin(addr, enabled); err != nil {
		return err
	}
	e.emit(NewAdminUpdatedEvent(addr, enabled, e.now()))
	return nil
}

// Get returns a copy of the deal with the given identifier.
func (e *Engine) Get(id uint64) (*Deal, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.loadDeal(id)
	if err != nil {
		return nil, err
	}
	return d.Clone(), nil
}

// Count returns the identifier high-water mark. It reads 1 on an empty
// engine and always equals the id of the most recently created deal.
func (e *Engine) Count() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.DealCount()
}

// UserDealIDs returns, in creation order, the ids of every deal in which the
// user participates as creator or performer.
func (e *Engine) UserDealIDs(user [20]byte) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.DealIDsByUser(user)
}

// PoolBalance returns the withdrawable commission collected for a rail.
func (e *Engine) PoolBalance(rail Rail) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	rail, err := NormalizeRail(rail)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.PoolBalance(rail)
}
