package state

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"dealledger/core/events"
	"dealledger/core/types"
	"dealledger/native/deal"
	"dealledger/storage"
)

const (
	dealCounterKey = "deal/counter"
	dealItemPrefix = "deal/item/"
	dealUserPrefix = "deal/user/"
	poolPrefix     = "deal/pool/"
	accountPrefix  = "bank/account/"
	adminPrefix    = "roles/admin/"
	ownerKey       = "roles/owner"
	eventSeqKey    = "events/seq"
	eventPrefix    = "events/item/"
)

// counterGenesis reserves identifier slot 1: the counter is written as 1
// before any deal exists and NextDealID pre-increments, so the first deal
// observes id 2 and DealCount on an empty store reads 1.
const counterGenesis uint64 = 1

// ErrPoolInsufficient is returned by PoolDebit when the tracked balance does
// not cover the amount.
var ErrPoolInsufficient = errors.New("state: pool balance insufficient")

// Manager persists every piece of ledger state over a key-value database:
// deal records, the per-user index, the identifier counter, per-rail pool
// balances, rail accounts, the admin set and the event journal.
type Manager struct {
	mu    sync.Mutex
	db    storage.Database
	owner [20]byte
}

// NewManager wraps the supplied database. The identifier counter is seeded on
// first use.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// storedDeal is the canonical persisted form of a deal record.
type storedDeal struct {
	ID         uint64 `json:"id"`
	Creator    string `json:"creator"`
	Performer  string `json:"performer"`
	Token      string `json:"token,omitempty"`
	Amount     string `json:"amount"`
	CreatedAt  int64  `json:"createdAt"`
	Commission uint32 `json:"commission"`
	Status     uint8  `json:"status"`
}

func dealItemKey(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return append([]byte(dealItemPrefix), buf[:]...)
}

func eventItemKey(seq uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return append([]byte(eventPrefix), buf[:]...)
}

func addrKey(prefix string, addr [20]byte) []byte {
	return []byte(prefix + hex.EncodeToString(addr[:]))
}

func (m *Manager) readCounter(key string, genesis uint64) (uint64, error) {
	raw, err := m.db.Get([]byte(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return genesis, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("state: corrupt counter %q", key)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (m *Manager) writeCounter(key string, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return m.db.Put([]byte(key), buf[:])
}

// NextDealID assigns the next deal identifier. Assignment is strictly
// increasing and never reused for the lifetime of the database.
func (m *Manager) NextDealID() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, err := m.readCounter(dealCounterKey, counterGenesis)
	if err != nil {
		return 0, err
	}
	next := current + 1
	if err := m.writeCounter(dealCounterKey, next); err != nil {
		return 0, err
	}
	return next, nil
}

// DealCount returns the identifier high-water mark (the most recently
// assigned id, or the genesis value 1 before any deal exists).
func (m *Manager) DealCount() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readCounter(dealCounterKey, counterGenesis)
}

// DealPut sanitises and persists a deal record.
func (m *Manager) DealPut(d *deal.Deal) error {
	sanitized, err := deal.Sanitize(d)
	if err != nil {
		return err
	}
	record := storedDeal{
		ID:         sanitized.ID,
		Creator:    hex.EncodeToString(sanitized.Creator[:]),
		Performer:  hex.EncodeToString(sanitized.Performer[:]),
		Token:      sanitized.Rail.Token,
		Amount:     sanitized.Amount.String(),
		CreatedAt:  sanitized.CreatedAt,
		Commission: sanitized.Commission,
		Status:     uint8(sanitized.Status),
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Put(dealItemKey(sanitized.ID), raw)
}

// DealGet loads a deal record. The boolean reports whether the identifier was
// ever assigned a record.
func (m *Manager) DealGet(id uint64) (*deal.Deal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := m.db.Get(dealItemKey(id))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var record storedDeal
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, err
	}
	d, err := record.toDeal()
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}

func (r storedDeal) toDeal() (*deal.Deal, error) {
	creator, err := decodeAddr(r.Creator)
	if err != nil {
		return nil, fmt.Errorf("state: corrupt deal creator: %w", err)
	}
	performer, err := decodeAddr(r.Performer)
	if err != nil {
		return nil, fmt.Errorf("state: corrupt deal performer: %w", err)
	}
	amount, ok := new(big.Int).SetString(r.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("state: corrupt deal amount %q", r.Amount)
	}
	return &deal.Deal{
		ID:         r.ID,
		Creator:    creator,
		Performer:  performer,
		Rail:       deal.Rail{Token: r.Token},
		Amount:     amount,
		CreatedAt:  r.CreatedAt,
		Commission: r.Commission,
		Status:     deal.Status(r.Status),
	}, nil
}

func decodeAddr(s string) ([20]byte, error) {
	var addr [20]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return addr, err
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("unexpected address length %d", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// DealIndexUser appends the deal id to the user's index. Indexing is
// idempotent per (user, id) pair.
func (m *Manager) DealIndexUser(user [20]byte, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, err := m.readUserIndex(user)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return m.db.Put(addrKey(dealUserPrefix, user), raw)
}

// DealIDsByUser returns the user's deal ids in creation order.
func (m *Manager) DealIDsByUser(user [20]byte) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readUserIndex(user)
}

func (m *Manager) readUserIndex(user [20]byte) ([]uint64, error) {
	raw, err := m.db.Get(addrKey(dealUserPrefix, user))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return []uint64{}, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []uint64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// PoolBalance returns the withdrawable commission tracked for the rail.
func (m *Manager) PoolBalance(rail deal.Rail) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readPool(rail)
}

func (m *Manager) readPool(rail deal.Rail) (*big.Int, error) {
	raw, err := m.db.Get([]byte(poolPrefix + rail.Key()))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	balance, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, fmt.Errorf("state: corrupt pool balance for rail %s", rail.Key())
	}
	return balance, nil
}

func (m *Manager) writePool(rail deal.Rail, balance *big.Int) error {
	return m.db.Put([]byte(poolPrefix+rail.Key()), []byte(balance.String()))
}

// PoolCredit increases the withdrawable balance for the rail.
func (m *Manager) PoolCredit(rail deal.Rail, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: negative pool credit")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, err := m.readPool(rail)
	if err != nil {
		return err
	}
	return m.writePool(rail, balance.Add(balance, amount))
}

// PoolDebit decreases the withdrawable balance for the rail, failing when the
// tracked balance does not cover the amount.
func (m *Manager) PoolDebit(rail deal.Rail, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: negative pool debit")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, err := m.readPool(rail)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrPoolInsufficient
	}
	return m.writePool(rail, balance.Sub(balance, amount))
}

// GetAccount loads a rail account. Missing accounts read as zero balances.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := m.db.Get(addrKey(accountPrefix, addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return &types.Account{BalanceNative: big.NewInt(0), Tokens: map[string]*big.Int{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var acc types.Account
	if err := json.Unmarshal(raw, &acc); err != nil {
		return nil, err
	}
	if acc.BalanceNative == nil {
		acc.BalanceNative = big.NewInt(0)
	}
	if acc.Tokens == nil {
		acc.Tokens = map[string]*big.Int{}
	}
	return &acc, nil
}

// PutAccount persists a rail account.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	raw, err := json.Marshal(account)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Put(addrKey(accountPrefix, addr), raw)
}

// SetOwner installs the single privileged owner identity.
func (m *Manager) SetOwner(addr [20]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.Put([]byte(ownerKey), addr[:]); err != nil {
		return err
	}
	m.owner = addr
	return nil
}

// IsOwner reports whether the address is the configured owner.
func (m *Manager) IsOwner(addr [20]byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner != ([20]byte{}) {
		return addr == m.owner
	}
	raw, err := m.db.Get([]byte(ownerKey))
	if err != nil || len(raw) != 20 {
		return false
	}
	copy(m.owner[:], raw)
	return addr == m.owner
}

// IsAdmin reports whether the address currently holds the admin capability.
func (m *Manager) IsAdmin(addr [20]byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok, err := m.db.Has(addrKey(adminPrefix, addr))
	return err == nil && ok
}

// SetAdmin grants or revokes the admin capability for the address.
func (m *Manager) SetAdmin(addr [20]byte, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if enabled {
		return m.db.Put(addrKey(adminPrefix, addr), []byte{1})
	}
	return m.db.Delete(addrKey(adminPrefix, addr))
}

// StoredEvent is one journal entry: the emitted notification plus its
// monotone sequence number.
type StoredEvent struct {
	Sequence uint64      `json:"sequence"`
	Event    types.Event `json:"event"`
}

// EventAppend journals an emitted notification and returns its sequence
// number.
func (m *Manager) EventAppend(evt *types.Event) (uint64, error) {
	if evt == nil {
		return 0, fmt.Errorf("state: nil event")
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	seq, err := m.readCounter(eventSeqKey, 0)
	if err != nil {
		return 0, err
	}
	seq++
	if err := m.db.Put(eventItemKey(seq), raw); err != nil {
		return 0, err
	}
	if err := m.writeCounter(eventSeqKey, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// EventList returns journalled events in emission order, optionally filtered
// by a type prefix and capped to the most recent limit entries (limit <= 0
// means no cap).
func (m *Manager) EventList(prefix string, limit int) ([]StoredEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, err := m.readCounter(eventSeqKey, 0)
	if err != nil {
		return nil, err
	}
	out := make([]StoredEvent, 0)
	for seq := uint64(1); seq <= last; seq++ {
		raw, err := m.db.Get(eventItemKey(seq))
		if errors.Is(err, storage.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var evt types.Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, err
		}
		if prefix != "" && !hasPrefix(evt.Type, prefix) {
			continue
		}
		out = append(out, StoredEvent{Sequence: seq, Event: evt})
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// payloadCarrier is satisfied by engine events that wrap a canonical
// types.Event payload.
type payloadCarrier interface {
	Event() *types.Event
}

// Emit implements events.Emitter by journalling any event that carries a
// canonical payload. Journal failures are swallowed: emission must never
// fail an already-committed transition.
func (m *Manager) Emit(evt events.Event) {
	carrier, ok := evt.(payloadCarrier)
	if !ok || carrier.Event() == nil {
		return
	}
	_, _ = m.EventAppend(carrier.Event())
}
