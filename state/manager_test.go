package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"dealledger/core/types"
	"dealledger/native/deal"
	"dealledger/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func addr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func TestCounterGenesis(t *testing.T) {
	m := newTestManager(t)

	count, err := m.DealCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count, "empty store must read the genesis counter")

	first, err := m.NextDealID()
	require.NoError(t, err)
	require.Equal(t, uint64(2), first, "first assignment must skip the reserved slot")

	second, err := m.NextDealID()
	require.NoError(t, err)
	require.Equal(t, uint64(3), second)

	count, err = m.DealCount()
	require.NoError(t, err)
	require.Equal(t, second, count, "count must track the latest assignment")
}

func TestDealRoundTrip(t *testing.T) {
	m := newTestManager(t)
	original := &deal.Deal{
		ID:         2,
		Creator:    addr(0x01),
		Performer:  addr(0x02),
		Rail:       deal.TokenRail("usd"),
		Amount:     big.NewInt(150),
		CreatedAt:  1_700_000_000,
		Commission: 10,
		Status:     deal.StatusPending,
	}
	require.NoError(t, m.DealPut(original))

	loaded, ok, err := m.DealGet(2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, original.ID, loaded.ID)
	require.Equal(t, original.Creator, loaded.Creator)
	require.Equal(t, original.Performer, loaded.Performer)
	require.Equal(t, "USD", loaded.Rail.Token, "rail must be canonicalised on write")
	require.Zero(t, loaded.Amount.Cmp(original.Amount))
	require.Equal(t, original.CreatedAt, loaded.CreatedAt)
	require.Equal(t, original.Commission, loaded.Commission)
	require.Equal(t, original.Status, loaded.Status)

	_, ok, err = m.DealGet(99)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDealPutRejectsInvalidRecords(t *testing.T) {
	m := newTestManager(t)
	require.ErrorIs(t, m.DealPut(&deal.Deal{
		ID:         2,
		Rail:       deal.NativeRail(),
		Amount:     big.NewInt(0),
		Commission: 10,
	}), deal.ErrInvalidAmount)
	require.ErrorIs(t, m.DealPut(&deal.Deal{
		ID:         2,
		Rail:       deal.NativeRail(),
		Amount:     big.NewInt(1),
		Commission: 100,
	}), deal.ErrCommissionRange)
}

func TestUserIndexIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	user := addr(0x01)

	require.NoError(t, m.DealIndexUser(user, 2))
	require.NoError(t, m.DealIndexUser(user, 3))
	require.NoError(t, m.DealIndexUser(user, 2))

	ids, err := m.DealIDsByUser(user)
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 3}, ids)

	empty, err := m.DealIDsByUser(addr(0x09))
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestPoolAccounting(t *testing.T) {
	m := newTestManager(t)
	rail := deal.TokenRail("USD")

	balance, err := m.PoolBalance(rail)
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	require.NoError(t, m.PoolCredit(rail, big.NewInt(15)))
	require.NoError(t, m.PoolCredit(rail, big.NewInt(5)))

	balance, err = m.PoolBalance(rail)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(20)))

	require.NoError(t, m.PoolDebit(rail, big.NewInt(12)))
	require.ErrorIs(t, m.PoolDebit(rail, big.NewInt(9)), ErrPoolInsufficient)

	balance, err = m.PoolBalance(rail)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(8)), "failed debit must not move the balance")

	other, err := m.PoolBalance(deal.NativeRail())
	require.NoError(t, err)
	require.Zero(t, other.Sign(), "pools are tracked per rail")
}

func TestAccountRoundTrip(t *testing.T) {
	m := newTestManager(t)
	holder := addr(0x01)

	acc, err := m.GetAccount(holder)
	require.NoError(t, err)
	require.Zero(t, acc.BalanceNative.Sign(), "missing accounts read as zero")
	require.NotNil(t, acc.Tokens)

	acc.BalanceNative = big.NewInt(100)
	acc.Tokens["USD"] = big.NewInt(42)
	require.NoError(t, m.PutAccount(holder, acc))

	loaded, err := m.GetAccount(holder)
	require.NoError(t, err)
	require.Zero(t, loaded.BalanceNative.Cmp(big.NewInt(100)))
	require.Zero(t, loaded.Tokens["USD"].Cmp(big.NewInt(42)))
}

func TestOwnerAndAdminRoles(t *testing.T) {
	m := newTestManager(t)
	owner := addr(0xAA)
	admin := addr(0xBB)

	require.False(t, m.IsOwner(owner), "no owner before installation")
	require.NoError(t, m.SetOwner(owner))
	require.True(t, m.IsOwner(owner))
	require.False(t, m.IsOwner(admin))

	require.False(t, m.IsAdmin(admin))
	require.NoError(t, m.SetAdmin(admin, true))
	require.True(t, m.IsAdmin(admin))
	require.NoError(t, m.SetAdmin(admin, false))
	require.False(t, m.IsAdmin(admin), "revocation must remove the capability")
}

func TestOwnerSurvivesReopen(t *testing.T) {
	db := storage.NewMemDB()
	owner := addr(0xAA)
	require.NoError(t, NewManager(db).SetOwner(owner))

	reopened := NewManager(db)
	require.True(t, reopened.IsOwner(owner), "owner must be loaded from storage")
}

func TestEventJournal(t *testing.T) {
	m := newTestManager(t)

	seq, err := m.EventAppend(&types.Event{Type: "deal.created", Attributes: map[string]string{"id": "2"}})
	require.NoError(t, err)
	require.Equal(t, uint64(1), seq)

	seq, err = m.EventAppend(&types.Event{Type: "deal.confirmed", Attributes: map[string]string{"id": "2"}})
	require.NoError(t, err)
	require.Equal(t, uint64(2), seq)

	seq, err = m.EventAppend(&types.Event{Type: "deal.pool.withdrawn", Attributes: map[string]string{"amount": "15"}})
	require.NoError(t, err)
	require.Equal(t, uint64(3), seq)

	all, err := m.EventList("", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "deal.created", all[0].Event.Type)
	require.Equal(t, uint64(1), all[0].Sequence)

	filtered, err := m.EventList("deal.pool", 0)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, "deal.pool.withdrawn", filtered[0].Event.Type)

	recent, err := m.EventList("", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, uint64(2), recent[0].Sequence, "limit keeps the most recent entries")
	require.Equal(t, uint64(3), recent[1].Sequence)
}

type journalledEvent struct {
	payload *types.Event
}

func (e journalledEvent) EventType() string {
	if e.payload == nil {
		return ""
	}
	return e.payload.Type
}

func (e journalledEvent) Event() *types.Event { return e.payload }

type opaqueEvent struct{}

func (opaqueEvent) EventType() string { return "opaque" }

func TestEmitJournalsPayloadEvents(t *testing.T) {
	m := newTestManager(t)

	m.Emit(journalledEvent{payload: &types.Event{Type: "deal.created", Attributes: map[string]string{}}})
	m.Emit(opaqueEvent{})
	m.Emit(journalledEvent{payload: nil})

	all, err := m.EventList("", 0)
	require.NoError(t, err)
	require.Len(t, all, 1, "only payload-carrying events are journalled")
	require.Equal(t, "deal.created", all[0].Event.Type)
}
