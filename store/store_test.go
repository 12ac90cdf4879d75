package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icon-project/minthub/common"
	"github.com/icon-project/minthub/common/db"
	"github.com/icon-project/minthub/common/log"
	"github.com/icon-project/minthub/module"
)

func newTestStore(t *testing.T) (*Store, *common.TestClock) {
	clock := &common.TestClock{}
	clock.SetTime(time.UnixMilli(1_700_000_000_000))
	s, err := New(db.NewMapDB(), clock, log.GlobalLogger())
	require.NoError(t, err)
	return s, clock
}

func dropRef(id string) module.EntityRef {
	return module.EntityRef{Kind: module.KindDrop, ID: id}
}

func TestStore_DropRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.GetDrop("d1")
	assert.True(t, NotFoundError.Equals(err))

	d := &module.Drop{ID: "d1", Project: "p1", Supply: 10}
	require.NoError(t, s.PutDrop(d))

	got, err := s.GetDrop("d1")
	require.NoError(t, err)
	assert.Equal(t, d, got)

	// update must not duplicate the list entry
	d.Status = module.StatusCreated
	require.NoError(t, s.PutDrop(d))
	require.NoError(t, s.PutDrop(&module.Drop{ID: "d2", Project: "p1"}))

	drops, err := s.ListDrops()
	require.NoError(t, err)
	require.Len(t, drops, 2)
	assert.Equal(t, "d1", drops[0].ID)
	assert.Equal(t, module.StatusCreated, drops[0].Status)
}

func TestStore_MintsByDrop(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.PutMint(&module.Mint{ID: "m1", Drop: "d1"}))
	require.NoError(t, s.PutMint(&module.Mint{ID: "m2", Drop: "d1"}))
	require.NoError(t, s.PutMint(&module.Mint{ID: "m3", Drop: "d2"}))

	mints, err := s.ListMintsByDrop("d1")
	require.NoError(t, err)
	require.Len(t, mints, 2)
	assert.Equal(t, "m1", mints[0].ID)
	assert.Equal(t, "m2", mints[1].ID)

	mints, err = s.ListMintsByDrop("d9")
	require.NoError(t, err)
	assert.Empty(t, mints)
}

func TestStore_WalletKeyedByProjectAndChain(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.PutWallet(&module.ProjectWallet{
		Project: "p1", Blockchain: module.BlockchainSolana, Address: "sol-addr",
	}))
	require.NoError(t, s.PutWallet(&module.ProjectWallet{
		Project: "p1", Blockchain: module.BlockchainPolygon, Address: "0xabc",
	}))

	w, err := s.GetWallet("p1", module.BlockchainSolana)
	require.NoError(t, err)
	assert.Equal(t, "sol-addr", w.Address)

	_, err = s.GetWallet("p2", module.BlockchainSolana)
	assert.True(t, NotFoundError.Equals(err))
}

func TestStore_AttemptLifecycle(t *testing.T) {
	s, clock := newTestStore(t)
	entity := dropRef("d1")

	a, err := s.CreateAttempt("req-1", entity, module.OpCreate, module.BlockchainSolana, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Number)
	assert.Equal(t, module.AttemptPending, a.State)
	assert.Equal(t, module.ChargeNone, a.ChargeState)

	byReq, err := s.AttemptByRequest("req-1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byReq.ID)

	cur, err := s.CurrentAttempt(entity, module.OpCreate)
	require.NoError(t, err)
	assert.Equal(t, a.ID, cur.ID)

	clock.PassTime(time.Second)
	a, err = s.MarkSubmitted(a.ID)
	require.NoError(t, err)
	assert.Equal(t, module.AttemptSubmitted, a.State)
	assert.Greater(t, a.UpdatedAt, a.CreatedAt)

	a, err = s.SetTxRef(a.ID, "sig-1", "addr-1")
	require.NoError(t, err)
	assert.Equal(t, "sig-1", a.TxRef)
	assert.Equal(t, "addr-1", a.Address)

	a, err = s.MarkConfirmed(a.ID)
	require.NoError(t, err)
	assert.Equal(t, module.AttemptConfirmed, a.State)

	// terminal state drops the current pointer and the open listing
	_, err = s.CurrentAttempt(entity, module.OpCreate)
	assert.True(t, NotFoundError.Equals(err))
	open, err := s.ListOpenAttempts()
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestStore_InvalidTransitions(t *testing.T) {
	s, _ := newTestStore(t)
	entity := dropRef("d1")

	a, err := s.CreateAttempt("req-1", entity, module.OpCreate, module.BlockchainSolana, nil)
	require.NoError(t, err)

	_, err = s.MarkConfirmed(a.ID)
	assert.True(t, InvalidTransitionError.Equals(err))

	_, err = s.SetTxRef(a.ID, "sig", "addr")
	assert.True(t, InvalidTransitionError.Equals(err))

	_, err = s.MarkSubmitted(a.ID)
	require.NoError(t, err)
	_, err = s.MarkSubmitted(a.ID)
	assert.True(t, InvalidTransitionError.Equals(err))

	_, err = s.MarkConfirmed(a.ID)
	require.NoError(t, err)
	_, err = s.MarkFailedPermanent(a.ID, 0, "late")
	assert.True(t, InvalidTransitionError.Equals(err))
}

func TestStore_OutstandingAttempt(t *testing.T) {
	s, _ := newTestStore(t)
	entity := dropRef("d1")

	a, err := s.CreateAttempt("req-1", entity, module.OpCreate, module.BlockchainSolana, nil)
	require.NoError(t, err)

	// a second attempt for the same entity+op needs the prior record
	_, err = s.CreateAttempt("req-2", entity, module.OpCreate, module.BlockchainSolana, nil)
	assert.True(t, OutstandingAttemptError.Equals(err))

	// and the prior must have failed transiently
	_, err = s.CreateAttempt("req-1", entity, module.OpCreate, module.BlockchainSolana, a)
	assert.True(t, InvalidTransitionError.Equals(err))

	// a different operation on the same entity is independent
	_, err = s.CreateAttempt("req-3", entity, module.OpUpdate, module.BlockchainSolana, nil)
	require.NoError(t, err)
}

func TestStore_RetryCarriesCharge(t *testing.T) {
	s, clock := newTestStore(t)
	entity := dropRef("d1")

	a1, err := s.CreateAttempt("req-1", entity, module.OpCreate, module.BlockchainSolana, nil)
	require.NoError(t, err)
	_, err = s.SetChargeHeld(a1.ID, "auth-1")
	require.NoError(t, err)
	_, err = s.MarkSubmitted(a1.ID)
	require.NoError(t, err)
	a1, err = s.MarkFailedTransient(a1.ID, 1, "rpc down", clock.Now().Add(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(5*time.Second).UnixMilli(), a1.NotBefore)

	// transient failure keeps the attempt current and open
	cur, err := s.CurrentAttempt(entity, module.OpCreate)
	require.NoError(t, err)
	assert.Equal(t, a1.ID, cur.ID)
	open, err := s.ListOpenAttempts()
	require.NoError(t, err)
	require.Len(t, open, 1)

	a2, err := s.CreateAttempt("req-1", entity, module.OpCreate, module.BlockchainSolana, a1)
	require.NoError(t, err)
	assert.Equal(t, 2, a2.Number)
	assert.Equal(t, "auth-1", a2.ChargeID)
	assert.Equal(t, module.ChargeHeld, a2.ChargeState)

	// a carried charge cannot be held again
	_, err = s.SetChargeHeld(a2.ID, "auth-2")
	assert.True(t, InvalidTransitionError.Equals(err))

	history, err := s.AttemptsByEntity(entity, module.OpCreate)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, a1.ID, history[0].ID)
	assert.Equal(t, a2.ID, history[1].ID)
}

func TestStore_ChargeStateMachine(t *testing.T) {
	s, _ := newTestStore(t)

	a, err := s.CreateAttempt("req-1", dropRef("d1"), module.OpCreate, module.BlockchainSolana, nil)
	require.NoError(t, err)

	_, err = s.SetChargeFinalized(a.ID)
	assert.True(t, InvalidTransitionError.Equals(err))

	a, err = s.SetChargeHeld(a.ID, "auth-1")
	require.NoError(t, err)
	assert.Equal(t, module.ChargeHeld, a.ChargeState)

	a, err = s.SetChargeFinalized(a.ID)
	require.NoError(t, err)
	assert.Equal(t, module.ChargeFinalized, a.ChargeState)

	// exactly one of finalize or reverse
	_, err = s.SetChargeReversed(a.ID)
	assert.True(t, InvalidTransitionError.Equals(err))
}

func TestStore_Reversals(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.EnqueueReversal(&module.Reversal{
		AuthID: "auth-1", AttemptID: "a1", Kind: module.RepairReverse,
	}))
	require.NoError(t, s.EnqueueReversal(&module.Reversal{
		AuthID: "auth-2", AttemptID: "a2", Kind: module.RepairFinalize,
	}))

	rs, err := s.PendingReversals()
	require.NoError(t, err)
	require.Len(t, rs, 2)

	require.NoError(t, s.RemoveReversal("auth-1"))
	rs, err = s.PendingReversals()
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "auth-2", rs[0].AuthID)
}
