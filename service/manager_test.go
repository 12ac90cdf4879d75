package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icon-project/minthub/chain"
	"github.com/icon-project/minthub/common"
	"github.com/icon-project/minthub/common/db"
	"github.com/icon-project/minthub/common/log"
	"github.com/icon-project/minthub/credits"
	"github.com/icon-project/minthub/module"
	"github.com/icon-project/minthub/store"
)

//----------------------------------------
// fakes

type callResult struct {
	res *module.TxResult
	err error
}

// fakeEdition scripts adapter outcomes and records call order.
type fakeEdition struct {
	lock     sync.Mutex
	submits  []callResult
	statuses []struct {
		status module.TxStatus
		err    error
	}
	ops      []string
	updates  []*module.UpdateSpec
	badAddrs map[string]bool
}

var _ module.Edition = (*fakeEdition)(nil)

func (f *fakeEdition) Blockchain() module.Blockchain { return module.BlockchainSolana }

func (f *fakeEdition) ValidateAddress(addr string) error {
	if f.badAddrs[addr] {
		return chain.ChainRejectedError.Errorf("BadAddress(addr=%s)", addr)
	}
	return nil
}

func (f *fakeEdition) nextSubmit(op string) (*module.TxResult, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.ops = append(f.ops, op)
	if len(f.submits) == 0 {
		return &module.TxResult{Address: "addr-default", TxRef: "sig-default", Confirmed: true}, nil
	}
	r := f.submits[0]
	f.submits = f.submits[1:]
	return r.res, r.err
}

func (f *fakeEdition) CreateCollection(ctx context.Context, spec *module.CollectionSpec) (*module.TxResult, error) {
	return f.nextSubmit("create")
}

func (f *fakeEdition) MintToCollection(ctx context.Context, spec *module.MintSpec) (*module.TxResult, error) {
	return f.nextSubmit("mint")
}

func (f *fakeEdition) UpdateMetadata(ctx context.Context, spec *module.UpdateSpec) (*module.TxResult, error) {
	f.lock.Lock()
	f.updates = append(f.updates, spec)
	f.lock.Unlock()
	return f.nextSubmit("update")
}

func (f *fakeEdition) TransferMint(ctx context.Context, spec *module.TransferSpec) (*module.TxResult, error) {
	return f.nextSubmit("transfer")
}

func (f *fakeEdition) CheckStatus(ctx context.Context, txRef string) (module.TxStatus, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.ops = append(f.ops, "status")
	if len(f.statuses) == 0 {
		return module.TxPending, nil
	}
	s := f.statuses[0]
	f.statuses = f.statuses[1:]
	return s.status, s.err
}

func (f *fakeEdition) queueSubmit(res *module.TxResult, err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.submits = append(f.submits, callResult{res, err})
}

func (f *fakeEdition) queueStatus(status module.TxStatus, err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.statuses = append(f.statuses, struct {
		status module.TxStatus
		err    error
	}{status, err})
}

func (f *fakeEdition) calls(op string) int {
	f.lock.Lock()
	defer f.lock.Unlock()

	n := 0
	for _, o := range f.ops {
		if o == op {
			n++
		}
	}
	return n
}

// recordingGate records every ledger call and can fail on demand.
type recordingGate struct {
	lock       sync.Mutex
	seq        int
	authorizes []string
	finalizes  []string
	reverses   []string
	authErrs   []error
	finErrs    []error
	revErrs    []error
}

var _ module.CreditsGate = (*recordingGate)(nil)

func (g *recordingGate) pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (g *recordingGate) Authorize(ctx context.Context, amount int64, reference string) (string, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	if err := g.pop(&g.authErrs); err != nil {
		return "", err
	}
	g.seq++
	id := fmt.Sprintf("auth-%d", g.seq)
	g.authorizes = append(g.authorizes, id)
	return id, nil
}

func (g *recordingGate) Finalize(ctx context.Context, authID string) error {
	g.lock.Lock()
	defer g.lock.Unlock()

	if err := g.pop(&g.finErrs); err != nil {
		return err
	}
	g.finalizes = append(g.finalizes, authID)
	return nil
}

func (g *recordingGate) Reverse(ctx context.Context, authID string) error {
	g.lock.Lock()
	defer g.lock.Unlock()

	if err := g.pop(&g.revErrs); err != nil {
		return err
	}
	g.reverses = append(g.reverses, authID)
	return nil
}

type recordingSink struct {
	lock   sync.Mutex
	events []*module.StatusEvent
}

func (s *recordingSink) OnStatusEvent(ev *module.StatusEvent) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) outcomes() []module.EventOutcome {
	s.lock.Lock()
	defer s.lock.Unlock()

	l := make([]module.EventOutcome, 0, len(s.events))
	for _, ev := range s.events {
		l = append(l, ev.Outcome)
	}
	return l
}

func (s *recordingSink) last() *module.StatusEvent {
	s.lock.Lock()
	defer s.lock.Unlock()

	if len(s.events) == 0 {
		return nil
	}
	return s.events[len(s.events)-1]
}

//----------------------------------------
// harness

type core struct {
	m     *Manager
	st    *store.Store
	ed    *fakeEdition
	gate  *recordingGate
	sink  *recordingSink
	clock *common.TestClock
}

func newCore(t *testing.T, cfg Config) *core {
	clock := &common.TestClock{}
	clock.SetTime(time.UnixMilli(1_700_000_000_000))

	st, err := store.New(db.NewMapDB(), clock, log.GlobalLogger())
	require.NoError(t, err)

	ed := &fakeEdition{badAddrs: map[string]bool{}}
	registry := chain.NewRegistry()
	registry.Register(ed)

	gate := &recordingGate{}
	m := NewManager(cfg, st, registry, gate, clock, log.GlobalLogger())
	sink := &recordingSink{}
	m.AddSink(sink)

	require.NoError(t, st.PutWallet(&module.ProjectWallet{
		Project: "p1", Blockchain: module.BlockchainSolana, Address: "treasury",
	}))
	return &core{m: m, st: st, ed: ed, gate: gate, sink: sink, clock: clock}
}

func testConfig() Config {
	return Config{
		Lanes:         4,
		Policy:        RetryPolicy{BaseDelay: 5 * time.Second, MaxDelay: time.Minute, MaxAttempts: 3},
		PollInterval:  15 * time.Second,
		SubmitTimeout: 90 * time.Second,
	}
}

// drain runs queued lane tasks synchronously until quiet, keeping the
// tests deterministic without lane goroutines.
func (c *core) drain() {
	for {
		progressed := false
		for _, lane := range c.m.dispatcher.lanes {
			select {
			case t := <-lane:
				c.m.executor.handle(t)
				progressed = true
			default:
			}
		}
		if !progressed {
			return
		}
	}
}

func (c *core) pass(d time.Duration) {
	c.clock.PassTime(d)
	c.drain()
}

func createRequest(reqID, dropID string) *module.OperationRequest {
	payload, _ := json.Marshal(&CreatePayload{
		Project:              "p1",
		Blockchain:           "solana",
		Name:                 "Genesis",
		Symbol:               "GEN",
		MetadataURI:          "https://meta.example/drop.json",
		SellerFeeBasisPoints: 250,
		Supply:               10,
	})
	return &module.OperationRequest{
		Request: module.RequestID(reqID),
		Op:      module.OpCreate,
		Entity:  module.EntityRef{Kind: module.KindDrop, ID: dropID},
		Payload: payload,
	}
}

func mintRequest(reqID, mintID, dropID, recipient string) *module.OperationRequest {
	payload, _ := json.Marshal(&MintPayload{
		Drop:        dropID,
		Recipient:   recipient,
		Name:        "Genesis #1",
		Symbol:      "GEN",
		MetadataURI: "https://meta.example/1.json",
	})
	return &module.OperationRequest{
		Request: module.RequestID(reqID),
		Op:      module.OpMint,
		Entity:  module.EntityRef{Kind: module.KindMint, ID: mintID},
		Payload: payload,
	}
}

func updateRequest(reqID, dropID string, p *UpdatePayload) *module.OperationRequest {
	payload, _ := json.Marshal(p)
	return &module.OperationRequest{
		Request: module.RequestID(reqID),
		Op:      module.OpUpdate,
		Entity:  module.EntityRef{Kind: module.KindDrop, ID: dropID},
		Payload: payload,
	}
}

func (c *core) confirmDrop(t *testing.T, reqID, dropID string) {
	c.ed.queueSubmit(&module.TxResult{Address: "col-" + dropID, TxRef: "sig-" + dropID, Confirmed: true}, nil)
	require.NoError(t, c.m.Submit(createRequest(reqID, dropID)))
	c.drain()
	drop, err := c.st.GetDrop(dropID)
	require.NoError(t, err)
	require.Equal(t, module.StatusCreated, drop.Status)
}

//----------------------------------------
// scenarios

func TestManager_CreateSubmittedThenConfirmed(t *testing.T) {
	c := newCore(t, testConfig())

	c.ed.queueSubmit(&module.TxResult{Address: "col-1", TxRef: "sig-1", Confirmed: false}, nil)
	c.ed.queueStatus(module.TxConfirmed, nil)

	require.NoError(t, c.m.Submit(createRequest("req-1", "d1")))
	c.drain()
	assert.Equal(t, []module.EventOutcome{module.OutcomeSubmitted}, c.sink.outcomes())

	c.pass(15 * time.Second) // poll fires
	assert.Equal(t, []module.EventOutcome{
		module.OutcomeSubmitted, module.OutcomeConfirmed,
	}, c.sink.outcomes())

	drop, err := c.st.GetDrop("d1")
	require.NoError(t, err)
	assert.Equal(t, module.StatusCreated, drop.Status)
	col, err := c.st.GetCollection(drop.Collection)
	require.NoError(t, err)
	assert.Equal(t, "col-1", col.Address)
	assert.Equal(t, "sig-1", col.Signature)

	assert.Len(t, c.gate.authorizes, 1)
	assert.Equal(t, []string{"auth-1"}, c.gate.finalizes)
	assert.Empty(t, c.gate.reverses)
}

func TestManager_RedeliveredRequestSingleSubmission(t *testing.T) {
	c := newCore(t, testConfig())

	require.NoError(t, c.m.Submit(createRequest("req-1", "d1")))
	require.NoError(t, c.m.Submit(createRequest("req-1", "d1")))
	c.drain()
	require.NoError(t, c.m.Submit(createRequest("req-1", "d1")))
	c.drain()

	// one adapter call, one settlement, terminal event re-emitted
	assert.Equal(t, 1, c.ed.calls("create"))
	assert.Len(t, c.gate.authorizes, 1)
	assert.Len(t, c.gate.finalizes, 1)
	confirmed := 0
	for _, o := range c.sink.outcomes() {
		if o == module.OutcomeConfirmed {
			confirmed++
		}
	}
	assert.Equal(t, 3, confirmed)
}

func TestManager_TransientFailuresThenConfirmed(t *testing.T) {
	c := newCore(t, testConfig())

	unavailable := chain.ChainUnavailableError.New("rpc down")
	c.ed.queueSubmit(nil, unavailable)
	c.ed.queueSubmit(nil, unavailable)
	c.ed.queueSubmit(&module.TxResult{Address: "col-1", TxRef: "sig-3", Confirmed: true}, nil)

	require.NoError(t, c.m.Submit(createRequest("req-1", "d1")))
	c.drain()
	c.pass(5 * time.Second)  // backoff after attempt 1
	c.pass(10 * time.Second) // backoff after attempt 2

	entity := module.EntityRef{Kind: module.KindDrop, ID: "d1"}
	history, err := c.st.AttemptsByEntity(entity, module.OpCreate)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, a := range history {
		assert.Equal(t, i+1, a.Number)
	}
	assert.Equal(t, module.AttemptConfirmed, history[2].State)

	drop, err := c.st.GetDrop("d1")
	require.NoError(t, err)
	assert.Equal(t, module.StatusCreated, drop.Status)

	// the hold carries across attempts: one authorize, one finalize
	assert.Len(t, c.gate.authorizes, 1)
	assert.Len(t, c.gate.finalizes, 1)
	assert.Empty(t, c.gate.reverses)
}

func TestManager_RejectedPermanently(t *testing.T) {
	c := newCore(t, testConfig())

	c.ed.queueSubmit(nil, chain.ChainRejectedError.New("invalid metadata"))
	require.NoError(t, c.m.Submit(createRequest("req-1", "d1")))
	c.drain()

	assert.Equal(t, []module.EventOutcome{module.OutcomeFailedPermanent}, c.sink.outcomes())
	drop, err := c.st.GetDrop("d1")
	require.NoError(t, err)
	assert.Equal(t, module.StatusFailed, drop.Status)

	assert.Len(t, c.gate.reverses, 1)
	assert.Empty(t, c.gate.finalizes)

	// no retry is scheduled for permanent failures
	c.pass(10 * time.Minute)
	assert.Equal(t, 1, c.ed.calls("create"))
}

func TestManager_RetriesExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.Policy.MaxAttempts = 2
	c := newCore(t, cfg)

	unavailable := chain.ChainUnavailableError.New("rpc down")
	c.ed.queueSubmit(nil, unavailable)
	c.ed.queueSubmit(nil, unavailable)

	require.NoError(t, c.m.Submit(createRequest("req-1", "d1")))
	c.drain()
	c.pass(5 * time.Second)

	entity := module.EntityRef{Kind: module.KindDrop, ID: "d1"}
	history, err := c.st.AttemptsByEntity(entity, module.OpCreate)
	require.NoError(t, err)
	require.Len(t, history, 2)
	last := history[1]
	assert.Equal(t, module.AttemptFailedPermanent, last.State)
	assert.Equal(t, int(RetriesExhaustedError), last.ErrorCode)

	assert.Len(t, c.gate.reverses, 1)
	assert.Empty(t, c.gate.finalizes)

	c.pass(10 * time.Minute)
	assert.Equal(t, 2, c.ed.calls("create"))
}

func TestManager_InsufficientCreditsNoChainCall(t *testing.T) {
	c := newCore(t, testConfig())
	c.gate.authErrs = append(c.gate.authErrs,
		credits.InsufficientCreditsError.New("broke"))

	require.NoError(t, c.m.Submit(createRequest("req-1", "d1")))
	c.drain()

	assert.Equal(t, 0, c.ed.calls("create"))
	assert.Equal(t, []module.EventOutcome{module.OutcomeFailedPermanent}, c.sink.outcomes())
	ev := c.sink.last()
	assert.Contains(t, ev.Error, "InsufficientCredits")
	assert.Empty(t, c.gate.finalizes)
	assert.Empty(t, c.gate.reverses)
}

func TestManager_ConcurrentMintRequestsConverge(t *testing.T) {
	c := newCore(t, testConfig())
	c.confirmDrop(t, "req-0", "d1")

	c.ed.queueSubmit(&module.TxResult{Address: "mint-1", TxRef: "sig-m1", Confirmed: false}, nil)
	c.ed.queueStatus(module.TxPending, nil)
	c.ed.queueStatus(module.TxConfirmed, nil)

	require.NoError(t, c.m.Submit(mintRequest("req-a", "m1", "d1", "recipient-1")))
	c.drain()
	// second request for the same mint converges on the in-flight attempt
	require.NoError(t, c.m.Submit(mintRequest("req-b", "m1", "d1", "recipient-1")))
	c.drain()
	assert.Equal(t, 1, c.ed.calls("mint"))

	c.pass(15 * time.Second)
	assert.Equal(t, 1, c.ed.calls("mint"))

	mint, err := c.st.GetMint("m1")
	require.NoError(t, err)
	assert.Equal(t, module.StatusMinted, mint.Status)
	assert.Equal(t, "mint-1", mint.Address)
	drop, err := c.st.GetDrop("d1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), drop.Minted)
	// one finalize for the drop creation, one for the mint
	assert.Len(t, c.gate.finalizes, 2)
}

func TestManager_WatchdogChecksStatusBeforeResubmit(t *testing.T) {
	c := newCore(t, testConfig())

	c.ed.queueSubmit(&module.TxResult{Address: "col-1", TxRef: "sig-1", Confirmed: false}, nil)
	require.NoError(t, c.m.Submit(createRequest("req-1", "d1")))
	c.drain()
	assert.Equal(t, []string{"create"}, c.ed.ops)

	// polls stay pending until the submit timeout elapses
	c.pass(15 * time.Second)
	c.pass(15 * time.Second)
	assert.Equal(t, 1, c.ed.calls("create"))

	c.ed.queueSubmit(&module.TxResult{Address: "col-1", TxRef: "sig-2", Confirmed: true}, nil)
	c.pass(90 * time.Second) // watchdog trips, transient, backoff
	c.pass(time.Minute)

	// checkStatus ran before the second submission
	require.Equal(t, 2, c.ed.calls("create"))
	firstResubmit := -1
	lastStatus := -1
	for i, op := range c.ed.ops {
		if op == "create" && i > 0 {
			firstResubmit = i
		}
		if op == "status" && firstResubmit < 0 {
			lastStatus = i
		}
	}
	assert.True(t, lastStatus >= 0 && lastStatus < firstResubmit)
}

func TestManager_SupplyExhaustedRejected(t *testing.T) {
	c := newCore(t, testConfig())
	c.confirmDrop(t, "req-0", "d1")

	drop, err := c.st.GetDrop("d1")
	require.NoError(t, err)
	drop.Supply = 1
	drop.Minted = 1
	require.NoError(t, c.st.PutDrop(drop))

	require.NoError(t, c.m.Submit(mintRequest("req-1", "m1", "d1", "recipient-1")))
	c.drain()

	assert.Equal(t, 0, c.ed.calls("mint"))
	ev := c.sink.last()
	require.NotNil(t, ev)
	assert.Equal(t, module.OutcomeFailedPermanent, ev.Outcome)
	assert.Contains(t, ev.Error, "SupplyExhausted")
	assert.Empty(t, c.gate.authorizes[1:])
}

func TestManager_PausedDropRejectsMints(t *testing.T) {
	c := newCore(t, testConfig())
	c.confirmDrop(t, "req-0", "d1")

	require.NoError(t, c.m.PauseDrop("d1", true))
	require.NoError(t, c.m.Submit(mintRequest("req-1", "m1", "d1", "recipient-1")))
	c.drain()
	assert.Equal(t, 0, c.ed.calls("mint"))
	assert.Contains(t, c.sink.last().Error, "DropPaused")

	require.NoError(t, c.m.PauseDrop("d1", false))
	require.NoError(t, c.m.Submit(mintRequest("req-2", "m1", "d1", "recipient-1")))
	c.drain()
	assert.Equal(t, 1, c.ed.calls("mint"))
}

func TestManager_OperatorRetryAfterPermanentFailure(t *testing.T) {
	c := newCore(t, testConfig())

	c.ed.queueSubmit(nil, chain.InsufficientChainFundsError.New("treasury empty"))
	createReq := createRequest("req-1", "d1")
	require.NoError(t, c.m.Submit(createReq))
	c.drain()

	entity := module.EntityRef{Kind: module.KindDrop, ID: "d1"}
	history, err := c.st.AttemptsByEntity(entity, module.OpCreate)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, module.AttemptFailedPermanent, history[0].State)

	// a plain second request is not accepted while failed
	retryPayload, _ := json.Marshal(&RetryPayload{Op: "create", Payload: createReq.Payload})
	require.NoError(t, c.m.Submit(&module.OperationRequest{
		Request: "req-2",
		Op:      module.OpRetry,
		Entity:  entity,
		Payload: retryPayload,
	}))
	c.drain()

	history, err = c.st.AttemptsByEntity(entity, module.OpCreate)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, module.AttemptConfirmed, history[1].State)
	assert.Equal(t, 2, history[1].Number)

	// fresh chain means a fresh hold: reverse then authorize again
	assert.Len(t, c.gate.authorizes, 2)
	assert.Len(t, c.gate.reverses, 1)
	assert.Len(t, c.gate.finalizes, 1)
}

func TestManager_BillingRepairRetriesSettlement(t *testing.T) {
	c := newCore(t, testConfig())
	c.gate.finErrs = append(c.gate.finErrs,
		credits.GateUnavailableError.New("ledger down"))

	require.NoError(t, c.m.Submit(createRequest("req-1", "d1")))
	c.drain()

	// confirmation landed but settlement is stuck
	assert.Empty(t, c.gate.finalizes)
	pending, err := c.st.PendingReversals()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, module.RepairFinalize, pending[0].Kind)

	c.pass(5 * time.Second)
	assert.Len(t, c.gate.finalizes, 1)
	pending, err = c.st.PendingReversals()
	require.NoError(t, err)
	assert.Empty(t, pending)

	a, err := c.st.AttemptByRequest("req-1")
	require.NoError(t, err)
	assert.Equal(t, module.ChargeFinalized, a.ChargeState)
}

func TestManager_RecoverResumesSubmitted(t *testing.T) {
	c := newCore(t, testConfig())

	c.ed.queueSubmit(&module.TxResult{Address: "col-1", TxRef: "sig-1", Confirmed: false}, nil)
	require.NoError(t, c.m.Submit(createRequest("req-1", "d1")))
	c.drain()

	// a new manager over the same store picks the attempt back up
	registry := chain.NewRegistry()
	registry.Register(c.ed)
	m2 := NewManager(testConfig(), c.st, registry, c.gate, c.clock, log.GlobalLogger())
	sink2 := &recordingSink{}
	m2.AddSink(sink2)
	require.NoError(t, m2.coord.recover())

	c.ed.queueStatus(module.TxConfirmed, nil)
	c2 := &core{m: m2, st: c.st, ed: c.ed, gate: c.gate, sink: sink2, clock: c.clock}
	c2.drain()

	a, err := c.st.AttemptByRequest("req-1")
	require.NoError(t, err)
	assert.Equal(t, module.AttemptConfirmed, a.State)
	assert.Len(t, c.gate.finalizes, 1)
}

func TestManager_SubmitValidation(t *testing.T) {
	c := newCore(t, testConfig())

	err := c.m.Submit(&module.OperationRequest{
		Request: "req-1",
		Op:      module.OpCreate,
		Entity:  module.EntityRef{Kind: module.KindDrop, ID: "d1"},
		Payload: []byte(`{"project":"p1"}`),
	})
	assert.True(t, ValidationError.Equals(err))

	err = c.m.Submit(&module.OperationRequest{
		Request: "req-2",
		Op:      "melt",
		Entity:  module.EntityRef{Kind: module.KindDrop, ID: "d1"},
		Payload: []byte(`{}`),
	})
	assert.True(t, UnsupportedOperationError.Equals(err))

	err = c.m.Submit(&module.OperationRequest{
		Request: "req-3",
		Op:      module.OpCreate,
		Entity:  module.EntityRef{Kind: "planet", ID: "d1"},
		Payload: []byte(`{}`),
	})
	assert.True(t, ValidationError.Equals(err))
}

func TestManager_NewRequestAfterConfirmedDoesNotResubmit(t *testing.T) {
	c := newCore(t, testConfig())
	c.confirmDrop(t, "req-0", "d1")

	require.NoError(t, c.m.Submit(mintRequest("req-a", "m1", "d1", "recipient-1")))
	c.drain()
	mint, err := c.st.GetMint("m1")
	require.NoError(t, err)
	require.Equal(t, module.StatusMinted, mint.Status)
	require.Equal(t, 1, c.ed.calls("mint"))

	// a fresh request id for an already minted entity replays the
	// terminal outcome instead of opening a second attempt
	require.NoError(t, c.m.Submit(mintRequest("req-b", "m1", "d1", "recipient-1")))
	c.drain()

	assert.Equal(t, 1, c.ed.calls("mint"))
	entity := module.EntityRef{Kind: module.KindMint, ID: "m1"}
	history, err := c.st.AttemptsByEntity(entity, module.OpMint)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	drop, err := c.st.GetDrop("d1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), drop.Minted)
	assert.Equal(t, module.OutcomeConfirmed, c.sink.last().Outcome)

	// the create and the single mint each settled once
	assert.Len(t, c.gate.authorizes, 2)
	assert.Len(t, c.gate.finalizes, 2)
}

func TestManager_NewRequestAfterPermanentFailureNeedsRetry(t *testing.T) {
	c := newCore(t, testConfig())

	c.ed.queueSubmit(nil, chain.ChainRejectedError.New("invalid metadata"))
	require.NoError(t, c.m.Submit(createRequest("req-1", "d1")))
	c.drain()
	require.Equal(t, module.OutcomeFailedPermanent, c.sink.last().Outcome)

	// without an operator retry the failure only re-emits
	require.NoError(t, c.m.Submit(createRequest("req-2", "d1")))
	c.drain()

	assert.Equal(t, 1, c.ed.calls("create"))
	entity := module.EntityRef{Kind: module.KindDrop, ID: "d1"}
	history, err := c.st.AttemptsByEntity(entity, module.OpCreate)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, module.OutcomeFailedPermanent, c.sink.last().Outcome)
	assert.Len(t, c.gate.authorizes, 1)
	assert.Len(t, c.gate.reverses, 1)
}

func TestManager_StatusOutageTripsWatchdog(t *testing.T) {
	c := newCore(t, testConfig())

	c.ed.queueSubmit(&module.TxResult{Address: "col-1", TxRef: "sig-1", Confirmed: false}, nil)
	require.NoError(t, c.m.Submit(createRequest("req-1", "d1")))
	c.drain()

	// status endpoint down for every poll
	for i := 0; i < 8; i++ {
		c.ed.queueStatus(module.TxPending, chain.ChainUnavailableError.New("rpc down"))
	}
	c.pass(15 * time.Second)
	c.pass(15 * time.Second)
	a, err := c.st.AttemptByRequest("req-1")
	require.NoError(t, err)
	assert.Equal(t, module.AttemptSubmitted, a.State)

	// the blind attempt does not outlive the submit timeout
	c.pass(90 * time.Second)
	a, err = c.st.AttemptByRequest("req-1")
	require.NoError(t, err)
	assert.Equal(t, module.AttemptFailedTransient, a.State)

	c.ed.queueSubmit(&module.TxResult{Address: "col-1", TxRef: "sig-2", Confirmed: true}, nil)
	c.pass(time.Minute)
	a, err = c.st.AttemptByRequest("req-1")
	require.NoError(t, err)
	assert.Equal(t, module.AttemptConfirmed, a.State)

	// the hold survived the outage and settled once
	assert.Len(t, c.gate.authorizes, 1)
	assert.Len(t, c.gate.finalizes, 1)
}

func TestManager_UpdateCarriesStoredRoyalty(t *testing.T) {
	c := newCore(t, testConfig())
	c.confirmDrop(t, "req-0", "d1")

	// no royalty in the payload keeps the one from creation
	require.NoError(t, c.m.Submit(updateRequest("req-1", "d1", &UpdatePayload{
		Name:        "Genesis",
		Symbol:      "GEN",
		MetadataURI: "https://meta.example/v2.json",
	})))
	c.drain()
	require.Len(t, c.ed.updates, 1)
	assert.Equal(t, uint16(250), c.ed.updates[0].SellerFeeBasisPoints)

	fee := uint16(500)
	require.NoError(t, c.m.Submit(updateRequest("req-2", "d1", &UpdatePayload{
		Name:                 "Genesis",
		Symbol:               "GEN",
		MetadataURI:          "https://meta.example/v3.json",
		SellerFeeBasisPoints: &fee,
	})))
	c.drain()
	require.Len(t, c.ed.updates, 2)
	assert.Equal(t, uint16(500), c.ed.updates[1].SellerFeeBasisPoints)

	// and the explicit value sticks for the next plain update
	require.NoError(t, c.m.Submit(updateRequest("req-3", "d1", &UpdatePayload{
		Name:        "Genesis",
		Symbol:      "GEN",
		MetadataURI: "https://meta.example/v4.json",
	})))
	c.drain()
	require.Len(t, c.ed.updates, 3)
	assert.Equal(t, uint16(500), c.ed.updates[2].SellerFeeBasisPoints)
}

func TestManager_RepairReconcilesSettledAuthorization(t *testing.T) {
	c := newCore(t, testConfig())
	c.gate.finErrs = append(c.gate.finErrs,
		credits.GateUnavailableError.New("ledger down"),
		credits.AuthorizationStateError.New("already captured"))

	require.NoError(t, c.m.Submit(createRequest("req-1", "d1")))
	c.drain()

	pending, err := c.st.PendingReversals()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// the ledger settled on its own; the repair brings the record along
	c.pass(5 * time.Second)
	pending, err = c.st.PendingReversals()
	require.NoError(t, err)
	assert.Empty(t, pending)
	a, err := c.st.AttemptByRequest("req-1")
	require.NoError(t, err)
	assert.Equal(t, module.ChargeFinalized, a.ChargeState)
}

type countingSink struct {
	recordingSink
	requests []module.OperationKind
}

func (s *countingSink) OnRequest(op module.OperationKind) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.requests = append(s.requests, op)
}

func TestManager_RequestSinkSeesAcceptedOnly(t *testing.T) {
	c := newCore(t, testConfig())
	sink := &countingSink{}
	c.m.AddSink(sink)

	require.NoError(t, c.m.Submit(createRequest("req-1", "d1")))
	err := c.m.Submit(&module.OperationRequest{
		Request: "req-2",
		Op:      "melt",
		Entity:  module.EntityRef{Kind: module.KindDrop, ID: "d1"},
		Payload: []byte(`{}`),
	})
	require.True(t, UnsupportedOperationError.Equals(err))
	c.drain()

	assert.Equal(t, []module.OperationKind{module.OpCreate}, sink.requests)
}
