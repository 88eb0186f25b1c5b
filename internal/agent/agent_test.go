package agent

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somnialabs/merchantd/internal/domain"
	"github.com/somnialabs/merchantd/internal/ports"
)

type fakeReader struct {
	names     map[string]string
	inventory map[string][]domain.Item
	profits   map[string]*big.Int
	failurs   map[string]error
	balance   *big.Int
}

func (f *fakeReader) MerchantName(_ context.Context, id domain.MerchantID) (string, error) {
	return f.names[id.Key()], nil
}

func (f *fakeReader) Inventory(_ context.Context, id domain.MerchantID) ([]domain.Item, error) {
	if err := f.failurs[id.Key()]; err != nil {
		return nil, err
	}
	return f.inventory[id.Key()], nil
}

func (f *fakeReader) Profit(_ context.Context, id domain.MerchantID) (*big.Int, error) {
	if p := f.profits[id.Key()]; p != nil {
		return p, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeReader) WalletBalance(context.Context) (domain.WalletState, error) {
	return domain.WalletState{Wei: f.balance, Eth: domain.WeiToEth(f.balance)}, nil
}

func (f *fakeReader) Connected(context.Context) bool { return true }

type fakeDirectory struct {
	ids []domain.MerchantID
	err error
}

func (f *fakeDirectory) ListMerchants(context.Context) ([]domain.MerchantID, error) {
	return f.ids, f.err
}

type fakeStrategy struct {
	decision domain.Decision
}

func (f *fakeStrategy) Decide(context.Context, domain.MerchantSnapshot, domain.WalletState) domain.Decision {
	return f.decision
}

type fakeExecutor struct {
	executed []domain.MerchantID
	ok       bool
}

func (f *fakeExecutor) Execute(_ context.Context, id domain.MerchantID, d domain.Decision) (string, bool) {
	if d.Action == domain.ActionNone {
		return "", true
	}
	f.executed = append(f.executed, id)
	if !f.ok {
		return "", false
	}
	return "0xabc", true
}

type fakeMemory struct {
	recorded  []string
	successes []bool
}

func (f *fakeMemory) Get(_ context.Context, key string) (domain.MerchantMemory, error) {
	return domain.MerchantMemory{Key: key, Strategy: "balanced", Personality: "neutral"}, nil
}

func (f *fakeMemory) Update(context.Context, string, string, any) error { return nil }

func (f *fakeMemory) RecordDecision(_ context.Context, key string, _ domain.Decision, success bool) error {
	f.recorded = append(f.recorded, key)
	f.successes = append(f.successes, success)
	return nil
}

func (f *fakeMemory) History(context.Context, string, int) ([]domain.DecisionRecord, error) {
	return nil, nil
}

func (f *fakeMemory) RecordMetric(context.Context, string, string, float64) error { return nil }

func (f *fakeMemory) Prune(context.Context, int) (int64, error) { return 0, nil }

func (f *fakeMemory) Merchants(context.Context) ([]string, error) { return nil, nil }

func (f *fakeMemory) Close() error { return nil }

type fakeNotifier struct {
	decisions  int
	heartbeats int
	errors     int
}

func (f *fakeNotifier) SendDecision(context.Context, domain.MerchantID, domain.Decision, string) error {
	f.decisions++
	return nil
}

func (f *fakeNotifier) SendHeartbeat(context.Context, ports.Heartbeat) error {
	f.heartbeats++
	return nil
}

func (f *fakeNotifier) SendError(context.Context, string, string) error {
	f.errors++
	return nil
}

type fakeReporter struct {
	results []domain.CycleResult
}

func (f *fakeReporter) Report(_ context.Context, results []domain.CycleResult) error {
	f.results = results
	return nil
}

func merchant(token int64) domain.MerchantID {
	return domain.MerchantID{TokenID: token}
}

func newTestAgent(t *testing.T, reader *fakeReader, dir *fakeDirectory, strat ports.Strategy) (*Agent, *fakeExecutor, *fakeMemory, *fakeNotifier, *fakeReporter) {
	t.Helper()

	exec := &fakeExecutor{ok: true}
	mem := &fakeMemory{}
	notifier := &fakeNotifier{}
	reporter := &fakeReporter{}
	status := NewStatusTracker(filepath.Join(t.TempDir(), "status.json"), "0xagent", true)

	a := New(Deps{
		Reader:    reader,
		Directory: dir,
		Strategy:  strat,
		Executor:  exec,
		Memory:    mem,
		Notifier:  notifier,
		Reporter:  reporter,
		Status:    status,
	}, 0)
	return a, exec, mem, notifier, reporter
}

func TestCycleProcessesMerchantsInOrder(t *testing.T) {
	ids := []domain.MerchantID{merchant(1), merchant(2), merchant(3)}
	reader := &fakeReader{balance: domain.EthToWei(1.0)}
	strat := &fakeStrategy{decision: domain.Decision{Action: domain.ActionWithdraw, Reasoning: "test"}}

	a, exec, _, _, reporter := newTestAgent(t, reader, &fakeDirectory{ids: ids}, strat)
	a.runCycle(context.Background())

	require.Len(t, exec.executed, 3)
	assert.Equal(t, ids, exec.executed)
	require.Len(t, reporter.results, 3)
}

func TestCycleIsolatesMerchantFailures(t *testing.T) {
	ids := []domain.MerchantID{merchant(1), merchant(2)}
	reader := &fakeReader{
		balance: domain.EthToWei(1.0),
		failurs: map[string]error{ids[0].Key(): errors.New("execution reverted")},
	}
	strat := &fakeStrategy{decision: domain.Decision{Action: domain.ActionWithdraw, Reasoning: "test"}}

	a, exec, _, _, reporter := newTestAgent(t, reader, &fakeDirectory{ids: ids}, strat)
	a.runCycle(context.Background())

	// Merchant 1 is skipped, merchant 2 still executes
	require.Len(t, exec.executed, 1)
	assert.Equal(t, ids[1], exec.executed[0])

	require.Len(t, reporter.results, 2)
	assert.NotEmpty(t, reporter.results[0].Err)
	assert.Empty(t, reporter.results[1].Err)
}

func TestCycleRecordsDecisionOutcome(t *testing.T) {
	ids := []domain.MerchantID{merchant(1)}
	reader := &fakeReader{balance: domain.EthToWei(1.0)}
	strat := &fakeStrategy{decision: domain.Decision{Action: domain.ActionWithdraw, Reasoning: "test"}}

	a, exec, mem, notifier, _ := newTestAgent(t, reader, &fakeDirectory{ids: ids}, strat)
	exec.ok = false
	a.runCycle(context.Background())

	require.Len(t, mem.recorded, 1)
	assert.False(t, mem.successes[0])
	assert.Equal(t, 1, notifier.decisions)
}

func TestCycleRecordsNoneDecisions(t *testing.T) {
	ids := []domain.MerchantID{merchant(1)}
	reader := &fakeReader{balance: domain.EthToWei(1.0)}
	strat := &fakeStrategy{decision: domain.Decision{Action: domain.ActionNone, Reasoning: "nothing to do"}}

	a, exec, mem, notifier, _ := newTestAgent(t, reader, &fakeDirectory{ids: ids}, strat)
	a.runCycle(context.Background())

	// A quiet cycle still leaves a trail: history row, status window entry.
	assert.Empty(t, exec.executed)
	require.Len(t, mem.recorded, 1)
	assert.True(t, mem.successes[0])

	a.status.mu.Lock()
	recent := len(a.status.recent)
	total := a.status.totalDecisions
	a.status.mu.Unlock()
	assert.Equal(t, 1, recent)
	assert.Equal(t, 1, total)

	// The backend only hears about real actions.
	assert.Zero(t, notifier.decisions)
	assert.Equal(t, 1, notifier.heartbeats)
}

func TestCycleCountsEvenOnDiscoveryFailure(t *testing.T) {
	reader := &fakeReader{balance: domain.EthToWei(1.0)}
	dir := &fakeDirectory{err: errors.New("rpc down")}
	strat := &fakeStrategy{decision: domain.Decision{Action: domain.ActionNone}}

	a, _, _, notifier, _ := newTestAgent(t, reader, dir, strat)
	a.runCycle(context.Background())
	a.runCycle(context.Background())

	assert.Equal(t, 2, notifier.errors)
	a.status.mu.Lock()
	cycles := a.status.cycles
	a.status.mu.Unlock()
	assert.Equal(t, 2, cycles)
}
