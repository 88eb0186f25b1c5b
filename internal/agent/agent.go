package agent

// The poll loop. One cycle: list merchants, read the wallet once, then
// for each merchant gather → decide → execute → record, with per-merchant
// error isolation. A heartbeat and a status file write close the cycle.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/somnialabs/merchantd/internal/domain"
	"github.com/somnialabs/merchantd/internal/ports"
)

// Agent owns the cycle loop and its collaborators.
type Agent struct {
	reader    ports.MerchantReader
	directory ports.Directory
	strategy  ports.Strategy
	executor  ports.Executor
	memory    ports.Memory
	notifier  ports.Notifier
	reporter  ports.Reporter
	status    *StatusTracker

	pollInterval time.Duration

	// guards against overlapping ticks if the scheduler fires while a
	// cycle is still in flight
	cycleMu sync.Mutex
}

type Deps struct {
	Reader    ports.MerchantReader
	Directory ports.Directory
	Strategy  ports.Strategy
	Executor  ports.Executor
	Memory    ports.Memory
	Notifier  ports.Notifier
	Reporter  ports.Reporter
	Status    *StatusTracker
}

func New(deps Deps, pollInterval time.Duration) *Agent {
	return &Agent{
		reader:       deps.Reader,
		directory:    deps.Directory,
		strategy:     deps.Strategy,
		executor:     deps.Executor,
		memory:       deps.Memory,
		notifier:     deps.Notifier,
		reporter:     deps.Reporter,
		status:       deps.Status,
		pollInterval: pollInterval,
	}
}

// Run polls until ctx is cancelled. The first cycle starts immediately,
// the rest follow the configured interval.
func (a *Agent) Run(ctx context.Context) error {
	a.status.SetRunning(true)
	defer a.status.SetRunning(false)

	slog.Info("agent started", "poll_interval", a.pollInterval)

	a.tick(ctx)

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("agent stopping")
			return ctx.Err()
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

// RunOnce executes a single cycle and returns.
func (a *Agent) RunOnce(ctx context.Context) {
	a.status.SetRunning(true)
	defer a.status.SetRunning(false)
	a.tick(ctx)
}

// tick runs one cycle unless the previous one is still in flight.
func (a *Agent) tick(ctx context.Context) {
	if !a.cycleMu.TryLock() {
		slog.Warn("previous cycle still running, skipping tick")
		return
	}
	defer a.cycleMu.Unlock()

	a.runCycle(ctx)
}

func (a *Agent) runCycle(ctx context.Context) {
	started := time.Now()

	merchants, err := a.directory.ListMerchants(ctx)
	if err != nil {
		slog.Error("merchant discovery failed", "err", err)
		a.notifier.SendError(ctx, fmt.Sprintf("merchant discovery failed: %v", err), "discovery")
		a.status.CycleDone(0, 0, a.reader.Connected(ctx))
		a.status.Write()
		return
	}

	// One balance read shared by every merchant in the cycle.
	wallet, err := a.reader.WalletBalance(ctx)
	if err != nil {
		slog.Error("could not read wallet balance", "err", err)
		a.notifier.SendError(ctx, fmt.Sprintf("wallet balance read failed: %v", err), "chain")
		a.status.CycleDone(0, len(merchants), false)
		a.status.Write()
		return
	}

	results := make([]domain.CycleResult, 0, len(merchants))
	for _, id := range merchants {
		// Per-merchant isolation: one failure never aborts the rest.
		result := a.processMerchant(ctx, id, wallet)
		results = append(results, result)
		if ctx.Err() != nil {
			break
		}
	}

	if err := a.reporter.Report(ctx, results); err != nil {
		slog.Debug("console report failed", "err", err)
	}

	// Fresh balance for the heartbeat: the cycle may have spent.
	healthy := true
	heartbeatEth := wallet.Eth
	if fresh, err := a.reader.WalletBalance(ctx); err == nil {
		heartbeatEth = fresh.Eth
	} else {
		healthy = a.reader.Connected(ctx)
	}

	a.notifier.SendHeartbeat(ctx, ports.Heartbeat{
		WalletBalanceEth:   heartbeatEth,
		MerchantsMonitored: len(merchants),
		TotalDecisions:     a.status.TotalDecisions(),
		UptimeSeconds:      a.status.Uptime(),
	})

	a.status.CycleDone(heartbeatEth, len(merchants), healthy)
	a.status.Write()

	slog.Info("cycle complete",
		"merchants", len(merchants),
		"duration", time.Since(started).Round(time.Millisecond))
}

func (a *Agent) processMerchant(ctx context.Context, id domain.MerchantID, wallet domain.WalletState) domain.CycleResult {
	snap, err := a.gather(ctx, id)
	if err != nil {
		slog.Warn("skipping merchant", "merchant", id, "err", err)
		return domain.CycleResult{
			Snapshot: snap,
			Decision: domain.Decision{Action: domain.ActionNone},
			Err:      err.Error(),
		}
	}

	// Ensure the memory record exists before deciding.
	if _, err := a.memory.Get(ctx, id.Key()); err != nil {
		slog.Warn("memory read failed", "merchant", id, "err", err)
	}

	decision := a.strategy.Decide(ctx, snap, wallet)

	txHash, ok := a.executor.Execute(ctx, id, decision)

	// Every decision goes to the history and the status window, a quiet
	// "none" included. The backend only hears about real actions.
	if err := a.memory.RecordDecision(ctx, id.Key(), decision, ok); err != nil {
		slog.Warn("could not persist decision", "merchant", id, "err", err)
	}
	a.status.AddDecision(id, decision, txHash, ok)
	if decision.Action != domain.ActionNone {
		a.notifier.SendDecision(ctx, id, decision, txHash)
	}

	a.memory.RecordMetric(ctx, id.Key(), "profit_eth", snap.ProfitEth())

	return domain.CycleResult{
		Snapshot: snap,
		Decision: decision,
		TxHash:   txHash,
		Executed: ok,
	}
}

// gather builds the merchant snapshot from chain reads. A failed name
// read is tolerated; inventory or profit failures skip the merchant.
func (a *Agent) gather(ctx context.Context, id domain.MerchantID) (domain.MerchantSnapshot, error) {
	snap := domain.MerchantSnapshot{ID: id}

	name, err := a.reader.MerchantName(ctx, id)
	if err != nil {
		slog.Debug("could not read merchant name", "merchant", id, "err", err)
		name = fmt.Sprintf("Merchant %s", id)
	}
	snap.Name = name

	inventory, err := a.reader.Inventory(ctx, id)
	if err != nil {
		return snap, fmt.Errorf("agent.gather: inventory: %w", err)
	}
	snap.Inventory = inventory

	profit, err := a.reader.Profit(ctx, id)
	if err != nil {
		return snap, fmt.Errorf("agent.gather: profit: %w", err)
	}
	snap.ProfitWei = profit

	return snap, nil
}
