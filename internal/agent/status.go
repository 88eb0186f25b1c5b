package agent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/somnialabs/merchantd/internal/domain"
)

const recentDecisionsCap = 50

// RecentDecision is one entry of the rolling decision window exposed in
// the status file.
type RecentDecision struct {
	MerchantKey string         `json:"merchant_key"`
	Action      string         `json:"action"`
	Details     domain.Details `json:"details"`
	Reasoning   string         `json:"reasoning"`
	TxHash      string         `json:"tx_hash,omitempty"`
	Success     bool           `json:"success"`
	Timestamp   string         `json:"timestamp"`
}

// statusFile is the exact on-disk shape consumed by the status API.
type statusFile struct {
	IsRunning          bool             `json:"is_running"`
	LastPollTime       string           `json:"last_poll_time"`
	AgentAddress       string           `json:"agent_address"`
	WalletBalanceEth   float64          `json:"wallet_balance_eth"`
	TotalDecisionsMade int              `json:"total_decisions_made"`
	RecentDecisions    []RecentDecision `json:"recent_decisions"`
	MerchantsMonitored int              `json:"merchants_monitored"`
	ConnectionHealthy  bool             `json:"connection_healthy"`
	UptimeSeconds      float64          `json:"uptime_seconds"`
	AutoTradingEnabled bool             `json:"auto_trading_enabled"`
	CyclesCompleted    int              `json:"cycles_completed"`
}

// StatusTracker keeps the in-process counters and mirrors them to the
// status file after every cycle. Writes are atomic (temp file + rename)
// so the API process never reads a half-written file.
type StatusTracker struct {
	mu sync.Mutex

	path         string
	agentAddress string
	autoTrading  bool
	startedAt    time.Time

	running           bool
	lastPoll          time.Time
	walletEth         float64
	totalDecisions    int
	merchants         int
	connectionHealthy bool
	cycles            int
	recent            []RecentDecision // newest first
}

func NewStatusTracker(path, agentAddress string, autoTrading bool) *StatusTracker {
	return &StatusTracker{
		path:         path,
		agentAddress: agentAddress,
		autoTrading:  autoTrading,
		startedAt:    time.Now(),
	}
}

// SetRunning flips the running flag and rewrites the file so shutdown is
// visible immediately.
func (st *StatusTracker) SetRunning(running bool) {
	st.mu.Lock()
	st.running = running
	st.mu.Unlock()
	st.Write()
}

// CycleDone records the end of a cycle. The cycle counter increments
// even when the cycle partially failed.
func (st *StatusTracker) CycleDone(walletEth float64, merchants int, healthy bool) {
	st.mu.Lock()
	st.cycles++
	st.lastPoll = time.Now().UTC()
	st.walletEth = walletEth
	st.merchants = merchants
	st.connectionHealthy = healthy
	st.mu.Unlock()
}

// AddDecision pushes a decision outcome onto the rolling window.
func (st *StatusTracker) AddDecision(id domain.MerchantID, d domain.Decision, txHash string, success bool) {
	entry := RecentDecision{
		MerchantKey: id.Key(),
		Action:      string(d.Action),
		Details:     d.Details,
		Reasoning:   d.Reasoning,
		TxHash:      txHash,
		Success:     success,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}

	st.mu.Lock()
	st.totalDecisions++
	st.recent = append([]RecentDecision{entry}, st.recent...)
	if len(st.recent) > recentDecisionsCap {
		st.recent = st.recent[:recentDecisionsCap]
	}
	st.mu.Unlock()
}

// TotalDecisions returns the decisions counted since startup.
func (st *StatusTracker) TotalDecisions() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.totalDecisions
}

// Uptime returns the seconds since the tracker was created.
func (st *StatusTracker) Uptime() float64 {
	return time.Since(st.startedAt).Seconds()
}

// Write rewrites the status file wholesale. Best-effort: a failed write
// is logged and swallowed.
func (st *StatusTracker) Write() {
	st.mu.Lock()
	snapshot := statusFile{
		IsRunning:          st.running,
		AgentAddress:       st.agentAddress,
		WalletBalanceEth:   st.walletEth,
		TotalDecisionsMade: st.totalDecisions,
		RecentDecisions:    append([]RecentDecision(nil), st.recent...),
		MerchantsMonitored: st.merchants,
		ConnectionHealthy:  st.connectionHealthy,
		UptimeSeconds:      time.Since(st.startedAt).Seconds(),
		AutoTradingEnabled: st.autoTrading,
		CyclesCompleted:    st.cycles,
	}
	if !st.lastPoll.IsZero() {
		snapshot.LastPollTime = st.lastPoll.Format(time.RFC3339)
	}
	st.mu.Unlock()

	if snapshot.RecentDecisions == nil {
		snapshot.RecentDecisions = []RecentDecision{}
	}

	if err := writeAtomic(st.path, snapshot); err != nil {
		slog.Warn("could not write status file", "path", st.path, "err", err)
	}
}

func writeAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("agent.writeAtomic: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".status-*.json")
	if err != nil {
		return fmt.Errorf("agent.writeAtomic: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("agent.writeAtomic: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("agent.writeAtomic: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("agent.writeAtomic: rename: %w", err)
	}
	return nil
}
