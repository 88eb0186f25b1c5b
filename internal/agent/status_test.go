package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somnialabs/merchantd/internal/domain"
)

func readStatus(t *testing.T, path string) statusFile {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var status statusFile
	require.NoError(t, json.Unmarshal(data, &status))
	return status
}

func TestStatusTrackerWritesAllFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	st := NewStatusTracker(path, "0xagent", true)

	st.SetRunning(true)
	st.AddDecision(merchant(1), domain.Decision{Action: domain.ActionBuy, Reasoning: "cheap"}, "0xabc", true)
	st.CycleDone(1.25, 3, true)
	st.Write()

	status := readStatus(t, path)
	assert.True(t, status.IsRunning)
	assert.Equal(t, "0xagent", status.AgentAddress)
	assert.InDelta(t, 1.25, status.WalletBalanceEth, 0.0001)
	assert.Equal(t, 1, status.TotalDecisionsMade)
	assert.Equal(t, 3, status.MerchantsMonitored)
	assert.True(t, status.ConnectionHealthy)
	assert.True(t, status.AutoTradingEnabled)
	assert.NotEmpty(t, status.LastPollTime)
	assert.GreaterOrEqual(t, status.UptimeSeconds, 0.0)
	require.Len(t, status.RecentDecisions, 1)
	assert.Equal(t, "buy", status.RecentDecisions[0].Action)
	assert.Equal(t, "0xabc", status.RecentDecisions[0].TxHash)
}

func TestStatusTrackerRecentDecisionsNewestFirstAndCapped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	st := NewStatusTracker(path, "0xagent", false)

	for i := 0; i < recentDecisionsCap+10; i++ {
		action := domain.ActionRestock
		if i == recentDecisionsCap+9 {
			action = domain.ActionWithdraw
		}
		st.AddDecision(merchant(int64(i)), domain.Decision{Action: action}, "", true)
	}
	st.Write()

	status := readStatus(t, path)
	require.Len(t, status.RecentDecisions, recentDecisionsCap)
	// The last decision added is first in the window
	assert.Equal(t, "withdraw", status.RecentDecisions[0].Action)
	assert.Equal(t, recentDecisionsCap+10, status.TotalDecisionsMade)
}

func TestStatusTrackerEmptyWindowSerializesAsArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	st := NewStatusTracker(path, "0xagent", false)

	st.Write()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"recent_decisions": []`)
	assert.Contains(t, string(data), `"is_running": false`)
}

func TestStatusTrackerSetRunningPersistsImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	st := NewStatusTracker(path, "0xagent", false)

	st.SetRunning(true)
	assert.True(t, readStatus(t, path).IsRunning)

	st.SetRunning(false)
	assert.False(t, readStatus(t, path).IsRunning)
}
