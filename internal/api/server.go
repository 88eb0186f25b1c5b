package api

// Read-only projection of the agent's status file plus the memory store.
// The API process shares nothing with the agent but the file and the
// database, so it can restart independently.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/somnialabs/merchantd/internal/adapters/storage"
	"github.com/somnialabs/merchantd/internal/domain"
)

const (
	staleAfter        = 120 * time.Second
	streamHeartbeat   = 2 * time.Second
	streamPollEvery   = time.Second
	defaultLimit      = 20
	maxDecisionsLimit = 50
)

var allowedOrigins = map[string]bool{
	"http://localhost:3000": true,
	"http://localhost:3001": true,
}

// Decision mirrors one entry of the status file's rolling window.
type Decision struct {
	MerchantKey string         `json:"merchant_key"`
	Action      string         `json:"action"`
	Details     domain.Details `json:"details"`
	Reasoning   string         `json:"reasoning"`
	TxHash      string         `json:"tx_hash,omitempty"`
	Success     bool           `json:"success"`
	Timestamp   string         `json:"timestamp"`
}

// Status mirrors the agent's status file.
type Status struct {
	IsRunning          bool       `json:"is_running"`
	LastPollTime       string     `json:"last_poll_time"`
	AgentAddress       string     `json:"agent_address"`
	WalletBalanceEth   float64    `json:"wallet_balance_eth"`
	TotalDecisionsMade int        `json:"total_decisions_made"`
	RecentDecisions    []Decision `json:"recent_decisions"`
	MerchantsMonitored int        `json:"merchants_monitored"`
	ConnectionHealthy  bool       `json:"connection_healthy"`
	UptimeSeconds      float64    `json:"uptime_seconds"`
	AutoTradingEnabled bool       `json:"auto_trading_enabled"`
	CyclesCompleted    int        `json:"cycles_completed"`
}

// memoryStore is the slice of the memory store the API needs.
type memoryStore interface {
	Merchants(ctx context.Context) ([]string, error)
	Metrics(ctx context.Context, key string, limit int) ([]storage.MetricPoint, error)
}

// Server serves the status endpoints.
type Server struct {
	statusPath string
	store      memoryStore
	server     *http.Server
}

func NewServer(statusPath string, store memoryStore) *Server {
	return &Server{statusPath: statusPath, store: store}
}

// Start blocks serving HTTP until Stop is called.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler builds the routed handler, exposed separately for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/agent/status", s.handleStatus)
	mux.HandleFunc("GET /api/agent/decisions", s.handleDecisions)
	mux.HandleFunc("GET /api/agent/metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/agent/health", s.handleHealth)
	mux.HandleFunc("GET /api/agent/decisions/stream", s.handleStream)
	mux.HandleFunc("GET /api/merchants", s.handleMerchants)
	mux.HandleFunc("GET /api/merchants/{key}/metrics", s.handleMerchantMetrics)
	mux.HandleFunc("POST /api/logs", s.handleLogs)
	return s.withCORS(mux)
}

func (s *Server) readStatus() (Status, error) {
	data, err := os.ReadFile(s.statusPath)
	if err != nil {
		return Status{}, fmt.Errorf("api.readStatus: %w", err)
	}
	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return Status{}, fmt.Errorf("api.readStatus: %w", err)
	}
	return status, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.readStatus()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "agent status not available")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	status, err := s.readStatus()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "agent status not available")
		return
	}

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, maxDecisionsLimit)
		}
	}

	merchant := strings.ToLower(r.URL.Query().Get("merchant_address"))
	decisions := make([]Decision, 0, limit)
	for _, d := range status.RecentDecisions {
		if merchant != "" && !strings.HasPrefix(strings.ToLower(d.MerchantKey), merchant) {
			continue
		}
		decisions = append(decisions, d)
		if len(decisions) == limit {
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"decisions": decisions,
		"count":     len(decisions),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	status, err := s.readStatus()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "agent status not available")
		return
	}

	byAction := map[string]int{}
	successes := 0
	for _, d := range status.RecentDecisions {
		byAction[d.Action]++
		if d.Success {
			successes++
		}
	}

	successRate := 0.0
	if len(status.RecentDecisions) > 0 {
		successRate = float64(successes) / float64(len(status.RecentDecisions))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_decisions":     status.TotalDecisionsMade,
		"decisions_by_action": byAction,
		"success_rate":        successRate,
		"merchants_monitored": status.MerchantsMonitored,
		"uptime_seconds":      status.UptimeSeconds,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, err := s.readStatus()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"healthy": false,
			"reason":  "agent status not available",
		})
		return
	}

	// Health is the age of the last poll, nothing else: a stopping agent
	// that polled recently is still healthy, it just says so in reason.
	healthy := true
	reason := ""
	if lastPoll, err := time.Parse(time.RFC3339, status.LastPollTime); err != nil {
		healthy = false
		reason = "agent has not completed a poll yet"
	} else if time.Since(lastPoll) > staleAfter {
		healthy = false
		reason = fmt.Sprintf("last poll was %s ago", time.Since(lastPoll).Round(time.Second))
	} else if !status.IsRunning {
		reason = "agent reports not running"
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"healthy": healthy,
		"reason":  reason,
	})
}

// handleStream pushes new decisions over server-sent events, with a
// periodic heartbeat so clients can detect a dead agent.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	merchant := strings.ToLower(r.URL.Query().Get("merchant_address"))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	poll := time.NewTicker(streamPollEvery)
	defer poll.Stop()
	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	lastSeen := ""
	if status, err := s.readStatus(); err == nil && len(status.RecentDecisions) > 0 {
		lastSeen = status.RecentDecisions[0].Timestamp
	}

	for {
		select {
		case <-r.Context().Done():
			return

		case <-poll.C:
			status, err := s.readStatus()
			if err != nil {
				continue
			}
			// Emit decisions newer than the last one seen, oldest first.
			// lastSeen advances past filtered-out entries too, so a
			// merchant filter never replays them.
			newest := lastSeen
			var fresh []Decision
			for _, d := range status.RecentDecisions {
				if d.Timestamp <= lastSeen {
					break
				}
				if d.Timestamp > newest {
					newest = d.Timestamp
				}
				if merchant != "" && !strings.HasPrefix(strings.ToLower(d.MerchantKey), merchant) {
					continue
				}
				fresh = append(fresh, d)
			}
			lastSeen = newest
			for i := len(fresh) - 1; i >= 0; i-- {
				writeEvent(w, "decision", fresh[i])
			}
			if len(fresh) > 0 {
				flusher.Flush()
			}

		case <-heartbeat.C:
			writeEvent(w, "heartbeat", map[string]any{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			flusher.Flush()
		}
	}
}

func (s *Server) handleMerchants(w http.ResponseWriter, r *http.Request) {
	merchants, err := s.store.Merchants(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list merchants")
		return
	}
	if merchants == nil {
		merchants = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"merchants": merchants,
		"count":     len(merchants),
	})
}

// handleMerchantMetrics serves the stored performance series of one
// merchant, newest point first.
func (s *Server) handleMerchantMetrics(w http.ResponseWriter, r *http.Request) {
	key := strings.ToLower(r.PathValue("key"))

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	points, err := s.store.Metrics(r.Context(), key, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read metrics")
		return
	}
	if points == nil {
		points = []storage.MetricPoint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"merchant_key": key,
		"metrics":      points,
		"count":        len(points),
	})
}

// handleLogs ingests fire-and-forget log events from the agent. The
// payload is accepted and dropped after a debug trace.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err == nil && len(body) > 0 {
		slog.Debug("log event received", "bytes", len(body))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

func writeEvent(w io.Writer, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
