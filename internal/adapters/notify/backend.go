package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/somnialabs/merchantd/internal/domain"
	"github.com/somnialabs/merchantd/internal/ports"
)

// Backend implementa ports.Notifier contra el endpoint de logs del
// backend. Todos los envíos son best-effort: un backend caído nunca
// afecta al ciclo.
type Backend struct {
	client *resty.Client
	url    string
}

// NewBackend crea el notificador apuntando a la URL del backend
// (p. ej. http://localhost:8000/api/logs).
func NewBackend(url string) *Backend {
	client := resty.New()
	client.SetTimeout(5 * time.Second)
	return &Backend{client: client, url: url}
}

type decisionPayload struct {
	Type      string         `json:"type"`
	Merchant  string         `json:"merchant_key"`
	Action    string         `json:"action"`
	Details   domain.Details `json:"details"`
	Reasoning string         `json:"reasoning"`
	TxHash    string         `json:"tx_hash,omitempty"`
	Timestamp string         `json:"timestamp"`
}

type heartbeatPayload struct {
	Type               string  `json:"type"`
	WalletBalanceEth   float64 `json:"wallet_balance_eth"`
	MerchantsMonitored int     `json:"merchants_monitored"`
	TotalDecisions     int     `json:"total_decisions"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
	Timestamp          string  `json:"timestamp"`
}

type errorPayload struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	ErrorKind string `json:"error_type"`
	Timestamp string `json:"timestamp"`
}

// SendDecision publica una decisión ejecutada (o fallida, sin tx hash).
func (b *Backend) SendDecision(ctx context.Context, id domain.MerchantID, d domain.Decision, txHash string) error {
	return b.post(ctx, decisionPayload{
		Type:      "decision",
		Merchant:  id.Key(),
		Action:    string(d.Action),
		Details:   d.Details,
		Reasoning: d.Reasoning,
		TxHash:    txHash,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// SendHeartbeat publica el latido periódico del agente.
func (b *Backend) SendHeartbeat(ctx context.Context, hb ports.Heartbeat) error {
	return b.post(ctx, heartbeatPayload{
		Type:               "heartbeat",
		WalletBalanceEth:   hb.WalletBalanceEth,
		MerchantsMonitored: hb.MerchantsMonitored,
		TotalDecisions:     hb.TotalDecisions,
		UptimeSeconds:      hb.UptimeSeconds,
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
	})
}

// SendError publica un error operacional.
func (b *Backend) SendError(ctx context.Context, message, kind string) error {
	return b.post(ctx, errorPayload{
		Type:      "error",
		Message:   message,
		ErrorKind: kind,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (b *Backend) post(ctx context.Context, payload any) error {
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(b.url)
	if err != nil {
		slog.Debug("backend notification failed", "err", err)
		return fmt.Errorf("notify.post: %w", err)
	}
	if resp.IsError() {
		slog.Debug("backend rejected notification", "status", resp.StatusCode())
		return fmt.Errorf("notify.post: backend returned %d", resp.StatusCode())
	}
	return nil
}
