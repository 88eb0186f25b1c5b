package ports

import (
	"context"

	"github.com/somnialabs/merchantd/internal/domain"
)

// Heartbeat es el payload periódico de estado enviado al backend.
type Heartbeat struct {
	WalletBalanceEth   float64
	MerchantsMonitored int
	TotalDecisions     int
	UptimeSeconds      float64
}

// Notifier envía eventos best-effort al backend configurado. Los fallos
// se loguean y se tragan; nunca son fatales.
type Notifier interface {
	SendDecision(ctx context.Context, id domain.MerchantID, d domain.Decision, txHash string) error
	SendHeartbeat(ctx context.Context, hb Heartbeat) error
	SendError(ctx context.Context, message, kind string) error
}

// Reporter presenta el resumen de un ciclo al operador (consola).
type Reporter interface {
	Report(ctx context.Context, results []domain.CycleResult) error
}
