package ports

import (
	"context"

	"github.com/somnialabs/merchantd/internal/domain"
)

// Memory es el store durable por merchant: tags, blob de memoria y
// historial de decisiones con contadores.
type Memory interface {
	// Get devuelve el registro existente o lo crea lazy con defaults
	// (strategy="balanced", personality="neutral"). La creación es
	// idempotente: una segunda llamada no resetea contadores.
	Get(ctx context.Context, key string) (domain.MerchantMemory, error)

	// Update actualiza un campo ("strategy", "personality", "memory").
	// El campo "last_decision" tiene tratamiento especial: además
	// incrementa total_decisions y añade una fila al historial.
	Update(ctx context.Context, key, field string, value any) error

	// RecordDecision añade una fila al historial e incrementa los
	// contadores total/successful de forma atómica.
	RecordDecision(ctx context.Context, key string, d domain.Decision, success bool) error

	// History devuelve el historial más reciente primero, acotado.
	History(ctx context.Context, key string, limit int) ([]domain.DecisionRecord, error)

	// RecordMetric guarda una métrica puntual (profit, balance...) del
	// merchant para las series que expone la API.
	RecordMetric(ctx context.Context, key, metric string, value float64) error

	// Prune borra filas del historial fuera de la ventana de retención.
	// No toca los registros resumen.
	Prune(ctx context.Context, olderThanDays int) (int64, error)

	// Merchants lista las identidades con memoria almacenada.
	Merchants(ctx context.Context) ([]string, error)

	Close() error
}
