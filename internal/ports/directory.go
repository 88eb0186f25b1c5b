package ports

import (
	"context"

	"github.com/somnialabs/merchantd/internal/domain"
)

// Directory enumera los merchants que este agente gestiona en el ciclo
// actual. Una lista vacía es válida (cero merchants), no un error.
type Directory interface {
	ListMerchants(ctx context.Context) ([]domain.MerchantID, error)
}
