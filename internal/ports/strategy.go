package ports

import (
	"context"

	"github.com/somnialabs/merchantd/internal/domain"
)

// Strategy es una función pura de (snapshot, wallet) a una decisión
// acotada. Nunca deja un merchant sin decidir: la estrategia LLM cae a
// la heurística ante cualquier fallo.
type Strategy interface {
	Decide(ctx context.Context, snapshot domain.MerchantSnapshot, wallet domain.WalletState) domain.Decision
}
