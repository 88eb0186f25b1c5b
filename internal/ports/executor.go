package ports

import (
	"context"

	"github.com/somnialabs/merchantd/internal/domain"
)

// Executor maps a decision to the corresponding contract call and
// dispatches it. It never raises past this boundary: every failure is
// logged and converted to ok=false.
type Executor interface {
	// Execute dispatches the decision's action for the given merchant.
	// Returns the transaction hash and true on success.
	Execute(ctx context.Context, id domain.MerchantID, d domain.Decision) (txHash string, ok bool)
}
