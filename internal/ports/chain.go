package ports

import (
	"context"
	"math/big"

	"github.com/somnialabs/merchantd/internal/domain"
)

// MerchantReader expone las lecturas on-chain que necesita el ciclo.
// Los reverts se devuelven como *chain.ContractCallError y los captura
// el caller; nunca llegan al orquestador.
type MerchantReader interface {
	// MerchantName devuelve el nombre del merchant.
	MerchantName(ctx context.Context, id domain.MerchantID) (string, error)

	// Inventory devuelve el inventario en el orden del contrato.
	Inventory(ctx context.Context, id domain.MerchantID) ([]domain.Item, error)

	// Profit devuelve el profit acumulado en wei.
	Profit(ctx context.Context, id domain.MerchantID) (*big.Int, error)

	// WalletBalance devuelve el balance de la wallet del agente.
	WalletBalance(ctx context.Context) (domain.WalletState, error)

	// Connected indica si el RPC responde.
	Connected(ctx context.Context) bool
}

// MerchantWriter envía las transacciones del agente. Cada método
// bloquea hasta que la transacción se mina o expira el timeout.
type MerchantWriter interface {
	AddItem(ctx context.Context, id domain.MerchantID, name string, priceWei *big.Int, quantity int) (string, error)
	BuyItem(ctx context.Context, id domain.MerchantID, itemIndex, quantity int, valueWei *big.Int) (string, error)
	RestockItem(ctx context.Context, id domain.MerchantID, itemIndex, quantity int) (string, error)
	WithdrawProfit(ctx context.Context, id domain.MerchantID) (string, error)
}
