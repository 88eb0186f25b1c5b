package chain

import (
	"context"
	"math/big"

	"github.com/somnialabs/merchantd/internal/domain"
)

// Per-action gas budgets. buyItem is the most expensive path: it moves
// value, mutates inventory and accrues profit in one call.
const (
	gasAddItem        = uint64(300_000)
	gasBuyItem        = uint64(350_000)
	gasRestockItem    = uint64(200_000)
	gasWithdrawProfit = uint64(100_000)
)

// AddItem lists a new item on the merchant.
func (gw *Gateway) AddItem(ctx context.Context, id domain.MerchantID, name string, priceWei *big.Int, quantity int) (string, error) {
	return gw.Send(ctx, id, "addItem", gasAddItem, nil,
		big.NewInt(id.TokenID), name, priceWei, big.NewInt(int64(quantity)))
}

// BuyItem purchases quantity units of an item, attaching the exact
// purchase price as transaction value.
func (gw *Gateway) BuyItem(ctx context.Context, id domain.MerchantID, itemIndex, quantity int, valueWei *big.Int) (string, error) {
	return gw.Send(ctx, id, "buyItem", gasBuyItem, valueWei,
		big.NewInt(id.TokenID), big.NewInt(int64(itemIndex)), big.NewInt(int64(quantity)))
}

// RestockItem adds quantity units to an existing item.
func (gw *Gateway) RestockItem(ctx context.Context, id domain.MerchantID, itemIndex, quantity int) (string, error) {
	return gw.Send(ctx, id, "restockItem", gasRestockItem, nil,
		big.NewInt(id.TokenID), big.NewInt(int64(itemIndex)), big.NewInt(int64(quantity)))
}

// WithdrawProfit sweeps the merchant's accumulated profit to its owner.
func (gw *Gateway) WithdrawProfit(ctx context.Context, id domain.MerchantID) (string, error) {
	return gw.Send(ctx, id, "withdrawProfit", gasWithdrawProfit, nil, big.NewInt(id.TokenID))
}
