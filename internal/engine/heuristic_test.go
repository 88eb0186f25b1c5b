package engine

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somnialabs/merchantd/internal/domain"
)

func ethWei(eth float64) *big.Int {
	return domain.EthToWei(eth)
}

func snapshot(profitEth float64, items ...domain.Item) domain.MerchantSnapshot {
	return domain.MerchantSnapshot{
		Name:      "Test Merchant",
		Inventory: items,
		ProfitWei: ethWei(profitEth),
	}
}

func wallet(eth float64) domain.WalletState {
	return domain.WalletState{Wei: ethWei(eth), Eth: eth}
}

func TestHeuristicEmptyInventorySeedsShop(t *testing.T) {
	h := NewHeuristic(0.2)

	d := h.Decide(context.Background(), snapshot(0), wallet(1.0))

	require.Equal(t, domain.ActionAddItem, d.Action)
	assert.Equal(t, "Quantum Battery", d.Details.ItemName)
	assert.Equal(t, 5, d.Details.Quantity)
	assert.Equal(t, 0, seedItemPriceWei.Cmp(d.Details.PriceWei))
	assert.NotEmpty(t, d.Reasoning)
}

func TestHeuristicEmptyInventoryIgnoresBalance(t *testing.T) {
	h := NewHeuristic(0.2)

	d := h.Decide(context.Background(), snapshot(0), wallet(0))

	assert.Equal(t, domain.ActionAddItem, d.Action)
}

func TestHeuristicWithdrawThresholdIsStrict(t *testing.T) {
	h := NewHeuristic(0.2)
	item := domain.Item{Index: 0, Name: "Sword", PriceWei: ethWei(0.6), Quantity: 3, Active: true}

	// Exactly at the threshold: no withdraw
	d := h.Decide(context.Background(), snapshot(0.2, item), wallet(1.0))
	assert.NotEqual(t, domain.ActionWithdraw, d.Action)

	// One wei above: withdraw
	snap := snapshot(0.2, item)
	snap.ProfitWei = new(big.Int).Add(snap.ProfitWei, big.NewInt(1))
	d = h.Decide(context.Background(), snap, wallet(1.0))
	assert.Equal(t, domain.ActionWithdraw, d.Action)
}

func TestHeuristicWithdrawBeatsRestock(t *testing.T) {
	h := NewHeuristic(0.2)
	empty := domain.Item{Index: 0, Name: "Sword", PriceWei: ethWei(0.1), Quantity: 0, Active: true}

	d := h.Decide(context.Background(), snapshot(0.5, empty), wallet(1.0))

	assert.Equal(t, domain.ActionWithdraw, d.Action)
}

func TestHeuristicRestocksFirstEmptyItem(t *testing.T) {
	h := NewHeuristic(0.2)
	items := []domain.Item{
		{Index: 0, Name: "Sword", PriceWei: ethWei(0.1), Quantity: 4, Active: true},
		{Index: 1, Name: "Shield", PriceWei: ethWei(0.1), Quantity: 0, Active: true},
		{Index: 2, Name: "Potion", PriceWei: ethWei(0.1), Quantity: 0, Active: true},
	}

	d := h.Decide(context.Background(), snapshot(0.1, items...), wallet(0.01))

	require.Equal(t, domain.ActionRestock, d.Action)
	assert.Equal(t, 1, d.Details.ItemIndex)
	assert.Equal(t, 3, d.Details.Quantity)
}

func TestHeuristicInactiveItemsAreNotRestocked(t *testing.T) {
	h := NewHeuristic(0.2)
	item := domain.Item{Index: 0, Name: "Sword", PriceWei: ethWei(0.1), Quantity: 0, Active: false}

	d := h.Decide(context.Background(), snapshot(0, item), wallet(0.01))

	assert.Equal(t, domain.ActionNone, d.Action)
}

func TestHeuristicBuysAffordableItem(t *testing.T) {
	h := NewHeuristic(0.2)
	item := domain.Item{Index: 0, Name: "Sword", PriceWei: ethWei(0.24), Quantity: 3, Active: true}

	d := h.Decide(context.Background(), snapshot(0.1, item), wallet(1.0))

	require.Equal(t, domain.ActionBuy, d.Action)
	assert.Equal(t, 0, d.Details.ItemIndex)
	assert.Equal(t, 1, d.BuyQuantity())
	assert.Equal(t, 0, ethWei(0.24).Cmp(d.Details.PriceWei))
}

func TestHeuristicBuyRespectsBalanceFraction(t *testing.T) {
	h := NewHeuristic(0.2)
	item := domain.Item{Index: 0, Name: "Sword", PriceWei: ethWei(0.3), Quantity: 3, Active: true}

	d := h.Decide(context.Background(), snapshot(0.1, item), wallet(1.0))

	assert.Equal(t, domain.ActionNone, d.Action)
}

func TestHeuristicBuyRespectsAbsoluteCap(t *testing.T) {
	h := NewHeuristic(0.2)
	// 0.6 fits 25% of a 10 ETH wallet but not the 0.5 ETH cap
	item := domain.Item{Index: 0, Name: "Relic", PriceWei: ethWei(0.6), Quantity: 1, Active: true}

	d := h.Decide(context.Background(), snapshot(0.1, item), wallet(10.0))

	assert.Equal(t, domain.ActionNone, d.Action)
}

func TestHeuristicBuyPicksFirstMatchNotCheapest(t *testing.T) {
	h := NewHeuristic(0.2)
	items := []domain.Item{
		{Index: 0, Name: "Sword", PriceWei: ethWei(0.2), Quantity: 2, Active: true},
		{Index: 1, Name: "Potion", PriceWei: ethWei(0.05), Quantity: 9, Active: true},
	}

	d := h.Decide(context.Background(), snapshot(0.1, items...), wallet(1.0))

	require.Equal(t, domain.ActionBuy, d.Action)
	assert.Equal(t, 0, d.Details.ItemIndex)
}
