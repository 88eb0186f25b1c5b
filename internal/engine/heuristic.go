package engine

// Deterministic rule ladder. Also serves as the fallback for the LLM
// strategy, so it must always return a decision.

import (
	"context"
	"fmt"
	"math/big"

	"github.com/somnialabs/merchantd/internal/domain"
)

// Seed listing for an empty inventory.
const (
	seedItemName     = "Quantum Battery"
	seedItemQuantity = 5
	restockQuantity  = 3

	// buy limits: price must fit both the balance fraction and the
	// absolute cap.
	buyBalanceFraction = 0.25
	buyAbsoluteCapEth  = 0.5
)

var seedItemPriceWei = new(big.Int).SetUint64(250_000_000_000_000_000) // 0.25 ETH

// Heuristic implements ports.Strategy as an ordered rule ladder; the
// first matching rule wins and within a rule the first matching item in
// contract order is chosen.
type Heuristic struct {
	minProfitThreshold float64
	thresholdWei       *big.Int
}

// NewHeuristic builds the ladder. minProfitThreshold is in ETH and the
// withdraw comparison is strict, down to one wei above the threshold.
func NewHeuristic(minProfitThreshold float64) *Heuristic {
	return &Heuristic{
		minProfitThreshold: minProfitThreshold,
		thresholdWei:       domain.EthToWei(minProfitThreshold),
	}
}

func (h *Heuristic) Decide(_ context.Context, snap domain.MerchantSnapshot, wallet domain.WalletState) domain.Decision {
	// 1. Nothing listed: seed the shop.
	if len(snap.Inventory) == 0 {
		return domain.Decision{
			Action: domain.ActionAddItem,
			Details: domain.Details{
				ItemName: seedItemName,
				PriceWei: seedItemPriceWei,
				Quantity: seedItemQuantity,
			},
			Reasoning: "inventory is empty, listing a seed item to start trading",
		}
	}

	// 2. Profit above threshold: sweep it. Strictly greater, an exact
	// match stays on-chain. Compared in wei so the boundary is precise.
	if snap.ProfitWei != nil && snap.ProfitWei.Cmp(h.thresholdWei) > 0 {
		return domain.Decision{
			Action: domain.ActionWithdraw,
			Reasoning: fmt.Sprintf("profit %.4f ETH exceeds the %.4f ETH threshold",
				snap.ProfitEth(), h.minProfitThreshold),
		}
	}

	// 3. First active item out of stock: restock it.
	for _, item := range snap.Inventory {
		if item.Active && item.Quantity == 0 {
			return domain.Decision{
				Action: domain.ActionRestock,
				Details: domain.Details{
					ItemIndex: item.Index,
					Quantity:  restockQuantity,
				},
				Reasoning: fmt.Sprintf("%q is out of stock, restocking %d units",
					item.Name, restockQuantity),
			}
		}
	}

	// 4. First affordable active item: buy one unit.
	maxAffordable := wallet.Eth * buyBalanceFraction
	for _, item := range snap.Inventory {
		if !item.Active || item.Quantity == 0 {
			continue
		}
		price := item.PriceEth()
		if price <= maxAffordable && price <= buyAbsoluteCapEth {
			return domain.Decision{
				Action: domain.ActionBuy,
				Details: domain.Details{
					ItemIndex: item.Index,
					PriceWei:  item.PriceWei,
					Quantity:  1,
				},
				Reasoning: fmt.Sprintf("%q at %.4f ETH fits the budget (balance %.4f ETH)",
					item.Name, price, wallet.Eth),
			}
		}
	}

	return domain.Decision{
		Action:    domain.ActionNone,
		Reasoning: "no rule matched, holding position this cycle",
	}
}
