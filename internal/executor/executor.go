package executor

// Maps a decision to its contract call. Nothing escapes this boundary:
// a failed or invalid action comes back as (empty hash, false) and a log
// line, never as an error the cycle has to handle.

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/somnialabs/merchantd/internal/domain"
	"github.com/somnialabs/merchantd/internal/ports"
)

// Executor dispatches decisions through a merchant writer.
type Executor struct {
	writer ports.MerchantWriter
}

func New(writer ports.MerchantWriter) *Executor {
	return &Executor{writer: writer}
}

// Execute runs the decision's contract call and reports whether it was
// mined successfully. ActionNone succeeds without touching the chain.
func (e *Executor) Execute(ctx context.Context, id domain.MerchantID, d domain.Decision) (string, bool) {
	if d.Action == domain.ActionNone {
		return "", true
	}

	if err := d.Validate(); err != nil {
		slog.Error("refusing invalid decision", "merchant", id, "action", d.Action, "err", err)
		return "", false
	}

	txHash, err := e.dispatch(ctx, id, d)
	if err != nil {
		slog.Error("action failed", "merchant", id, "action", d.Action, "err", err)
		return "", false
	}

	slog.Info("action executed", "merchant", id, "action", d.Action, "tx", txHash)
	return txHash, true
}

func (e *Executor) dispatch(ctx context.Context, id domain.MerchantID, d domain.Decision) (string, error) {
	switch d.Action {
	case domain.ActionAddItem:
		return e.writer.AddItem(ctx, id, d.Details.ItemName, d.Details.PriceWei, d.Details.Quantity)

	case domain.ActionBuy:
		qty := d.BuyQuantity()
		// total value carried by the tx: unit price times quantity
		value := new(big.Int).Mul(d.Details.PriceWei, big.NewInt(int64(qty)))
		return e.writer.BuyItem(ctx, id, d.Details.ItemIndex, qty, value)

	case domain.ActionRestock:
		return e.writer.RestockItem(ctx, id, d.Details.ItemIndex, d.Details.Quantity)

	case domain.ActionWithdraw:
		return e.writer.WithdrawProfit(ctx, id)

	default:
		return "", fmt.Errorf("executor.dispatch: unknown action %q", d.Action)
	}
}
