package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/somnialabs/merchantd/internal/adapters/llm"
	"github.com/somnialabs/merchantd/internal/domain"
)

const systemPrompt = `You are an autonomous merchant manager on a blockchain marketplace.
You decide one action per cycle for the merchant you manage. Respond with
a single JSON object and nothing else.`

// LLMStrategy asks a completion provider for the next action. Every
// failure mode — transport, refusal, bad JSON, invalid action — falls
// back to the heuristic ladder, so a merchant is never left undecided.
type LLMStrategy struct {
	client   llm.Client
	fallback *Heuristic
}

func NewLLMStrategy(client llm.Client, fallback *Heuristic) *LLMStrategy {
	return &LLMStrategy{client: client, fallback: fallback}
}

func (s *LLMStrategy) Decide(ctx context.Context, snap domain.MerchantSnapshot, wallet domain.WalletState) domain.Decision {
	raw, err := s.client.Generate(ctx, llm.Prompt{
		System: systemPrompt,
		User:   buildPrompt(snap, wallet),
	})
	if err != nil {
		slog.Warn("llm call failed, using heuristic", "merchant", snap.ID, "err", err)
		return s.fallback.Decide(ctx, snap, wallet)
	}

	decision, err := parseDecision(raw, snap)
	if err != nil {
		slog.Warn("llm response rejected, using heuristic", "merchant", snap.ID, "err", err)
		return s.fallback.Decide(ctx, snap, wallet)
	}
	return decision
}

// buildPrompt renders the merchant state and the response contract. The
// output is deterministic for a given snapshot.
func buildPrompt(snap domain.MerchantSnapshot, wallet domain.WalletState) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Merchant: %s (%s)\n", snap.Name, snap.ID)
	fmt.Fprintf(&sb, "Agent wallet balance: %.4f ETH\n", wallet.Eth)
	fmt.Fprintf(&sb, "Accumulated profit: %.4f ETH\n\n", snap.ProfitEth())

	if len(snap.Inventory) == 0 {
		sb.WriteString("Inventory: empty\n")
	} else {
		sb.WriteString("Inventory:\n")
		for _, item := range snap.Inventory {
			fmt.Fprintf(&sb, "  [%d] %q price=%.4f ETH quantity=%d active=%t\n",
				item.Index, item.Name, item.PriceEth(), item.Quantity, item.Active)
		}
	}

	sb.WriteString(`
Rules:
- Choose exactly one action: "none", "add_item", "buy", "restock" or "withdraw".
- "add_item" requires item_name, price_wei and quantity.
- "buy" requires item_index; only buy an active item with stock whose price fits the wallet.
- "restock" requires item_index and quantity; only restock items that are out of stock.
- "withdraw" only when accumulated profit is meaningful.
- When nothing is worth doing, answer "none".

Respond with exactly this JSON shape:
{"action": "<action>", "details": {"item_name": "...", "item_index": 0, "price_wei": 0, "quantity": 0}, "reasoning": "<one sentence>"}
`)
	return sb.String()
}

// parseDecision turns the raw completion into a validated decision.
// Markdown code fences around the JSON are tolerated and stripped.
func parseDecision(raw string, snap domain.MerchantSnapshot) (domain.Decision, error) {
	cleaned := stripFences(raw)

	var parsed struct {
		Action    string         `json:"action"`
		Details   domain.Details `json:"details"`
		Reasoning string         `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return domain.Decision{}, fmt.Errorf("engine.parseDecision: %w", err)
	}

	action, err := domain.ParseAction(parsed.Action)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("engine.parseDecision: %w", err)
	}

	decision := domain.Decision{
		Action:    action,
		Details:   parsed.Details,
		Reasoning: parsed.Reasoning,
	}
	if decision.Reasoning == "" {
		decision.Reasoning = "no reasoning provided"
	}

	// The model may omit the price on a buy; fill it from the snapshot.
	if action == domain.ActionBuy {
		idx := decision.Details.ItemIndex
		if idx < 0 || idx >= len(snap.Inventory) {
			return domain.Decision{}, fmt.Errorf("engine.parseDecision: item_index %d out of range", idx)
		}
		if decision.Details.PriceWei == nil {
			decision.Details.PriceWei = snap.Inventory[idx].PriceWei
		}
	}

	if err := decision.Validate(); err != nil {
		return domain.Decision{}, fmt.Errorf("engine.parseDecision: %w", err)
	}
	return decision, nil
}

// stripFences removes a surrounding markdown code fence, with or without
// a language tag.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 && !strings.HasPrefix(s, "{") {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
