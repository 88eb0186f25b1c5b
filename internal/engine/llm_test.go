package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somnialabs/merchantd/internal/adapters/llm"
	"github.com/somnialabs/merchantd/internal/domain"
)

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Generate(context.Context, llm.Prompt) (string, error) {
	return f.response, f.err
}

func (f *fakeLLM) Provider() llm.Provider { return "fake" }
func (f *fakeLLM) Model() string          { return "fake-1" }

func TestLLMStrategyParsesFencedResponse(t *testing.T) {
	client := &fakeLLM{response: "```json\n{\"action\":\"withdraw\",\"details\":{},\"reasoning\":\"profit is high\"}\n```"}
	s := NewLLMStrategy(client, NewHeuristic(0.2))

	item := domain.Item{Index: 0, Name: "Sword", PriceWei: ethWei(0.6), Quantity: 3, Active: true}
	d := s.Decide(context.Background(), snapshot(0.1, item), wallet(1.0))

	assert.Equal(t, domain.ActionWithdraw, d.Action)
	assert.Equal(t, "profit is high", d.Reasoning)
}

func TestLLMStrategyFallsBackOnNetworkError(t *testing.T) {
	client := &fakeLLM{err: errors.New("connection refused")}
	heuristic := NewHeuristic(0.2)
	s := NewLLMStrategy(client, heuristic)

	snap := snapshot(0.1, domain.Item{Index: 0, Name: "Sword", PriceWei: ethWei(0.24), Quantity: 3, Active: true})
	w := wallet(1.0)

	got := s.Decide(context.Background(), snap, w)
	want := heuristic.Decide(context.Background(), snap, w)

	assert.Equal(t, want, got)
}

func TestLLMStrategyFallsBackOnBadJSON(t *testing.T) {
	client := &fakeLLM{response: "I think you should buy the sword."}
	s := NewLLMStrategy(client, NewHeuristic(0.2))

	d := s.Decide(context.Background(), snapshot(0), wallet(1.0))

	// Empty inventory: the fallback ladder seeds the shop
	assert.Equal(t, domain.ActionAddItem, d.Action)
}

func TestLLMStrategyRejectsReprice(t *testing.T) {
	client := &fakeLLM{response: `{"action":"reprice","details":{"item_index":0},"reasoning":"price too low"}`}
	s := NewLLMStrategy(client, NewHeuristic(0.2))

	d := s.Decide(context.Background(), snapshot(0), wallet(1.0))

	assert.Equal(t, domain.ActionAddItem, d.Action)
}

func TestLLMStrategyEnrichesBuyPrice(t *testing.T) {
	client := &fakeLLM{response: `{"action":"buy","details":{"item_index":1},"reasoning":"cheap potion"}`}
	s := NewLLMStrategy(client, NewHeuristic(0.2))

	items := []domain.Item{
		{Index: 0, Name: "Sword", PriceWei: ethWei(0.4), Quantity: 1, Active: true},
		{Index: 1, Name: "Potion", PriceWei: ethWei(0.05), Quantity: 9, Active: true},
	}
	d := s.Decide(context.Background(), snapshot(0.1, items...), wallet(1.0))

	require.Equal(t, domain.ActionBuy, d.Action)
	assert.Equal(t, 1, d.Details.ItemIndex)
	assert.Equal(t, 0, ethWei(0.05).Cmp(d.Details.PriceWei))
}

func TestLLMStrategyRejectsOutOfRangeIndex(t *testing.T) {
	client := &fakeLLM{response: `{"action":"buy","details":{"item_index":7},"reasoning":"looks good"}`}
	heuristic := NewHeuristic(0.2)
	s := NewLLMStrategy(client, heuristic)

	item := domain.Item{Index: 0, Name: "Sword", PriceWei: ethWei(0.24), Quantity: 3, Active: true}
	snap := snapshot(0.1, item)

	got := s.Decide(context.Background(), snap, wallet(1.0))
	want := heuristic.Decide(context.Background(), snap, wallet(1.0))

	assert.Equal(t, want, got)
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":                   `{"a":1}`,
		"```json\n{\"a\":1}\n```":     `{"a":1}`,
		"```\n{\"a\":1}\n```":         `{"a":1}`,
		"  ```json\n{\"a\":1}\n```  ": `{"a":1}`,
		"```{\"a\":1}```":             `{"a":1}`,
	}
	for input, want := range cases {
		assert.Equal(t, want, stripFences(input), "input %q", input)
	}
}
