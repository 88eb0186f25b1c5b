package llm

// Provider-agnostic completion client. One provider is selected at
// startup from the available API keys and keeps that role for the whole
// run; there is no mid-run failover between providers.

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"
)

// Provider identifies which backing API a client talks to.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

const defaultTimeout = 30 * time.Second

// ErrNoProvider means no API key was found in the environment.
var ErrNoProvider = errors.New("no llm api key configured")

// Prompt is a system/user message pair.
type Prompt struct {
	System string
	User   string
}

// Client generates a completion for a prompt.
type Client interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
	Provider() Provider
	Model() string
}

// New picks a provider by key availability, in fixed priority order:
// Gemini, then OpenAI, then Anthropic. model overrides the provider's
// default model when non-empty.
func New(model string) (Client, error) {
	if key := geminiKey(); key != "" {
		return newGemini(key, model), nil
	}
	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
		return newOpenAI(key, model), nil
	}
	if key := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); key != "" {
		return newAnthropic(key, model), nil
	}
	return nil, ErrNoProvider
}

func geminiKey() string {
	if key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); key != "" {
		return key
	}
	return strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
}
