package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/physicalai/tbrag/internal/ollama"
)

// Settings select and configure a generation provider.
type Settings struct {
	Provider string // "openai", "anthropic", "gemini" or "ollama"
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// New builds the generator named by s.Provider, bounded by s.Timeout.
func New(ctx context.Context, s Settings, logger *slog.Logger) (Generator, error) {
	var g Generator
	switch s.Provider {
	case "", "openai":
		g = NewOpenAI(s.BaseURL, s.APIKey, s.Model)
	case "anthropic":
		g = NewAnthropic(s.APIKey, s.Model, s.BaseURL)
	case "gemini":
		gem, err := NewGemini(ctx, s.APIKey, s.Model, s.BaseURL)
		if err != nil {
			return nil, err
		}
		g = gem
	case "ollama":
		baseURL := s.BaseURL
		if baseURL == "" {
			baseURL = ollama.DefaultBaseURL
		}
		g = NewOllama(ollama.New(baseURL), s.Model)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", s.Provider)
	}
	return WithTimeout(g, s.Timeout, logger), nil
}
