package embedding

import (
	"context"
	"fmt"

	"github.com/physicalai/tbrag/internal/ollama"
)

// Settings select and configure a provider.
type Settings struct {
	Provider  string // "openai", "gemini" or "ollama"
	Model     string
	APIKey    string
	BaseURL   string
	Dimension int
}

// NewProvider builds the provider named by s.Provider.
func NewProvider(ctx context.Context, s Settings) (Provider, error) {
	switch s.Provider {
	case "", "openai":
		return NewOpenAI(s.BaseURL, s.APIKey, s.Model), nil
	case "gemini":
		g, err := NewGemini(ctx, s.APIKey, s.Model, s.Dimension)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "ollama":
		baseURL := s.BaseURL
		if baseURL == "" {
			baseURL = ollama.DefaultBaseURL
		}
		return NewOllama(ollama.New(baseURL), s.Model), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", s.Provider)
	}
}
