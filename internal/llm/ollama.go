package llm

import (
	"context"

	"github.com/physicalai/tbrag/internal/ollama"
)

// Ollama generates with a local Ollama model.
type Ollama struct {
	client *ollama.Client
	model  string
}

// NewOllama creates an Ollama generator.
func NewOllama(client *ollama.Client, model string) *Ollama {
	return &Ollama{client: client, model: model}
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	var msgs []ollama.Message
	if req.System != "" {
		msgs = append(msgs, ollama.Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, ollama.Message{Role: "user", Content: req.User})
	return o.client.Chat(ctx, o.model, msgs, &ollama.Options{
		Temperature: req.Temperature,
		NumPredict:  req.MaxTokens,
	})
}
