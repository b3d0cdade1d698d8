package embedding

import (
	"context"

	"github.com/physicalai/tbrag/internal/ollama"
)

// Ollama embeds text with a local Ollama model.
type Ollama struct {
	client *ollama.Client
	model  string
}

// NewOllama creates an Ollama embeddings provider.
func NewOllama(client *ollama.Client, model string) *Ollama {
	return &Ollama{client: client, model: model}
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	return o.client.Embed(ctx, o.model, text)
}
