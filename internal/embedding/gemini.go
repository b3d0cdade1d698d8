package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini embeds text with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	dim    int32
}

// NewGemini creates a Gemini embeddings provider. dimension, when non-zero,
// is requested as the output dimensionality.
func NewGemini(ctx context.Context, apiKey, model string, dimension int) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing genai client: %w", err)
	}
	return &Gemini{client: client, model: model, dim: int32(dimension)}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	var cfg *genai.EmbedContentConfig
	if g.dim > 0 {
		dim := g.dim
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}
	result, err := g.client.Models.EmbedContent(ctx, g.model, []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}
	if result == nil || len(result.Embeddings) == 0 || result.Embeddings[0] == nil {
		return nil, ErrEmptyEmbedding
	}
	return result.Embeddings[0].Values, nil
}
