// Package vectorindex stores chunk embeddings and answers nearest-neighbour
// queries by cosine similarity.
package vectorindex

import "context"

// Point is one vector to index. ID is the chunk id.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Match is a search hit, ordered by descending Score.
type Match struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Index is a cosine-similarity vector collection.
type Index interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, limit int) ([]Match, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
}
