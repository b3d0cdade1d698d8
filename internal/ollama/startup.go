package ollama

import (
	"context"
	"fmt"
	"io"
)

// EnsureModels fails fast when Ollama is down and pulls any missing model,
// reporting progress to w. Empty and repeated names are skipped.
func EnsureModels(ctx context.Context, c *Client, models []string, w io.Writer) error {
	if !c.IsRunning(ctx) {
		return fmt.Errorf("ollama is not reachable at %s; start it with `ollama serve`", c.baseURL)
	}

	seen := make(map[string]bool, len(models))
	for _, model := range models {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true

		if c.HasModel(ctx, model) {
			continue
		}

		fmt.Fprintf(w, "pulling ollama model %s\n", model)
		last := -10.0
		err := c.PullModel(ctx, model, func(p PullProgress) {
			pct := p.Percent()
			if pct < 0 {
				return
			}
			// one line per 10% keeps logs readable for multi-GB pulls
			if pct-last >= 10 || pct == 100 {
				fmt.Fprintf(w, "  %s %3.0f%%\n", model, pct)
				last = pct
			}
		})
		if err != nil {
			return fmt.Errorf("pulling model %s: %w", model, err)
		}
	}
	return nil
}
