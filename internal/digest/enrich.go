package digest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackzampolin/maildigest/internal/pipeline"
)

// NewEnrichCall builds the downstream enrichment call used by the
// adaptive batch processor. Each invocation sends one batch of items
// through the decorated invoker and parses the enriched batch back.
func NewEnrichCall(inv pipeline.Invoker) pipeline.BatchCall {
	return func(ctx context.Context, batch []pipeline.Item) ([]pipeline.Item, error) {
		payload, err := json.Marshal(map[string]any{"items": batch})
		if err != nil {
			return nil, fmt.Errorf("encoding enrichment batch: %w", err)
		}

		doc, err := inv.Invoke(ctx, enrichmentPrompt, string(payload))
		if err != nil {
			return nil, err
		}

		result, err := pipeline.ParseResult(doc)
		if err != nil {
			return nil, fmt.Errorf("parsing enrichment response: %w", err)
		}
		return result.Items, nil
	}
}
