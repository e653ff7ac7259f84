package waitresource

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DecodeAll decodes every wait resource, at most d.concurrency at a time.
// Results keep the order of the input; a failed decode never stops the batch.
func (d *Decoder) DecodeAll(ctx context.Context, waitResources []string) []DecodedResource {
	results := make([]DecodedResource, len(waitResources))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i, resource := range waitResources {
		g.Go(func() error {
			results[i] = d.Decode(gCtx, resource)
			return nil
		})
	}

	// Decode reports failures in its result, the group never errors
	_ = g.Wait()

	return results
}

// Distinct returns the non-empty wait resources in first-seen order without duplicates
func Distinct(waitResources []*string) []string {
	seen := make(map[string]bool, len(waitResources))
	out := make([]string, 0, len(waitResources))
	for _, r := range waitResources {
		if r == nil {
			continue
		}
		trimmed := strings.TrimSpace(*r)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		out = append(out, trimmed)
	}
	return out
}
