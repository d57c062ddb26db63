package subgraph

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrQuery is returned when the indexer answers with GraphQL errors.
var ErrQuery = errors.New("subgraph query failed")

// DefaultEndpoint is the public subgraph serving debase rebase history.
const DefaultEndpoint = "https://api.thegraph.com/subgraphs/name/debaseonomics/subgraph"

const rebasesQuery = `{
    rebases(orderBy: epoch, orderDirection: desc) {
        epoch
        exchangeRate
        supplyAdjustment
        rebaseLag
        timestamp
    }
}`

// Client captures the indexer queries the dashboard needs.
type Client interface {
	Rebases(ctx context.Context) ([]RebaseEvent, error)
}

// Rebases fetches the full rebase history, ordered by epoch descending as served.
// There is no pagination and no retry; a failure leaves the caller's previous history untouched.
func (c *HTTPClient) Rebases(ctx context.Context) ([]RebaseEvent, error) {
	var resp rebasesResponse
	if err := c.doJSON(ctx, map[string]any{"query": rebasesQuery}, &resp); err != nil {
		return nil, fmt.Errorf("fetch rebases: %w", err)
	}

	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("%w: %s", ErrQuery, strings.Join(msgs, "; "))
	}

	events := make([]RebaseEvent, 0, len(resp.Data.Rebases))
	for i, raw := range resp.Data.Rebases {
		ev, err := raw.toEvent()
		if err != nil {
			return nil, fmt.Errorf("decode rebase %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}
