// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package lro

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// WaitForAll waits for independent operations concurrently. The returned
// slice holds the latest handle for each input, in input order, even when an
// error is returned. The first error cancels the remaining waits.
func WaitForAll(ctx context.Context, c LROClient, pollers []*Poller, timeout time.Duration) ([]*Poller, error) {
	results := make([]*Poller, len(pollers))
	copy(results, pollers)
	for i, p := range pollers {
		if p == nil {
			return results, fmt.Errorf("poller %d is nil", i)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range pollers {
		g.Go(func() error {
			final, err := c.WaitForCompletion(gctx, p, timeout)
			if final != nil {
				results[i] = final
			}
			if err != nil {
				return fmt.Errorf("operation %s: %w", p.ID(), err)
			}
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

// ResultAs decodes the final payload of p into T. An empty payload yields the
// zero value.
func ResultAs[T any](ctx context.Context, c LROClient, p *Poller) (T, error) {
	var out T
	raw, err := c.Result(ctx, p)
	if err != nil {
		return out, err
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode result of operation %s: %w", p.ID(), err)
	}
	return out, nil
}
