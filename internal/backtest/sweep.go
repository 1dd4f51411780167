package backtest

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/alejandrodnm/quantengine/internal/strategy"
	"golang.org/x/sync/errgroup"
)

// Grid builds every (fast, slow) combination with fast < slow.
func Grid(fasts, slows []int) []strategy.SMAParams {
	var out []strategy.SMAParams
	for _, f := range fasts {
		for _, s := range slows {
			p := strategy.SMAParams{Fast: f, Slow: s}
			if p.Validate() == nil {
				out = append(out, p)
			}
		}
	}
	return out
}

// Sweep backtests every parameter set in parallel over the same series and
// returns the results ranked by total return (best first). Invalid parameter
// sets abort the sweep with ErrConfiguration.
func (b *Backtester) Sweep(ctx context.Context, grid []strategy.SMAParams, workers int) ([]domain.SweepResult, error) {
	for _, p := range grid {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("backtest.Sweep: %w", err)
		}
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]domain.SweepResult, len(grid))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range grid {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := strategy.NewSMACrossover(p)
			if err != nil {
				return err
			}
			res, err := b.Run(s.Signals)
			if err != nil {
				return fmt.Errorf("fast=%d slow=%d: %w", p.Fast, p.Slow, err)
			}
			results[i] = domain.SweepResult{FastWindow: p.Fast, SlowWindow: p.Slow, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("backtest.Sweep: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Result.TotalReturn > results[j].Result.TotalReturn
	})
	return results, nil
}
