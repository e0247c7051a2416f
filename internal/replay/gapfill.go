package replay

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/suihistory/internal/domain"
	"github.com/mtlprog/suihistory/internal/timeframe"
)

// fillGap synthesizes points stepping back from `from` toward the window cutoff. The balance
// moves linearly from fromBalance at `from` to baseline at the cutoff. Points are strictly after
// the cutoff and never more than w.MaxSyntheticPoints; when the gap interval would need more,
// the step is widened so the points still span the whole gap.
func fillGap(ctx context.Context, prices PriceSource, w timeframe.Window, from time.Time, fromBalance, baseline decimal.Decimal) ([]domain.PortfolioPoint, error) {
	gap := from.Sub(w.Cutoff)
	if gap <= 0 || w.GapInterval <= 0 || w.MaxSyntheticPoints <= 0 {
		return nil, nil
	}

	step := w.GapInterval
	if needed := int((gap - 1) / step); needed > w.MaxSyntheticPoints {
		step = gap / time.Duration(w.MaxSyntheticPoints+1)
	}
	if step <= 0 {
		return nil, nil
	}

	gapNanos := decimal.NewFromInt(int64(gap))
	points := make([]domain.PortfolioPoint, 0, w.MaxSyntheticPoints)
	for k := 1; k <= w.MaxSyntheticPoints; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ts := from.Add(-time.Duration(k) * step)
		if !ts.After(w.Cutoff) {
			break
		}

		ratio := decimal.NewFromInt(int64(from.Sub(ts))).Div(gapNanos)
		balance := fromBalance.Add(baseline.Sub(fromBalance).Mul(ratio))
		if balance.IsNegative() {
			balance = decimal.Zero
		}

		points = append(points, domain.PortfolioPoint{
			Timestamp: ts,
			Value:     balance.Mul(prices.PriceNear(ctx, ts)),
			Estimated: true,
		})
	}

	// Collected newest-first.
	slices.Reverse(points)
	return points, nil
}
