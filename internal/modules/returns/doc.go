// Package returns computes risk/return statistics over daily price tables.
//
// # Pipeline
//
// Every function in this package is a pure transform from one immutable table or
// series to another:
//
//	PriceTable -> ReturnsTable -> CumulativeReturnsTable
//	                           -> Stats (std dev, annualized std dev, annualized mean)
//	                           -> Ratios (Sharpe)
//	                           -> RollingTable (std dev, mean, covariance vs benchmark)
//	                           -> RollingSeries (benchmark variance)
//	RollingTable + RollingSeries -> RollingTable (beta) -> Stats (mean beta)
//
// Standard deviations, variances and covariances are sample statistics (N-1).
//
// # Undefined values
//
// A statistic that cannot be computed for a row is reported as an undefined Value,
// never as zero, NaN or infinity. This covers:
//   - rolling rows before the first complete window
//   - rolling std dev/variance/covariance with a window of 1
//   - Sharpe ratios whose annualized std dev is exactly zero
//   - betas whose benchmark variance is exactly zero
//
// Callers that need a hard failure for a zero denominator use Ratios.Require,
// which reports ErrDivisionByZero.
//
// Missing-data handling is not done here: NewPriceTable rejects missing or
// non-positive prices, and ComputeReturns drops exactly the first row.
package returns
