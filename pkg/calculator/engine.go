package calculator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cohort-retention/pkg/cache"
	"cohort-retention/pkg/cohort"
	"cohort-retention/pkg/dataset"
	"cohort-retention/pkg/logger"
	"cohort-retention/pkg/models"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// Engine memoizes the cohort pipelines. It holds no per-analysis state and is safe for concurrent use.
type Engine struct {
	memo        *cache.Memo
	log         *logger.Logger
	parallelism int
	progress    io.Writer
}

type Option func(*Engine)

// WithParallelism bounds the number of months a drill-down computes at once.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithProgress draws a progress bar for drill-downs on w.
func WithProgress(w io.Writer) Option {
	return func(e *Engine) { e.progress = w }
}

func New(store cache.Store, log *logger.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	e := &Engine{memo: cache.NewMemo(store), log: log, parallelism: 1}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Retention computes (or recalls) the retention report of table for p.
func (e *Engine) Retention(ctx context.Context, table models.OrderTable, p models.Params) (*models.RetentionReport, error) {
	if err := cohort.Validate(p); err != nil {
		return nil, err
	}
	start := time.Now()
	key := cache.Key("retention", dataset.Fingerprint(table), p)
	report, hit, err := cache.Do(ctx, e.memo, key, func() (*models.RetentionReport, error) {
		r, err := cohort.Retention(table, p)
		if err == nil {
			e.log.Debug("retention stages",
				"rows", len(table.Rows),
				"orders", r.Orders,
				"cohorts", len(r.Matrix.Rows),
				"cells", len(r.Cells),
			)
		}
		return r, err
	})
	if err != nil {
		e.logFailure("retention", p, err)
		return nil, err
	}
	e.log.Info("retention computed",
		"granularity", p.Granularity,
		"max_age", p.MaxAge,
		"scope_year", p.Scope.Year,
		"bucket", p.Scope.Bucket,
		"cohorts", len(report.Matrix.Rows),
		"cells", len(report.Cells),
		"cache_hit", hit,
		"elapsed", time.Since(start),
	)
	return report, nil
}

// Weekday computes daily repeat rates by weekday for p's scope and max age.
func (e *Engine) Weekday(ctx context.Context, table models.OrderTable, p models.Params) (*models.WeekdayReport, error) {
	p.Granularity = models.Day
	p.DropAgeZero = false
	if err := cohort.Validate(p); err != nil {
		return nil, err
	}
	key := cache.Key("weekday", dataset.Fingerprint(table), p)
	report, hit, err := cache.Do(ctx, e.memo, key, func() (*models.WeekdayReport, error) {
		return cohort.WeekdayRepeat(table, p)
	})
	if err != nil {
		e.logFailure("weekday", p, err)
		return nil, err
	}
	e.log.Info("weekday repeat computed", "max_age", p.MaxAge, "scope_year", p.Scope.Year, "cache_hit", hit)
	return report, nil
}

// RepeatPurchasers computes the monthly share of returning purchasers in year.
func (e *Engine) RepeatPurchasers(ctx context.Context, table models.OrderTable, year int) ([]models.MonthlyRepeat, error) {
	key := cache.Key("repeat", dataset.Fingerprint(table), year)
	months, hit, err := cache.Do(ctx, e.memo, key, func() ([]models.MonthlyRepeat, error) {
		return cohort.RepeatPurchasers(table, year)
	})
	if err != nil {
		e.log.Warn("repeat purchasers failed", "year", year, "error", err)
		return nil, err
	}
	e.log.Info("repeat purchasers computed", "year", year, "months", len(months), "cache_hit", hit)
	return months, nil
}

// PurchaseDistribution counts users per number of distinct orders.
func (e *Engine) PurchaseDistribution(ctx context.Context, table models.OrderTable) ([]models.PurchaseBucket, error) {
	key := cache.Key("distribution", dataset.Fingerprint(table), nil)
	dist, hit, err := cache.Do(ctx, e.memo, key, func() ([]models.PurchaseBucket, error) {
		return cohort.PurchaseDistribution(table)
	})
	if err != nil {
		e.log.Warn("purchase distribution failed", "error", err)
		return nil, err
	}
	e.log.Info("purchase distribution computed", "buckets", len(dist), "cache_hit", hit)
	return dist, nil
}

// Drilldown computes one matrix per cohort month in [startMonth, endMonth] (MMYYYY).
// Months without cohorts are reported as skipped rather than failing the run.
func (e *Engine) Drilldown(ctx context.Context, table models.OrderTable, p models.Params, startMonth, endMonth string) ([]models.DrilldownResult, error) {
	if p.Granularity == models.Month {
		return nil, fmt.Errorf("%w: drill-down needs day or week granularity", cohort.ErrInvalidParams)
	}
	start, err := parseMonth(startMonth)
	if err != nil {
		return nil, fmt.Errorf("start_month: %w", err)
	}
	end, err := parseMonth(endMonth)
	if err != nil {
		return nil, fmt.Errorf("end_month: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end_month < start_month")
	}

	months := monthsBetweenInclusive(start, end)
	var bar *progressbar.ProgressBar
	if e.progress != nil {
		bar = progressbar.NewOptions(len(months),
			progressbar.OptionSetWriter(e.progress),
			progressbar.OptionSetDescription("cohort months"),
			progressbar.OptionShowCount(),
		)
	}

	results := make([]models.DrilldownResult, len(months))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, m := range months {
		i, m := i, m
		g.Go(func() error {
			mp := p
			mp.Scope.Bucket = formatMonth(m)
			report, err := e.Retention(gctx, table, mp)
			switch {
			case errors.Is(err, cohort.ErrEmptyScope):
				results[i] = models.DrilldownResult{Month: mp.Scope.Bucket, Skipped: true}
			case err != nil:
				return fmt.Errorf("compute %s: %w", mp.Scope.Bucket, err)
			default:
				results[i] = models.DrilldownResult{Month: mp.Scope.Bucket, Report: report}
			}
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) logFailure(kind string, p models.Params, err error) {
	switch {
	case errors.Is(err, cohort.ErrEmptyInput), errors.Is(err, cohort.ErrEmptyScope):
		e.log.Warn(kind+": nothing to show", "granularity", p.Granularity, "error", err)
	default:
		e.log.Error(kind+" failed", "granularity", p.Granularity, "error", err)
	}
}
