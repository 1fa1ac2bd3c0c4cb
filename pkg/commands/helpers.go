package commands

import (
	"context"
	"fmt"
	"io"

	"cohort-retention/pkg/cache"
	"cohort-retention/pkg/calculator"
	"cohort-retention/pkg/config"
	"cohort-retention/pkg/database"
	"cohort-retention/pkg/dataset"
	"cohort-retention/pkg/logger"
	"cohort-retention/pkg/models"

	"github.com/spf13/cobra"
)

// app bundles what every analysis command needs.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	engine  *calculator.Engine
	cleanup func()
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if opts.csv != "" {
		cfg.Source.CSV = opts.csv
		cfg.Source.DSN = ""
	}
	if opts.dsn != "" {
		cfg.Source.DSN = opts.dsn
		cfg.Source.CSV = ""
	}
	if opts.logMode != "" {
		cfg.Log.Mode = opts.logMode
	}
	return cfg, nil
}

// newStore creates the configured result cache.
func newStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, func(), error) {
	switch cfg.Backend {
	case "memory":
		return cache.NewMemory(cfg.Size), func() {}, nil
	case "redis":
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		r := cache.NewRedis(client, cfg.Redis.KeyPrefix, cfg.TTL)
		return r, func() { _ = r.Close() }, nil
	case "none", "":
		return cache.Nop{}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

// setup loads the config and builds the logger, cache and engine.
func setup(ctx context.Context, opts *rootOptions, progress io.Writer) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	store, closeStore, err := newStore(ctx, cfg.Cache)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	engine := calculator.New(store, log,
		calculator.WithParallelism(cfg.Drilldown.Parallelism),
		calculator.WithProgress(progress),
	)
	return &app{
		cfg:    cfg,
		log:    log,
		engine: engine,
		cleanup: func() {
			closeStore()
			log.Sync()
		},
	}, nil
}

// loadTable reads the order snapshot from the CSV file or the database.
func loadTable(ctx context.Context, src config.SourceConfig, log *logger.Logger) (models.OrderTable, error) {
	switch {
	case src.CSV != "":
		table, err := dataset.LoadFile(src.CSV)
		if err != nil {
			return models.OrderTable{}, err
		}
		log.Debug("orders loaded", "csv", src.CSV, "rows", len(table.Rows), "has_status", table.HasStatus)
		return table, nil
	case src.DSN != "":
		db, dsnUsed, err := database.Open(src.DSN)
		if err != nil {
			return models.OrderTable{}, fmt.Errorf("open db: %w", err)
		}
		defer db.Close()
		table, err := database.LoadOrders(ctx, db, database.OrderQuery{
			Table:      src.Table,
			HasStatus:  src.HasStatus,
			HasOrderID: src.HasOrderID,
		})
		if err != nil {
			return models.OrderTable{}, err
		}
		log.Debug("orders loaded", "dsn", dsnUsed, "table", src.Table, "rows", len(table.Rows))
		return table, nil
	default:
		return models.OrderTable{}, fmt.Errorf("no order source: set --csv, --dsn or source.csv/source.dsn")
	}
}

// analysisFlags overrides the analysis section of the config for one run.
type analysisFlags struct {
	granularity string
	maxAge      int
	year        int
	bucket      string
	week        int
	keepAgeZero bool
}

func (f *analysisFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.granularity, "granularity", "g", "", "cohort granularity: day, week or month")
	fs.IntVar(&f.maxAge, "max-age", 0, "highest cohort age to report")
	fs.IntVar(&f.year, "year", 0, "only cohorts of this year (0 = all years)")
	fs.StringVar(&f.bucket, "bucket", "", "only cohorts of this month, YYYY-MM")
	fs.IntVar(&f.week, "week", 0, "only cohorts in this week of the month (1-5, day/week granularity)")
	fs.BoolVar(&f.keepAgeZero, "keep-age-zero", false, "keep the age 0 column in the matrix")
}

// apply overlays the flags the user actually set on the configured parameters.
func (f *analysisFlags) apply(cmd *cobra.Command, p models.Params) models.Params {
	fs := cmd.Flags()
	if fs.Changed("granularity") {
		p.Granularity = models.Granularity(f.granularity)
	}
	if fs.Changed("max-age") {
		p.MaxAge = f.maxAge
	}
	if fs.Changed("year") {
		p.Scope.Year = f.year
	}
	if fs.Changed("bucket") {
		p.Scope.Bucket = f.bucket
	}
	if fs.Changed("week") {
		p.Scope.WeekOfMonth = f.week
	}
	if fs.Changed("keep-age-zero") {
		p.DropAgeZero = !f.keepAgeZero
	}
	return p
}
