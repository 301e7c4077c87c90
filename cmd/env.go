package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/metrowaste/zoneplanner/internal/analysis"
	"github.com/metrowaste/zoneplanner/internal/classify"
	"github.com/metrowaste/zoneplanner/internal/population"
	"github.com/metrowaste/zoneplanner/internal/project"
	"github.com/metrowaste/zoneplanner/internal/resilience"
	"github.com/metrowaste/zoneplanner/internal/store"
	"github.com/metrowaste/zoneplanner/internal/zone"
	"github.com/metrowaste/zoneplanner/pkg/footprints"
	"github.com/metrowaste/zoneplanner/pkg/worldpop"
)

// appEnv holds the store, the loaded registry, and the analysis
// pipeline shared by the analyze/export/serve commands.
type appEnv struct {
	Store    store.Store
	Registry *zone.Registry
	Analyzer *analysis.Analyzer
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initRegistry opens the store and loads all persisted zones into a
// registry backed by it. Callers close the store via appEnv.Close or
// directly.
func initRegistry(ctx context.Context) (store.Store, *zone.Registry, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, nil, eris.Wrap(err, "migrate store")
	}

	zones, err := st.ListZones(ctx)
	if err != nil {
		_ = st.Close()
		return nil, nil, eris.Wrap(err, "load zones")
	}

	reg := zone.NewRegistry(st)
	reg.Load(zones)
	zap.L().Debug("registry loaded", zap.Int("zones", reg.Len()))

	return st, reg, nil
}

// initEnv builds the full analysis environment: store, registry, data
// source clients, and the analyzer. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate("analyze"); err != nil {
		return nil, err
	}

	st, reg, err := initRegistry(ctx)
	if err != nil {
		return nil, err
	}

	fpClient := footprints.NewClient(cfg.Footprints.BaseURL, cfg.Footprints.Key,
		footprints.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Footprints.TimeoutSecs) * time.Second}),
		footprints.WithRateLimit(cfg.Footprints.RatePerSec, 1),
		footprints.WithRetry(retryConfig(cfg.Footprints.MaxRetries)),
	)
	wpClient := worldpop.NewClient(cfg.Worldpop.BaseURL, cfg.Worldpop.Dataset,
		worldpop.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Worldpop.TimeoutSecs) * time.Second}),
	)

	analyzer := analysis.NewAnalyzer(
		reg,
		classify.NewClassifier(fpClient, classifierOptions()),
		population.NewEstimator(wpClient, estimatorOptions()),
		projectorRates(),
	)

	return &appEnv{Store: st, Registry: reg, Analyzer: analyzer}, nil
}

func retryConfig(maxRetries int) resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	if maxRetries > 0 {
		rc.MaxAttempts = maxRetries
	}
	return rc
}

func classifierOptions() classify.Options {
	opts := classify.DefaultOptions()
	opts.AreaFactor = cfg.Analysis.AreaFactor
	opts.CountFactor = cfg.Analysis.CountFactor
	opts.MinConfidence = cfg.Analysis.MinConfidence
	opts.MinSizeM2 = cfg.Analysis.MinSizeM2
	opts.MaxSizeM2 = cfg.Analysis.MaxSizeM2
	return opts
}

func estimatorOptions() population.Options {
	opts := population.DefaultOptions()
	opts.FallbackDensity = cfg.Analysis.FallbackDensity
	opts.LargeZoneKM2 = cfg.Analysis.LargeZoneKM2
	opts.LargeZoneFactor = cfg.Analysis.LargeZoneFactor
	return opts
}

func projectorRates() project.Rates {
	r := project.DefaultRates()
	r.ResidentialPerPersonKG = cfg.Rates.ResidentialPerPersonKG
	r.CollectionPerTon = cfg.Rates.CollectionPerTon
	r.DisposalPerTon = cfg.Rates.DisposalPerTon
	r.FixedMonthlyExpense = cfg.Rates.FixedMonthlyExpense
	for key, v := range cfg.Rates.DailyCommercialKG {
		r.DailyCommercialKG[classify.Class(key)] = v
	}
	for key, v := range cfg.Rates.MonthlyRate {
		r.MonthlyRate[classify.Class(key)] = v
	}
	return r
}
