// Package di wires the Brain's services from already-constructed
// repositories, following an InitializeServices ordering where the
// registry/config is built first, then the engines that read it, then
// the components that depend on those engines.
package di

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/aristath/titan-brain/internal/allocation"
	"github.com/aristath/titan-brain/internal/arbitrator"
	"github.com/aristath/titan-brain/internal/brain"
	"github.com/aristath/titan-brain/internal/breaker"
	"github.com/aristath/titan-brain/internal/bus"
	"github.com/aristath/titan-brain/internal/config"
	"github.com/aristath/titan-brain/internal/configregistry"
	"github.com/aristath/titan-brain/internal/equity"
	"github.com/aristath/titan-brain/internal/exec"
	"github.com/aristath/titan-brain/internal/ingest"
	"github.com/aristath/titan-brain/internal/metrics"
	"github.com/aristath/titan-brain/internal/performance"
	"github.com/aristath/titan-brain/internal/risk"
	"github.com/aristath/titan-brain/internal/treasury"
)

// InitializeServices wires the Config Registry, every core engine, and the
// components that sit on top of them (bus, publisher, arbitrator, fill
// ingestion).
func InitializeServices(ctx context.Context, c *Container, cfg *config.Config, log zerolog.Logger) error {
	registry, err := configregistry.New(configregistry.DefaultCatalog(), nil, nil, c.ConfigRepo, []byte(cfg.HMACSecret), log)
	if err != nil {
		return fmt.Errorf("failed to build config registry: %w", err)
	}
	c.Registry = registry

	c.Allocation = allocation.New(log)
	c.Risk = risk.New(log)
	c.Performance = performance.New(log)
	if err := seedPerformance(c.Performance, c.PerfRepo, registry, log); err != nil {
		return fmt.Errorf("failed to seed performance tracker: %w", err)
	}

	c.Metrics = metrics.New()

	breakerSink := multiBreakerSink{repo: c.BreakerRepo, metrics: c.Metrics}
	c.Breaker = breaker.New(brain.BreakerState{}, breakerSink, log)

	treasuryState, err := c.TreasuryRepo.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("failed to load treasury state: %w", err)
	}
	if treasuryState == (brain.TreasuryState{}) {
		treasuryState = brain.TreasuryState{FuturesWallet: cfg.InitialEquity}
	}
	c.Equity = equity.New(treasuryState.FuturesWallet + treasuryState.SpotWallet)

	var executor treasury.Executor
	if cfg.ExchangeBaseURL != "" {
		executor = exec.New(cfg.ExchangeBaseURL, cfg.ExchangeAPIKey, cfg.ExchangeAPISecret, log)
	} else {
		executor = noopExecutor{log: log}
	}
	c.Treasury = treasury.New(treasuryState, c.TreasuryRepo, executor, log)

	tParams, err := treasuryParams(registry)
	if err != nil {
		return fmt.Errorf("failed to resolve treasury params: %w", err)
	}
	sweepSchedule, err := registry.GetString("treasury.sweepSchedule")
	if err != nil {
		return fmt.Errorf("failed to resolve treasury sweep schedule: %w", err)
	}
	c.TreasuryScheduler = treasury.NewScheduler(c.Treasury, tParams, sweepSchedule, log)

	c.Bus = bus.New(c.BusRepo, log)
	c.Publisher = bus.NewArbitratorPublisher(c.Bus, cfg.Venue, cfg.Account, log)

	if cfg.EvtArchiveBucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("failed to load AWS config for EVT archiver: %w", err)
		}
		s3Client := s3.NewFromConfig(awsCfg)
		c.Archiver = bus.NewArchiver(s3Client, cfg.EvtArchiveBucket, c.BusRepo, log)
	}

	c.Arbitrator = arbitrator.New(
		registry, c.Allocation, c.Performance, c.Risk, c.Breaker, c.ArbitratorRepo,
		c.Publisher, c.Metrics, c.Equity, emptyRiskState{}, log,
	)

	perfParams := func() performance.Params {
		p, _ := performanceParams(registry)
		return p
	}
	brkParams := func() breaker.Params {
		p, _ := breakerParams(registry)
		return p
	}
	c.FillListener = ingest.New(c.Bus, c.Performance, c.PerfRepo, c.Equity, c.Breaker, c.ArbitratorRepo, perfParams, brkParams, log)

	log.Info().Msg("all services initialized")
	return nil
}

// multiBreakerSink fans a breaker transition out to its durable audit
// record and the in-process metrics registry.
type multiBreakerSink struct {
	repo    *breaker.Repository
	metrics *metrics.Registry
}

func (s multiBreakerSink) RecordTransition(ev breaker.TransitionEvent) error {
	s.metrics.RecordBreakerTransition()
	return s.repo.RecordTransition(ev)
}

// noopExecutor is substituted when no exchange credentials are configured
// (e.g. local development) — treasury sweeps are evaluated and logged but
// never actually move funds.
type noopExecutor struct{ log zerolog.Logger }

func (e noopExecutor) MoveFuturesToSpot(ctx context.Context, amount float64) error {
	e.log.Warn().Float64("amount", amount).Msg("no exchange configured, skipping futures-to-spot transfer")
	return nil
}

// emptyRiskState is a placeholder RiskStateSource until a real regime/
// correlation feed is wired; CurrentRiskState returns a calm, uncorrelated
// snapshot so the risk guardian never vetoes on a tunable it has no real
// reading for.
type emptyRiskState struct{}

func (emptyRiskState) CurrentRiskState() brain.RiskState {
	return brain.RiskState{HillAlpha: 3.0, Regime: "calm", Correlations: map[string]float64{}}
}

func seedPerformance(tracker *performance.Tracker, repo *performance.Repository, registry *configregistry.Registry, log zerolog.Logger) error {
	windowDays, err := registry.GetFloat("performance.windowDays")
	if err != nil {
		return err
	}
	phases, err := repo.LoadAllPhases()
	if err != nil {
		return fmt.Errorf("failed to load phases for performance seeding: %w", err)
	}
	cutoff := time.Now().UnixMilli() - int64(windowDays*24*3600*1000)
	for _, phase := range phases {
		samples, err := repo.LoadSince(phase, cutoff)
		if err != nil {
			log.Error().Err(err).Str("phase", string(phase)).Msg("failed to seed performance tracker for phase")
			continue
		}
		perfSamples := make([]performance.Sample, len(samples))
		for i, s := range samples {
			perfSamples[i] = performance.Sample{TFill: s.TFill, PnLUSD: s.PnLUSD}
		}
		tracker.Seed(phase, perfSamples)
	}
	return nil
}

func performanceParams(registry *configregistry.Registry) (performance.Params, error) {
	windowDays, err := registry.GetFloat("performance.windowDays")
	if err != nil {
		return performance.Params{}, err
	}
	minTradeCount, err := registry.GetFloat("performance.minTradeCount")
	if err != nil {
		return performance.Params{}, err
	}
	malusThreshold, _ := registry.GetFloat("performance.malusThreshold")
	malusMultiplier, _ := registry.GetFloat("performance.malusMultiplier")
	bonusThreshold, _ := registry.GetFloat("performance.bonusThreshold")
	bonusMultiplier, _ := registry.GetFloat("performance.bonusMultiplier")
	return performance.Params{
		WindowDays:      windowDays,
		MinTradeCount:   int(minTradeCount),
		MalusThreshold:  malusThreshold,
		MalusMultiplier: malusMultiplier,
		BonusThreshold:  bonusThreshold,
		BonusMultiplier: bonusMultiplier,
	}, nil
}

func breakerParams(registry *configregistry.Registry) (breaker.Params, error) {
	consecutiveLossLimit, err := registry.GetFloat("breaker.consecutiveLossLimit")
	if err != nil {
		return breaker.Params{}, err
	}
	consecutiveLossWindow, _ := registry.GetFloat("breaker.consecutiveLossWindowSeconds")
	softCooldown, _ := registry.GetFloat("breaker.softCooldownSeconds")
	maxDailyDrawdown, _ := registry.GetFloat("breaker.maxDailyDrawdown")
	minEquityUSD, _ := registry.GetFloat("breaker.minEquityUSD")
	return breaker.Params{
		ConsecutiveLossLimit:      int(consecutiveLossLimit),
		ConsecutiveLossWindowSecs: consecutiveLossWindow,
		SoftCooldownSecs:          softCooldown,
		MaxDailyDrawdown:          maxDailyDrawdown,
		MinEquityUSD:              minEquityUSD,
	}, nil
}

func treasuryParams(registry *configregistry.Registry) (treasury.Params, error) {
	sweepThresholdFrac, err := registry.GetFloat("treasury.sweepThresholdFrac")
	if err != nil {
		return treasury.Params{}, err
	}
	maxRetries, _ := registry.GetFloat("treasury.maxRetries")
	retryBaseDelayMS, _ := registry.GetFloat("treasury.retryBaseDelayMS")
	return treasury.Params{
		SweepThresholdFrac: sweepThresholdFrac,
		MaxRetries:         int(maxRetries),
		RetryBaseDelayMS:   int(retryBaseDelayMS),
	}, nil
}
