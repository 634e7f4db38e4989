package configregistry

import "github.com/aristath/titan-brain/internal/brain"

func floatPtr(f float64) *float64 { return &f }
func riskDir(d brain.RiskDirection) *brain.RiskDirection { return &d }

// DefaultCatalog is the built-in set of tunable parameters the Brain reads
// every threshold and tier boundary from. Every tighten_only/raise_only
// entry carries a RiskDirection — the registry refuses to load a
// tighten_only or raise_only entry that omits one (see
// ErrMissingRiskDirection), choosing to fail loudly rather than silently
// downgrade to tunable.
func DefaultCatalog() []brain.ConfigItem {
	return []brain.ConfigItem{
		{
			Key: "allocation.startP2", Title: "Phase-2 start equity",
			Description: "Equity at which the SMALL tier begins.",
			Category:    "allocation", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0)}, Default: 1500.0,
		},
		{
			Key: "allocation.fullP2", Title: "Phase-2 full equity",
			Description: "Equity at which the MEDIUM tier begins.",
			Category:    "allocation", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0)}, Default: 5000.0,
		},
		{
			Key: "allocation.startP3", Title: "Phase-3 start equity",
			Description: "Equity at which the LARGE tier begins.",
			Category:    "allocation", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0)}, Default: 25000.0,
		},
		{
			Key: "allocation.manualOverrideActive", Title: "Manual allocation override active",
			Description: "When true, the effective allocation vector is the manual w1/w2/w3 below instead of the computed vector.",
			Category:    "allocation", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "bool"}, Default: false,
		},
		{
			Key: "allocation.manualOverrideW1", Title: "Manual override weight (phase 1)",
			Category:    "allocation", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0), Max: floatPtr(1)}, Default: 1.0,
		},
		{
			Key: "allocation.manualOverrideW2", Title: "Manual override weight (phase 2)",
			Category:    "allocation", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0), Max: floatPtr(1)}, Default: 0.0,
		},
		{
			Key: "allocation.manualOverrideW3", Title: "Manual override weight (phase 3)",
			Category:    "allocation", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0), Max: floatPtr(1)}, Default: 0.0,
		},
		{
			Key: "risk.maxAccountLeverage", Title: "Maximum account leverage",
			Description: "Fallback leverage cap used when a tier's own cap is not set.",
			Category:    "risk", Safety: brain.SafetyTightenOnly, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(1), Max: floatPtr(50)},
			Default: 10.0, RiskDirection: riskDir(brain.RiskDirectionHigherIsRiskier),
		},
		{
			Key: "risk.alphaVetoThreshold", Title: "Tail-risk veto threshold (Hill-α)",
			Description: "Below this Hill-α estimate, new risk is vetoed as TAIL_RISK.",
			Category:    "risk", Safety: brain.SafetyTightenOnly, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0)}, Default: 2.0,
			RiskDirection: riskDir(brain.RiskDirectionLowerIsRiskier),
		},
		{
			Key: "risk.maxCorrelation", Title: "Maximum pairwise correlation",
			Description: "Correlation above which the correlation penalty applies.",
			Category:    "risk", Safety: brain.SafetyTightenOnly, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0), Max: floatPtr(1)}, Default: 0.8,
			RiskDirection: riskDir(brain.RiskDirectionHigherIsRiskier),
		},
		{
			Key: "risk.correlationPenalty", Title: "Correlation penalty multiplier",
			Description: "Multiplier applied to candidate notional when the correlation guard trips.",
			Category:    "risk", Safety: brain.SafetyTightenOnly, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0), Max: floatPtr(1)}, Default: 0.5,
			RiskDirection: riskDir(brain.RiskDirectionHigherIsRiskier),
		},
		{
			Key: "risk.minPositionFloorUSD", Title: "Minimum position floor",
			Description: "Below this notional a reduced position is vetoed instead of approved-reduced.",
			Category:    "risk", Safety: brain.SafetyRaiseOnly, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0)}, Default: 10.0,
			RiskDirection: riskDir(brain.RiskDirectionLowerIsRiskier),
		},
		{
			Key: "risk.correlationRefreshSeconds", Title: "Correlation matrix refresh cadence",
			Description: "How often the correlation matrix is recomputed.",
			Category:    "risk", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(1)}, Default: 300.0,
		},
		{
			Key: "risk.betaRefreshSeconds", Title: "Portfolio beta refresh cadence",
			Description: "How often portfolio beta is recomputed.",
			Category:    "risk", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(1)}, Default: 60.0,
		},
		{
			Key: "performance.windowDays", Title: "Performance rolling window (days)",
			Description: "Trailing window of PnL samples used for Sharpe/win-rate.",
			Category:    "performance", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(1)}, Default: 7.0,
		},
		{
			Key: "performance.minTradeCount", Title: "Cold-start trade-count gate",
			Description: "Below this trade count the modifier is pinned to 1.0.",
			Category:    "performance", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0)}, Default: 10.0,
		},
		{
			Key: "performance.malusThreshold", Title: "Sharpe malus threshold",
			Category:    "performance", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number"}, Default: 0.0,
		},
		{
			Key: "performance.malusMultiplier", Title: "Sharpe malus multiplier",
			Category:    "performance", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0), Max: floatPtr(1)}, Default: 0.5,
		},
		{
			Key: "performance.bonusThreshold", Title: "Sharpe bonus threshold",
			Category:    "performance", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number"}, Default: 2.0,
		},
		{
			Key: "performance.bonusMultiplier", Title: "Sharpe bonus multiplier",
			Category:    "performance", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(1)}, Default: 1.2,
		},
		{
			Key: "treasury.reserveFloor", Title: "Reserve floor (USD)",
			Description: "Futures wallet balance that must never be swept below.",
			Category:    "treasury", Safety: brain.SafetyRaiseOnly, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0)}, Default: 200.0,
			RiskDirection: riskDir(brain.RiskDirectionLowerIsRiskier),
		},
		{
			Key: "treasury.sweepThresholdFrac", Title: "Sweep trigger fraction",
			Category:    "treasury", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0)}, Default: 0.20,
		},
		{
			Key: "treasury.sweepSchedule", Title: "Sweep cron schedule",
			Description: "robfig/cron expression for scheduled sweep evaluation.",
			Category:    "treasury", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "string"}, Default: "0 0 0 * * *",
		},
		{
			Key: "treasury.maxRetries", Title: "Sweep max retries",
			Category:    "treasury", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0)}, Default: 3.0,
		},
		{
			Key: "treasury.retryBaseDelayMS", Title: "Sweep retry base delay (ms)",
			Category:    "treasury", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0)}, Default: 500.0,
		},
		{
			Key: "breaker.consecutiveLossLimit", Title: "Consecutive loss limit",
			Category:    "breaker", Safety: brain.SafetyTightenOnly, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(1)}, Default: 3.0,
			RiskDirection: riskDir(brain.RiskDirectionHigherIsRiskier),
		},
		{
			Key: "breaker.consecutiveLossWindowSeconds", Title: "Consecutive loss rolling window",
			Category:    "breaker", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(1)}, Default: 3600.0,
		},
		{
			Key: "breaker.softCooldownSeconds", Title: "Soft-halt cooldown",
			Category:    "breaker", Safety: brain.SafetyRaiseOnly, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0)}, Default: 1800.0,
			RiskDirection: riskDir(brain.RiskDirectionLowerIsRiskier),
		},
		{
			Key: "breaker.maxDailyDrawdown", Title: "Max daily drawdown fraction",
			Category:    "breaker", Safety: brain.SafetyTightenOnly, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0), Max: floatPtr(1)}, Default: 0.15,
			RiskDirection: riskDir(brain.RiskDirectionHigherIsRiskier),
		},
		{
			Key: "breaker.minEquityUSD", Title: "Minimum equity floor",
			Category:    "breaker", Safety: brain.SafetyRaiseOnly, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0)}, Default: 150.0,
			RiskDirection: riskDir(brain.RiskDirectionLowerIsRiskier),
		},
		{
			Key: "arbitrator.maxSinglePositionFrac", Title: "Max single position fraction of equity",
			Category:    "arbitrator", Safety: brain.SafetyTightenOnly, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0), Max: floatPtr(1)}, Default: 1.0,
			RiskDirection: riskDir(brain.RiskDirectionHigherIsRiskier),
		},
		{
			Key: "arbitrator.intentDeadlineMS", Title: "Per-intent processing deadline (ms)",
			Category:    "arbitrator", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(1)}, Default: 1000.0,
		},
		{
			Key: "bus.publishMaxRetries", Title: "Bus publish max retries",
			Category:    "bus", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0)}, Default: 5.0,
		},
		{
			Key: "bus.evtArchiveBucket", Title: "EVT cold-archive bucket name",
			Description: "S3/R2 bucket EVT-stream envelopes are archived to and rotated in.",
			Category:    "bus", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "string"}, Default: "titan-brain-evt-archive",
		},
		{
			Key: "bus.evtRetentionDays", Title: "EVT cold-archive retention (days)",
			Category:    "bus", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0)}, Default: 30.0,
		},
		{
			Key: "bus.evtRetentionBytes", Title: "EVT cold-archive retention (bytes)",
			Category:    "bus", Safety: brain.SafetyTunable, Scope: "global",
			Storage: "override", Apply: brain.ApplyLive,
			Schema: brain.ValueSchema{Type: "number", Min: floatPtr(0)}, Default: float64(10 * 1024 * 1024 * 1024),
		},
	}
}
