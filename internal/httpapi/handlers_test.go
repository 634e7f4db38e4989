package httpapi_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/titan-brain/internal/allocation"
	"github.com/aristath/titan-brain/internal/arbitrator"
	"github.com/aristath/titan-brain/internal/brain"
	"github.com/aristath/titan-brain/internal/breaker"
	"github.com/aristath/titan-brain/internal/configregistry"
	"github.com/aristath/titan-brain/internal/equity"
	"github.com/aristath/titan-brain/internal/httpapi"
	"github.com/aristath/titan-brain/internal/metrics"
	"github.com/aristath/titan-brain/internal/performance"
	"github.com/aristath/titan-brain/internal/risk"
	"github.com/aristath/titan-brain/internal/treasury"
)

type fixedEquity struct{ e float64 }

func (f fixedEquity) CurrentEquity() float64 { return f.e }

type emptyRiskState struct{}

func (emptyRiskState) CurrentRiskState() brain.RiskState {
	return brain.RiskState{HillAlpha: 3.0, Regime: "calm", Correlations: map[string]float64{}}
}

type noopPublisher struct{}

func (noopPublisher) PublishPlaceOrder(ctx context.Context, intent brain.Intent, decision brain.Decision) error {
	return nil
}

type noopExecutor struct{}

func (noopExecutor) MoveFuturesToSpot(ctx context.Context, amount float64) error { return nil }

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE config_overrides (
			id TEXT PRIMARY KEY, key TEXT NOT NULL, value TEXT NOT NULL,
			previous_value TEXT NOT NULL, operator_id TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '', expires_at INTEGER,
			active INTEGER NOT NULL DEFAULT 1, created_at INTEGER NOT NULL,
			deactivated_at INTEGER, deactivated_by TEXT
		);
		CREATE UNIQUE INDEX idx_config_overrides_active_key ON config_overrides(key) WHERE active = 1;
		CREATE TABLE config_receipts (
			id TEXT PRIMARY KEY, key TEXT NOT NULL, action TEXT NOT NULL,
			previous_value TEXT NOT NULL, new_value TEXT NOT NULL,
			operator_id TEXT NOT NULL, reason TEXT NOT NULL DEFAULT '',
			expires_at INTEGER, signature TEXT NOT NULL, timestamp INTEGER NOT NULL
		);
		CREATE TABLE decisions (
			signal_id TEXT PRIMARY KEY, phase_id TEXT NOT NULL, approved INTEGER NOT NULL,
			requested_notional REAL NOT NULL, authorized_notional REAL NOT NULL,
			reason TEXT NOT NULL, snapshot TEXT NOT NULL,
			processing_time_ms REAL NOT NULL DEFAULT 0, t_decided INTEGER NOT NULL
		);
		CREATE TABLE breaker_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT, prev TEXT NOT NULL, next TEXT NOT NULL,
			reason TEXT NOT NULL, equity REAL NOT NULL, operator_id TEXT, timestamp INTEGER NOT NULL
		);
		CREATE TABLE treasury_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			futures_wallet REAL NOT NULL DEFAULT 0, spot_wallet REAL NOT NULL DEFAULT 0,
			high_watermark REAL NOT NULL DEFAULT 0, total_swept REAL NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE sweep_records (
			id TEXT PRIMARY KEY, amount REAL NOT NULL, t_requested INTEGER NOT NULL,
			t_completed INTEGER, status TEXT NOT NULL, error TEXT
		);`)
	require.NoError(t, err)
	return db
}

func buildTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := newTestDB(t)

	repo := configregistry.NewRepository(db, db, zerolog.Nop())
	reg, err := configregistry.New(configregistry.DefaultCatalog(), nil, nil, repo, []byte("test-secret"), zerolog.Nop())
	require.NoError(t, err)

	alloc := allocation.New(zerolog.Nop())
	perf := performance.New(zerolog.Nop())
	guardian := risk.New(zerolog.Nop())
	brk := breaker.New(brain.BreakerState{}, breaker.NewRepository(db, zerolog.Nop()), zerolog.Nop())
	store := arbitrator.NewRepository(db, zerolog.Nop())
	arb := arbitrator.New(reg, alloc, perf, guardian, brk, store, noopPublisher{}, metrics.New(),
		fixedEquity{e: 10000}, emptyRiskState{}, zerolog.Nop())

	treasuryState := brain.TreasuryState{FuturesWallet: 2000, HighWatermark: 1700, ReserveFloor: 200}
	tr := treasury.New(treasuryState, treasury.NewRepository(db, zerolog.Nop()), noopExecutor{}, zerolog.Nop())

	srv := httpapi.New(httpapi.Config{
		Log:        zerolog.Nop(),
		Arbitrator: arb,
		Registry:   reg,
		Allocation: alloc,
		Treasury:   tr,
		Breaker:    brk,
		Metrics:    metrics.New(),
		Equity:     equity.New(10000),
		StartedAt:  time.Now(),
	})

	return httptest.NewServer(srv.Handler())
}

func TestHandleSignal_ApprovesAndReturnsDecision(t *testing.T) {
	ts := buildTestServer(t)
	defer ts.Close()

	intent := brain.Intent{SignalID: "s1", PhaseID: brain.PhaseP1, Symbol: "BTCUSDT", Side: brain.SideBuy, RequestedNotionalUSD: 200}
	body, _ := json.Marshal(intent)
	resp, err := http.Post(ts.URL+"/signal", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decision brain.Decision
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decision))
	require.True(t, decision.Approved)
}

func TestHandleBreakerReset_RequiresOperatorID(t *testing.T) {
	ts := buildTestServer(t)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/breaker/reset", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleBreakerReset_ClearsHalt(t *testing.T) {
	ts := buildTestServer(t)
	defer ts.Close()

	body, _ := json.Marshal(map[string]string{"operator_id": "op1"})
	resp, err := http.Post(ts.URL+"/breaker/reset", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleConfigCatalog_ReturnsAllItems(t *testing.T) {
	ts := buildTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/config/catalog")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []brain.ConfigItem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.NotEmpty(t, items)
}

func TestHandleConfigOverride_CreateAndRollback(t *testing.T) {
	ts := buildTestServer(t)
	defer ts.Close()

	var key string
	{
		resp, err := http.Get(ts.URL + "/config/catalog")
		require.NoError(t, err)
		defer resp.Body.Close()
		var items []brain.ConfigItem
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
		require.NotEmpty(t, items)
		key = items[0].Key
	}

	overrideBody, _ := json.Marshal(map[string]any{
		"key": key, "value": items0Value(t, ts, key), "operator_id": "op1", "reason": "test",
	})
	resp, err := http.Post(ts.URL+"/config/override", "application/json", bytes.NewReader(overrideBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var receipt brain.Receipt
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&receipt))
	require.Equal(t, brain.ActionOverride, receipt.Action)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/config/override", bytes.NewReader([]byte(
		`{"key":"`+key+`","operator_id":"op1"}`)))
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	require.Equal(t, http.StatusOK, delResp.StatusCode)
}

// items0Value fetches the current effective value of key so the override
// payload exercises a value of the correct type.
func items0Value(t *testing.T, ts *httptest.Server, key string) any {
	t.Helper()
	resp, err := http.Get(ts.URL + "/config/effective?key=" + key)
	require.NoError(t, err)
	defer resp.Body.Close()
	var eff configregistry.EffectiveValue
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&eff))
	return eff.Value
}

func TestHandleTreasury_ReturnsSnapshot(t *testing.T) {
	ts := buildTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/treasury")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state brain.TreasuryState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	require.InDelta(t, 2000, state.FuturesWallet, 1e-9)
}

func TestHandleStatus_IncludesMetricsAndHostStats(t *testing.T) {
	ts := buildTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Contains(t, status, "metrics")
	require.Contains(t, status, "uptime_seconds")
}
