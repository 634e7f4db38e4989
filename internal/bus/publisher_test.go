package bus_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/titan-brain/internal/brain"
	"github.com/aristath/titan-brain/internal/bus"
)

func floatPtr(f float64) *float64 { return &f }

func TestPublishPlaceOrder_EmitsSpecShapedPayload(t *testing.T) {
	db := newTestDB(t)
	repo := bus.NewRepository(db, zerolog.Nop())
	b := bus.New(repo, zerolog.Nop())
	pub := bus.NewArbitratorPublisher(b, "binance", "acct1", zerolog.Nop())

	ch, unsubscribe := b.Subscribe(bus.PlaceOrderSubject("binance", "acct1", "BTCUSDT"), "test-consumer")
	defer unsubscribe()

	intent := brain.Intent{
		SignalID:          "sig-1",
		PhaseID:           brain.PhaseP1,
		Symbol:            "BTCUSDT",
		Side:              brain.SideSell,
		SubmittedAt:       1000,
		Confidence:        floatPtr(0.7),
		ReferencePriceUSD: floatPtr(50000),
	}
	decision := brain.Decision{
		SignalID:           "sig-1",
		PhaseID:            brain.PhaseP1,
		Approved:           true,
		AuthorizedNotional: 250.0,
	}

	require.NoError(t, pub.PublishPlaceOrder(context.Background(), intent, decision))

	var got bus.Envelope
	select {
	case env := <-ch:
		got = env
	default:
		t.Fatal("expected a published envelope")
	}

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(got.Payload, &payload))

	assert.Equal(t, "sig-1", payload["signal_id"])
	assert.Equal(t, "p1", payload["phase_id"])
	assert.Equal(t, float64(-1), payload["side"], "SELL maps to -1")
	assert.Equal(t, "BTCUSDT", payload["symbol"])
	assert.Equal(t, 250.0, payload["notional_usd"])
	assert.Equal(t, "PENDING", payload["status"])
	assert.Equal(t, float64(1000), payload["t_signal"])

	zone := payload["entry_zone"].([]interface{})
	assert.InDelta(t, 49950, zone[0], 1, "short entry zone's lower bound is -0.1%%")
	assert.InDelta(t, 50050, zone[1], 1)
	assert.InDelta(t, 50050, payload["stop_loss"], 1, "short stop sits above the reference price")

	tps, ok := payload["take_profits"].([]interface{})
	require.True(t, ok)
	assert.Empty(t, tps)

	metadata := payload["metadata"].(map[string]interface{})
	assert.Equal(t, 0.7, metadata["confidence"])
	assert.Equal(t, "sig-1", metadata["correlation_id"])
}

func TestPublishPlaceOrder_NoReferencePriceLeavesZoneAndStopZero(t *testing.T) {
	db := newTestDB(t)
	repo := bus.NewRepository(db, zerolog.Nop())
	b := bus.New(repo, zerolog.Nop())
	pub := bus.NewArbitratorPublisher(b, "binance", "acct1", zerolog.Nop())

	ch, unsubscribe := b.Subscribe(bus.PlaceOrderSubject("binance", "acct1", "ETHUSDT"), "test-consumer")
	defer unsubscribe()

	intent := brain.Intent{SignalID: "sig-2", PhaseID: brain.PhaseP2, Symbol: "ETHUSDT", Side: brain.SideBuy}
	decision := brain.Decision{SignalID: "sig-2", PhaseID: brain.PhaseP2, Approved: true, AuthorizedNotional: 100.0}

	require.NoError(t, pub.PublishPlaceOrder(context.Background(), intent, decision))

	var got bus.Envelope
	select {
	case env := <-ch:
		got = env
	default:
		t.Fatal("expected a published envelope")
	}

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(got.Payload, &payload))

	assert.Equal(t, float64(1), payload["side"], "BUY maps to 1")
	zone := payload["entry_zone"].([]interface{})
	assert.Equal(t, 0.0, zone[0])
	assert.Equal(t, 0.0, zone[1])
	assert.Equal(t, 0.0, payload["stop_loss"])
}
