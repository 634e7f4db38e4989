package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/titan-brain/internal/brain"
)

// ArbitratorPublisher adapts Bus to the arbitrator.Publisher interface,
// translating an approved Decision into a place-order command envelope
// on the CMD stream.
type ArbitratorPublisher struct {
	bus      *Bus
	producer string
	venue    string
	account  string
	log      zerolog.Logger
}

// NewArbitratorPublisher wires the adapter. venue/account identify this
// brain instance's execution target in the subject hierarchy
// (titan.cmd.exec.place.v1.<venue>.<account>.<symbol>).
func NewArbitratorPublisher(bus *Bus, venue, account string, log zerolog.Logger) *ArbitratorPublisher {
	return &ArbitratorPublisher{
		bus:      bus,
		producer: "titan-brain",
		venue:    venue,
		account:  account,
		log:      log.With().Str("component", "arbitrator-publisher").Logger(),
	}
}

// entryZoneBandFrac is the default entry-zone half-width applied around a
// phase's implied reference price: ±0.1%.
const entryZoneBandFrac = 0.001

type placeOrderMetadata struct {
	Confidence    *float64 `json:"confidence,omitempty"`
	CorrelationID string   `json:"correlation_id"`
}

type placeOrderPayload struct {
	SignalID    string             `json:"signal_id"`
	PhaseID     brain.PhaseID      `json:"phase_id"`
	Side        int                `json:"side"` // 1 long, -1 short
	Symbol      string             `json:"symbol"`
	NotionalUSD float64            `json:"notional_usd"`
	Leverage    *float64           `json:"leverage,omitempty"`
	EntryZone   [2]float64         `json:"entry_zone"`
	StopLoss    float64            `json:"stop_loss"`
	TakeProfits []float64          `json:"take_profits"`
	Status      string             `json:"status"`
	TSignal     int64              `json:"t_signal"`
	Metadata    placeOrderMetadata `json:"metadata"`
}

// sideCode maps the Brain's internal BUY/SELL direction to the wire's
// numeric ±1 encoding.
func sideCode(side brain.Side) int {
	if side == brain.SideSell {
		return -1
	}
	return 1
}

// entryZoneAndStop derives the default entry band and stop-loss a phase
// that omits its own levels gets: ±0.1% around the intent's implied
// reference price, with the stop on the losing side of that band. Neither
// is guessed when the intent carries no reference price — both come back
// zero, leaving placement to the execution venue's own entry logic.
func entryZoneAndStop(side brain.Side, referencePriceUSD *float64) (zone [2]float64, stopLoss float64) {
	if referencePriceUSD == nil {
		return [2]float64{}, 0
	}
	price := *referencePriceUSD
	zone = [2]float64{price * (1 - entryZoneBandFrac), price * (1 + entryZoneBandFrac)}
	if side == brain.SideSell {
		stopLoss = price * (1 + entryZoneBandFrac)
	} else {
		stopLoss = price * (1 - entryZoneBandFrac)
	}
	return zone, stopLoss
}

// PublishPlaceOrder builds and publishes the command envelope for an
// approved Decision. take_profits is always left empty: the Brain never
// guesses profit-taking levels a phase didn't submit.
func (p *ArbitratorPublisher) PublishPlaceOrder(ctx context.Context, intent brain.Intent, decision brain.Decision) error {
	entryZone, stopLoss := entryZoneAndStop(intent.Side, intent.ReferencePriceUSD)

	payload := placeOrderPayload{
		SignalID:    intent.SignalID,
		PhaseID:     intent.PhaseID,
		Side:        sideCode(intent.Side),
		Symbol:      intent.Symbol,
		NotionalUSD: decision.AuthorizedNotional,
		Leverage:    intent.RequestedLeverage,
		EntryZone:   entryZone,
		StopLoss:    stopLoss,
		TakeProfits: []float64{},
		Status:      "PENDING",
		TSignal:     intent.SubmittedAt,
		Metadata: placeOrderMetadata{
			Confidence:    intent.Confidence,
			CorrelationID: intent.SignalID,
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal place-order payload for %s: %w", intent.SignalID, err)
	}

	idempotencyKey := intent.SignalID
	env := Envelope{
		ID:             uuid.NewString(),
		Version:        "v1",
		Type:           "exec.place",
		Producer:       p.producer,
		IdempotencyKey: &idempotencyKey,
		Payload:        raw,
	}

	subject := PlaceOrderSubject(p.venue, p.account, intent.Symbol)
	if err := p.bus.Publish(ctx, subject, env); err != nil {
		return fmt.Errorf("failed to publish place-order command for %s: %w", intent.SignalID, err)
	}
	p.log.Debug().Str("subject", subject).Str("signal_id", intent.SignalID).Msg("published place-order command")
	return nil
}
