package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// dedupWindow is the minimum CMD deduplication window (≥ 60s on envelope
// id).
const dedupWindow = 60 * time.Second

// dataTTL is the default retention for ephemeral DATA-stream messages.
const dataTTL = 15 * time.Minute

// subscriberBuffer bounds how far a slow subscriber may lag before its
// deliveries start dropping — the bus never blocks a publisher on a
// stalled consumer.
const subscriberBuffer = 64

type subscriber struct {
	ch   chan Envelope
	name string
}

// StreamMessage pairs a delivered envelope with the subject it was
// published on, for wildcard stream-level consumers that need to know
// which symbol/venue/account a message concerns.
type StreamMessage struct {
	Subject  string
	Envelope Envelope
}

type streamSubscriber struct {
	ch   chan StreamMessage
	name string
}

type dataEntry struct {
	env       Envelope
	expiresAt time.Time
}

// Bus is the in-process topic registry: typed channels per subject, with
// CMD/EVT durably persisted and DATA kept memory-only with a short TTL.
type Bus struct {
	mu         sync.RWMutex
	subs       map[string][]*subscriber
	streamSubs map[StreamKind][]*streamSubscriber

	repo *Repository

	dataMu sync.Mutex
	data   map[string]dataEntry

	log zerolog.Logger
}

// New wires a Bus to its durable repository.
func New(repo *Repository, log zerolog.Logger) *Bus {
	return &Bus{
		subs:       make(map[string][]*subscriber),
		streamSubs: make(map[StreamKind][]*streamSubscriber),
		repo:       repo,
		data:       make(map[string]dataEntry),
		log:        log.With().Str("component", "bus").Logger(),
	}
}

// SubscribeStream registers a wildcard consumer that receives every
// envelope published on stream regardless of subject — used by consumers
// that match a subject pattern (e.g. all fill events across venues) rather
// than a single fixed subject.
func (b *Bus) SubscribeStream(stream StreamKind, name string) (<-chan StreamMessage, func()) {
	sub := &streamSubscriber{ch: make(chan StreamMessage, subscriberBuffer), name: name}

	b.mu.Lock()
	b.streamSubs[stream] = append(b.streamSubs[stream], sub)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		peers := b.streamSubs[stream]
		for i, s := range peers {
			if s == sub {
				b.streamSubs[stream] = append(peers[:i], peers[i+1:]...)
				close(sub.ch)
				break
			}
		}
	}
	return sub.ch, unsubscribe
}

// Subscribe registers a durable-named consumer for subject and returns a
// channel of deliveries plus an unsubscribe func. name identifies the
// consumer across reconnects for MarkDelivered bookkeeping; pass "" for
// an anonymous, at-most-once listener (used for DATA feeds).
func (b *Bus) Subscribe(subject, name string) (<-chan Envelope, func()) {
	sub := &subscriber{ch: make(chan Envelope, subscriberBuffer), name: name}

	b.mu.Lock()
	b.subs[subject] = append(b.subs[subject], sub)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		peers := b.subs[subject]
		for i, s := range peers {
			if s == sub {
				b.subs[subject] = append(peers[:i], peers[i+1:]...)
				close(sub.ch)
				break
			}
		}
	}
	return sub.ch, unsubscribe
}

// Publish routes env to subject's stream, applying CMD dedup, durable
// persistence for CMD/EVT, and TTL-bounded storage for DATA. Unroutable
// subjects are redirected to DeadLetterSubject.
func (b *Bus) Publish(ctx context.Context, subject string, env Envelope) error {
	stream, ok := streamForSubject(subject)
	if !ok {
		b.log.Warn().Str("subject", subject).Str("id", env.ID).Msg("unroutable subject, sending to dead-letter")
		return b.publishDeadLetter(ctx, subject, env)
	}

	switch stream {
	case StreamCMD:
		return b.publishDurable(ctx, stream, subject, env, true)
	case StreamEVT:
		return b.publishDurable(ctx, stream, subject, env, false)
	case StreamData:
		b.publishData(subject, env)
		return nil
	default:
		return fmt.Errorf("unknown stream kind %q for subject %s", stream, subject)
	}
}

func (b *Bus) publishDeadLetter(ctx context.Context, originalSubject string, env Envelope) error {
	if b.repo != nil {
		now := time.Now()
		if err := b.repo.SaveEnvelope(ctx, StreamEVT, DeadLetterSubject, env, now, now); err != nil {
			return fmt.Errorf("failed to persist dead-lettered envelope from %s: %w", originalSubject, err)
		}
	}
	b.deliver(StreamEVT, DeadLetterSubject, env)
	return nil
}

func (b *Bus) publishDurable(ctx context.Context, stream StreamKind, subject string, env Envelope, checkDedup bool) error {
	if checkDedup {
		seen, err := b.repo.SeenRecently(ctx, stream, env.ID, time.Now().Add(-dedupWindow))
		if err != nil {
			return fmt.Errorf("failed to check dedup for envelope %s: %w", env.ID, err)
		}
		if seen {
			b.log.Debug().Str("id", env.ID).Str("subject", subject).Msg("duplicate command envelope dropped")
			return nil
		}
	}

	now := time.Now()
	if err := b.repo.SaveEnvelope(ctx, stream, subject, env, now, now); err != nil {
		return fmt.Errorf("failed to persist envelope %s: %w", env.ID, err)
	}

	delivered := b.deliver(stream, subject, env)
	if delivered {
		if err := b.repo.MarkDelivered(ctx, stream, env.ID, ""); err != nil {
			b.log.Warn().Err(err).Str("id", env.ID).Msg("failed to record delivery")
		}
	}
	return nil
}

func (b *Bus) publishData(subject string, env Envelope) {
	b.dataMu.Lock()
	b.data[subject] = dataEntry{env: env, expiresAt: time.Now().Add(dataTTL)}
	b.dataMu.Unlock()
	b.deliver(StreamData, subject, env)
}

// deliver fans env out to every current subject-level subscriber plus
// every stream-level wildcard subscriber. A full subscriber channel is
// skipped and logged rather than blocking the publisher — at-least-once
// delivery is a consumer responsibility (it may resubscribe and replay
// via repository state), not a publisher-side guarantee against slow
// readers.
func (b *Bus) deliver(stream StreamKind, subject string, env Envelope) bool {
	b.mu.RLock()
	peers := append([]*subscriber(nil), b.subs[subject]...)
	streamPeers := append([]*streamSubscriber(nil), b.streamSubs[stream]...)
	b.mu.RUnlock()

	delivered := false
	for _, s := range peers {
		select {
		case s.ch <- env:
			delivered = true
		default:
			b.log.Warn().Str("subject", subject).Str("consumer", s.name).Str("id", env.ID).Msg("subscriber buffer full, dropping delivery")
		}
	}
	msg := StreamMessage{Subject: subject, Envelope: env}
	for _, s := range streamPeers {
		select {
		case s.ch <- msg:
			delivered = true
		default:
			b.log.Warn().Str("subject", subject).Str("consumer", s.name).Str("id", env.ID).Msg("stream subscriber buffer full, dropping delivery")
		}
	}
	return delivered
}

// LatestData returns the most recent DATA-stream envelope for subject, if
// it has not expired.
func (b *Bus) LatestData(subject string) (Envelope, bool) {
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	entry, ok := b.data[subject]
	if !ok || time.Now().After(entry.expiresAt) {
		return Envelope{}, false
	}
	return entry.env, true
}

// PruneData drops expired DATA-stream entries. Callers run this on a
// periodic tick; it holds no locks across I/O since DATA never touches
// the repository.
func (b *Bus) PruneData(now time.Time) {
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	for subject, entry := range b.data {
		if now.After(entry.expiresAt) {
			delete(b.data, subject)
		}
	}
}

// Ack marks a durable CMD/EVT envelope acknowledged.
func (b *Bus) Ack(ctx context.Context, stream StreamKind, id string) error {
	return b.repo.Ack(ctx, stream, id)
}

// RedeliverPending re-publishes delivered-but-unacked durable envelopes
// older than olderThan to their original subjects — the at-least-once
// backstop for consumers that crashed mid-processing.
func (b *Bus) RedeliverPending(ctx context.Context, olderThan time.Duration) (int, error) {
	pending, err := b.repo.LoadPending(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending envelopes for redelivery: %w", err)
	}
	for _, p := range pending {
		b.deliver(p.Stream, p.Subject, p.Env)
	}
	return len(pending), nil
}
