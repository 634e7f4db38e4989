package bus_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/titan-brain/internal/bus"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE bus_envelopes (
			stream TEXT NOT NULL, subject TEXT NOT NULL, id TEXT NOT NULL,
			envelope TEXT NOT NULL, created_at INTEGER NOT NULL, available_at INTEGER NOT NULL,
			delivered INTEGER NOT NULL DEFAULT 0, acked INTEGER NOT NULL DEFAULT 0,
			consumer_name TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (stream, id)
		);`)
	require.NoError(t, err)
	return db
}

func TestPublish_CMD_DeliversAndPersists(t *testing.T) {
	db := newTestDB(t)
	repo := bus.NewRepository(db, zerolog.Nop())
	b := bus.New(repo, zerolog.Nop())

	ch, unsubscribe := b.Subscribe(bus.RiskPolicySubject, "test-consumer")
	defer unsubscribe()

	env := bus.Envelope{ID: "e1", Version: "v1", Type: "risk.policy", Producer: "test"}
	require.NoError(t, b.Publish(context.Background(), bus.RiskPolicySubject, env))

	select {
	case got := <-ch:
		require.Equal(t, "e1", got.ID)
	case <-time.After(time.Second):
		t.Fatal("expected delivery, got none")
	}
}

func TestPublish_CMD_DuplicateWithinWindowIsDropped(t *testing.T) {
	db := newTestDB(t)
	repo := bus.NewRepository(db, zerolog.Nop())
	b := bus.New(repo, zerolog.Nop())

	ch, unsubscribe := b.Subscribe(bus.RiskPolicySubject, "test-consumer")
	defer unsubscribe()

	env := bus.Envelope{ID: "dup-1", Version: "v1", Type: "risk.policy", Producer: "test"}
	require.NoError(t, b.Publish(context.Background(), bus.RiskPolicySubject, env))
	require.NoError(t, b.Publish(context.Background(), bus.RiskPolicySubject, env))

	<-ch
	select {
	case <-ch:
		t.Fatal("duplicate envelope must not be redelivered")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublish_UnroutableSubjectGoesToDeadLetter(t *testing.T) {
	db := newTestDB(t)
	repo := bus.NewRepository(db, zerolog.Nop())
	b := bus.New(repo, zerolog.Nop())

	ch, unsubscribe := b.Subscribe(bus.DeadLetterSubject, "")
	defer unsubscribe()

	env := bus.Envelope{ID: "bad-1", Version: "v1", Type: "unknown", Producer: "test"}
	require.NoError(t, b.Publish(context.Background(), "not.a.known.prefix", env))

	select {
	case got := <-ch:
		require.Equal(t, "bad-1", got.ID)
	case <-time.After(time.Second):
		t.Fatal("expected dead-letter delivery")
	}
}

func TestPublishData_StoresLatestAndDoesNotPersist(t *testing.T) {
	db := newTestDB(t)
	repo := bus.NewRepository(db, zerolog.Nop())
	b := bus.New(repo, zerolog.Nop())

	env := bus.Envelope{ID: "d1", Version: "v1", Type: "dashboard.update", Producer: "test"}
	require.NoError(t, b.Publish(context.Background(), bus.DashboardSubject, env))

	got, ok := b.LatestData(bus.DashboardSubject)
	require.True(t, ok)
	require.Equal(t, "d1", got.ID)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM bus_envelopes`).Scan(&count))
	require.Equal(t, 0, count, "DATA-stream envelopes must never be durably persisted")
}

func TestPruneData_RemovesExpiredEntries(t *testing.T) {
	db := newTestDB(t)
	repo := bus.NewRepository(db, zerolog.Nop())
	b := bus.New(repo, zerolog.Nop())

	env := bus.Envelope{ID: "d2", Version: "v1", Type: "dashboard.update", Producer: "test"}
	require.NoError(t, b.Publish(context.Background(), bus.DashboardSubject, env))

	b.PruneData(time.Now().Add(20 * time.Minute))

	_, ok := b.LatestData(bus.DashboardSubject)
	require.False(t, ok, "expired DATA entry must be pruned")
}

func TestRedeliverPending_RedeliversUnackedEnvelopes(t *testing.T) {
	db := newTestDB(t)
	repo := bus.NewRepository(db, zerolog.Nop())
	b := bus.New(repo, zerolog.Nop())

	ch, unsubscribe := b.Subscribe(bus.RiskPolicySubject, "test-consumer")
	defer unsubscribe()

	env := bus.Envelope{ID: "pending-1", Version: "v1", Type: "risk.policy", Producer: "test"}
	require.NoError(t, b.Publish(context.Background(), bus.RiskPolicySubject, env))
	<-ch // drain the first delivery

	count, err := b.RedeliverPending(context.Background(), -time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	select {
	case got := <-ch:
		require.Equal(t, "pending-1", got.ID)
	case <-time.After(time.Second):
		t.Fatal("expected redelivery of unacked envelope")
	}
}
