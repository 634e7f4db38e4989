package performance_test

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/titan-brain/internal/brain"
	"github.com/aristath/titan-brain/internal/performance"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE phase_trades (
			phase_id TEXT NOT NULL, signal_id TEXT NOT NULL,
			pnl_usd REAL NOT NULL, t_fill INTEGER NOT NULL,
			PRIMARY KEY (phase_id, signal_id)
		);`)
	require.NoError(t, err)
	return db
}

func TestRecordFill_SecondCallForSameSignalIsIgnored(t *testing.T) {
	db := newTestDB(t)
	repo := performance.NewRepository(db, zerolog.Nop())

	inserted, err := repo.RecordFill(brain.PhaseP1, "s1", 10, 1000)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = repo.RecordFill(brain.PhaseP1, "s1", 25, 1000)
	require.NoError(t, err)
	require.False(t, inserted, "a replayed fill for an already-recorded signal_id must not be counted again")

	samples, err := repo.LoadSince(brain.PhaseP1, 0)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.InDelta(t, 10, samples[0].PnLUSD, 1e-9, "the original recorded value is unchanged, not overwritten")
}

func TestLoadSince_FiltersByWindowAndOrdersAscending(t *testing.T) {
	db := newTestDB(t)
	repo := performance.NewRepository(db, zerolog.Nop())

	_, err := repo.RecordFill(brain.PhaseP1, "old", -5, 100)
	require.NoError(t, err)
	_, err = repo.RecordFill(brain.PhaseP1, "mid", 15, 2000)
	require.NoError(t, err)
	_, err = repo.RecordFill(brain.PhaseP1, "new", 30, 3000)
	require.NoError(t, err)

	samples, err := repo.LoadSince(brain.PhaseP1, 1000)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	require.Equal(t, int64(2000), samples[0].TFill)
	require.Equal(t, int64(3000), samples[1].TFill)
}

func TestLoadAllPhases_ReturnsDistinctPhases(t *testing.T) {
	db := newTestDB(t)
	repo := performance.NewRepository(db, zerolog.Nop())

	_, err := repo.RecordFill(brain.PhaseP1, "s1", 1, 100)
	require.NoError(t, err)
	_, err = repo.RecordFill(brain.PhaseP2, "s2", 1, 100)
	require.NoError(t, err)
	_, err = repo.RecordFill(brain.PhaseP1, "s3", 1, 200)
	require.NoError(t, err)

	phases, err := repo.LoadAllPhases()
	require.NoError(t, err)
	require.ElementsMatch(t, []brain.PhaseID{brain.PhaseP1, brain.PhaseP2}, phases)
}
