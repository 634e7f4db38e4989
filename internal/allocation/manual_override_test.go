package allocation_test

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/aristath/titan-brain/internal/allocation"
	"github.com/aristath/titan-brain/internal/configregistry"
)

func newTestRegistry(t *testing.T) *configregistry.Registry {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE config_overrides (
			id TEXT PRIMARY KEY, key TEXT NOT NULL, value TEXT NOT NULL,
			previous_value TEXT NOT NULL, operator_id TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '', expires_at INTEGER,
			active INTEGER NOT NULL DEFAULT 1, created_at INTEGER NOT NULL,
			deactivated_at INTEGER, deactivated_by TEXT
		);
		CREATE TABLE config_receipts (
			id TEXT PRIMARY KEY, key TEXT NOT NULL, action TEXT NOT NULL,
			previous_value TEXT NOT NULL, new_value TEXT NOT NULL,
			operator_id TEXT NOT NULL, reason TEXT NOT NULL DEFAULT '',
			expires_at INTEGER, signature TEXT NOT NULL, timestamp INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)

	repo := configregistry.NewRepository(db, db, zerolog.Nop())
	reg, err := configregistry.New(configregistry.DefaultCatalog(), nil, nil, repo, []byte("test-secret"), zerolog.Nop())
	require.NoError(t, err)
	return reg
}

func TestResolveManualOverride_InactiveByDefault(t *testing.T) {
	reg := newTestRegistry(t)
	override, err := allocation.ResolveManualOverride(reg)
	require.NoError(t, err)
	assert.Nil(t, override)
}

func TestResolveManualOverride_ActiveReflectsOverrideKeys(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.CreateOverride("allocation.manualOverrideActive", true, "op1", "test", nil)
	require.NoError(t, err)
	_, err = reg.CreateOverride("allocation.manualOverrideW1", 0.5, "op1", "test", nil)
	require.NoError(t, err)
	_, err = reg.CreateOverride("allocation.manualOverrideW2", 0.3, "op1", "test", nil)
	require.NoError(t, err)
	_, err = reg.CreateOverride("allocation.manualOverrideW3", 0.2, "op1", "test", nil)
	require.NoError(t, err)

	override, err := allocation.ResolveManualOverride(reg)
	require.NoError(t, err)
	require.NotNil(t, override)
	assert.Equal(t, 0.5, override.W1)
	assert.Equal(t, 0.3, override.W2)
	assert.Equal(t, 0.2, override.W3)

	effective, _, err := allocation.New(zerolog.Nop()).Resolve(800, defaultParams(), override)
	require.NoError(t, err)
	assert.True(t, effective.Manual)
}
