package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIngestConfigDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewIngestConfigHolder(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultIngestConfig(), holder.Get())
}

func TestIngestConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := []byte("ingest:\n  lockTTL: 30s\n  lockWait: 2s\n  conflictRetries: 5\n  workers: 8\n  batchSize: 32\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inventory.yml"), content, 0o600))

	holder, err := NewIngestConfigHolder(zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
	assert.Equal(t, 2*time.Second, cfg.LockWait)
	assert.Equal(t, 5, cfg.ConflictRetries)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, int64(32), cfg.BatchSize)
	assert.Equal(t, DefaultIngestConfig().ClaimIdle, cfg.ClaimIdle)
}

func TestIngestConfigRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := []byte("ingest:\n  workers: 0\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inventory.yml"), content, 0o600))

	_, err := NewIngestConfigHolder(zap.NewNop())
	assert.Error(t, err)
}
