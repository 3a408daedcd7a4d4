package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewDeviceConfig_Defaults(t *testing.T) {
	cfg := NewDeviceConfig("cam-1")

	assert.Equal(t, "cam-1", cfg.DeviceID)
	assert.Equal(t, 0.7, cfg.AnomalyThreshold)
	assert.True(t, cfg.EnableUnknownVisitorDetection)
	assert.Equal(t, 300, cfg.UnknownVisitorThresholdSecs)
	assert.True(t, cfg.EnableLearning)
	require.Len(t, cfg.BusinessHours, 1)
	assert.True(t, cfg.InBusinessHours(12*3600))
	assert.False(t, cfg.InBusinessHours(2*3600))
}

func TestDeviceConfig_Validate(t *testing.T) {
	cfg := NewDeviceConfig("cam-1")
	assert.NoError(t, cfg.Validate())

	cfg.AnomalyThreshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg = NewDeviceConfig("cam-1")
	cfg.UnknownVisitorThresholdSecs = -1
	assert.Error(t, cfg.Validate())

	cfg = NewDeviceConfig("cam-1")
	cfg.BusinessHours = []TimeRange{{Start: 10 * 3600, End: 5 * 3600}}
	assert.Error(t, cfg.Validate())
}

func TestDeviceConfig_CloneIsDeep(t *testing.T) {
	cfg := NewDeviceConfig("cam-1")
	clone := cfg.Clone()

	clone.BusinessHours[0].Start = 0
	assert.Equal(t, 8*3600, cfg.BusinessHours[0].Start)
}

func TestService_DefaultOnFirstAccess(t *testing.T) {
	s := NewService(t.TempDir(), zap.NewNop())

	cfg := s.DeviceConfig("cam-1")
	assert.Equal(t, 0.7, cfg.AnomalyThreshold)
	assert.ElementsMatch(t, []string{"cam-1"}, s.DeviceIDs())
}

func TestService_SnapshotIsolation(t *testing.T) {
	s := NewService(t.TempDir(), zap.NewNop())

	first := s.DeviceConfig("cam-1")
	first.AnomalyThreshold = 0.1

	second := s.DeviceConfig("cam-1")
	assert.Equal(t, 0.7, second.AnomalyThreshold, "caller mutations must not leak into the store")
}

func TestService_UpdatePersistsAndReloads(t *testing.T) {
	dir := t.TempDir()

	s := NewService(dir, zap.NewNop())
	cfg := NewDeviceConfig("cam-1")
	cfg.AnomalyThreshold = 0.55
	cfg.UnknownVisitorThresholdSecs = 120
	require.NoError(t, s.UpdateDeviceConfig(cfg))

	_, err := os.Stat(filepath.Join(dir, "config", "cam-1.json"))
	require.NoError(t, err)

	// A fresh service picks the persisted config up from disk.
	fresh := NewService(dir, zap.NewNop())
	loaded := fresh.DeviceConfig("cam-1")
	assert.Equal(t, 0.55, loaded.AnomalyThreshold)
	assert.Equal(t, 120, loaded.UnknownVisitorThresholdSecs)
}

func TestService_UpdateRejectsInvalid(t *testing.T) {
	s := NewService(t.TempDir(), zap.NewNop())

	cfg := NewDeviceConfig("cam-1")
	cfg.AnomalyThreshold = 2.0
	assert.Error(t, s.UpdateDeviceConfig(cfg))
}

func TestService_MalformedFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "cam-1.json"),
		[]byte("{broken"), 0o644))

	s := NewService(dir, zap.NewNop())
	cfg := s.DeviceConfig("cam-1")
	assert.Equal(t, 0.7, cfg.AnomalyThreshold)
}
