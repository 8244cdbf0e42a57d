package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.validate())
}

func TestNewConfig_OverridesFromFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "config-test-*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	_, err = tmpFile.WriteString("max-events: 500\nlate-tolerance: 10s\ndedup-window: 1m\n")
	require.NoError(t, err)
	tmpFile.Close()

	cfg, err := NewConfig(viper.New(), tmpFile.Name())
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.MaxEvents)
	assert.Equal(t, 10*time.Second, cfg.LateTolerance)
	assert.Equal(t, time.Minute, cfg.DedupWindow)
	// Untouched fields keep their defaults.
	assert.Equal(t, 5*time.Minute, cfg.DefaultTimeWindow)
}

func TestDefaultConfig_DedupDisabledByDefault(t *testing.T) {
	cfg := DefaultConfig()
	assert.Zero(t, cfg.DedupWindow)
}

func TestNewConfig_RejectsInvalid(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "config-test-*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	_, err = tmpFile.WriteString("max-events: 0\n")
	require.NoError(t, err)
	tmpFile.Close()

	_, err = NewConfig(viper.New(), tmpFile.Name())
	assert.Error(t, err)
}
