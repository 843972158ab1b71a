package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5000, cfg.HTTPPort)
	assert.Equal(t, 5001, cfg.WSPort)
	assert.Equal(t, ModeDynamic, cfg.HTTPMode)
	assert.Equal(t, ModeDynamic, cfg.WSMode)
	assert.Equal(t, AddonsEnabled, cfg.Addons)
	assert.Equal(t, 1024, cfg.SessionCache)
	assert.True(t, cfg.ResponseEncoding)
	assert.Equal(t, "./addons", cfg.AddonsDir)
	assert.Equal(t, "./libraries", cfg.LibrariesDir)
	assert.Equal(t, "./logs", cfg.LogsDir)
}
