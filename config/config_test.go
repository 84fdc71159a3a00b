package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitworld/tee-sdk/domain/entities"
)

func TestFromMap_Defaults(t *testing.T) {
	cfg, err := FromMap(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, entities.DefaultConfig(), cfg)
}

func TestFromMap_Overrides(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"TEE_LOG_LEVEL":      "debug",
		"TEE_MAX_SESSIONS":   "2",
		"TEE_ARENA_PAGES":    "4",
		"TEE_INVOKE_TIMEOUT": "250ms",
	}, entities.WithRegionLimits(3, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2, cfg.MaxSessions)
	assert.Equal(t, uint32(4), cfg.ArenaPages)
	assert.Equal(t, 250*time.Millisecond, cfg.InvokeTimeout)
	assert.Equal(t, 3, cfg.MaxRegions)
	assert.Equal(t, uint32(1<<20), cfg.MaxRegionSize)
}

func TestFromMap_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		want    string
	}{
		{name: "unparsable number", environ: map[string]string{"TEE_MAX_SESSIONS": "many"}, want: "parse environment"},
		{name: "level", environ: map[string]string{"TEE_LOG_LEVEL": "loud"}, want: "LogLevel"},
		{name: "zero pages", environ: map[string]string{"TEE_ARENA_PAGES": "0"}, want: "ArenaPages"},
		{name: "format", environ: map[string]string{"TEE_LOG_FORMAT": "xml"}, want: "LogFormat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.environ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("TEE_MAX_REGIONS", "5")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxRegions)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(entities.DefaultConfig()))

	cfg := entities.DefaultConfig()
	cfg.InvokeTimeout = 0
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvokeTimeout")
}
