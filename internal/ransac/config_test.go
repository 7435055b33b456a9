package ransac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1200, cfg.MaxIterations)
	assert.Equal(t, 5.0, cfg.Threshold)
	assert.Equal(t, 0.75, cfg.ConsensusRatio)
	assert.Equal(t, SamplingWithReplacement, cfg.Sampling)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "zero iterations", mutate: func(c *Config) { c.MaxIterations = 0 }, wantErr: "max iterations"},
		{name: "negative threshold", mutate: func(c *Config) { c.Threshold = -1 }, wantErr: "inlier threshold"},
		{name: "zero ratio", mutate: func(c *Config) { c.ConsensusRatio = 0 }, wantErr: "consensus ratio"},
		{name: "ratio above one", mutate: func(c *Config) { c.ConsensusRatio = 1.5 }, wantErr: "consensus ratio"},
		{name: "unknown sampling", mutate: func(c *Config) { c.Sampling = "lottery" }, wantErr: "sampling mode"},
		{name: "negative workers", mutate: func(c *Config) { c.Workers = -2 }, wantErr: "workers"},
		{name: "unique sampling", mutate: func(c *Config) { c.Sampling = SamplingWithoutReplacement }},
		{name: "ratio of one", mutate: func(c *Config) { c.ConsensusRatio = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
