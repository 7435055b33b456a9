package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func isolatedLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	require.NotNil(t, l)
	assert.Same(t, viper.GetViper(), l.GetViper())
	assert.NotNil(t, NewLoaderWithViper(nil).GetViper())
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := isolatedLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Estimator, cfg.Estimator)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_FromSearchPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pano.yaml"), []byte("log_level: debug\n"), 0o600))

	l := isolatedLoader()
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "pano.yaml", filepath.Base(l.GetConfigFileUsed()))
}

func TestLoadWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	content := `
log_level: warn
estimator:
  max_iterations: 500
  inlier_threshold: 2.5
  sampling: unique
  seed: 9
pipeline:
  reference: 1
  max_workers: 2
server:
  port: 9090
  rate_limit:
    enabled: true
    max_correspondences_per_day: 1000
batch:
  recursive: true
  exclude: ["*.tmp.json"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := isolatedLoader().LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 500, cfg.Estimator.MaxIterations)
	assert.Equal(t, 2.5, cfg.Estimator.InlierThreshold)
	assert.Equal(t, 0.75, cfg.Estimator.ConsensusRatio, "unset keys keep defaults")
	assert.Equal(t, "unique", cfg.Estimator.Sampling)
	assert.Equal(t, int64(9), cfg.Estimator.Seed)
	assert.Equal(t, 1, cfg.Pipeline.Reference)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, 1000, cfg.Server.RateLimit.MaxCorrespondencesPerDay)
	assert.True(t, cfg.Batch.Recursive)
	assert.Equal(t, []string{"*.tmp.json"}, cfg.Batch.Exclude)
}

func TestLoadWithFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := isolatedLoader().LoadWithFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("estimator: [unclosed"), 0o600))
	_, err = isolatedLoader().LoadWithFile(broken)
	require.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("server:\n  port: 0\n"), 0o600))
	_, err = isolatedLoader().LoadWithFile(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")

	cfg, err := isolatedLoader().LoadWithFileWithoutValidation(invalid)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Server.Port)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PANO_LOG_LEVEL", "error")
	t.Setenv("PANO_ESTIMATOR_INLIER_THRESHOLD", "1.5")
	t.Setenv("PANO_SERVER_RATE_LIMIT_REQUESTS_PER_MINUTE", "5")

	cfg, err := isolatedLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, 1.5, cfg.Estimator.InlierThreshold)
	assert.Equal(t, 5, cfg.Server.RateLimit.RequestsPerMinute)
}

func TestLoader_SetOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pano.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  format: csv\n"), 0o600))

	l := isolatedLoader()
	l.Set("output.format", "yaml")
	cfg, err := l.LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.Equal(t, "yaml", l.Get("output.format"))
	assert.Contains(t, l.GetResolvedConfig(), "estimator")
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Contains(t, doc, "estimator")
	assert.Contains(t, doc, "server")

	cfg, err := isolatedLoader().LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Estimator, cfg.Estimator)
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	paths := GetConfigSearchPaths()
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join("/xdg", "pano"))
	assert.Equal(t, "/etc/pano", paths[len(paths)-1])
}

func TestPrintConfigInfo(t *testing.T) {
	var buf bytes.Buffer
	isolatedLoader().PrintConfigInfo(&buf)
	assert.Contains(t, buf.String(), "Environment prefix: PANO")
}
