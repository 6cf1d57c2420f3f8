package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/clewcrew/internal/experts"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(envConcurrency, "")
	t.Setenv(envExpertTimeout, "")
	t.Setenv(envMaxReadsPerSecond, "")
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 2*time.Minute, cfg.ExpertTimeout)
	assert.Equal(t, experts.Names(), cfg.EnabledExperts())
	for name, s := range cfg.Experts {
		assert.True(t, s.Enabled, name)
		assert.Nil(t, s.Curve, name)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadProjectFile(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeConfig(t, root, `
concurrency: 2
expert_timeout: 1d
max_reads_per_second: 50
exclude:
  - "fixtures/**"
experts:
  model:
    enabled: false
  security:
    weight: 5
    curve:
      minor: 70
      moderate: 40
`)

	cfg, err := Load("", root)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 24*time.Hour, cfg.ExpertTimeout)
	assert.Equal(t, 50.0, cfg.MaxReadsPerSecond)
	assert.Equal(t, []string{"fixtures/**"}, cfg.Exclude)
	assert.NotContains(t, cfg.EnabledExperts(), experts.Model)
	assert.Contains(t, cfg.EnabledExperts(), experts.MCP)

	sec := cfg.Experts[experts.Security]
	assert.True(t, sec.Enabled)
	assert.Equal(t, 5.0, sec.Weight)
	require.NotNil(t, sec.Curve)
	assert.Equal(t, 100.0, sec.Curve.Ceiling)
	assert.Equal(t, 70.0, sec.Curve.Minor)
	assert.Equal(t, 40.0, sec.Curve.Moderate)
	assert.Equal(t, 25.0, sec.Curve.Major)
	assert.Len(t, cfg.FSOptions(), 3)
}

func TestLoadExplicitPathMustExist(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "concurrency: [", "parsing YAML"},
		{"unknown expert", "experts:\n  frontend:\n    weight: 1\n", `unknown expert "frontend"`},
		{"bad timeout", "expert_timeout: soon\n", "invalid expert_timeout"},
		{"concurrency too high", "concurrency: 500\n", "concurrency must be between"},
		{"negative weight", "experts:\n  build:\n    weight: -1\n", "weight cannot be negative"},
		{"non-monotonic curve", "experts:\n  build:\n    curve:\n      major: 80\n", "experts.build.curve"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			root := t.TempDir()
			writeConfig(t, root, tt.content)
			_, err := Load("", root)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeConfig(t, root, "concurrency: 2\n")
	t.Setenv(envConcurrency, "8")
	t.Setenv(envExpertTimeout, "45s")
	t.Setenv(envMaxReadsPerSecond, "12.5")

	cfg, err := Load("", root)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, 45*time.Second, cfg.ExpertTimeout)
	assert.Equal(t, 12.5, cfg.MaxReadsPerSecond)

	t.Setenv(envConcurrency, "many")
	_, err = Load("", root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), envConcurrency)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"7d", 7 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
		{"90s", 90 * time.Second},
		{"1h30m", 90 * time.Minute},
	}
	for _, tt := range tests {
		got, err := parseDuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"later", "1d12h", "d", "3dd", "2w1d"} {
		_, err := parseDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestSaveDefaultConfig(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	path := filepath.Join(root, FileName)

	require.NoError(t, SaveDefaultConfig(path, false))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Concurrency)
	assert.Len(t, loaded.Experts, len(experts.Names()))

	err = SaveDefaultConfig(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	require.NoError(t, SaveDefaultConfig(path, true))

	cfg, err := Load("", root)
	require.NoError(t, err)
	assert.Equal(t, experts.Names(), cfg.EnabledExperts())
}

func TestExpertOptions(t *testing.T) {
	cfg := DefaultConfig()
	weight := cfg.Experts[experts.Build]
	weight.Weight = 9
	cfg.Experts[experts.Build] = weight

	e, err := experts.New(experts.Build, cfg.ExpertOptions(experts.Build)...)
	require.NoError(t, err)
	assert.Equal(t, 9.0, e.MetricWeight())

	e, err = experts.New(experts.Test, cfg.ExpertOptions(experts.Test)...)
	require.NoError(t, err)
	assert.Equal(t, 1.5, e.MetricWeight())
}
