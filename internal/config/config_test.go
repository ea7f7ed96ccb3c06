// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	t.Setenv("EDUTRACK_HOME", t.TempDir())
	cfg := Default()
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 60*time.Second, cfg.Backend.ChatTimeout())
	assert.Equal(t, 10*time.Second, cfg.Backend.ProbeTimeout())
	assert.Equal(t, 15*time.Second, cfg.Backend.ProbeInterval())
	assert.Equal(t, 5, cfg.Backend.MaxFailures)
	assert.Equal(t, 30*time.Second, cfg.Delivery.ActivityWindow())
	assert.Equal(t, time.Hour, cfg.Delivery.AnalysisCacheTTL())
	assert.Equal(t, 10, cfg.Delivery.HistoryWindow)
}

func TestTypingConfig_CharDelay(t *testing.T) {
	tc := Default().Typing
	assert.Equal(t, 10*time.Millisecond, tc.CharDelay())
	tc.Compact = true
	assert.Equal(t, 20*time.Millisecond, tc.CharDelay())
}

func TestSetDefaults_ResolvesPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("EDUTRACK_HOME", home)

	cfg := Default()
	cfg.SetDefaults()
	assert.Equal(t, filepath.Join(home, "edutrack.db"), cfg.Store.Path)
	assert.Equal(t, filepath.Join(home, "logs", "edutrack.log"), cfg.Logging.File)

	bolt := Default()
	bolt.Store.Kind = "bolt"
	bolt.SetDefaults()
	assert.Equal(t, filepath.Join(home, "edutrack.bolt"), bolt.Store.Path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad scheme", func(c *Config) { c.Backend.URL = "ftp://host" }, "backend.url"},
		{"no host", func(c *Config) { c.Backend.URL = "http://" }, "backend.url"},
		{"temperature", func(c *Config) { c.Backend.Temperature = 3 }, "backend.temperature"},
		{"store kind", func(c *Config) { c.Store.Kind = "mongo" }, "store.kind"},
		{"redis addr", func(c *Config) { c.Store.Kind = "redis"; c.Store.RedisAddr = "" }, "store.redis_addr"},
		{"theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("EDUTRACK_USER", "alice")
	t.Setenv("EDUTRACK_BACKEND_URL", "https://api.example.com")
	t.Setenv("EDUTRACK_STORE", "bolt")
	t.Setenv("EDUTRACK_STORE_PATH", "/tmp/x.bolt")
	t.Setenv("EDUTRACK_REDIS_ADDR", "redis:6380")
	t.Setenv("EDUTRACK_BACKGROUND", "false")
	t.Setenv("EDUTRACK_WEB_SEARCH", "yes")
	t.Setenv("EDUTRACK_LOG_LEVEL", "debug")
	t.Setenv("EDUTRACK_MOCK", "1")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "alice", cfg.User.Name)
	assert.Equal(t, "https://api.example.com", cfg.Backend.URL)
	assert.Equal(t, "bolt", cfg.Store.Kind)
	assert.Equal(t, "/tmp/x.bolt", cfg.Store.Path)
	assert.Equal(t, "redis:6380", cfg.Store.RedisAddr)
	assert.False(t, cfg.Delivery.BackgroundProcessing)
	assert.True(t, cfg.Delivery.WebSearch)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Backend.Mock)
}

func TestLoadDotEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("EDUTRACK_HOME", home)
	t.Setenv("EDUTRACK_USER", "")
	require.NoError(t, os.Unsetenv("EDUTRACK_USER"))
	t.Setenv("EDUTRACK_STORE", "memory")

	env := "EDUTRACK_USER=dana\nEDUTRACK_STORE=bolt\n"
	require.NoError(t, os.WriteFile(filepath.Join(home, ".env"), []byte(env), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dana", cfg.User.Name)
	assert.Equal(t, "memory", cfg.Store.Kind, "the real environment wins over .env")
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	t.Setenv("EDUTRACK_HOME", t.TempDir())
	assert.NoError(t, LoadDotEnv())
}

func TestSaveAndLoadTOML(t *testing.T) {
	home := t.TempDir()
	t.Setenv("EDUTRACK_HOME", home)

	cfg := Default()
	cfg.User.Name = "bob"
	cfg.Delivery.WebSearch = true
	cfg.Backend.MaxFailures = 3

	path := filepath.Join(home, "config.toml")
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "bob", loaded.User.Name)
	assert.True(t, loaded.Delivery.WebSearch)
	assert.Equal(t, 3, loaded.Backend.MaxFailures)
}

func TestLoad_JSONFallback(t *testing.T) {
	home := t.TempDir()
	t.Setenv("EDUTRACK_HOME", home)

	cfg := Default()
	cfg.User.Name = "carol"
	require.NoError(t, SaveJSON(cfg, filepath.Join(home, "config.json")))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "carol", loaded.User.Name)
}

func TestLoad_BrokenFileReturnsDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("EDUTRACK_HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte("not = [valid"), 0o600))

	cfg, err := Load()
	require.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, Default().Backend.URL, cfg.Backend.URL)
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("typing.compact", "true"))
	assert.True(t, cfg.Typing.Compact)

	require.NoError(t, cfg.Set("backend.max_failures", "7"))
	v, err := cfg.Get("backend.max_failures")
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	require.NoError(t, cfg.Set("backend.temperature", 0.2))
	assert.InDelta(t, 0.2, cfg.Backend.Temperature, 1e-9)

	_, err = cfg.Get("backend.nope")
	assert.Error(t, err)
	_, err = cfg.Get("backend")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("backend.max_failures", "many"))
}

func TestKeys_AllResolvable(t *testing.T) {
	cfg := Default()
	for _, key := range Keys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
	assert.Contains(t, Keys(), "delivery.background_processing")
}

func TestString_RedactsPassword(t *testing.T) {
	cfg := Default()
	cfg.Store.RedisPassword = "hunter2"
	assert.NotContains(t, cfg.String(), "hunter2")
	assert.Equal(t, "hunter2", cfg.Store.RedisPassword)
}

func TestConfig_ConcurrentAccess(t *testing.T) {
	t.Setenv("EDUTRACK_HOME", t.TempDir())
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}
