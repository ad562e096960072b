package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/knjiznica/internal/model"
)

func envOf(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(nil, envOf(nil), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, backendSQLite, cfg.backend)
	assert.Equal(t, "knjiznica.sqlite3", cfg.dbPath)
	assert.Equal(t, ":4000", cfg.addr)
	assert.Zero(t, cfg.reconcile)
}

func TestParseConfigEnvAndFlags(t *testing.T) {
	env := envOf(map[string]string{
		"BACKEND":   "mongo",
		"MONGO_URL": "mongodb://db:27017",
		"MONGO_DB":  "library",
		"RECONCILE": "1m",
	})

	cfg, err := parseConfig(nil, env, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, backendMongo, cfg.backend)
	assert.Equal(t, "mongodb://db:27017", cfg.mongoURL)
	assert.Equal(t, "library", cfg.mongoDB)
	assert.Equal(t, time.Minute, cfg.reconcile)

	// Flags override the environment.
	cfg, err = parseConfig([]string{"-b", "file", "-a", ":9000", "-reconcile", "30s"}, env, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, backendFile, cfg.backend)
	assert.Equal(t, "knjiznica.json", cfg.dbPath)
	assert.Equal(t, ":9000", cfg.addr)
	assert.Equal(t, 30*time.Second, cfg.reconcile)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"unknown backend", []string{"-backend", "redis"}, nil},
		{"extra argument", []string{"serve"}, nil},
		{"bad env duration", nil, map[string]string{"RECONCILE": "often"}},
		{"negative interval", []string{"-r", "-1s"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig(tt.args, envOf(tt.env), &bytes.Buffer{})
			assert.Error(t, err)
		})
	}
}

func TestParseConfigHelp(t *testing.T) {
	var out bytes.Buffer
	_, err := parseConfig([]string{"-h"}, envOf(nil), &out)
	assert.ErrorIs(t, err, flag.ErrHelp)
	assert.True(t, strings.HasPrefix(out.String(), "Usage: knjiznica"))
}

func TestEnvLookupLoadsDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("KNJIZNICA_TEST_BACKEND=file\n"), 0644))
	t.Setenv("KNJIZNICA_TEST_BACKEND", "")
	os.Unsetenv("KNJIZNICA_TEST_BACKEND")

	getenv, err := envLookup(path)
	require.NoError(t, err)
	assert.Equal(t, "file", getenv("KNJIZNICA_TEST_BACKEND"))

	// A missing file is not an error.
	_, err = envLookup(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		cfg    config
		goodID string
	}{
		{"sqlite", config{backend: backendSQLite, dbPath: filepath.Join(dir, "test.sqlite3")}, "1"},
		{"file", config{backend: backendFile, dbPath: filepath.Join(dir, "test.json")}, "5f0c3a4e-7d2b-4c1a-9e8f-0123456789ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, err := openStore(ctx, &tt.cfg)
			require.NoError(t, err)
			defer s.Close()

			assert.True(t, s.ValidID(tt.goodID))
			b, err := s.CreateBook(ctx, &model.Book{Title: "Kekec", Author: "Josip Vandot", Price: 8})
			require.NoError(t, err)
			assert.True(t, s.ValidID(b.ID))
			assert.FileExists(t, tt.cfg.dbPath)
		})
	}
}

func TestLevelRouter(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "knjiznica.log")
	logger, cleanup, err := newLogger(&stdout, &stderr, logPath)
	require.NoError(t, err)

	logger.Info("book loaned", "book", "1")
	logger.Warn("slow request")
	logger.Error("loan not recorded", "book", "2")
	logger.Debug("dropped")
	cleanup()
	cleanup()

	assert.Contains(t, stdout.String(), "book loaned")
	assert.Contains(t, stdout.String(), "slow request")
	assert.NotContains(t, stdout.String(), "loan not recorded")
	assert.Contains(t, stderr.String(), "loan not recorded")
	assert.NotContains(t, stdout.String()+stderr.String(), "dropped")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "book loaned")
	assert.Contains(t, string(data), "loan not recorded")
}
