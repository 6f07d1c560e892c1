package cli_test

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/lendflow/internal/cli"
	"github.com/aretw0/lendflow/internal/config"
	"github.com/aretw0/lendflow/internal/logging"
	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullApplication = "I need 2 lakhs, salary 60k, salaried, Mumbai"

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse()
	require.NoError(t, err)
	cfg.ProgressDelay = 0
	return cfg
}

func build(t *testing.T, cfg *config.Config, opts cli.BuildOptions) *cli.Runtime {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rt, err := cli.BuildEngine(ctx, cfg, logging.NewNop(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, rt.Close()) })
	return rt
}

func approve(t *testing.T, rt *cli.Runtime) string {
	t.Helper()
	ctx := context.Background()
	s, err := rt.Engine.Start(ctx)
	require.NoError(t, err)
	reply, err := rt.Engine.Submit(ctx, s.ID, fullApplication)
	require.NoError(t, err)
	require.Equal(t, domain.StageSanction, reply.Stage)
	return s.ID
}

func TestBuildEngine_Stores(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		rt := build(t, newConfig(t), cli.BuildOptions{})
		approve(t, rt)
		assert.Nil(t, rt.Metrics)
		assert.Nil(t, rt.Reloads)
	})

	t.Run("File", func(t *testing.T) {
		cfg := newConfig(t)
		cfg.Store.Kind = config.StoreFile
		cfg.Store.Dir = t.TempDir()

		id := approve(t, build(t, cfg, cli.BuildOptions{}))
		assert.FileExists(t, filepath.Join(cfg.Store.Dir, id+".json"))

		// A second runtime over the same directory sees the conversation.
		again := build(t, cfg, cli.BuildOptions{})
		snap, err := again.Engine.State(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.StageSanction, snap.Stage)
	})

	t.Run("SQLite", func(t *testing.T) {
		cfg := newConfig(t)
		cfg.Store.Kind = config.StoreSQLite
		cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "lendflow.db")

		rt := build(t, cfg, cli.BuildOptions{})
		approve(t, rt)

		hits, err := rt.Engine.Search(context.Background(), "prepayment foreclosure charges", 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "prepayment_1", hits[0].ID)
	})

	t.Run("Redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := newConfig(t)
		cfg.Store.Kind = config.StoreRedis
		cfg.Store.RedisAddr = mr.Addr()

		id := approve(t, build(t, cfg, cli.BuildOptions{}))
		assert.True(t, mr.Exists("lendflow:session:"+id))
	})

	t.Run("Redis unreachable", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		addr := mr.Addr()
		mr.Close()

		cfg := newConfig(t)
		cfg.Store.Kind = config.StoreRedis
		cfg.Store.RedisAddr = addr
		_, err = cli.BuildEngine(context.Background(), cfg, logging.NewNop(), cli.BuildOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis unreachable")
	})
}

func TestBuildEngine_Encryption(t *testing.T) {
	cfg := newConfig(t)
	cfg.Store.Kind = config.StoreFile
	cfg.Store.Dir = t.TempDir()
	cfg.Security.EncryptionKey = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

	rt := build(t, cfg, cli.BuildOptions{})
	id := approve(t, rt)

	raw, err := os.ReadFile(filepath.Join(cfg.Store.Dir, id+".json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Mumbai")

	snap, err := rt.Engine.State(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Mumbai", snap.Record.City)
}

func TestBuildEngine_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rt := build(t, newConfig(t), cli.BuildOptions{Registry: reg, Debug: true})
	require.NotNil(t, rt.Metrics)
	approve(t, rt)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "lendflow_turns_total")
	assert.Contains(t, names, "lendflow_decisions_total")
}

func TestBuildEngine_KnowledgeDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "topup.md"), []byte(`---
id: topup_1
category: product_info
---
Top-up loans are available after twelve EMIs.`), 0o644))

	cfg := newConfig(t)
	cfg.Knowledge.Dir = dir
	rt := build(t, cfg, cli.BuildOptions{})
	require.NotNil(t, rt.Reloads)

	hits, err := rt.Engine.Search(context.Background(), "top-up loans", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "topup_1", hits[0].ID)
}

func TestBuildEngine_Rules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: regional-2026\n"), 0o644))

	cfg := newConfig(t)
	cfg.RulesPath = path
	rt := build(t, cfg, cli.BuildOptions{})
	assert.Equal(t, "regional-2026", rt.Engine.Rules().Config().Version)

	cfg.RulesPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := cli.BuildEngine(context.Background(), cfg, logging.NewNop(), cli.BuildOptions{})
	assert.Error(t, err)
}
