package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/lendflow"
	"github.com/aretw0/lendflow/internal/config"
	"github.com/aretw0/lendflow/pkg/adapters/bureau"
	"github.com/aretw0/lendflow/pkg/adapters/file"
	"github.com/aretw0/lendflow/pkg/adapters/llm"
	loamAdapter "github.com/aretw0/lendflow/pkg/adapters/loam"
	"github.com/aretw0/lendflow/pkg/adapters/memory"
	"github.com/aretw0/lendflow/pkg/adapters/redis"
	"github.com/aretw0/lendflow/pkg/adapters/sqlite"
	"github.com/aretw0/lendflow/pkg/classify"
	"github.com/aretw0/lendflow/pkg/knowledge"
	"github.com/aretw0/lendflow/pkg/observability"
	"github.com/aretw0/lendflow/pkg/persistence/middleware"
	"github.com/aretw0/lendflow/pkg/ports"
	"github.com/aretw0/lendflow/pkg/rules"
	"github.com/prometheus/client_golang/prometheus"
)

// piiKeys are the customer fields masked at rest.
var piiKeys = []string{"email", "mobile|phone", "pan", "aadhaar"}

// Runtime is an assembled engine together with the resources it owns.
type Runtime struct {
	Engine  *lendflow.Engine
	Metrics *observability.Metrics
	// Reloads signals knowledge reloads. It is nil unless documents come from a directory.
	Reloads ports.Watchable

	closers []func() error
}

// Close releases the store connections.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

// BuildOptions tunes BuildEngine for the calling command.
type BuildOptions struct {
	// Debug adds a log line per lifecycle event.
	Debug bool
	// Registry receives the engine metrics. Nil skips metrics.
	Registry *prometheus.Registry
}

// BuildEngine wires an Engine from cfg. Background loops (knowledge reloads) live until ctx
// is done.
func BuildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts BuildOptions) (*Runtime, error) {
	rt := &Runtime{}

	store, locker, db, err := buildStore(ctx, cfg, rt)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	store, err = secureStore(cfg, store)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	searcher, reloads, err := buildKnowledge(ctx, cfg, db, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Reloads = reloads

	ruleEngine, err := buildRules(cfg)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	engineOpts := []lendflow.Option{
		lendflow.WithLogger(logger),
		lendflow.WithStore(store),
		lendflow.WithVerifier(buildVerifier(cfg)),
		lendflow.WithKnowledge(searcher, cfg.Knowledge.TopK),
		lendflow.WithRules(ruleEngine),
		lendflow.WithMaxInputSize(cfg.MaxInputSize),
		lendflow.WithProgressDelay(cfg.ProgressDelay),
	}
	if locker != nil {
		engineOpts = append(engineOpts, lendflow.WithLocker(locker, cfg.Store.LockTTL))
	}
	if c := buildClassifier(cfg, logger); c != nil {
		engineOpts = append(engineOpts, lendflow.WithClassifier(c, cfg.Classifier.Threshold))
	}
	if opts.Registry != nil {
		rt.Metrics = observability.NewMetrics(opts.Registry)
		engineOpts = append(engineOpts, lendflow.WithLifecycleHooks(rt.Metrics.Hooks()))
	}
	if opts.Debug {
		engineOpts = append(engineOpts, lendflow.WithLifecycleHooks(observability.LogHooks(logger)))
	}

	rt.Engine = lendflow.New(engineOpts...)
	logger.Debug("engine assembled",
		"store", cfg.Store.Kind,
		"classifier", cfg.Classifier.APIKey != "",
		"bureau", cfg.Bureau.URL)
	return rt, nil
}

// buildStore returns the session backend. db is set for the sqlite kind so the knowledge
// base can share it.
func buildStore(ctx context.Context, cfg *config.Config, rt *Runtime) (ports.SessionStore, ports.DistributedLocker, *sqlite.DB, error) {
	switch cfg.Store.Kind {
	case config.StoreFile:
		return file.New(cfg.Store.Dir), nil, nil, nil
	case config.StoreRedis:
		store := redis.New(cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB, redis.WithTTL(cfg.Store.TTL))
		rt.closers = append(rt.closers, store.Close)
		if err := store.Ping(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Store.RedisAddr, err)
		}
		return store, redis.NewLocker(store.Client(), store.Prefix()+"lock:"), nil, nil
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		rt.closers = append(rt.closers, db.Close)
		return db.Sessions(), nil, db, nil
	}
	return memory.NewStore(), nil, nil, nil
}

func secureStore(cfg *config.Config, store ports.SessionStore) (ports.SessionStore, error) {
	active, fallback, err := cfg.Keys()
	if err != nil {
		return nil, err
	}
	var mws []middleware.Middleware
	// PII masking runs before encryption so the envelope never holds raw identifiers.
	if cfg.Security.MaskPII {
		mws = append(mws, middleware.NewPIIMiddleware(piiKeys))
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:      active,
			FallbackKeys:   fallback,
			AllowPlaintext: cfg.Security.AllowPlaintext,
		}))
	}
	return middleware.Chain(store, mws...), nil
}

func buildVerifier(cfg *config.Config) ports.CreditVerifier {
	if cfg.Bureau.URL == "" {
		return bureau.NewStatic()
	}
	return bureau.NewClient(cfg.Bureau.URL,
		bureau.WithAPIKey(cfg.Bureau.APIKey),
		bureau.WithTimeout(cfg.Bureau.Timeout))
}

// buildClassifier returns nil when no API key is configured; routing is then deterministic.
func buildClassifier(cfg *config.Config, logger *slog.Logger) ports.Classifier {
	if cfg.Classifier.APIKey == "" {
		return nil
	}
	primary := llm.New(cfg.Classifier.APIKey,
		llm.WithBaseURL(cfg.Classifier.BaseURL),
		llm.WithModel(cfg.Classifier.Model),
		llm.WithLogger(logger))
	return classify.NewResilient(primary,
		classify.WithFallback(classify.NewDeterministic()),
		classify.WithTimeout(cfg.Classifier.Timeout),
		classify.WithLogger(logger))
}

// buildKnowledge picks, in order: a loam directory that is followed for changes, the
// sqlite knowledge table seeded with the built-in documents, or the built-in documents.
func buildKnowledge(ctx context.Context, cfg *config.Config, db *sqlite.DB, logger *slog.Logger) (ports.KnowledgeSearcher, ports.Watchable, error) {
	var (
		base    ports.KnowledgeSearcher
		reloads ports.Watchable
	)
	switch {
	case cfg.Knowledge.Dir != "":
		loader, err := loamAdapter.Open(cfg.Knowledge.Dir)
		if err != nil {
			return nil, nil, err
		}
		idx := knowledge.NewIndex()
		if err := idx.Follow(ctx, loader, logger); err != nil {
			return nil, nil, err
		}
		logger.Info("knowledge loaded", "dir", cfg.Knowledge.Dir, "documents", idx.Len())
		base, reloads = idx, idx
	case db != nil:
		k := db.Knowledge()
		added, err := k.Seed(ctx, knowledge.Seed())
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("knowledge seeded", "added", added)
		base = k
	default:
		base = knowledge.NewSeedIndex()
	}

	if cfg.Knowledge.CacheSize <= 0 {
		return base, reloads, nil
	}
	cached, err := knowledge.NewCached(base, cfg.Knowledge.CacheSize, knowledge.WithCacheLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	if reloads != nil {
		if err := cached.Follow(ctx, reloads); err != nil {
			return nil, nil, err
		}
	}
	return cached, reloads, nil
}

func buildRules(cfg *config.Config) (*rules.Engine, error) {
	if cfg.RulesPath == "" {
		return rules.NewEngine(rules.DefaultConfig()), nil
	}
	rc, err := rules.LoadConfig(cfg.RulesPath)
	if err != nil {
		return nil, err
	}
	return rules.NewEngine(rc), nil
}
