package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/DaanHessen/rewire/internal/engine"
	"github.com/DaanHessen/rewire/internal/logging"
	"github.com/DaanHessen/rewire/internal/session"
	"github.com/DaanHessen/rewire/internal/store"
	"github.com/DaanHessen/rewire/internal/text"
	"github.com/DaanHessen/rewire/internal/util"
)

const migrateTimeout = 30 * time.Second

// app bundles the wired collaborators every command needs.
type app struct {
	cfg   util.Config
	log   *zap.Logger
	blobs store.BlobStore
	repo  *store.StateRepo
	sess  *session.Session
}

func loadConfig() (util.Config, error) {
	path := configPath
	if path == "" {
		path = util.DefaultConfigPath()
	}
	cfg, err := util.Load(path)
	if err != nil {
		return util.Config{}, err
	}
	if dsnFlag != "" {
		cfg.DSN = dsnFlag
	}
	if themeFlag != "" {
		cfg.Theme = themeFlag
	}
	if debug {
		cfg.Log.Debug = true
	}
	return cfg, cfg.Validate()
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.File, cfg.Log.Debug)
	if err != nil {
		return nil, err
	}

	if store.IsPostgres(cfg.DSN) {
		if err := migrateUp(ctx, cfg.DSN); err != nil {
			return nil, errors.Wrap(err, "migrations failed")
		}
	}
	blobs, err := store.Open(ctx, cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	repo := store.NewStateRepo(blobs, cfg.StateKey)

	seed := engine.RandomSeed()
	if cfg.Seed != "" {
		if seed, err = engine.NewSeed(cfg.Seed); err != nil {
			blobs.Close()
			return nil, err
		}
	}
	scheduler := engine.NewSurpriseScheduler(seed.Stream("surprise"), cfg.Surprise.MinIdle, cfg.Surprise.MaxIdle)

	sess := session.New(ctx, repo, newAdvisor(ctx, cfg, log),
		session.WithLogger(log),
		session.WithScheduler(scheduler))
	log.Info("rewire started", zap.String("version", version), zap.Bool("postgres", store.IsPostgres(cfg.DSN)))
	return &app{cfg: cfg, log: log, blobs: blobs, repo: repo, sess: sess}, nil
}

// newAdvisor prefers Gemini and falls back to the offline template advisor
// when no key is configured or the client cannot be created.
func newAdvisor(ctx context.Context, cfg util.Config, log *zap.Logger) text.Advisor {
	if cfg.AI.APIKey == "" {
		log.Info("no API key, using template advisor")
		return text.NewTemplateAdvisor()
	}
	g, err := text.NewGemini(ctx, cfg.AI.APIKey, cfg.AI.Model)
	if err != nil {
		log.Warn("Gemini unavailable, using template advisor", zap.Error(err))
		return text.NewTemplateAdvisor()
	}
	log.Info("advisor ready", zap.String("advisor", g.Name()))
	return g
}

func migrateUp(ctx context.Context, dsn string) error {
	mig, err := store.NewMigrator(dsn)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, migrateTimeout)
	defer cancel()
	if err := mig.Up(ctx); err != nil && !errors.Is(err, store.ErrNoChange) {
		return err
	}
	return nil
}

func (a *app) Close() {
	if err := a.blobs.Close(); err != nil {
		a.log.Warn("close store", zap.Error(err))
	}
	_ = a.log.Sync()
}
