package main

import (
	"fmt"

	"github.com/juju/clock"

	"github.com/cuemby/redkeeper/pkg/config"
	"github.com/cuemby/redkeeper/pkg/reconciler"
	"github.com/cuemby/redkeeper/pkg/relation"
	"github.com/cuemby/redkeeper/pkg/secrets"
	"github.com/cuemby/redkeeper/pkg/security"
	"github.com/cuemby/redkeeper/pkg/storage"
	"github.com/cuemby/redkeeper/pkg/workload"
)

// app wires the operator's collaborators together. Both the daemon and the
// one-shot commands build the same graph.
type app struct {
	cfg     *config.Operator
	db      storage.Store
	secrets *secrets.Store
	engine  *reconciler.Engine
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	db, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	sm, err := security.NewSecretsManagerForApp(cfg.AppName)
	if err != nil {
		db.Close()
		return nil, err
	}
	sec := secrets.NewStore(db, sm)

	redisSup, err := workload.NewPebble(workload.RedisService, cfg.RedisSocket)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create redis supervisor: %w", err)
	}
	sentinelSup, err := workload.NewPebble(workload.SentinelService, cfg.SentinelSocket)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sentinel supervisor: %w", err)
	}

	engine := reconciler.New(cfg, db, sec, redisSup, sentinelSup,
		reconciler.NetDialerFactory, relation.NewPublisher(db), clock.WallClock)

	return &app{
		cfg:     cfg,
		db:      db,
		secrets: sec,
		engine:  engine,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
