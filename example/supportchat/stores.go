package main

import (
	"context"
	"log/slog"

	"github.com/tbxark/actionblock/action"
	"github.com/tbxark/actionblock/agent"
	"github.com/tbxark/actionblock/config"
)

type stores struct {
	records action.RecordStore
	prefs   action.Preferences
	history agent.HistoryReadWriter
	closers []func() error
}

func openStores(ctx context.Context, conf *config.Config) (*stores, error) {
	trimmer := agent.KeepSystemLastNTrimmer{N: conf.History.Limit}
	switch conf.Store.Kind {
	case config.StoreSQLite:
		db, err := action.OpenSQLite(conf.Store.Path)
		if err != nil {
			return nil, err
		}
		return &stores{
			records: db,
			prefs:   db,
			history: agent.NewSQLiteHistoryStore(db, trimmer),
			closers: []func() error{db.Close},
		}, nil
	case config.StoreRedis:
		rs, err := action.DialRedis(ctx, conf.Store.RedisAddr, conf.Store.Password, conf.Store.DB, conf.Store.Namespace)
		if err != nil {
			return nil, err
		}
		return &stores{
			records: rs,
			prefs:   rs,
			history: agent.NewRedisHistoryStore(rs.Client(), conf.History.TTL, trimmer),
			closers: []func() error{rs.Close},
		}, nil
	default:
		mem := action.NewMemoryStore()
		return &stores{
			records: mem,
			prefs:   mem,
			history: agent.NewMemoryHistoryStore(trimmer),
		}, nil
	}
}

func (s *stores) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			slog.Warn("Failed to close store", "error", err)
		}
	}
}
