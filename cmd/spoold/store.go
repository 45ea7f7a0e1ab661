package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/spool/store"
	bunstore "github.com/xraph/spool/store/bun"
	"github.com/xraph/spool/store/memory"
	mongostore "github.com/xraph/spool/store/mongo"
	"github.com/xraph/spool/store/postgres"
	redisstore "github.com/xraph/spool/store/redis"
	"github.com/xraph/spool/store/sqlite"
)

// openStore connects the backend named by cfg.StoreDriver. Backends that
// do not own their client get a wrapper that closes it.
func openStore(ctx context.Context, cfg serverConfig, logger *slog.Logger) (store.Store, error) {
	if cfg.StoreDriver != "memory" && cfg.StoreDSN == "" {
		return nil, fmt.Errorf("spoold: SPOOL_STORE_DSN is required for store %q", cfg.StoreDriver)
	}

	switch cfg.StoreDriver {
	case "memory":
		return memory.New(), nil

	case "postgres":
		return postgres.New(ctx, cfg.StoreDSN, postgres.WithLogger(logger))

	case "sqlite":
		return sqlite.Open(ctx, cfg.StoreDSN, sqlite.WithLogger(logger))

	case "bun":
		db := bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.StoreDSN))), pgdialect.New())
		return &ownedStore{Store: bunstore.New(db, bunstore.WithLogger(logger)), close: db.Close}, nil

	case "redis":
		opts, err := goredis.ParseURL(cfg.StoreDSN)
		if err != nil {
			return nil, fmt.Errorf("spoold: parse redis url: %w", err)
		}
		client := goredis.NewClient(opts)
		return &ownedStore{Store: redisstore.New(client, redisstore.WithLogger(logger)), close: client.Close}, nil

	case "mongo":
		client, err := mongod.Connect(options.Client().ApplyURI(cfg.StoreDSN))
		if err != nil {
			return nil, fmt.Errorf("spoold: connect mongo: %w", err)
		}
		return &ownedStore{
			Store: mongostore.New(client.Database(cfg.Database), mongostore.WithLogger(logger)),
			close: func() error { return client.Disconnect(context.Background()) },
		}, nil
	}
	return nil, fmt.Errorf("spoold: unknown store driver %q", cfg.StoreDriver)
}

// ownedStore closes the underlying client along with the store.
type ownedStore struct {
	store.Store
	close func() error
}

func (s *ownedStore) Close() error {
	if err := s.Store.Close(); err != nil {
		return err
	}
	return s.close()
}
