package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	goCred "github.com/MrEthical07/goCred"
	"github.com/MrEthical07/goCred/internal/config"
	"github.com/MrEthical07/goCred/userstore/memory"
	"github.com/MrEthical07/goCred/userstore/postgres"
	"github.com/MrEthical07/goCred/userstore/sqlite"
)

type redisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	PingTimeout  time.Duration
}

func (c redisConfig) withDefaults() redisConfig {
	out := c
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 20
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// openRedis builds a client and checks connectivity with PING.
func openRedis(ctx context.Context, cfg redisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// directory is what the server needs from any account store.
type directory interface {
	goCred.UserDirectory
	Ping(ctx context.Context) error
	Close() error
}

type memoryDirectory struct {
	*memory.Directory
}

func (memoryDirectory) Close() error { return nil }

// openDirectory opens the configured store and applies pending migrations.
func openDirectory(ctx context.Context, cfg *config.Config) (directory, error) {
	switch cfg.DirectoryDriver {
	case config.DriverPostgres:
		dir, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := dir.ApplyMigrations(); err != nil {
			_ = dir.Close()
			return nil, err
		}
		return dir, nil
	case config.DriverSQLite:
		dir, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := dir.ApplyMigrations(); err != nil {
			_ = dir.Close()
			return nil, err
		}
		return dir, nil
	case config.DriverMemory:
		return memoryDirectory{memory.New()}, nil
	default:
		return nil, fmt.Errorf("unknown directory driver %q", cfg.DirectoryDriver)
	}
}
