package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN         string `env:"DATABASE_DSN,required=true"`
	RedisURL            string `env:"REDIS_URL,required=true"`
	WorkerConcurrency   int    `env:"WORKER_CONCURRENCY,default=8"`
	LockTTLSeconds      int    `env:"LOCK_TTL_SECONDS,default=300"`
	MetricsAddr         string `env:"METRICS_ADDR"`
	LogLevel            string `env:"LOG_LEVEL,default=info"`
	DryRunPersistEvents bool   `env:"DRY_RUN_PERSIST_EVENTS,default=false"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
