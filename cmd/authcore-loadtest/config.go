package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	DSN string
}

type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
}

type LockoutConfig struct {
	MaxFailedAttempts int
	Duration          time.Duration
	FailureWindow     time.Duration
}

type LoadConfig struct {
	Accounts    int
	Concurrency int
	Logins      int
	Storm       int
}

type AppConfig struct {
	Environment string
	// MetricsOut receives the Prometheus rendering of the engine counters when set.
	MetricsOut string
	Redis       RedisConfig
	Postgres    PostgresConfig
	Argon2      Argon2Config
	Lockout     LockoutConfig
	Load        LoadConfig
}

// Load reads loadtest.yaml from the working directory or ./config when present,
// then applies AUTHCORE_LOADTEST_* environment overrides.
func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("loadtest")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("AUTHCORE_LOADTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("metricsout", "")

	// An empty address starts miniredis in-process.
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)

	// An empty DSN keeps accounts in memory.
	v.SetDefault("postgres.dsn", "")

	v.SetDefault("argon2.memory", 8192)
	v.SetDefault("argon2.time", 1)
	v.SetDefault("argon2.parallelism", 1)

	v.SetDefault("lockout.maxfailedattempts", 5)
	v.SetDefault("lockout.duration", "30m")
	v.SetDefault("lockout.failurewindow", "30m")

	v.SetDefault("load.accounts", 50)
	v.SetDefault("load.concurrency", 32)
	v.SetDefault("load.logins", 2000)
	v.SetDefault("load.storm", 64)
}

func (c *AppConfig) validate() error {
	if c.Load.Accounts <= 0 || c.Load.Concurrency <= 0 || c.Load.Logins <= 0 || c.Load.Storm <= 0 {
		return fmt.Errorf("load.accounts, load.concurrency, load.logins and load.storm must be > 0")
	}
	if c.Load.Storm < c.Lockout.MaxFailedAttempts {
		return fmt.Errorf("load.storm (%d) must be at least lockout.maxfailedattempts (%d)", c.Load.Storm, c.Lockout.MaxFailedAttempts)
	}
	return nil
}
