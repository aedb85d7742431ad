// Command authcore-loadtest drives the engine with concurrent logins and checks the
// two invariants that only show up under contention: a lockout storm ends with
// the account locked, and one backup code authenticates exactly once.
//
// Configuration comes from loadtest.yaml or AUTHCORE_LOADTEST_* variables. With no
// Redis address it runs against miniredis; with no Postgres DSN accounts stay in
// memory.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/MrEthical07/authcore/store/postgres"
)

const loadPassword = "Load-Test-Passw0rd"

type accountStore interface {
	account.Repository
	Create(ctx context.Context, acct *account.Account) (*account.Account, error)
}

type harness struct {
	engine *authcore.Engine
	store  accountStore
	hasher *password.Argon2
	runID  string
	log    zerolog.Logger
}

func main() {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger := newLogger(cfg.Environment)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error().Err(err).Msg("load test failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *AppConfig, logger zerolog.Logger) error {
	client, closeRedis, err := openRedis(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	store, closeStore, err := openStore(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Argon2.Memory,
		Time:        cfg.Argon2.Time,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		return fmt.Errorf("argon2: %w", err)
	}

	engineCfg := authcore.DefaultConfig()
	engineCfg.Lockout.MaxFailedAttempts = cfg.Lockout.MaxFailedAttempts
	engineCfg.Lockout.Duration = cfg.Lockout.Duration
	engineCfg.Lockout.FailureWindow = cfg.Lockout.FailureWindow
	engineCfg.Metrics.Enabled = true
	engineCfg.Metrics.EnableLatencyHistograms = true

	engine, err := authcore.New().
		WithConfig(engineCfg).
		WithRedis(client).
		WithAccountRepository(store).
		WithPasswordHasher(hasher).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("engine build: %w", err)
	}
	defer engine.Close()

	h := &harness{
		engine: engine,
		store:  store,
		hasher: hasher,
		runID:  strconv.FormatInt(time.Now().UnixNano(), 36),
		log:    logger,
	}

	ids, err := h.seed(ctx, "login", cfg.Load.Accounts)
	if err != nil {
		return err
	}

	loginStats := h.runLoginPhase(ctx, ids, cfg.Load.Logins, cfg.Load.Concurrency)
	logStats(logger, "login", loginStats)

	var failed []string
	if err := h.runLockoutStorm(ctx, cfg.Load.Storm); err != nil {
		logger.Error().Err(err).Msg("lockout storm")
		failed = append(failed, "lockout")
	}
	if err := h.runBackupCodeRace(ctx, cfg.Load.Storm); err != nil {
		logger.Error().Err(err).Msg("backup code race")
		failed = append(failed, "backup_code")
	}

	if cfg.MetricsOut != "" {
		text := prometheus.NewPrometheusExporter(engine).Render()
		if err := os.WriteFile(cfg.MetricsOut, []byte(text), 0o644); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		logger.Info().Str("path", cfg.MetricsOut).Msg("metrics written")
	}

	if len(failed) > 0 {
		return fmt.Errorf("invariant checks failed: %v", failed)
	}
	logger.Info().Msg("all invariant checks passed")
	return nil
}

func openRedis(cfg RedisConfig, logger zerolog.Logger) (redis.UniversalClient, func(), error) {
	addr := cfg.Addr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		logger.Info().Str("addr", mr.Addr()).Msg("using miniredis")
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	logger.Info().Str("addr", addr).Msg("using redis")
	return client, func() { _ = client.Close() }, nil
}

func openStore(ctx context.Context, cfg PostgresConfig, logger zerolog.Logger) (accountStore, func(), error) {
	if cfg.DSN == "" {
		logger.Info().Msg("using in-memory accounts")
		return memory.NewAccounts(), func() {}, nil
	}

	store, err := postgres.Open(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	logger.Info().Msg("using postgres accounts")
	return store, store.Close, nil
}

func (h *harness) seed(ctx context.Context, label string, n int) ([]string, error) {
	hash, err := h.hasher.Hash(loadPassword)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}

	start := time.Now()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		acct, err := h.store.Create(ctx, &account.Account{
			Email:        h.email(label, i),
			PasswordHash: hash,
			Status:       account.Active{},
		})
		if err != nil {
			return nil, fmt.Errorf("seed %s account %d: %w", label, i, err)
		}
		ids = append(ids, acct.ID)
	}
	h.log.Info().Str("label", label).Int("accounts", n).Dur("took", time.Since(start)).Msg("seeded")
	return ids, nil
}

func (h *harness) email(label string, i int) string {
	return fmt.Sprintf("%s-%s-%04d@loadtest.invalid", label, h.runID, i)
}

func (h *harness) runLoginPhase(ctx context.Context, ids []string, ops, concurrency int) phaseStats {
	var (
		wg       sync.WaitGroup
		cursor   int64
		failures int64
		samples  = newSampler(ops)
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(ids))
				t0 := time.Now()
				_, err := h.engine.Login(ctx, authcore.LoginRequest{
					Email:     h.email("login", idx),
					Password:  loadPassword,
					IPAddress: "198.51.100.7",
					UserAgent: "authcore-loadtest",
				})
				samples.add(time.Since(t0))
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), samples.values(), failures)
}

// runLockoutStorm fires concurrent wrong-password logins at one account. The
// account must end Locked and refuse the correct password.
func (h *harness) runLockoutStorm(ctx context.Context, attempts int) error {
	ids, err := h.seed(ctx, "storm", 1)
	if err != nil {
		return err
	}
	email := h.email("storm", 0)

	var invalid, locked, other atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.Login(ctx, authcore.LoginRequest{Email: email, Password: "wrong-" + loadPassword})
			switch {
			case errors.Is(err, authcore.ErrInvalidCredentials):
				invalid.Add(1)
			case errors.Is(err, authcore.ErrAccountLocked):
				locked.Add(1)
			default:
				other.Add(1)
				h.log.Warn().Err(err).Msg("unexpected storm result")
			}
		}()
	}
	wg.Wait()

	h.log.Info().
		Int64("invalid_credentials", invalid.Load()).
		Int64("locked", locked.Load()).
		Int64("other", other.Load()).
		Msg("lockout storm finished")

	status, err := h.engine.AccountStatus(ctx, ids[0])
	if err != nil {
		return err
	}
	if status.Kind() != account.KindLocked {
		return fmt.Errorf("expected locked account after %d failures, got %s", attempts, status.Kind())
	}
	if _, err := h.engine.Login(ctx, authcore.LoginRequest{Email: email, Password: loadPassword}); !errors.Is(err, authcore.ErrAccountLocked) {
		return fmt.Errorf("expected ErrAccountLocked for correct password, got %v", err)
	}
	return nil
}

// runBackupCodeRace presents one backup code from many goroutines at once. Exactly
// one login may succeed.
func (h *harness) runBackupCodeRace(ctx context.Context, workers int) error {
	ids, err := h.seed(ctx, "backup", 1)
	if err != nil {
		return err
	}
	userID := ids[0]

	setup, err := h.engine.SetupTwoFactor(ctx, userID, loadPassword)
	if err != nil {
		return fmt.Errorf("setup two-factor: %w", err)
	}
	code, err := totp.GenerateCodeCustom(setup.Secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return fmt.Errorf("generate totp code: %w", err)
	}
	codes, err := h.engine.VerifyTwoFactor(ctx, userID, code)
	if err != nil {
		return fmt.Errorf("verify two-factor: %w", err)
	}

	var success, rejected, other atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.Login(ctx, authcore.LoginRequest{
				Email:         h.email("backup", 0),
				Password:      loadPassword,
				TwoFactorCode: codes[0],
			})
			switch {
			case err == nil:
				success.Add(1)
			case errors.Is(err, authcore.ErrInvalidTwoFactorCode),
				errors.Is(err, authcore.ErrTwoFactorRateLimited):
				rejected.Add(1)
			default:
				other.Add(1)
				h.log.Warn().Err(err).Msg("unexpected backup code result")
			}
		}()
	}
	wg.Wait()

	h.log.Info().
		Int64("success", success.Load()).
		Int64("rejected", rejected.Load()).
		Int64("other", other.Load()).
		Msg("backup code race finished")

	if success.Load() != 1 {
		return fmt.Errorf("expected exactly one backup code login, got %d", success.Load())
	}
	return nil
}

func logStats(logger zerolog.Logger, name string, s phaseStats) {
	logger.Info().
		Str("phase", name).
		Int("ops", s.ops).
		Int64("failures", s.failures).
		Dur("total", s.total.Round(time.Millisecond)).
		Float64("ops_per_sec", s.opsPerS).
		Dur("p50", s.p50.Round(time.Microsecond)).
		Dur("p95", s.p95.Round(time.Microsecond)).
		Dur("p99", s.p99.Round(time.Microsecond)).
		Msg("phase finished")
}
