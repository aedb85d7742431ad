package authcore

import (
	"errors"
	"time"

	"github.com/MrEthical07/authcore/account"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const dummyPassword = "authcore-timing-equalizer"

// Builder assembles an Engine. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts account.Repository
	sessions session.Repository
	counter  FailureCounter
	attempts SecondFactorLimiter
	hasher   PasswordHasher
	notifier Notifier

	auditSink AuditSink
	logger    zerolog.Logger
	now       func() time.Time

	sessionOpts []session.Option

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: zerolog.Nop(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs sessions and the failure counter with client unless explicit
// repositories are supplied.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountRepository is required.
func (b *Builder) WithAccountRepository(repo account.Repository) *Builder {
	b.accounts = repo
	return b
}

func (b *Builder) WithSessionRepository(repo session.Repository) *Builder {
	b.sessions = repo
	return b
}

// WithFailureCounter replaces the Redis failure counter.
func (b *Builder) WithFailureCounter(counter FailureCounter) *Builder {
	b.counter = counter
	return b
}

// WithSecondFactorLimiter replaces the Redis second-factor attempt limiter.
func (b *Builder) WithSecondFactorLimiter(limiter SecondFactorLimiter) *Builder {
	b.attempts = limiter
	return b
}

// WithPasswordHasher replaces the Argon2id hasher built from Config.Password.
func (b *Builder) WithPasswordHasher(hasher PasswordHasher) *Builder {
	b.hasher = hasher
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the wall clock for every time-dependent decision, sessions
// included.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithSessionOptions passes extra options to the session manager.
func (b *Builder) WithSessionOptions(opts ...session.Option) *Builder {
	b.sessionOpts = append(b.sessionOpts, opts...)
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.accounts == nil {
		return nil, errors.New("account repository required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- SESSION STORE --------
	sessions := b.sessions
	if sessions == nil {
		if b.redis == nil {
			return nil, errors.New("redis client or session repository required")
		}
		sessions = session.NewStore(b.redis, cfg.Session.RedisPrefix)
	}
	opts := append([]session.Option{session.WithClock(now)}, b.sessionOpts...)
	manager := session.NewManager(sessions, session.Config{
		TTL:           cfg.Session.TTL,
		RememberMeTTL: cfg.Session.RememberMeTTL,
	}, opts...)

	// -------- FAILURE COUNTER --------
	counter := b.counter
	if counter == nil && b.redis != nil {
		counter = limiters.NewFailureCounter(b.redis, limiters.FailureCounterConfig{
			Prefix: cfg.Session.RedisPrefix,
			Window: cfg.Lockout.FailureWindow,
		})
	}

	attempts := b.attempts
	if attempts == nil && b.redis != nil {
		attempts = limiters.NewAttemptLimiter(b.redis, limiters.AttemptLimiterConfig{
			Prefix:      cfg.Session.RedisPrefix,
			MaxAttempts: cfg.TwoFactor.MaxAttempts,
			Cooldown:    cfg.TwoFactor.AttemptCooldown,
		})
	}

	// -------- PASSWORD --------
	hasher := b.hasher
	if hasher == nil {
		ph, err := password.NewArgon2(password.Config{
			Memory:           cfg.Password.Memory,
			Time:             cfg.Password.Time,
			Parallelism:      cfg.Password.Parallelism,
			SaltLength:       cfg.Password.SaltLength,
			KeyLength:        cfg.Password.KeyLength,
			MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
		})
		if err != nil {
			return nil, err
		}
		if cfg.Password.AcceptBcrypt {
			legacy, err := password.NewBcrypt(0)
			if err != nil {
				return nil, err
			}
			hasher = password.NewMulti(ph, legacy)
		} else {
			hasher = ph
		}
	}

	var dummyHash string
	if cfg.Security.EqualizeLoginTiming {
		h, err := hasher.Hash(dummyPassword)
		if err != nil {
			return nil, err
		}
		dummyHash = h
	}

	engine := &Engine{
		config:    cfg,
		accounts:  b.accounts,
		sessions:  manager,
		counter:   counter,
		attempts:  attempts,
		hasher:    hasher,
		policy:    cfg.Password.Policy,
		totp:      newTOTPManager(cfg.TwoFactor),
		lockout:   LockoutPolicy{MaxFailedAttempts: cfg.Lockout.MaxFailedAttempts, Reason: cfg.Lockout.Reason},
		notifier:  b.notifier,
		metrics:   NewMetrics(cfg.Metrics),
		logger:    b.logger,
		now:       now,
		dummyHash: dummyHash,
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	// -------- JWT --------
	if cfg.JWT.Enabled {
		jm, err := jwt.NewManager(jwt.Config{
			AccessTTL:     cfg.JWT.AccessTTL,
			SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
			PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
			PublicKey:     cloneBytes(cfg.JWT.PublicKey),
			Issuer:        cfg.JWT.Issuer,
			Now:           now,
		})
		if err != nil {
			engine.Close()
			return nil, err
		}
		engine.jwtManager = jm
	}

	b.built = true

	return engine, nil
}
