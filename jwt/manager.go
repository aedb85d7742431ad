package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod names the access token signature algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

const (
	maxLeeway           = 2 * time.Minute
	defaultMaxFutureIAT = 10 * time.Minute
)

var (
	// ErrInvalidConfig is wrapped by every NewManager failure.
	ErrInvalidConfig = errors.New("jwt: invalid config")
	// ErrInvalidToken is wrapped by every ParseAccess failure.
	ErrInvalidToken = errors.New("jwt: invalid access token")

	errMissingKID = errors.New("missing kid")
	errUnknownKID = errors.New("unknown kid")
)

// Config configures a Manager. Now defaults to time.Now and drives both issuing
// and validation.
//
// VerifyKeys enables key rotation: when set, every token must name one of its
// kids. KeyID is stamped on issued tokens.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RequireIAT    bool
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
	Now           func() time.Time
}

// AccessClaims are the claims carried by an access token. SID ties the token to the
// session it was minted for.
type AccessClaims struct {
	UID  string `json:"uid"`
	SID  string `json:"sid"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and parses access tokens bound to a session.
type Manager struct {
	ttl          time.Duration
	issuer       string
	audience     string
	kid          string
	maxFutureIAT time.Duration
	now          func() time.Time

	method  jwt.SigningMethod
	signKey any
	verify  map[string]any
	// fallback verifies tokens when no rotation set is configured.
	fallback any
	parser   *jwt.Parser
}

// NewManager validates cfg and decodes its keys up front.
func NewManager(cfg Config) (*Manager, error) {
	if err := checkTimings(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	m := &Manager{
		ttl:          cfg.AccessTTL,
		issuer:       cfg.Issuer,
		audience:     cfg.Audience,
		kid:          strings.TrimSpace(cfg.KeyID),
		maxFutureIAT: cfg.MaxFutureIAT,
		now:          cfg.Now,
	}
	if err := m.loadKeys(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.RequireIAT {
		opts = append(opts, jwt.WithIssuedAt())
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}
	m.parser = jwt.NewParser(opts...)
	return m, nil
}

func checkTimings(cfg *Config) error {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = defaultMaxFutureIAT
	}
	switch {
	case cfg.AccessTTL <= 0:
		return errors.New("access TTL must be positive")
	case cfg.Leeway < 0 || cfg.Leeway > maxLeeway:
		return fmt.Errorf("leeway must be within [0, %s]", maxLeeway)
	case cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour:
		return errors.New("max future iat must be within [0, 24h]")
	}
	return nil
}

func (m *Manager) loadKeys(cfg Config) error {
	var decodeVerify func([]byte) (any, error)

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return errors.New("hs256 requires a shared secret")
		}
		m.method = jwt.SigningMethodHS256
		m.signKey = cfg.PrivateKey
		m.fallback = cfg.PrivateKey
		decodeVerify = func(b []byte) (any, error) { return b, nil }

	case MethodEd25519:
		m.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return err
			}
			m.signKey = priv
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return err
			}
			m.fallback = pub
		}
		if m.fallback == nil && len(cfg.VerifyKeys) == 0 {
			return errors.New("ed25519 requires a public key or verify key set")
		}
		decodeVerify = func(b []byte) (any, error) { return parseEdPublicKey(b) }

	default:
		return fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}

	if len(cfg.VerifyKeys) == 0 {
		return nil
	}
	m.verify = make(map[string]any, len(cfg.VerifyKeys))
	for kid, raw := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return errors.New("verify key set contains an empty kid")
		}
		key, err := decodeVerify(raw)
		if err != nil {
			return fmt.Errorf("verify key %q: %w", kid, err)
		}
		m.verify[kid] = key
	}
	if m.kid != "" {
		if _, ok := m.verify[m.kid]; !ok {
			return fmt.Errorf("kid %q is not in the verify key set", m.kid)
		}
	}
	return nil
}

// CreateAccess signs an access token for uid and session sid.
func (m *Manager) CreateAccess(uid, sid, role string) (string, error) {
	if uid == "" || sid == "" {
		return "", errors.New("jwt: access token requires uid and sid")
	}
	if m.signKey == nil {
		return "", errors.New("jwt: manager has no signing key")
	}

	now := m.now()
	claims := AccessClaims{
		UID:  uid,
		SID:  sid,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.kid != "" {
		token.Header["kid"] = m.kid
	}
	return token.SignedString(m.signKey)
}

// ParseAccess verifies tokenStr and returns its claims. Errors wrap ErrInvalidToken.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := m.parser.ParseWithClaims(tokenStr, claims, m.keyFor)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.IssuedAt != nil && m.maxFutureIAT > 0 &&
		claims.IssuedAt.After(m.now().Add(m.maxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrInvalidToken)
	}
	return claims, nil
}

// keyFor picks the verification key from the token's kid header.
func (m *Manager) keyFor(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)

	if m.verify != nil {
		if kid == "" {
			return nil, errMissingKID
		}
		key, ok := m.verify[kid]
		if !ok {
			return nil, errUnknownKID
		}
		return key, nil
	}

	if m.kid != "" && kid != m.kid {
		if kid == "" {
			return nil, errMissingKID
		}
		return nil, errUnknownKID
	}
	if m.fallback == nil {
		return nil, errors.New("no verification key")
	}
	return m.fallback, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return priv, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return pub, nil
}
