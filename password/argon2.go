package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPassBytes          = 10
	argon2Prefix          = "$argon2id$"

	// DefaultMaxPasswordBytes bounds hashing cost when Config.MaxPasswordBytes is zero.
	DefaultMaxPasswordBytes = 1024
)

var (
	// ErrMalformedHash is returned when a stored digest cannot be parsed.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrPasswordTooShort is returned by Hash for inputs under the minimum byte length.
	ErrPasswordTooShort = errors.New("password must be at least 10 bytes")
	// ErrPasswordTooLong is returned by Hash and Verify for inputs over MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
)

// Config holds Argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MaxPasswordBytes int
}

// Argon2 hashes and verifies passwords as PHC-encoded Argon2id digests, e.g.
// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{config: cfg}, nil
}

// Hash derives a new digest with a random salt. Passwords are hashed as raw bytes
// with no Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < minPassBytes {
		return "", ErrPasswordTooShort
	}
	if len(password) > a.config.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	d := digest{
		memory:      a.config.Memory,
		time:        a.config.Time,
		parallelism: a.config.Parallelism,
		salt:        make([]byte, a.config.SaltLength),
	}
	if _, err := io.ReadFull(rand.Reader, d.salt); err != nil {
		return "", err
	}
	d.key = d.derive(password, a.config.KeyLength)
	return d.String(), nil
}

// Verify reports whether password matches encodedHash. The digest's own cost
// parameters are used, so older hashes keep verifying after a config change.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	d, err := parseDigest(encodedHash)
	if err != nil {
		return false, err
	}
	computed := d.derive(password, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(computed, d.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker parameters
// than a, or with a different key length.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	d, err := parseDigest(encodedHash)
	if err != nil {
		return false, err
	}
	weaker := d.memory < a.config.Memory ||
		d.time < a.config.Time ||
		d.parallelism < a.config.Parallelism
	return weaker || uint32(len(d.key)) != a.config.KeyLength, nil
}

// Scheme reports whether encodedHash looks like an Argon2id PHC string.
func (a *Argon2) Scheme(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, argon2Prefix)
}

// digest is one decoded PHC string.
type digest struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (d digest) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), d.salt, d.time, d.memory, d.parallelism, keyLen)
}

func (d digest) String() string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix,
		argon2.Version,
		d.memory, d.time, d.parallelism,
		base64.StdEncoding.EncodeToString(d.salt),
		base64.StdEncoding.EncodeToString(d.key),
	)
}

func parseDigest(encoded string) (digest, error) {
	d, err := decodeDigest(encoded)
	if err != nil {
		return digest{}, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return d, nil
}

func decodeDigest(encoded string) (digest, error) {
	if !strings.HasPrefix(encoded, argon2Prefix) {
		return digest{}, errors.New("not an argon2id digest")
	}
	fields := strings.Split(strings.TrimPrefix(encoded, argon2Prefix), "$")
	if len(fields) != 4 {
		return digest{}, errors.New("invalid PHC format")
	}

	version, ok := strings.CutPrefix(fields[0], "v=")
	if !ok {
		return digest{}, errors.New("missing argon2 version")
	}
	if v, err := strconv.Atoi(version); err != nil || v != argon2.Version {
		return digest{}, errors.New("unsupported argon2 version")
	}

	var d digest
	if err := d.setParams(fields[1]); err != nil {
		return digest{}, err
	}

	var err error
	if d.salt, err = base64.StdEncoding.DecodeString(fields[2]); err != nil {
		return digest{}, errors.New("invalid salt encoding")
	}
	if uint32(len(d.salt)) < minSaltLength {
		return digest{}, errors.New("invalid salt length")
	}
	if d.key, err = base64.StdEncoding.DecodeString(fields[3]); err != nil {
		return digest{}, errors.New("invalid hash encoding")
	}
	if len(d.key) == 0 {
		return digest{}, errors.New("invalid hash length")
	}
	return d, nil
}

// setParams parses "m=<kib>,t=<passes>,p=<lanes>". Every key must appear once.
func (d *digest) setParams(field string) error {
	pairs := strings.Split(field, ",")
	if len(pairs) != 3 {
		return errors.New("invalid parameter format")
	}

	seen := make(map[string]bool, 3)
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || seen[name] {
			return errors.New("invalid parameter entry")
		}
		seen[name] = true

		switch name {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < minMemoryKB {
				return errors.New("invalid memory parameter")
			}
			d.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < minTimeCost {
				return errors.New("invalid time parameter")
			}
			d.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || uint8(v) < minParallelism {
				return errors.New("invalid parallelism parameter")
			}
			d.parallelism = uint8(v)
		default:
			return errors.New("unsupported parameter")
		}
	}
	return nil
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("password memory must be >= %d KiB", minMemoryKB)
	case c.Time < minTimeCost:
		return errors.New("password time must be >= 1")
	case c.Parallelism < minParallelism:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("password key length must be >= %d", minKeyLength)
	case c.MaxPasswordBytes < 0, c.MaxPasswordBytes > 0 && c.MaxPasswordBytes < minPassBytes:
		return fmt.Errorf("password max bytes must be 0 or >= %d", minPassBytes)
	}
	return nil
}
