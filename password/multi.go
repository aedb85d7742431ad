package password

import "errors"

// ErrUnknownScheme is returned when no configured scheme recognizes a digest.
var ErrUnknownScheme = errors.New("unknown password hash scheme")

// Scheme is a hash format that can recognize and verify its own digests.
type Scheme interface {
	Scheme(encodedHash string) bool
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// PrimaryScheme is a Scheme that also produces new digests.
type PrimaryScheme interface {
	Scheme
	Hash(password string) (string, error)
}

// Multi verifies digests of any configured scheme and always hashes with the primary.
type Multi struct {
	primary PrimaryScheme
	legacy  []Scheme
}

// NewMulti builds a dispatcher over primary plus any legacy schemes.
func NewMulti(primary PrimaryScheme, legacy ...Scheme) *Multi {
	return &Multi{primary: primary, legacy: legacy}
}

func (m *Multi) Hash(password string) (string, error) {
	return m.primary.Hash(password)
}

func (m *Multi) Verify(password, encodedHash string) (bool, error) {
	s, err := m.schemeFor(encodedHash)
	if err != nil {
		return false, err
	}
	return s.Verify(password, encodedHash)
}

// NeedsUpgrade reports true for legacy digests and for primary digests with weaker parameters.
func (m *Multi) NeedsUpgrade(encodedHash string) (bool, error) {
	if m.primary.Scheme(encodedHash) {
		return m.primary.NeedsUpgrade(encodedHash)
	}
	if _, err := m.schemeFor(encodedHash); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Multi) schemeFor(encodedHash string) (Scheme, error) {
	if m.primary.Scheme(encodedHash) {
		return m.primary, nil
	}
	for _, s := range m.legacy {
		if s.Scheme(encodedHash) {
			return s, nil
		}
	}
	return nil, ErrUnknownScheme
}
