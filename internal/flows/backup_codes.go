package flows

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/MrEthical07/authcore/internal"
)

const BackupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateBackupCodes returns count display-formatted codes and their storage digests
// for userID, index-aligned.
func GenerateBackupCodes(userID string, count, length int, randomIndex func(int) (int, error)) ([]string, []string, error) {
	if count <= 0 || length <= 0 {
		return nil, nil, errors.New("backup code count and length must be > 0")
	}

	codes := make([]string, 0, count)
	digests := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for len(codes) < count {
		raw, err := NewBackupCode(length, randomIndex)
		if err != nil {
			return nil, nil, err
		}
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		codes = append(codes, FormatBackupCode(raw))
		digests = append(digests, BackupCodeDigest(userID, raw))
	}
	return codes, digests, nil
}

func NewBackupCode(length int, randomIndex func(int) (int, error)) (string, error) {
	if randomIndex == nil {
		randomIndex = internal.RandomIndex
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := randomIndex(len(BackupCodeAlphabet))
		if err != nil {
			return "", err
		}
		b.WriteByte(BackupCodeAlphabet[n])
	}
	return b.String(), nil
}

// FormatBackupCode splits codes of 8 or more characters into two dash-separated halves.
func FormatBackupCode(code string) string {
	n := len(code)
	if n < 8 {
		return code
	}
	mid := n / 2
	return code[:mid] + "-" + code[mid:]
}

func CanonicalizeBackupCode(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// BackupCodeDigest is the hex SHA-256 of userID and the canonical code. Binding the
// user id keeps equal codes of different accounts from sharing a digest.
func BackupCodeDigest(userID, canonicalCode string) string {
	data := make([]byte, 0, len(userID)+1+len(canonicalCode))
	data = append(data, userID...)
	data = append(data, 0)
	data = append(data, canonicalCode...)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
