package account

const (
	// PasswordHistorySize is the number of previous hashes retained.
	PasswordHistorySize = 5
	// PasswordReuseWindow is how many of the most recent previous hashes are checked for reuse.
	PasswordReuseWindow = 3
)

// VerifyFunc matches a plaintext password against a stored hash.
type VerifyFunc func(plain, hash string) (bool, error)

// CheckPasswordHistory reports whether plain matches any of the window most recent
// entries in history. A window <= 0 uses PasswordReuseWindow. Verifier errors abort
// the check and are returned unchanged.
func CheckPasswordHistory(verify VerifyFunc, plain string, history []string, window int) (bool, error) {
	if window <= 0 {
		window = PasswordReuseWindow
	}
	if window > len(history) {
		window = len(history)
	}
	for _, h := range history[:window] {
		if h == "" {
			continue
		}
		ok, err := verify(plain, h)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// PushPasswordHistory returns a new history slice with previous prepended, truncated to
// size entries (PasswordHistorySize when size <= 0). The input slice is not modified.
func PushPasswordHistory(history []string, previous string, size int) []string {
	if size <= 0 {
		size = PasswordHistorySize
	}
	out := make([]string, 0, size)
	if previous != "" {
		out = append(out, previous)
	}
	for _, h := range history {
		if len(out) == size {
			break
		}
		out = append(out, h)
	}
	return out
}
