// Package memory is an in-process account.Repository. It is used by tests, the load
// test, and the HTTP example.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/account"
)

var _ account.Repository = (*Accounts)(nil)

// Accounts keeps accounts in maps guarded by one RWMutex. Every value handed out is
// a deep copy.
type Accounts struct {
	accounts map[string]*account.Account
	emailIDs map[string]string // normalized email to account id
	lock     sync.RWMutex
}

func NewAccounts() *Accounts {
	return &Accounts{
		accounts: make(map[string]*account.Account),
		emailIDs: make(map[string]string),
	}
}

// Create stores a new account. An empty ID is filled with a random UUID and Version
// starts at 1. The stored copy is returned.
func (r *Accounts) Create(_ context.Context, acct *account.Account) (*account.Account, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	stored := acct.Clone()
	stored.Email = account.NormalizeEmail(stored.Email)
	if _, exists := r.emailIDs[stored.Email]; exists {
		return nil, account.ErrDuplicateEmail
	}
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.Status == nil {
		stored.Status = account.Active{}
	}
	if stored.TwoFactor == nil {
		stored.TwoFactor = account.TwoFactorDisabled{}
	}
	if stored.Role == "" {
		stored.Role = account.RoleCustomer
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	stored.Version = 1

	r.accounts[stored.ID] = stored
	r.emailIDs[stored.Email] = stored.ID
	return stored.Clone(), nil
}

func (r *Accounts) FindByEmail(_ context.Context, email string) (*account.Account, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	id, ok := r.emailIDs[account.NormalizeEmail(email)]
	if !ok {
		return nil, account.ErrNotFound
	}
	return r.accounts[id].Clone(), nil
}

func (r *Accounts) FindByID(_ context.Context, id string) (*account.Account, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	stored, ok := r.accounts[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return stored.Clone(), nil
}

func (r *Accounts) Update(_ context.Context, acct *account.Account) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	stored, ok := r.accounts[acct.ID]
	if !ok {
		return account.ErrNotFound
	}
	if stored.Version != acct.Version {
		return account.ErrConflict
	}

	next := acct.Clone()
	next.Email = account.NormalizeEmail(next.Email)
	if next.Email != stored.Email {
		if owner, taken := r.emailIDs[next.Email]; taken && owner != next.ID {
			return account.ErrDuplicateEmail
		}
		delete(r.emailIDs, stored.Email)
		r.emailIDs[next.Email] = next.ID
	}
	next.Version = stored.Version + 1
	r.accounts[next.ID] = next
	acct.Version = next.Version
	return nil
}

func (r *Accounts) RecordLogin(_ context.Context, id string, at time.Time, ip string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	stored, ok := r.accounts[id]
	if !ok {
		return account.ErrNotFound
	}
	t := at
	stored.LastLoginAt = &t
	stored.LastLoginIP = ip
	return nil
}

// ConsumeBackupCode removes digest under the write lock, so exactly one of any number
// of concurrent callers presenting the same code succeeds. It advances Version.
func (r *Accounts) ConsumeBackupCode(_ context.Context, id, digest string) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	stored, ok := r.accounts[id]
	if !ok {
		return 0, account.ErrNotFound
	}
	enabled, ok := stored.TwoFactor.(account.TwoFactorEnabled)
	if !ok {
		return 0, account.ErrBackupCodeNotFound
	}

	idx := -1
	for i, c := range enabled.BackupCodes {
		if c == digest {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, account.ErrBackupCodeNotFound
	}

	remaining := make([]string, 0, len(enabled.BackupCodes)-1)
	remaining = append(remaining, enabled.BackupCodes[:idx]...)
	remaining = append(remaining, enabled.BackupCodes[idx+1:]...)
	enabled.BackupCodes = remaining
	stored.TwoFactor = enabled
	stored.Version++
	return len(remaining), nil
}

// Len returns the number of stored accounts.
func (r *Accounts) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.accounts)
}
