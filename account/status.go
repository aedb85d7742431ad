package account

import (
	"errors"
	"time"
)

// ErrUnknownStatus is returned when a status value is not one of the declared variants.
var ErrUnknownStatus = errors.New("unknown account status")

// StatusKind names a Status variant without its payload.
type StatusKind uint8

const (
	KindUnverified StatusKind = iota + 1
	KindActive
	KindLocked
	KindSuspended
	KindDeleted
)

func (k StatusKind) String() string {
	switch k {
	case KindUnverified:
		return "unverified"
	case KindActive:
		return "active"
	case KindLocked:
		return "locked"
	case KindSuspended:
		return "suspended"
	case KindDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ParseStatusKind is the inverse of StatusKind.String.
func ParseStatusKind(s string) (StatusKind, error) {
	switch s {
	case "unverified":
		return KindUnverified, nil
	case "active":
		return KindActive, nil
	case "locked":
		return KindLocked, nil
	case "suspended":
		return KindSuspended, nil
	case "deleted":
		return KindDeleted, nil
	default:
		return 0, ErrUnknownStatus
	}
}

// Status is the account lifecycle state. The set of variants is closed.
type Status interface {
	Kind() StatusKind
	isStatus()
}

// Unverified accounts exist but have not confirmed their email address.
type Unverified struct {
	EmailVerificationToken string
	TokenExpiry            time.Time
}

// Active accounts may authenticate.
type Active struct{}

// Locked accounts were locked after repeated failures or by an operator.
type Locked struct {
	Reason         string
	LockedAt       time.Time
	FailedAttempts int
}

// Suspended accounts were disabled by an operator.
type Suspended struct {
	Reason      string
	SuspendedAt time.Time
}

// Deleted accounts are retained as tombstones.
type Deleted struct {
	DeletedAt time.Time
}

func (Unverified) Kind() StatusKind { return KindUnverified }
func (Active) Kind() StatusKind     { return KindActive }
func (Locked) Kind() StatusKind     { return KindLocked }
func (Suspended) Kind() StatusKind  { return KindSuspended }
func (Deleted) Kind() StatusKind    { return KindDeleted }

func (Unverified) isStatus() {}
func (Active) isStatus()     {}
func (Locked) isStatus()     {}
func (Suspended) isStatus()  {}
func (Deleted) isStatus()    {}

// LockExpiry returns when a lock placed at l.LockedAt lapses. The zero time is
// returned when duration is not positive, meaning the lock never lapses on its own.
func (l Locked) LockExpiry(duration time.Duration) time.Time {
	if duration <= 0 {
		return time.Time{}
	}
	return l.LockedAt.Add(duration)
}

// Lapsed reports whether a lock of the given duration has expired at now.
func (l Locked) Lapsed(now time.Time, duration time.Duration) bool {
	if duration <= 0 {
		return false
	}
	return !now.Before(l.LockedAt.Add(duration))
}
