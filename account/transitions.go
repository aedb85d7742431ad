package account

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a status change is not permitted.
var ErrInvalidTransition = errors.New("invalid account status transition")

var transitions = map[StatusKind][]StatusKind{
	KindUnverified: {KindActive, KindDeleted},
	KindActive:     {KindLocked, KindSuspended, KindDeleted},
	KindLocked:     {KindActive, KindSuspended, KindDeleted},
	KindSuspended:  {KindActive, KindDeleted},
	KindDeleted:    nil,
}

// CanTransition reports whether an account in status from may move to the to kind.
func CanTransition(from Status, to StatusKind) error {
	if from == nil {
		return ErrUnknownStatus
	}
	allowed, ok := transitions[from.Kind()]
	if !ok {
		return ErrUnknownStatus
	}
	for _, k := range allowed {
		if k == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from.Kind(), to)
}
