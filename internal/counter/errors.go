package counter

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey indicates a non-positive identifier was handed to a store.
	ErrInvalidKey = errors.New("invalid key")

	// ErrUnavailable indicates a transient storage failure. Safe to retry.
	ErrUnavailable = errors.New("store unavailable")

	// ErrCorrupt indicates the stored record cannot be read or incremented.
	ErrCorrupt = errors.New("record corrupt")

	// ErrNotFound is returned by Get when no record exists.
	ErrNotFound = errors.New("record not found")
)

type Kind int

const (
	KindInvalidKey Kind = iota + 1
	KindUnavailable
	KindCorrupt
)

func (k Kind) String() string {
	switch k {
	case KindInvalidKey:
		return "invalid_key"
	case KindUnavailable:
		return "unavailable"
	case KindCorrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidKey:
		return ErrInvalidKey
	case KindUnavailable:
		return ErrUnavailable
	case KindCorrupt:
		return ErrCorrupt
	default:
		return nil
	}
}

// StoreError is the error every Store returns from UpsertIncrement.
type StoreError struct {
	Kind Kind
	ID   int64
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: id=%d", e.Kind.sentinel(), e.ID)
	}
	return fmt.Sprintf("%s: id=%d: %v", e.Kind.sentinel(), e.ID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *StoreError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func InvalidKey(id int64) error {
	return &StoreError{Kind: KindInvalidKey, ID: id}
}

func Unavailable(id int64, err error) error {
	return &StoreError{Kind: KindUnavailable, ID: id, Err: err}
}

func Corrupt(id int64, err error) error {
	return &StoreError{Kind: KindCorrupt, ID: id, Err: err}
}

// KindOf returns the kind of a StoreError in err's chain, or 0.
func KindOf(err error) Kind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// IsContextError reports whether err came from a cancelled or expired context.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
