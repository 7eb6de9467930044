package storage

import (
	"errors"
	"fmt"
)

// Fetch failure kinds. FetchError matches exactly one of them via errors.Is.
var (
	ErrNotFound  = errors.New("object not found")
	ErrForbidden = errors.New("object access forbidden")
	ErrTransport = errors.New("storage transport failure")
	ErrTooLarge  = errors.New("object too large")
)

// FetchError describes a failed object fetch. Status is the upstream HTTP
// status when there was one.
type FetchError struct {
	Key    string
	Kind   error
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %v", e.Key, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Is(target error) bool {
	return target == e.Kind
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func notFound(key string, status int) error {
	return &FetchError{Key: key, Kind: ErrNotFound, Status: status}
}

func forbidden(key string, status int) error {
	return &FetchError{Key: key, Kind: ErrForbidden, Status: status}
}

func transport(key string, status int, err error) error {
	return &FetchError{Key: key, Kind: ErrTransport, Status: status, Err: err}
}

func tooLarge(key string, limit int64) error {
	return &FetchError{Key: key, Kind: ErrTooLarge, Err: fmt.Errorf("limit is %d bytes", limit)}
}
