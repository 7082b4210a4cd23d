package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrTenantUnresolved = errors.New("tenant unresolved")
)

// SyncErrorKind is the per-event error taxonomy reported back to the client.
// Only store_unavailable and deadline_exceeded are worth retrying.
type SyncErrorKind string

const (
	SyncErrInvalidPayload   SyncErrorKind = "invalid_payload"
	SyncErrInvalidReference SyncErrorKind = "invalid_reference"
	SyncErrStoreUnavailable SyncErrorKind = "store_unavailable"
	SyncErrDeadlineExceeded SyncErrorKind = "deadline_exceeded"
)

type SyncError struct {
	Kind   SyncErrorKind
	Detail string
}

func (e *SyncError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func InvalidPayloadf(format string, args ...any) *SyncError {
	return &SyncError{Kind: SyncErrInvalidPayload, Detail: fmt.Sprintf(format, args...)}
}

func InvalidReferencef(format string, args ...any) *SyncError {
	return &SyncError{Kind: SyncErrInvalidReference, Detail: fmt.Sprintf(format, args...)}
}

// SyncKind classifies err for the per-event result shape. Declared kinds
// pass through; anything else is an infrastructure failure.
func SyncKind(err error) SyncErrorKind {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return SyncErrStoreUnavailable
}
