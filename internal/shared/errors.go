package shared

import "errors"

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates a failed PIN or token check.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPermission indicates the store rejected the write; retrying will not help.
	ErrPermission = errors.New("permission denied")
	// ErrTransient indicates a store round trip failed and may be retried.
	ErrTransient = errors.New("transient store error")
)

// Transient wraps err so handlers can classify it as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrTransient, err)
}
