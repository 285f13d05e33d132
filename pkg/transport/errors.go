package transport

import "github.com/chris-alexander-pop/gridswarm/pkg/errors"

// Error codes for transport operations.
const (
	CodeConnectionFailed = "TRANSPORT_CONN_FAILED"
	CodePublishFailed    = "TRANSPORT_PUBLISH_FAILED"
	CodeSubscribeFailed  = "TRANSPORT_SUBSCRIBE_FAILED"
	CodeKVMissing        = "TRANSPORT_KV_MISSING"
	CodeKVFailed         = "TRANSPORT_KV_FAILED"
	CodeClosed           = "TRANSPORT_CLOSED"
)

// ErrConnectionFailed wraps a backend connection failure.
func ErrConnectionFailed(err error) *errors.AppError {
	return errors.New(CodeConnectionFailed, "failed to connect to transport backend", err)
}

// ErrPublishFailed wraps a publish failure. Surfaced synchronously to the
// caller per spec §7 (transport errors on publish are never swallowed).
func ErrPublishFailed(channel string, err error) *errors.AppError {
	return errors.New(CodePublishFailed, "failed to publish on "+channel, err)
}

// ErrSubscribeFailed wraps a subscribe failure.
func ErrSubscribeFailed(pattern string, err error) *errors.AppError {
	return errors.New(CodeSubscribeFailed, "failed to subscribe to "+pattern, err)
}

// ErrKVMissing indicates a KV key was not found.
func ErrKVMissing(key string) *errors.AppError {
	return errors.New(CodeKVMissing, "key not found: "+key, nil)
}

// ErrKVFailed wraps a KV operation failure.
func ErrKVFailed(op, key string, err error) *errors.AppError {
	return errors.New(CodeKVFailed, "kv "+op+" failed for "+key, err)
}

// ErrClosed indicates an operation on a closed transport.
func ErrClosed() *errors.AppError {
	return errors.New(CodeClosed, "transport is closed", nil)
}
