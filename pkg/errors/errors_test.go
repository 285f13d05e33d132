package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorMessage(t *testing.T) {
	withCause := New(CodeInternal, "something broke", errors.New("disk full"))
	assert.Equal(t, "INTERNAL: something broke: disk full", withCause.Error())

	withoutCause := New(CodeNotFound, "key missing", nil)
	assert.Equal(t, "NOT_FOUND: key missing", withoutCause.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := New(CodeInternal, "something broke", cause)
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestWrap_PreservesCodeOfExistingAppError(t *testing.T) {
	inner := NotFound("wood price missing", nil)
	wrapped := Wrap(inner, "registry get failed")
	assert.Equal(t, CodeNotFound, wrapped.Code)
	assert.Contains(t, wrapped.Message, "registry get failed")
	assert.Contains(t, wrapped.Message, "wood price missing")
}

func TestWrap_NonAppErrorBecomesInternal(t *testing.T) {
	wrapped := Wrap(errors.New("boom"), "request failed")
	assert.Equal(t, CodeInternal, wrapped.Code)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "irrelevant"))
}

func TestConstructors_SetExpectedCodes(t *testing.T) {
	cases := []struct {
		err  *AppError
		code string
	}{
		{NotFound("x", nil), CodeNotFound},
		{InvalidArgument("x", nil), CodeInvalidArgument},
		{Conflict("x", nil), CodeConflict},
		{Forbidden("x", nil), CodeForbidden},
		{Internal("x", nil), CodeInternal},
		{Unavailable("x", nil), CodeUnavailable},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, c.err.Code)
	}
}

func TestIsAs_InteroperateWithStandardLibrary(t *testing.T) {
	sentinel := NotFound("missing", nil)
	wrapped := Wrap(sentinel, "lookup failed")

	var target *AppError
	assert.True(t, As(wrapped, &target))
	assert.Equal(t, CodeNotFound, target.Code)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(NotFound("x", nil)))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain error")))
}
