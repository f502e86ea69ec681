package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}

func TestWrap(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, "Conn", "Send", "write frame")

	require.Error(t, err)
	assert.Equal(t, "Conn.Send: write frame failed: boom", err.Error())
	assert.True(t, stderrors.Is(err, base))

	assert.NoError(t, Wrap(nil, "Conn", "Send", "write frame"))
}

func TestWrapClassified(t *testing.T) {
	base := stderrors.New("boom")

	tr := WrapTransient(base, "Conn", "Send", "write frame")
	inv := WrapInvalid(base, "Config", "Validate", "check url")
	fat := WrapFatal(base, "Conn", "On", "validate event")

	assert.True(t, IsTransient(tr))
	assert.False(t, IsInvalid(tr))
	assert.True(t, IsInvalid(inv))
	assert.True(t, IsFatal(fat))
	assert.False(t, IsTransient(fat))

	// Context survives wrapping and the chain stays unwrappable.
	var ce *ClassifiedError
	require.True(t, stderrors.As(tr, &ce))
	assert.Equal(t, "Conn", ce.Component)
	assert.Equal(t, "Send", ce.Operation)
	assert.True(t, stderrors.Is(tr, base))

	assert.NoError(t, WrapTransient(nil, "Conn", "Send", "write frame"))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorTransient, Classify(stderrors.New("anything")))
	assert.Equal(t, ErrorInvalid, Classify(WrapInvalid(stderrors.New("x"), "c", "m", "a")))
	assert.Equal(t, ErrorFatal, Classify(WrapFatal(stderrors.New("x"), "c", "m", "a")))
}

func TestSentinelClassification(t *testing.T) {
	assert.True(t, IsTransient(ErrNoConnection))
	assert.True(t, IsTransient(ErrConnectionLost))
	assert.True(t, IsTransient(ErrConnectionTimeout))
	assert.True(t, IsInvalid(ErrInvalidConfig))
	assert.True(t, IsInvalid(ErrMissingConfig))
	assert.True(t, IsFatal(ErrUnknownEvent))

	// Wrapped sentinels classify the same way.
	assert.True(t, IsTransient(fmt.Errorf("send: %w", ErrNoConnection)))
	assert.True(t, IsFatal(fmt.Errorf("on: %w", ErrUnknownEvent)))
}

func TestNilChecks(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsInvalid(nil))
	assert.False(t, IsFatal(nil))
}
