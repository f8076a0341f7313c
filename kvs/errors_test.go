package kvs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode_String(t *testing.T) {
	assert.Equal(t, "key_not_found", CodeKeyNotFound.String())
	assert.Equal(t, "concurrent_access", CodeConcurrentAccess.String())
	assert.Equal(t, "code_999", Code(999).String())
}

func TestParseCode(t *testing.T) {
	code, ok := ParseCode("duplicate_key")
	assert.True(t, ok)
	assert.Equal(t, CodeDuplicateKey, code)

	_, ok = ParseCode("no_such_code")
	assert.False(t, ok)
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := newError(CodeKeyNotFound, "key does not exist", "k", nil)

	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.NotErrorIs(t, err, ErrDuplicateKey)

	wrapped := fmt.Errorf("outer: %w", err)
	assert.ErrorIs(t, wrapped, ErrKeyNotFound)
	assert.Equal(t, CodeKeyNotFound, CodeOf(wrapped))
}

func TestError_As(t *testing.T) {
	var target *Error
	err := fmt.Errorf("outer: %w", newError(CodeDuplicateKey, "key already exists", "k", nil))

	assert.True(t, errors.As(err, &target))
	assert.Equal(t, "k", target.Key)
}

func TestError_Message(t *testing.T) {
	cause := errors.New("disk on fire")
	err := newError(CodeStorage, "insert failed", "k", cause)

	assert.Equal(t, `storage: insert failed (key="k"): disk on fire`, err.Error())
	assert.ErrorIs(t, err, cause)

	bare := newError(CodeCapacityExceeded, "full", "", nil)
	assert.Equal(t, "capacity_exceeded: full", bare.Error())
}

func TestCodeOf_ForeignError(t *testing.T) {
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeUnknown, CodeOf(nil))
}
