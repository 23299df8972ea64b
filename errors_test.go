package turtles

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessageFormat(t *testing.T) {
	err := NewError("add_call", CodeStoreWrite, "insert failed")
	require.Equal(t, "turtles: add_call: insert failed", err.Error())
}

func TestErrorMessageFormatNoOp(t *testing.T) {
	err := &Error{Code: CodeConfig, Msg: "bad commit mode"}
	require.Equal(t, "turtles: bad commit mode", err.Error())
}

func TestWrapErrorNilIsNil(t *testing.T) {
	require.Nil(t, WrapError("finalize", CodeFinalize, nil))
}

func TestWrapErrorUnwraps(t *testing.T) {
	inner := fmt.Errorf("disk full")
	err := WrapError("finalize", CodeFinalize, inner)
	require.ErrorIs(t, err, inner)
	require.Same(t, inner, errors.Unwrap(err))
}

func TestIsCodeMatchesCategory(t *testing.T) {
	err := NewError("find_moe", CodeMessage, "unknown command")
	require.True(t, IsCode(err, CodeMessage))
	require.False(t, IsCode(err, CodeFork))
}

func TestErrorIsComparesByCode(t *testing.T) {
	a := NewError("add_proc", CodeStoreWrite, "x")
	b := NewError("update_call", CodeStoreWrite, "y")
	require.True(t, errors.Is(a, b))

	c := NewError("finalize", CodeFinalize, "z")
	require.False(t, errors.Is(a, c))
}
