package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_FormatAndUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewError(KindIO, "tablestore: Insert", "engine_failure", cause)

	require.Equal(t, "tablestore: Insert: IO_ERROR (engine_failure): disk full", err.Error())
	require.ErrorIs(t, err, cause)

	bare := NewError(KindValidation, "tablestore: Insert", "column_count_mismatch", nil)
	require.Equal(t, "tablestore: Insert: VALIDATION_ERROR (column_count_mismatch)", bare.Error())
}

func TestIsKind_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("registration: %w", NewError(KindConfiguration, "credential: Derive", "iterations_below_floor", nil))

	require.True(t, IsKind(err, KindConfiguration))
	require.False(t, IsKind(err, KindIO))
	require.False(t, IsKind(errors.New("plain"), KindIO))
}

func TestNilError(t *testing.T) {
	var e *Error
	require.Equal(t, "", e.Error())
	require.Nil(t, e.Unwrap())
}

func TestNewSession_Defaults(t *testing.T) {
	s := NewSession()
	require.True(t, s.Idle())
	require.Zero(t, s.AttemptCount)
	require.NotNil(t, s.Data)
	require.NotNil(t, s.List)
}

func TestSession_DataString(t *testing.T) {
	s := NewSession()
	s.Data["title"] = "Caneca"
	s.Data["qty"] = float64(3)
	s.Data["tags"] = []any{"a", "b"}

	require.Equal(t, "Caneca", s.DataString("title"))
	require.Equal(t, "3", s.DataString("qty"))
	require.Equal(t, "[a b]", s.DataString("tags"))
	require.Equal(t, "", s.DataString("missing"))
}
