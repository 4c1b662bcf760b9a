//go:build !wasip1

package runnable

import (
	stdErrors "errors"
	"testing"

	"github.com/reglet-dev/runnable-sdk/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlot_DefaultRunnable(t *testing.T) {
	s := &Slot{}

	out, err := s.Active().Run([]byte("input"))
	assert.Nil(t, out)

	var runErr *errors.RunError
	require.True(t, stdErrors.As(err, &runErr))
	assert.Equal(t, errors.DefaultRunCode, runErr.Code())
	assert.Empty(t, runErr.Message)
}

func TestSlot_Set(t *testing.T) {
	s := &Slot{}

	assert.ErrorIs(t, s.Set(nil), ErrNilRunnable)
	require.NoError(t, s.Set(echo))
	assert.ErrorIs(t, s.Set(DefaultRunnable{}), ErrAlreadyRegistered)

	out, err := s.Active().Run([]byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), out)
}

func TestSlot_SealedAfterFirstDispatch(t *testing.T) {
	s := &Slot{}
	s.begin(1)

	assert.ErrorIs(t, s.Set(echo), ErrSlotSealed)
	assert.IsType(t, DefaultRunnable{}, s.Active())
	assert.Equal(t, int32(1), s.Ident())
}
