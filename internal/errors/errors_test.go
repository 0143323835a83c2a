package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapf(t *testing.T) {
	require.NoError(t, errors.Wrapf(nil, "ignored %d", 1))

	err := errors.Wrapf(errors.ErrDecode, "decode %s", "accessToken")
	require.EqualError(t, err, "decode accessToken: malformed access token")
	require.True(t, errors.Is(err, errors.ErrDecode))
	require.True(t, stderrors.Is(err, errors.ErrDecode))
}
