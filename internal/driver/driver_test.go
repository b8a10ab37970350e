package driver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapCloseCodeGracefulIsAlways1000(t *testing.T) {
	code, reason := MapCloseCode(CloseVoiceServerCrash, true)
	require.Equal(t, 1000, code)
	require.Equal(t, "Graceful close", reason)
}

func TestMapCloseCodeTableMatchesSpec(t *testing.T) {
	cases := []struct {
		in   CloseCode
		want int
	}{
		{CloseUnknownOpcode, 4001},
		{CloseInvalidPayload, 4003},
		{CloseNotAuthenticated, 4004},
		{CloseAuthenticationFailed, 4005},
		{CloseAlreadyAuthenticated, 4006},
		{CloseSessionInvalid, 4009},
		{CloseSessionTimeout, 4011},
		{CloseServerNotFound, 4012},
		{CloseUnknownProtocol, 4012},
		{CloseDisconnected, 4013},
		{CloseVoiceServerCrash, 4015},
		{CloseUnknownEncryptionMode, 4016},
	}
	for _, c := range cases {
		got, _ := MapCloseCode(c.in, false)
		require.Equal(t, c.want, got, "close code %d", c.in)
	}
}

func TestClassifyCloseErrNonCloseErrorDefaultsToDisconnected(t *testing.T) {
	code, graceful := classifyCloseErr(errPlainIOFailure{})
	require.Equal(t, CloseDisconnected, code)
	require.False(t, graceful)
}

type errPlainIOFailure struct{}

func (errPlainIOFailure) Error() string { return "connection reset" }
