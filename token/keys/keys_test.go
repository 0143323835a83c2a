package keys_test

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-session-client/token/keys"
	"github.com/stretchr/testify/require"
)

func TestHMACSignerRoundTrip(t *testing.T) {
	secret, err := keys.GenerateSecret(16)
	require.NoError(t, err)
	require.Len(t, secret, keys.MinSecretLength)

	signer, err := keys.NewHMACSigner(secret)
	require.NoError(t, err)

	raw, err := signer.Sign(jwt.MapClaims{"userId": "u-1"})
	require.NoError(t, err)

	parsed, err := jwt.Parse(raw, signer.GetVerificationKey)
	require.NoError(t, err)
	require.Equal(t, keys.KeyID(secret), parsed.Header["kid"])
	require.Equal(t, "u-1", parsed.Claims.(jwt.MapClaims)["userId"])
}

func TestHMACSignerRejectsShortSecret(t *testing.T) {
	_, err := keys.NewHMACSigner([]byte("short"))
	require.Error(t, err)
}

func TestVerificationKeyRejectsOtherMethods(t *testing.T) {
	signer, err := keys.NewHMACSigner(make([]byte, keys.MinSecretLength))
	require.NoError(t, err)

	_, err = signer.GetVerificationKey(&jwt.Token{Method: jwt.SigningMethodRS256, Header: map[string]any{"alg": "RS256"}})
	require.Error(t, err)
}
