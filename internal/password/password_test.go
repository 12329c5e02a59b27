package password_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theseyan/418-nits-hacks/internal/password"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := password.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := password.Verify("correct horse battery staple", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = password.Verify("wrong password", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashesAreSalted(t *testing.T) {
	first, err := password.Hash("same input")
	require.NoError(t, err)
	second, err := password.Hash("same input")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	for _, hash := range []string{
		"",
		"not a hash",
		"$argon2i$v=19$m=16384,t=3,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=16384$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=16384,t=3,p=1$!!!$aGFzaA",
	} {
		_, err := password.Verify("anything", hash)
		require.Error(t, err, "hash %q", hash)
	}
}
