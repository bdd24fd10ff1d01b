package cryptox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	k1 := DeriveKey([]byte("pass"), []byte("salt-salt-salt-1"))
	k2 := DeriveKey([]byte("pass"), []byte("salt-salt-salt-1"))
	k3 := DeriveKey([]byte("pass"), []byte("salt-salt-salt-2"))

	assert.Len(t, k1, 32)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestSealOpen_RoundTrip(t *testing.T) {
	seed := bytes.Repeat([]byte{0x5A}, 32)

	sealed, err := Seal(seed, []byte("passphrase"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), string(seed))

	got, err := Open(sealed, []byte("passphrase"))
	require.NoError(t, err)
	assert.Equal(t, seed, got)
}

func TestSeal_UsesFreshSaltAndNonce(t *testing.T) {
	a, err := Seal([]byte("x"), nil)
	require.NoError(t, err)
	b, err := Seal([]byte("x"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpen_WrongPassphrase(t *testing.T) {
	sealed, err := Seal([]byte("secret"), []byte("right"))
	require.NoError(t, err)

	_, err = Open(sealed, []byte("wrong"))
	require.ErrorIs(t, err, ErrSealedDataCorrupt)
}

func TestOpen_Truncated(t *testing.T) {
	_, err := Open([]byte{1, 2, 3}, nil)
	require.ErrorIs(t, err, ErrSealedDataCorrupt)

	sealed, err := Seal([]byte("secret"), nil)
	require.NoError(t, err)
	_, err = Open(sealed[:20], nil)
	require.ErrorIs(t, err, ErrSealedDataCorrupt)
}
