package accountid

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"hash/crc32"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reference recomputes the identifier from the primitives directly.
func reference(owner, sub []byte) []byte {
	if sub == nil {
		sub = make([]byte, 32)
	}
	var pre bytes.Buffer
	pre.WriteByte(0x0A)
	pre.WriteString("account-id")
	pre.Write(owner)
	pre.Write(sub)
	digest := sha256.Sum224(pre.Bytes())

	out := make([]byte, 4, 32)
	binary.BigEndian.PutUint32(out, crc32.ChecksumIEEE(digest[:]))
	return append(out, digest[:]...)
}

func TestDerive_EmptyPrincipalGoldenVector(t *testing.T) {
	id, err := Derive([]byte{}, nil)
	require.NoError(t, err)

	want := reference([]byte{}, nil)
	assert.Equal(t, want, id.Bytes())
	assert.Len(t, id.Hex(), 64)
	assert.Equal(t, strings.ToLower(id.Hex()), id.Hex())
}

func TestDerive_Deterministic(t *testing.T) {
	owner := []byte{0, 0, 0, 0, 0, 0, 0, 2, 1, 1}
	sub := bytes.Repeat([]byte{0x07}, 32)

	a, err := Derive(owner, sub)
	require.NoError(t, err)
	b, err := Derive(owner, sub)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Equal(t, reference(owner, sub), a.Bytes())
}

func TestDerive_NoSubaccountEqualsZeroSubaccount(t *testing.T) {
	owner := []byte{0x04}

	none, err := Derive(owner, nil)
	require.NoError(t, err)
	empty, err := Derive(owner, []byte{})
	require.NoError(t, err)
	zero, err := Derive(owner, make([]byte, 32))
	require.NoError(t, err)

	assert.Equal(t, none, zero)
	assert.Equal(t, none, empty)
}

func TestDerive_ChecksumAndLength(t *testing.T) {
	owners := [][]byte{
		{},
		{0x04},
		bytes.Repeat([]byte{0xAB}, 29),
		bytes.Repeat([]byte{0xFF}, 200),
	}
	for _, owner := range owners {
		id, err := Derive(owner, nil)
		require.NoError(t, err)

		raw := id.Bytes()
		require.Len(t, raw, 32)
		require.Len(t, id.Hex(), 64)
		assert.Equal(t, crc32.ChecksumIEEE(raw[4:]), binary.BigEndian.Uint32(raw[:4]))
		assert.True(t, id.Valid())
	}
}

func TestDerive_DifferentSubaccountsDiffer(t *testing.T) {
	owner := []byte{1, 2, 3}
	sub1 := make([]byte, 32)
	sub1[31] = 1

	a := MustDerive(owner, nil)
	b := MustDerive(owner, sub1)
	assert.False(t, a.Equal(b))
}

func TestDerive_InvalidSubaccountLength(t *testing.T) {
	for _, n := range []int{1, 16, 31, 33, 64} {
		_, err := Derive([]byte{0x04}, make([]byte, n))
		require.ErrorIs(t, err, ErrInvalidSubaccountLength, "length %d", n)
	}
	require.Panics(t, func() { MustDerive(nil, make([]byte, 3)) })
}

func TestFromHex_RoundTripAndValidation(t *testing.T) {
	id := MustDerive([]byte{0x04}, nil)

	parsed, err := FromHex(id.Hex())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	parsed, err = FromHex(strings.ToUpper(id.Hex()))
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = FromHex("zz")
	require.Error(t, err)

	_, err = FromHex(id.Hex()[:62])
	require.ErrorIs(t, err, ErrInvalidLength)

	corrupted := id.Bytes()
	corrupted[10] ^= 0xFF
	_, err = FromBytes(corrupted)
	require.ErrorIs(t, err, ErrInvalidChecksum)
}

func TestParseSubaccount(t *testing.T) {
	sub, err := ParseSubaccount("")
	require.NoError(t, err)
	assert.Nil(t, sub)

	sub, err = ParseSubaccount("1")
	require.NoError(t, err)
	require.Len(t, sub, 32)
	assert.Equal(t, byte(1), sub[31])
	assert.Equal(t, make([]byte, 31), sub[:31])

	_, err = ParseSubaccount(strings.Repeat("ab", 33))
	require.ErrorIs(t, err, ErrInvalidSubaccountLength)

	_, err = ParseSubaccount("xyz")
	require.Error(t, err)
}
