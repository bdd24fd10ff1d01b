package result

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOk(t *testing.T) {
	r := Ok(42)
	require.True(t, r.IsOk())

	v, ok := r.Value()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Empty(t, r.Message())

	got, err := r.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestErr(t *testing.T) {
	r := Err[int]("user already exists")
	require.False(t, r.IsOk())
	assert.Equal(t, "user already exists", r.Message())

	_, err := r.Unwrap()
	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "user already exists", re.Message)
	assert.Contains(t, err.Error(), "user already exists")
}

func TestZeroValueIsErr(t *testing.T) {
	var r Result[string]
	require.False(t, r.IsOk())
	_, err := r.Unwrap()
	require.ErrorIs(t, err, ErrNoValue)
}

func TestMatch(t *testing.T) {
	ok := Ok(7)
	bad := Err[int]("boom")

	describe := func(r Result[int]) string {
		return Match(r,
			func(v int) string { return "ok:" + strconv.Itoa(v) },
			func(m string) string { return "err:" + m })
	}
	assert.Equal(t, "ok:7", describe(ok))
	assert.Equal(t, "err:boom", describe(bad))
}
