package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_BcryptHasher(t *testing.T) {
	t.Parallel()

	h := BcryptHasher{}

	t.Run("hash password", func(t *testing.T) {
		got, err := h.Hash("password")
		require.NoError(t, err)

		require.Len(t, got, 60, "bcrypt length is 60 letters as far as i know")
		require.Equal(t, "$2a$12$", got[:7], "hash should embed algorithm and cost 12")
	})

	t.Run("hash is salted", func(t *testing.T) {
		first, err := h.Hash("password")
		require.NoError(t, err)

		second, err := h.Hash("password")
		require.NoError(t, err)

		require.NotEqual(t, first, second, "same password should hash differently every time")
		require.NoError(t, h.Compare(first, "password"))
		require.NoError(t, h.Compare(second, "password"))
	})

	t.Run("compare password ok", func(t *testing.T) {
		hash, err := h.Hash("password")
		require.NoError(t, err)

		err = h.Compare(hash, "password")

		require.NoError(t, err)
	})

	t.Run("fail compare if wrong password", func(t *testing.T) {
		hash, err := h.Hash("password")
		require.NoError(t, err)

		err = h.Compare(hash, "wrong")

		require.Error(t, err)
	})

	t.Run("fail compare if hash malformed", func(t *testing.T) {
		err := h.Compare("not-a-bcrypt-hash", "password")

		require.Error(t, err, "malformed hash should compare as failure, not panic")
	})
}
