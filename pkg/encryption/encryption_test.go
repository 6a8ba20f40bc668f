package encryption

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) Key {
	t.Helper()
	var k Key
	_, err := rand.Read(k[:])
	require.NoError(t, err)
	return k
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := New(testKey(t))
	require.NoError(t, err)

	plaintext := []byte("the user prefers dark mode")
	wire, err := c.Encrypt(plaintext)
	require.NoError(t, err)

	got, err := c.Decrypt(wire)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestDecryptFailsOnTamper(t *testing.T) {
	c, err := New(testKey(t))
	require.NoError(t, err)

	wire, err := c.Encrypt([]byte("secret"))
	require.NoError(t, err)

	cases := map[string]func([]byte) []byte{
		"nonce byte flipped": func(w []byte) []byte {
			w = append([]byte(nil), w...)
			w[0] ^= 0xFF
			return w
		},
		"tag byte flipped": func(w []byte) []byte {
			w = append([]byte(nil), w...)
			w[len(w)-1] ^= 0xFF
			return w
		},
		"truncated tag": func(w []byte) []byte {
			return w[:len(w)-1]
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Decrypt(mutate(wire))
			require.Error(t, err)
		})
	}
}

func TestKeyFromHex(t *testing.T) {
	_, err := KeyFromHex("not-hex")
	require.Error(t, err)

	_, err = KeyFromHex("abcd")
	require.Error(t, err, "too short to be 32 bytes")

	hex64 := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	k, err := KeyFromHex(hex64)
	require.NoError(t, err)
	require.Len(t, k, KeySize)
}
