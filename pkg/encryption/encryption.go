// Package encryption implements mnemo's content-at-rest encryption
// (spec §4.5): AES-256-GCM with a random 12-byte nonce per message. The
// stdlib crypto/aes and crypto/cipher packages implement the primitive
// directly — neither the teacher nor any other repo in the retrieved
// pack reaches for a third-party AEAD library for this, so this is the
// one ambient concern that legitimately stays on the standard library
// (see DESIGN.md).
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
)

// KeySize is the required key length in bytes for AES-256.
const KeySize = 32

// NonceSize is the GCM nonce length used for the wire layout
// nonce(12) || ciphertext-with-tag.
const NonceSize = 12

// Key is a 32-byte AES-256 key.
type Key [KeySize]byte

// KeyFromHex constructs a Key from a 64-character hex string.
func KeyFromHex(s string) (Key, error) {
	var k Key
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, mnemoerr.Validation("invalid hex key: %v", err)
	}
	if len(b) != KeySize {
		return k, mnemoerr.Validation("key must decode to %d bytes, got %d", KeySize, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// KeyFromEnv reads a 64-hex-character key from the named environment
// variable.
func KeyFromEnv(name string) (Key, error) {
	v := os.Getenv(name)
	if v == "" {
		return Key{}, mnemoerr.Validation("environment variable %s is not set", name)
	}
	return KeyFromHex(v)
}

// Cipher encrypts and decrypts memory content. A nil *Cipher means
// encryption is disabled; callers check this explicitly rather than
// relying on a no-op implementation, since "encryption configured or
// not" changes remember/recall's control flow (spec §4.8.1 step 6).
type Cipher struct {
	aead cipher.AEAD
}

// New constructs a Cipher from a 32-byte key.
func New(key Key) (*Cipher, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, mnemoerr.Internal("failed to create AES cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, mnemoerr.Internal("failed to create GCM AEAD", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt returns nonce(12) || ciphertext-with-tag for plaintext.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, mnemoerr.Internal("failed to generate nonce", err)
	}
	ciphertext := c.aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ciphertext...), nil
}

// Decrypt reverses Encrypt. A tampered nonce, ciphertext, or tag
// produces a Validation error (spec §4.5), never a panic or silent
// corruption.
func (c *Cipher) Decrypt(wire []byte) ([]byte, error) {
	if len(wire) < NonceSize {
		return nil, mnemoerr.Validation("ciphertext too short to contain a nonce")
	}
	nonce, ciphertext := wire[:NonceSize], wire[NonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, mnemoerr.Validation(fmt.Sprintf("decryption failed: %v", err))
	}
	return plaintext, nil
}
