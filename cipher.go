package chatgate

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// Cipher encrypts transcripts at rest with a process-wide symmetric key.
type Cipher struct {
	key [32]byte
}

// NewCipher creates a Cipher from a base64-encoded 32-byte key.
func NewCipher(encodedKey string) (*Cipher, error) {
	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("chatgate: decode encryption key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("chatgate: encryption key must be 32 bytes, got %d", len(raw))
	}

	c := &Cipher{}
	copy(c.key[:], raw)
	return c, nil
}

// NewCipherKey generates a fresh base64-encoded key suitable for NewCipher.
func NewCipherKey() string {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	return base64.StdEncoding.EncodeToString(key[:])
}

// Seal encrypts plaintext. The random nonce is prefixed to the ciphertext.
func (c *Cipher) Seal(plaintext []byte) []byte {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		panic(err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &c.key)
}

// Open decrypts data produced by Seal.
func (c *Cipher) Open(data []byte) ([]byte, error) {
	if len(data) < 24 {
		return nil, fmt.Errorf("chatgate: ciphertext too short")
	}

	var nonce [24]byte
	copy(nonce[:], data[:24])

	plaintext, ok := secretbox.Open(nil, data[24:], &nonce, &c.key)
	if !ok {
		return nil, fmt.Errorf("chatgate: transcript decryption failed")
	}
	return plaintext, nil
}
