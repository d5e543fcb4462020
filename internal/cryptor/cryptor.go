// Package cryptor provides the opaque encrypt/decrypt capability used by the
// store to protect sensitive message content at rest.
package cryptor

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// Cryptor seals and opens small payloads with an XChaCha20-Poly1305 key
// derived from the configured passphrase.
type Cryptor struct {
	key []byte
}

// New derives a cryptor from a non-empty passphrase.
func New(passphrase string) (*Cryptor, error) {
	if passphrase == "" {
		return nil, errors.New("encryption passphrase is empty")
	}
	sum := sha256.Sum256([]byte(passphrase))
	return &Cryptor{key: sum[:]}, nil
}

// Encrypt seals plaintext and returns a base64 token. A random nonce is
// prepended to the ciphertext, so identical plaintexts yield distinct tokens.
func (c *Cryptor) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", errors.Wrap(err, "create cipher")
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, "generate nonce")
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. It fails if the token was produced with a
// different key or has been tampered with.
func (c *Cryptor) Decrypt(token string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", errors.Wrap(err, "decode token")
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", errors.Wrap(err, "create cipher")
	}
	if len(sealed) < aead.NonceSize() {
		return "", errors.New("token too short")
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.Wrap(err, "open ciphertext")
	}
	return string(plaintext), nil
}
