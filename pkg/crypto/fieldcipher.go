package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// FieldCipher encrypts individual column values before they are bound into
// statements, and decrypts them after rows are read back.
//
// Properties:
// - XChaCha20-Poly1305 with a random nonce per value; identical plaintexts
//   produce different ciphertexts, so encrypted columns are not comparable.
// - Output is base64 so it can be stored in TEXT columns.
// - The key comes from configuration and is required at startup; there is no
//   lazy key generation in the server process.
type FieldCipher struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
	key []byte
}

var ErrCipherText = errors.New("crypto: malformed ciphertext")

// NewFieldCipher builds a cipher from a hex-encoded 32-byte key.
func NewFieldCipher(hexKey string) (*FieldCipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: key must be hex: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("crypto: key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &FieldCipher{aead: aead, key: key}, nil
}

// LookupDigest returns a deterministic keyed digest of a value. Encrypted
// columns cannot be compared, so equality lookups (unique usernames) go
// through a digest column instead. The digest leaks equality and nothing
// else.
func (f *FieldCipher) LookupDigest(plaintext string) string {
	mac := hmac.New(sha256.New, f.key)
	mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil))
}

// EncryptField encrypts a single value for storage.
func (f *FieldCipher) EncryptField(plaintext string) (string, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := f.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptField reverses EncryptField.
func (f *FieldCipher) DecryptField(stored string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", ErrCipherText
	}
	if len(raw) < chacha20poly1305.NonceSizeX {
		return "", ErrCipherText
	}
	nonce, sealed := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plain, err := f.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrCipherText
	}
	return string(plain), nil
}
