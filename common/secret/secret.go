package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Vault encrypts OAuth tokens and other provider secrets before they
// touch the database. Values are sealed with AES-256-GCM under a key
// derived from the configured master key; the nonce is prepended to
// the ciphertext and the whole value is base64-encoded for storage in
// a text column.
type Vault struct {
	aead cipher.AEAD
}

var ErrInvalidCiphertext = errors.New("invalid ciphertext")

// hkdfInfo binds derived keys to their purpose so the master key can
// be reused for future contexts without key reuse across them.
const hkdfInfo = "leadmap/credential-vault/v1"

func NewVault(masterKey string) (*Vault, error) {
	if masterKey == "" {
		return nil, errors.New("master key is required")
	}

	kdf := hkdf.New(sha256.New, []byte(masterKey), nil, []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("deriving vault key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Seal encrypts plaintext. Empty input seals to the empty string so
// optional fields (e.g. a missing refresh token) round-trip cleanly.
func (v *Vault) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (v *Vault) Open(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}

	if len(raw) < v.aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}

	nonce, sealed := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}

	return string(plaintext), nil
}
