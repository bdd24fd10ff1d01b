// Package cryptox seals small secrets (session key seeds) for storage at rest
// with AES-GCM under an Argon2id key derived from a passphrase.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/lendkeeper/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	saltSize = 16
	keySize  = 32
)

var ErrSealedDataCorrupt = errors.New("sealed data corrupt or wrong passphrase")

// DeriveKey stretches a passphrase into a 32-byte AES key.
func DeriveKey(passphrase []byte, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, keySize)
}

// Seal encrypts plaintext and returns salt || nonce || ciphertext.
func Seal(plaintext, passphrase []byte) ([]byte, error) {
	salt := common.GenerateRandByteArray(saltSize)
	key := DeriveKey(passphrase, salt)
	defer common.WipeByteArray(key)

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := common.GenerateRandByteArray(aead.NonceSize())

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, salt), nil
}

// Open reverses Seal.
func Open(sealed, passphrase []byte) ([]byte, error) {
	if len(sealed) < saltSize {
		return nil, ErrSealedDataCorrupt
	}
	salt := sealed[:saltSize]
	key := DeriveKey(passphrase, salt)
	defer common.WipeByteArray(key)

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	rest := sealed[saltSize:]
	if len(rest) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrSealedDataCorrupt
	}
	nonce, ciphertext := rest[:aead.NonceSize()], rest[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, salt)
	if err != nil {
		return nil, ErrSealedDataCorrupt
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
