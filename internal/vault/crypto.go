// Package vault implements the passphrase-derived second identity: key
// derivation, authenticated encryption of vault content, and the
// no-vault/locked/unlocked lifecycle around the in-memory keys.
package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/zeroxbob/pinstr/internal/errs"
)

// Derivation parameters. Versioned: every client implementation must use
// these exact values or vaults stop being recoverable across devices.
const (
	saltDomain = "pinstr-vault-v1:"

	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024 // 64 MiB
	argonThreads uint8  = 1

	// KeyLen is the size of each derived key.
	KeyLen = 32
)

// Keys holds the vault's two derived keys. Never persisted; wiped on lock.
type Keys struct {
	Signing    []byte // schnorr signing key for the vault identity
	Encryption []byte // AEAD key for vault content
}

// Wipe overwrites both key buffers with zeros.
func (k *Keys) Wipe() {
	for i := range k.Signing {
		k.Signing[i] = 0
	}
	for i := range k.Encryption {
		k.Encryption[i] = 0
	}
}

// DeriveSalt maps a public identifier to a deterministic, domain-separated
// 32-byte salt. Same identifier, same salt: a vault is recreatable on any
// device from identifier plus passphrase alone.
func DeriveSalt(identifier string) []byte {
	sum := sha256.Sum256([]byte(saltDomain + identifier))
	return sum[:]
}

// DeriveKeys stretches a passphrase into the vault key pair via Argon2id.
// Pure: identical inputs always yield byte-identical keys.
func DeriveKeys(passphrase string, salt []byte) *Keys {
	material := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, 2*KeyLen)
	return &Keys{
		Signing:    material[:KeyLen],
		Encryption: material[KeyLen:],
	}
}

// PublicIdentity derives the x-only public key hex for a signing key,
// exposing only the public half of the vault keypair.
func PublicIdentity(signingKey []byte) (string, error) {
	if len(signingKey) != KeyLen {
		return "", fmt.Errorf("validation: signing key must be %d bytes", KeyLen)
	}
	priv, _ := btcec.PrivKeyFromBytes(signingKey)
	if priv == nil {
		return "", fmt.Errorf("validation: signing key out of range")
	}
	return hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey())), nil
}

// Encrypt seals plaintext under key with a fresh random nonce and returns
// the token hex(nonce) ":" hex(ciphertext||tag). Identical inputs never
// produce the same token twice.
func Encrypt(plaintext string, key []byte) (string, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	ct := aead.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt opens a token produced by Encrypt. Malformed tokens fail with
// errs.ErrMalformedToken; wrong-key or tampered ciphertext fails with
// errs.ErrAuthentication, never garbage plaintext.
func Decrypt(token string, key []byte) (string, error) {
	nonceHex, ctHex, ok := strings.Cut(token, ":")
	if !ok {
		return "", errs.ErrMalformedToken
	}
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil || len(nonce) != chacha20poly1305.NonceSize {
		return "", errs.ErrMalformedToken
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil || len(ct) < chacha20poly1305.Overhead {
		return "", errs.ErrMalformedToken
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", errs.ErrAuthentication
	}
	return string(plain), nil
}
