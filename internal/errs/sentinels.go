// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across relay/vault/signer layers.
var (
	// ErrNotFound indicates the requested entry does not exist in a store.
	ErrNotFound = errors.New("not found")

	// ErrConnectionFailed indicates a relay could not be reached or the dial handshake failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrConnectionClosed indicates a send or wait against a connection that has already closed.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrNoWriteRelays indicates a publish was attempted with an empty write-relay set.
	ErrNoWriteRelays = errors.New("no write relays configured")

	// ErrWeakPassphrase indicates the vault passphrase is below the minimum length.
	ErrWeakPassphrase = errors.New("weak passphrase")

	// ErrInvalidPassphrase indicates the passphrase does not re-derive the persisted vault identity.
	ErrInvalidPassphrase = errors.New("invalid passphrase")

	// ErrNoVault indicates a vault operation requires a vault that was never created.
	ErrNoVault = errors.New("no vault")

	// ErrVaultLocked indicates vault key material is unavailable until unlock.
	ErrVaultLocked = errors.New("vault locked")

	// ErrAuthentication indicates an AEAD tag mismatch (wrong key or tampered ciphertext).
	ErrAuthentication = errors.New("authentication failed")

	// ErrMalformedToken indicates ciphertext input that does not parse as nonce:ciphertext hex.
	ErrMalformedToken = errors.New("malformed ciphertext token")

	// ErrNoSigner indicates no signer is configured.
	ErrNoSigner = errors.New("no signer configured")

	// ErrUserRejected indicates a delegated signer declined the request.
	ErrUserRejected = errors.New("user rejected signing request")
)
