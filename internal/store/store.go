// Package store defines the persistence collaborators the client composes
// with: a secure key store for raw secrets and a preference store for vault
// metadata, the relay list and signer configuration. Implementations here
// back the CLI and tests; platform builds supply their own.
package store

import "github.com/zeroxbob/pinstr/internal/model"

// KeyLocalSecret is the secure-store entry holding the local signer's raw key.
const KeyLocalSecret = "local_signer_secret"

// SecureKeyStore holds raw secret material (local signer key). The vault
// never touches it; vault keys are derived, not stored.
type SecureKeyStore interface {
	// Get returns the stored bytes or errs.ErrNotFound.
	Get(key string) ([]byte, error)
	// Set stores value under key; nil value deletes the entry.
	Set(key string, value []byte) error
}

// VaultMeta is the only vault state that survives a restart. The keys
// themselves are re-derived from the passphrase, never persisted.
type VaultMeta struct {
	CreatedAt        int64  `json:"vault_created_at"`
	PublicIdentifier string `json:"vault_public_identifier"`
}

// SignerMode selects the signer implementation.
type SignerMode string

const (
	SignerNone     SignerMode = ""
	SignerInternal SignerMode = "internal"
	SignerExternal SignerMode = "external"
)

// ExternalKind names the delegated signer flavor.
type ExternalKind string

const (
	ExternalAmber  ExternalKind = "amber"
	ExternalBunker ExternalKind = "bunker"
)

// SignerConfig selects and parameterizes the signer. It never holds raw key
// material; that lives in the SecureKeyStore.
type SignerConfig struct {
	Mode     SignerMode   `json:"mode"`
	External ExternalKind `json:"external,omitempty"`
	// Endpoint is the bunker connection URL or the Amber package identifier.
	Endpoint string `json:"endpoint,omitempty"`
}

// PreferenceStore persists typed client preferences.
type PreferenceStore interface {
	// VaultMeta returns the persisted vault metadata, or nil when no vault exists.
	VaultMeta() (*VaultMeta, error)
	// SetVaultMeta persists metadata; nil clears it.
	SetVaultMeta(meta *VaultMeta) error

	RelayList() ([]model.RelayConfig, error)
	SetRelayList(relays []model.RelayConfig) error

	// SignerConfig returns the persisted signer selection, or nil when unset.
	SignerConfig() (*SignerConfig, error)
	SetSignerConfig(cfg *SignerConfig) error
}
