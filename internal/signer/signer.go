// Package signer produces valid signatures over event payloads. The Signer
// capability is satisfied by a locally held key, the vault's derived key, or
// a delegated out-of-process signer, selected by persisted configuration.
package signer

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/zeroxbob/pinstr/internal/errs"
	"github.com/zeroxbob/pinstr/internal/model"
	"github.com/zeroxbob/pinstr/internal/vault"
)

// Signer fills in the author, ID and signature of a draft event.
type Signer interface {
	// Sign completes ev in place: pubkey, created_at (when zero), id, sig.
	Sign(ctx context.Context, ev *model.Event) error
	// PublicKey returns the hex public identity events will be attributed to.
	PublicKey(ctx context.Context) (string, error)
}

// signWith completes a draft with a raw private key.
func signWith(priv *btcec.PrivateKey, ev *model.Event) error {
	ev.PubKey = hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))
	if ev.CreatedAt == 0 {
		ev.CreatedAt = time.Now().Unix()
	}
	id, err := ev.ComputeID()
	if err != nil {
		return err
	}
	idBytes, err := hex.DecodeString(id)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	sig, err := schnorr.Sign(priv, idBytes)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	ev.ID = id
	ev.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}

// Local signs synchronously with raw key material from the secure store.
type Local struct {
	priv *btcec.PrivateKey
}

// NewLocal wraps a 32-byte secret key.
func NewLocal(secret []byte) (*Local, error) {
	if len(secret) != 32 {
		return nil, fmt.Errorf("validation: local signer key must be 32 bytes")
	}
	priv, _ := btcec.PrivKeyFromBytes(secret)
	return &Local{priv: priv}, nil
}

// Sign implements Signer.
func (l *Local) Sign(_ context.Context, ev *model.Event) error {
	return signWith(l.priv, ev)
}

// PublicKey implements Signer.
func (l *Local) PublicKey(context.Context) (string, error) {
	return hex.EncodeToString(schnorr.SerializePubKey(l.priv.PubKey())), nil
}

// Vault signs with the vault identity. Fails with errs.ErrVaultLocked
// whenever key material is unavailable.
type Vault struct {
	mgr *vault.Manager
}

// NewVault wraps the lifecycle manager.
func NewVault(mgr *vault.Manager) *Vault {
	return &Vault{mgr: mgr}
}

// Sign implements Signer. The key is snapshotted before signing, so a
// concurrent lock cannot wipe it mid-operation.
func (v *Vault) Sign(_ context.Context, ev *model.Event) error {
	key, ok := v.mgr.SigningKey()
	if !ok {
		return errs.ErrVaultLocked
	}
	defer func() {
		for i := range key {
			key[i] = 0
		}
	}()
	priv, _ := btcec.PrivKeyFromBytes(key)
	return signWith(priv, ev)
}

// PublicKey implements Signer.
func (v *Vault) PublicKey(context.Context) (string, error) {
	pub, ok := v.mgr.PublicIdentifier()
	if !ok {
		return "", errs.ErrVaultLocked
	}
	return pub, nil
}
