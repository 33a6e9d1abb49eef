package signer

import (
	"context"
	"fmt"
	"sync"

	"github.com/zeroxbob/pinstr/internal/errs"
	"github.com/zeroxbob/pinstr/internal/store"
)

// FromConfig builds the signer the persisted configuration selects.
// The internal mode pulls raw key material from the secure store; external
// modes need a platform transport.
func FromConfig(cfg *store.SignerConfig, secrets store.SecureKeyStore, transport Transport) (Signer, error) {
	if cfg == nil || cfg.Mode == store.SignerNone {
		return nil, errs.ErrNoSigner
	}
	switch cfg.Mode {
	case store.SignerInternal:
		secret, err := secrets.Get(store.KeyLocalSecret)
		if err != nil {
			return nil, fmt.Errorf("local signer key: %w", err)
		}
		return NewLocal(secret)
	case store.SignerExternal:
		if transport == nil {
			return nil, fmt.Errorf("external signer %q: no transport available", cfg.External)
		}
		return NewDelegated(transport), nil
	default:
		return nil, fmt.Errorf("validation: unknown signer mode %q", cfg.Mode)
	}
}

// Selector caches the configured signer and rebuilds it whenever the
// persisted configuration changes, so switching signers invalidates any
// previously cached instance.
type Selector struct {
	prefs     store.PreferenceStore
	secrets   store.SecureKeyStore
	transport Transport

	mu      sync.Mutex
	cached  Signer
	lastCfg string
}

// NewSelector constructs a Selector over the stores.
func NewSelector(prefs store.PreferenceStore, secrets store.SecureKeyStore, transport Transport) *Selector {
	return &Selector{prefs: prefs, secrets: secrets, transport: transport}
}

// Current returns the signer for the configuration persisted right now.
func (s *Selector) Current(ctx context.Context) (Signer, error) {
	cfg, err := s.prefs.SignerConfig()
	if err != nil {
		return nil, err
	}
	fp := fingerprint(cfg)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil && s.lastCfg == fp {
		return s.cached, nil
	}
	sg, err := FromConfig(cfg, s.secrets, s.transport)
	if err != nil {
		s.cached = nil
		s.lastCfg = ""
		return nil, err
	}
	s.cached = sg
	s.lastCfg = fp
	return sg, nil
}

func fingerprint(cfg *store.SignerConfig) string {
	if cfg == nil {
		return ""
	}
	return fmt.Sprintf("%s|%s|%s", cfg.Mode, cfg.External, cfg.Endpoint)
}
