package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/zeroxbob/pinstr/internal/errs"
	"github.com/zeroxbob/pinstr/internal/model"
)

// Memory is an in-memory SecureKeyStore and PreferenceStore. Preferences are
// held in their serialized JSON form, so the round-trip matches what any
// durable implementation would persist (relay list as a JSON array of
// {url, read, write} objects).
type Memory struct {
	mu      sync.Mutex
	secrets map[string][]byte
	prefs   map[string]json.RawMessage
}

var (
	_ SecureKeyStore  = (*Memory)(nil)
	_ PreferenceStore = (*Memory)(nil)
)

// Preference keys.
const (
	prefVaultMeta    = "vault_meta"
	prefRelayList    = "relay_list"
	prefSignerConfig = "signer_config"
)

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		secrets: make(map[string][]byte),
		prefs:   make(map[string]json.RawMessage),
	}
}

// Get implements SecureKeyStore.
func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.secrets[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set implements SecureKeyStore. A nil value deletes the entry.
func (m *Memory) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == nil {
		delete(m.secrets, key)
		return nil
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.secrets[key] = cp
	return nil
}

func (m *Memory) getPref(key string, out any) (bool, error) {
	m.mu.Lock()
	raw, ok := m.prefs[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("preference %s: %w", key, err)
	}
	return true, nil
}

func (m *Memory) setPref(key string, v any) error {
	if v == nil {
		m.mu.Lock()
		delete(m.prefs, key)
		m.mu.Unlock()
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("preference %s: %w", key, err)
	}
	m.mu.Lock()
	m.prefs[key] = raw
	m.mu.Unlock()
	return nil
}

// VaultMeta implements PreferenceStore.
func (m *Memory) VaultMeta() (*VaultMeta, error) {
	var meta VaultMeta
	ok, err := m.getPref(prefVaultMeta, &meta)
	if err != nil || !ok {
		return nil, err
	}
	return &meta, nil
}

// SetVaultMeta implements PreferenceStore. Nil clears the metadata.
func (m *Memory) SetVaultMeta(meta *VaultMeta) error {
	if meta == nil {
		return m.setPref(prefVaultMeta, nil)
	}
	return m.setPref(prefVaultMeta, meta)
}

// RelayList implements PreferenceStore.
func (m *Memory) RelayList() ([]model.RelayConfig, error) {
	var relays []model.RelayConfig
	if _, err := m.getPref(prefRelayList, &relays); err != nil {
		return nil, err
	}
	return relays, nil
}

// SetRelayList implements PreferenceStore. Uniqueness by URL is enforced here.
func (m *Memory) SetRelayList(relays []model.RelayConfig) error {
	seen := make(map[string]struct{}, len(relays))
	normalized := make([]model.RelayConfig, 0, len(relays))
	for _, r := range relays {
		u, err := model.NormalizeRelayURL(r.URL)
		if err != nil {
			return err
		}
		if _, dup := seen[u]; dup {
			return fmt.Errorf("validation: duplicate relay %s", u)
		}
		seen[u] = struct{}{}
		r.URL = u
		normalized = append(normalized, r)
	}
	return m.setPref(prefRelayList, normalized)
}

// SignerConfig implements PreferenceStore.
func (m *Memory) SignerConfig() (*SignerConfig, error) {
	var cfg SignerConfig
	ok, err := m.getPref(prefSignerConfig, &cfg)
	if err != nil || !ok {
		return nil, err
	}
	return &cfg, nil
}

// SetSignerConfig implements PreferenceStore. Nil clears the selection.
func (m *Memory) SetSignerConfig(cfg *SignerConfig) error {
	if cfg == nil {
		return m.setPref(prefSignerConfig, nil)
	}
	return m.setPref(prefSignerConfig, cfg)
}
