package store

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeroxbob/pinstr/internal/model"
)

// File persists preferences and secrets as one JSON document with 0600
// permissions, the way the CLI keeps its state under the user config dir.
// It satisfies the same contracts as Memory and is not safe against
// concurrent processes, which matches single-user CLI use.
type File struct {
	path string
	mem  *Memory
}

var (
	_ SecureKeyStore  = (*File)(nil)
	_ PreferenceStore = (*File)(nil)
)

type fileDoc struct {
	Secrets     map[string]string          `json:"secrets,omitempty"` // hex-encoded
	Preferences map[string]json.RawMessage `json:"preferences,omitempty"`
}

// OpenFile loads (or lazily creates) the store at path.
func OpenFile(path string) (*File, error) {
	f := &File{path: path, mem: NewMemory()}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	var doc fileDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	for k, v := range doc.Secrets {
		raw, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("open store %s: secret %s: %w", path, k, err)
		}
		f.mem.secrets[k] = raw
	}
	for k, v := range doc.Preferences {
		f.mem.prefs[k] = v
	}
	return f, nil
}

func (f *File) save() error {
	f.mem.mu.Lock()
	doc := fileDoc{
		Secrets:     make(map[string]string, len(f.mem.secrets)),
		Preferences: make(map[string]json.RawMessage, len(f.mem.prefs)),
	}
	for k, v := range f.mem.secrets {
		doc.Secrets[k] = hex.EncodeToString(v)
	}
	for k, v := range f.mem.prefs {
		doc.Preferences[k] = v
	}
	f.mem.mu.Unlock()

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("save store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("save store: %w", err)
	}
	if err := os.WriteFile(f.path, b, 0o600); err != nil {
		return fmt.Errorf("save store: %w", err)
	}
	return nil
}

// Get implements SecureKeyStore.
func (f *File) Get(key string) ([]byte, error) { return f.mem.Get(key) }

// Set implements SecureKeyStore.
func (f *File) Set(key string, value []byte) error {
	if err := f.mem.Set(key, value); err != nil {
		return err
	}
	return f.save()
}

// VaultMeta implements PreferenceStore.
func (f *File) VaultMeta() (*VaultMeta, error) { return f.mem.VaultMeta() }

// SetVaultMeta implements PreferenceStore.
func (f *File) SetVaultMeta(meta *VaultMeta) error {
	if err := f.mem.SetVaultMeta(meta); err != nil {
		return err
	}
	return f.save()
}

// RelayList implements PreferenceStore.
func (f *File) RelayList() ([]model.RelayConfig, error) { return f.mem.RelayList() }

// SetRelayList implements PreferenceStore.
func (f *File) SetRelayList(relays []model.RelayConfig) error {
	if err := f.mem.SetRelayList(relays); err != nil {
		return err
	}
	return f.save()
}

// SignerConfig implements PreferenceStore.
func (f *File) SignerConfig() (*SignerConfig, error) { return f.mem.SignerConfig() }

// SetSignerConfig implements PreferenceStore.
func (f *File) SetSignerConfig(cfg *SignerConfig) error {
	if err := f.mem.SetSignerConfig(cfg); err != nil {
		return err
	}
	return f.save()
}
