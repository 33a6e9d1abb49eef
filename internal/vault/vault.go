package vault

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zeroxbob/pinstr/internal/errs"
	"github.com/zeroxbob/pinstr/internal/store"
)

// MinPassphraseLen is the shortest passphrase accepted at vault creation.
const MinPassphraseLen = 12

// State is the vault lifecycle position.
type State int

const (
	// StateNoVault means no vault has ever been created (or it was reset).
	StateNoVault State = iota
	// StateLocked means vault metadata exists but keys are not in memory.
	StateLocked
	// StateUnlocked means derived keys are held in memory.
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	default:
		return "no vault"
	}
}

// Manager owns the in-memory vault keys and drives the lifecycle state
// machine. Keys live only here; accessors hand out copies so a concurrent
// lock can never wipe a buffer someone else is reading.
type Manager struct {
	prefs store.PreferenceStore
	log   *zap.Logger

	mu    sync.Mutex
	state State
	keys  *Keys
	pubID string
}

// NewManager restores the initial state from persisted metadata:
// Locked when a vault exists, NoVault otherwise.
func NewManager(prefs store.PreferenceStore, log *zap.Logger) (*Manager, error) {
	m := &Manager{prefs: prefs, log: log, state: StateNoVault}
	meta, err := prefs.VaultMeta()
	if err != nil {
		return nil, fmt.Errorf("vault metadata: %w", err)
	}
	if meta != nil {
		m.state = StateLocked
		m.pubID = meta.PublicIdentifier
	}
	return m, nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// PublicIdentifier returns the vault's public identity when a vault exists.
func (m *Manager) PublicIdentifier() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateNoVault {
		return "", false
	}
	return m.pubID, true
}

// Create derives keys for a brand-new vault, persists its public metadata and
// leaves the vault unlocked. The passphrase must be at least MinPassphraseLen
// characters or the call fails with errs.ErrWeakPassphrase.
func (m *Manager) Create(passphrase, ownerIdentifier string) error {
	if len(passphrase) < MinPassphraseLen {
		return errs.ErrWeakPassphrase
	}

	salt := DeriveSalt(ownerIdentifier)
	keys := DeriveKeys(passphrase, salt)
	pubID, err := PublicIdentity(keys.Signing)
	if err != nil {
		keys.Wipe()
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.prefs.SetVaultMeta(&store.VaultMeta{
		CreatedAt:        time.Now().Unix(),
		PublicIdentifier: pubID,
	}); err != nil {
		keys.Wipe()
		return fmt.Errorf("persist vault metadata: %w", err)
	}
	if m.keys != nil {
		m.keys.Wipe()
	}
	m.keys = keys
	m.pubID = pubID
	m.state = StateUnlocked
	m.log.Info("vault created", zap.String("vault", pubID[:12]))
	return nil
}

// Unlock re-derives keys and admits them only if they reproduce the persisted
// public identifier. A mismatch leaves the vault locked with
// errs.ErrInvalidPassphrase.
func (m *Manager) Unlock(passphrase, ownerIdentifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateNoVault {
		return errs.ErrNoVault
	}
	if m.state == StateUnlocked {
		return nil
	}

	salt := DeriveSalt(ownerIdentifier)
	keys := DeriveKeys(passphrase, salt)
	candidate, err := PublicIdentity(keys.Signing)
	if err != nil {
		keys.Wipe()
		return err
	}
	if candidate != m.pubID {
		keys.Wipe()
		return errs.ErrInvalidPassphrase
	}
	m.keys = keys
	m.state = StateUnlocked
	m.log.Info("vault unlocked", zap.String("vault", m.pubID[:12]))
	return nil
}

// Lock wipes the in-memory keys. No vault stays no vault.
func (m *Manager) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys != nil {
		m.keys.Wipe()
		m.keys = nil
	}
	if m.state == StateUnlocked {
		m.state = StateLocked
	}
}

// Reset wipes keys and clears persisted metadata. Destructive: vault-identity
// content already on relays becomes undecryptable by this client.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys != nil {
		m.keys.Wipe()
		m.keys = nil
	}
	if err := m.prefs.SetVaultMeta(nil); err != nil {
		return fmt.Errorf("clear vault metadata: %w", err)
	}
	m.state = StateNoVault
	m.pubID = ""
	m.log.Info("vault reset")
	return nil
}

// EncryptionKey returns a copy of the content key while unlocked.
// Callers treat the false case as "vault content unavailable", not an error.
func (m *Manager) EncryptionKey() ([]byte, bool) {
	return m.keyCopy(func(k *Keys) []byte { return k.Encryption })
}

// SigningKey returns a copy of the vault signing key while unlocked.
func (m *Manager) SigningKey() ([]byte, bool) {
	return m.keyCopy(func(k *Keys) []byte { return k.Signing })
}

func (m *Manager) keyCopy(pick func(*Keys) []byte) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateUnlocked || m.keys == nil {
		return nil, false
	}
	src := pick(m.keys)
	out := make([]byte, len(src))
	copy(out, src)
	return out, true
}
