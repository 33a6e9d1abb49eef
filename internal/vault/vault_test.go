package vault

import (
	"bytes"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/zeroxbob/pinstr/internal/errs"
	"github.com/zeroxbob/pinstr/internal/store"
)

const (
	testOwner = "8f2c1b3a9d4e5f607182930a4b5c6d7e8f9021324354657687980a1b2c3d4e5f"
	testPass  = "correct horse battery staple"
)

func newManager(t *testing.T, prefs store.PreferenceStore) *Manager {
	t.Helper()
	m, err := NewManager(prefs, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestManager_InitialState(t *testing.T) {
	t.Parallel()
	prefs := store.NewMemory()
	m := newManager(t, prefs)
	if m.State() != StateNoVault {
		t.Fatalf("state=%v, want NoVault", m.State())
	}
	if _, ok := m.PublicIdentifier(); ok {
		t.Fatalf("identifier reported with no vault")
	}
}

func TestManager_CreateUnlockCycle(t *testing.T) {
	t.Parallel()
	prefs := store.NewMemory()
	m := newManager(t, prefs)

	if err := m.Create("short", testOwner); !errors.Is(err, errs.ErrWeakPassphrase) {
		t.Fatalf("weak passphrase: got %v", err)
	}
	if err := m.Create(testPass, testOwner); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.State() != StateUnlocked {
		t.Fatalf("state=%v, want Unlocked", m.State())
	}
	if _, ok := m.EncryptionKey(); !ok {
		t.Fatalf("encryption key unavailable while unlocked")
	}

	m.Lock()
	if m.State() != StateLocked {
		t.Fatalf("state=%v, want Locked", m.State())
	}
	if _, ok := m.SigningKey(); ok {
		t.Fatalf("signing key available while locked")
	}

	if err := m.Unlock("not the passphrase", testOwner); !errors.Is(err, errs.ErrInvalidPassphrase) {
		t.Fatalf("wrong passphrase: got %v", err)
	}
	if m.State() != StateLocked {
		t.Fatalf("wrong passphrase must leave vault locked")
	}
	if err := m.Unlock(testPass, testOwner); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if m.State() != StateUnlocked {
		t.Fatalf("state=%v, want Unlocked", m.State())
	}
}

func TestManager_LockWipesKeyBuffers(t *testing.T) {
	t.Parallel()
	m := newManager(t, store.NewMemory())
	if err := m.Create(testPass, testOwner); err != nil {
		t.Fatalf("Create: %v", err)
	}
	held := m.keys
	m.Lock()
	for _, buf := range [][]byte{held.Signing, held.Encryption} {
		for i, b := range buf {
			if b != 0 {
				t.Fatalf("key byte %d survived lock", i)
			}
		}
	}
}

func TestManager_ResetFromAnyState(t *testing.T) {
	t.Parallel()
	prefs := store.NewMemory()
	m := newManager(t, prefs)
	if err := m.Create(testPass, testOwner); err != nil {
		t.Fatalf("Create: %v", err)
	}
	held := m.keys
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if m.State() != StateNoVault {
		t.Fatalf("state=%v, want NoVault", m.State())
	}
	for _, buf := range [][]byte{held.Signing, held.Encryption} {
		if !bytes.Equal(buf, make([]byte, len(buf))) {
			t.Fatalf("keys survived reset")
		}
	}
	meta, err := prefs.VaultMeta()
	if err != nil || meta != nil {
		t.Fatalf("metadata survived reset: %v %v", meta, err)
	}
	if err := m.Unlock(testPass, testOwner); !errors.Is(err, errs.ErrNoVault) {
		t.Fatalf("unlock after reset: got %v", err)
	}
}

func TestManager_RestoredLockedFromMetadata(t *testing.T) {
	t.Parallel()
	prefs := store.NewMemory()
	first := newManager(t, prefs)
	if err := first.Create(testPass, testOwner); err != nil {
		t.Fatalf("Create: %v", err)
	}
	wantPub, _ := first.PublicIdentifier()

	// Fresh process, same preference store.
	second := newManager(t, prefs)
	if second.State() != StateLocked {
		t.Fatalf("state=%v, want Locked", second.State())
	}
	if pub, ok := second.PublicIdentifier(); !ok || pub != wantPub {
		t.Fatalf("identifier %q, want %q", pub, wantPub)
	}
	if err := second.Unlock(testPass, testOwner); err != nil {
		t.Fatalf("Unlock on second device: %v", err)
	}
}

func TestManager_TwoDevicesDeriveIdenticalKeys(t *testing.T) {
	t.Parallel()
	a := newManager(t, store.NewMemory())
	b := newManager(t, store.NewMemory())
	if err := a.Create(testPass, testOwner); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	if err := b.Create(testPass, testOwner); err != nil {
		t.Fatalf("Create b: %v", err)
	}
	sa, _ := a.SigningKey()
	sb, _ := b.SigningKey()
	ea, _ := a.EncryptionKey()
	eb, _ := b.EncryptionKey()
	if !bytes.Equal(sa, sb) || !bytes.Equal(ea, eb) {
		t.Fatalf("derivation differs across devices")
	}
}

func TestManager_AccessorReturnsCopies(t *testing.T) {
	t.Parallel()
	m := newManager(t, store.NewMemory())
	if err := m.Create(testPass, testOwner); err != nil {
		t.Fatalf("Create: %v", err)
	}
	key, _ := m.EncryptionKey()
	snapshot := make([]byte, len(key))
	copy(snapshot, key)
	m.Lock()
	if !bytes.Equal(key, snapshot) {
		t.Fatalf("caller's key snapshot mutated by lock")
	}
}
