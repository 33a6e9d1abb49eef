package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zeroxbob/pinstr/internal/client"
	"github.com/zeroxbob/pinstr/internal/errs"
	"github.com/zeroxbob/pinstr/internal/model"
	"github.com/zeroxbob/pinstr/internal/signer"
	"github.com/zeroxbob/pinstr/internal/store"
	"github.com/zeroxbob/pinstr/internal/vault"
)

const (
	fetchTimeout   = 5 * time.Second
	publishTimeout = 10 * time.Second
)

// Service composes signer, vault and coordinators into bookmark operations.
type Service struct {
	client *client.Client
	prefs  store.PreferenceStore
	vault  *vault.Manager
	log    *zap.Logger
}

// NewService constructs the bookmark service.
func NewService(c *client.Client, prefs store.PreferenceStore, mgr *vault.Manager, log *zap.Logger) *Service {
	return &Service{client: c, prefs: prefs, vault: mgr, log: log}
}

func (s *Service) relays() ([]model.RelayConfig, error) {
	relays, err := s.prefs.RelayList()
	if err != nil {
		return nil, err
	}
	return relays, nil
}

// SavePublic signs a public bookmark with the caller's signer and publishes
// it to the write relays. Returns the signed event and whether any relay
// accepted it.
func (s *Service) SavePublic(ctx context.Context, sg signer.Signer, bm Bookmark) (*model.Event, bool, error) {
	ev, err := ToPublicEvent(bm)
	if err != nil {
		return nil, false, err
	}
	return s.signAndPublish(ctx, sg, ev)
}

// SaveVault encrypts a bookmark under the vault key, signs it with the vault
// identity and publishes it. Fails with errs.ErrVaultLocked when the vault
// keys are unavailable.
func (s *Service) SaveVault(ctx context.Context, bm Bookmark) (*model.Event, bool, error) {
	key, ok := s.vault.EncryptionKey()
	if !ok {
		return nil, false, errs.ErrVaultLocked
	}
	ev, err := ToVaultEvent(bm, func(plain string) (string, error) {
		return vault.Encrypt(plain, key)
	})
	if err != nil {
		return nil, false, err
	}
	return s.signAndPublish(ctx, signer.NewVault(s.vault), ev)
}

func (s *Service) signAndPublish(ctx context.Context, sg signer.Signer, ev *model.Event) (*model.Event, bool, error) {
	if sg == nil {
		return nil, false, errs.ErrNoSigner
	}
	if err := sg.Sign(ctx, ev); err != nil {
		return nil, false, fmt.Errorf("sign bookmark: %w", err)
	}
	relays, err := s.relays()
	if err != nil {
		return nil, false, err
	}
	accepted, outcomes, err := s.client.Publish(ctx, ev, relays, publishTimeout)
	if err != nil {
		return ev, false, err
	}
	for url, out := range outcomes {
		if out.Status != client.StatusAccepted {
			s.log.Debug("relay did not accept bookmark",
				zap.String("relay", url),
				zap.String("status", string(out.Status)),
				zap.String("reason", out.Reason),
			)
		}
	}
	return ev, accepted, nil
}

// ListPublic fetches an author's public bookmarks, newest version per d-tag.
func (s *Service) ListPublic(ctx context.Context, author string) ([]Bookmark, error) {
	events, err := s.list(ctx, author)
	if err != nil {
		return nil, err
	}
	out := make([]Bookmark, 0, len(events))
	for i := range events {
		bm, err := FromPublicEvent(&events[i])
		if err != nil {
			s.log.Debug("skipping malformed bookmark event", zap.String("event", events[i].ID), zap.Error(err))
			continue
		}
		out = append(out, bm)
	}
	return out, nil
}

// ListVault fetches the vault identity's bookmarks and decrypts them.
// Entries that fail authentication are skipped, not fatal: relays may hold
// events from a previous vault generation.
func (s *Service) ListVault(ctx context.Context) ([]Bookmark, error) {
	pub, ok := s.vault.PublicIdentifier()
	if !ok {
		return nil, errs.ErrNoVault
	}
	key, ok := s.vault.EncryptionKey()
	if !ok {
		return nil, errs.ErrVaultLocked
	}
	events, err := s.list(ctx, pub)
	if err != nil {
		return nil, err
	}
	out := make([]Bookmark, 0, len(events))
	for i := range events {
		bm, err := FromVaultEvent(&events[i], func(token string) (string, error) {
			return vault.Decrypt(token, key)
		})
		if err != nil {
			if errors.Is(err, errs.ErrAuthentication) || errors.Is(err, errs.ErrMalformedToken) {
				s.log.Debug("skipping undecryptable vault event", zap.String("event", events[i].ID))
				continue
			}
			return nil, err
		}
		out = append(out, bm)
	}
	return out, nil
}

// list fetches bookmark events for one author, keeping only the newest
// event per d-tag (addressable replacement semantics).
func (s *Service) list(ctx context.Context, author string) ([]model.Event, error) {
	relays, err := s.relays()
	if err != nil {
		return nil, err
	}
	events, err := s.client.Fetch(ctx, model.Filter{
		Authors: []string{author},
		Kinds:   []int{KindBookmark},
	}, relays, fetchTimeout)
	if err != nil {
		return nil, err
	}
	// Events arrive newest first; the first hit per d-tag wins.
	latest := make(map[string]struct{}, len(events))
	out := events[:0]
	for i := range events {
		dtag, ok := events[i].DTag()
		if !ok {
			continue
		}
		if _, seen := latest[dtag]; seen {
			continue
		}
		latest[dtag] = struct{}{}
		out = append(out, events[i])
	}
	return out, nil
}
