// Package bookmarks maps bookmark records onto addressable events and drives
// them through the coordinators, for both the public identity and the
// vault identity.
package bookmarks

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/zeroxbob/pinstr/internal/model"
)

// KindBookmark is the addressable event kind bookmarks live under.
const KindBookmark = 39700

// Bookmark is one saved link.
type Bookmark struct {
	// ID is the d-tag: a stable slug for public bookmarks, a random
	// identifier for vault bookmarks so entries cannot be correlated.
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	CreatedAt   int64  `json:"created_at,omitempty"`
}

// Slugify derives a stable d-tag from a bookmark title.
func Slugify(title string) string {
	var b strings.Builder
	prevDash := true // trim leading dashes
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		case !prevDash:
			b.WriteByte('-')
			prevDash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// RandomID returns a fresh 16-byte hex identifier for vault bookmarks.
func RandomID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("random id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ToPublicEvent builds an unsigned draft for a public bookmark:
// d/title/description tags, URL as content.
func ToPublicEvent(bm Bookmark) (*model.Event, error) {
	if bm.URL == "" {
		return nil, fmt.Errorf("validation: bookmark url required")
	}
	id := bm.ID
	if id == "" {
		id = Slugify(bm.Title)
	}
	if id == "" {
		return nil, fmt.Errorf("validation: bookmark needs a title or id")
	}
	tags := [][]string{{"d", id}, {"title", bm.Title}}
	if bm.Description != "" {
		tags = append(tags, []string{"description", bm.Description})
	}
	return &model.Event{
		Kind:      KindBookmark,
		Tags:      tags,
		Content:   bm.URL,
		CreatedAt: bm.CreatedAt,
	}, nil
}

// FromPublicEvent parses a public bookmark event.
func FromPublicEvent(ev *model.Event) (Bookmark, error) {
	if ev.Kind != KindBookmark {
		return Bookmark{}, fmt.Errorf("validation: kind %d is not a bookmark", ev.Kind)
	}
	id, ok := ev.DTag()
	if !ok {
		return Bookmark{}, fmt.Errorf("validation: bookmark event %s has no d tag", ev.ID)
	}
	title, _ := ev.TagValue("title")
	desc, _ := ev.TagValue("description")
	return Bookmark{
		ID:          id,
		Title:       title,
		Description: desc,
		URL:         ev.Content,
		CreatedAt:   ev.CreatedAt,
	}, nil
}

// vaultPayload is what gets encrypted into a vault bookmark's content.
type vaultPayload struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
}

// ToVaultEvent builds an unsigned draft whose content is the encrypted
// bookmark payload. The d-tag is random per event: vault entries stay
// uncorrelated across saves.
func ToVaultEvent(bm Bookmark, encrypt func(plaintext string) (string, error)) (*model.Event, error) {
	if bm.URL == "" {
		return nil, fmt.Errorf("validation: bookmark url required")
	}
	dtag, err := RandomID()
	if err != nil {
		return nil, err
	}
	plain, err := json.Marshal(vaultPayload{Title: bm.Title, Description: bm.Description, URL: bm.URL})
	if err != nil {
		return nil, fmt.Errorf("vault bookmark: %w", err)
	}
	token, err := encrypt(string(plain))
	if err != nil {
		return nil, err
	}
	return &model.Event{
		Kind:      KindBookmark,
		Tags:      [][]string{{"d", dtag}},
		Content:   token,
		CreatedAt: bm.CreatedAt,
	}, nil
}

// FromVaultEvent decrypts and parses a vault bookmark event.
func FromVaultEvent(ev *model.Event, decrypt func(token string) (string, error)) (Bookmark, error) {
	if ev.Kind != KindBookmark {
		return Bookmark{}, fmt.Errorf("validation: kind %d is not a bookmark", ev.Kind)
	}
	plain, err := decrypt(ev.Content)
	if err != nil {
		return Bookmark{}, err
	}
	var p vaultPayload
	if err := json.Unmarshal([]byte(plain), &p); err != nil {
		return Bookmark{}, fmt.Errorf("vault bookmark %s: %w", ev.ID, err)
	}
	id, _ := ev.DTag()
	return Bookmark{
		ID:          id,
		Title:       p.Title,
		Description: p.Description,
		URL:         p.URL,
		CreatedAt:   ev.CreatedAt,
	}, nil
}
