package model

import (
	"fmt"
	"net/url"
	"strings"
)

// RelayConfig is one user-configured relay with its read/write flags.
type RelayConfig struct {
	URL   string `json:"url"`
	Read  bool   `json:"read"`
	Write bool   `json:"write"`
}

// NormalizeRelayURL validates and canonicalizes a relay address.
// Secure websockets are required; plain ws:// is accepted for loopback only
// (local relays and tests).
func NormalizeRelayURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("validation: empty relay url")
	}
	if !strings.Contains(s, "://") {
		s = "wss://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("validation: relay url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "wss":
	case "ws":
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return "", fmt.Errorf("validation: insecure relay url %q", raw)
		}
	default:
		return "", fmt.Errorf("validation: unsupported relay scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("validation: relay url %q has no host", raw)
	}
	u.Host = strings.ToLower(u.Host)
	return strings.TrimRight(u.String(), "/"), nil
}

// ReadRelays returns the subset of relays enabled for reading.
func ReadRelays(relays []RelayConfig) []RelayConfig {
	out := make([]RelayConfig, 0, len(relays))
	for _, r := range relays {
		if r.Read {
			out = append(out, r)
		}
	}
	return out
}

// WriteRelays returns the subset of relays enabled for writing.
func WriteRelays(relays []RelayConfig) []RelayConfig {
	out := make([]RelayConfig, 0, len(relays))
	for _, r := range relays {
		if r.Write {
			out = append(out, r)
		}
	}
	return out
}
