package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// persistedCookie is the on-disk cookie shape. Sessions survive process
// restarts by replaying these into a fresh cookie jar before the first probe.
type persistedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure"`
	HTTPOnly bool      `json:"http_only"`
}

func saveCookies(path string, cookies []*http.Cookie) error {
	persisted := make([]persistedCookie, 0, len(cookies))
	for _, c := range cookies {
		persisted = append(persisted, persistedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		})
	}

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create cookie directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write cookie file %s: %w", path, err)
	}
	return nil
}

// loadCookies returns nil without error when the file does not exist yet.
// Expired cookies are dropped on load.
func loadCookies(path string) ([]*http.Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cookie file %s: %w", path, err)
	}

	var persisted []persistedCookie
	if err := json.Unmarshal(data, &persisted); err != nil {
		return nil, fmt.Errorf("failed to parse cookie file %s: %w", path, err)
	}

	now := time.Now()
	cookies := make([]*http.Cookie, 0, len(persisted))
	for _, p := range persisted {
		if !p.Expires.IsZero() && p.Expires.Before(now) {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:     p.Name,
			Value:    p.Value,
			Domain:   p.Domain,
			Path:     p.Path,
			Expires:  p.Expires,
			Secure:   p.Secure,
			HttpOnly: p.HTTPOnly,
		})
	}
	return cookies, nil
}
