package room

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
)

// UserNameKey is the single key the display name is stored under.
const UserNameKey = "whiteboard-userName"

// Prefs is a tiny JSON key/value file holding the display name.
type Prefs struct {
	path string

	mu       sync.Mutex
	fallback string
}

// DefaultPrefsPath is <user config dir>/whiteboard/prefs.json.
func DefaultPrefsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "whiteboard", "prefs.json"), nil
}

func NewPrefs(path string) *Prefs {
	return &Prefs{path: path}
}

// UserName returns the stored name, or a generated User<n> that stays the
// same for the life of p. The generated name is not written.
func (p *Prefs) UserName() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if vals, err := p.read(); err == nil && vals[UserNameKey] != "" {
		return vals[UserNameKey]
	}
	if p.fallback == "" {
		p.fallback = fmt.Sprintf("User%d", rand.IntN(1000))
	}
	return p.fallback
}

func (p *Prefs) SetUserName(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	vals, err := p.read()
	if err != nil {
		// unreadable file is replaced
		vals = map[string]string{}
	}
	vals[UserNameKey] = name

	b, err := json.MarshalIndent(vals, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("prefs dir: %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return os.Rename(tmp, p.path)
}

func (p *Prefs) read() (map[string]string, error) {
	b, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	vals := map[string]string{}
	if err := json.Unmarshal(b, &vals); err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.path, err)
	}
	if vals == nil {
		vals = map[string]string{}
	}
	return vals, nil
}
