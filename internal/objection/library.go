// Package objection holds thematic libraries of caller objections and the
// fuzzy matcher the processing phase uses to pick a rebuttal.
package objection

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/vocira/vocira/internal/classify"
)

// Entry is one known objection with its pre-recorded rebuttal.
type Entry struct {
	Category      string   `json:"category"`
	Canonical     string   `json:"canonical"`
	Keywords      []string `json:"keywords"`
	ResponseAudio string   `json:"response_audio"`
	FallbackText  string   `json:"fallback_text"`

	normCanonical string
	normKeywords  map[string]bool
}

func (e *Entry) precompute() error {
	if e.Category == "" {
		return fmt.Errorf("entry missing category")
	}
	if e.Canonical == "" {
		return fmt.Errorf("entry %s missing canonical form", e.Category)
	}
	e.normCanonical = classify.Normalize(e.Canonical)
	e.normKeywords = make(map[string]bool, len(e.Keywords))
	for _, k := range e.Keywords {
		for _, tok := range classify.ContentTokens(k) {
			e.normKeywords[tok] = true
		}
	}
	if len(e.normKeywords) == 0 {
		return fmt.Errorf("entry %s has no usable keywords", e.Category)
	}
	return nil
}

// Library caches theme files for the process lifetime. The default theme
// is loaded eagerly so configuration mistakes surface at startup; other
// themes load on first use.
type Library struct {
	dir string

	mu     sync.RWMutex
	themes map[string][]*Entry
}

func NewLibrary(dir, defaultTheme string) (*Library, error) {
	l := &Library{dir: dir, themes: make(map[string][]*Entry)}
	if defaultTheme != "" {
		if _, err := l.theme(defaultTheme); err != nil {
			return nil, fmt.Errorf("load default theme: %w", err)
		}
	}
	return l, nil
}

func (l *Library) theme(name string) ([]*Entry, error) {
	l.mu.RLock()
	entries, ok := l.themes[name]
	l.mu.RUnlock()
	if ok {
		return entries, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if entries, ok := l.themes[name]; ok {
		return entries, nil
	}

	entries, err := loadThemeFile(filepath.Join(l.dir, name+".json"))
	if err != nil {
		return nil, err
	}
	l.themes[name] = entries
	slog.Info("objection: theme loaded", "theme", name, "entries", len(entries))
	return entries, nil
}

func loadThemeFile(path string) ([]*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read theme file: %w", err)
	}

	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse theme file %s: %w", filepath.Base(path), err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("theme file %s has no entries", filepath.Base(path))
	}

	for _, e := range entries {
		if err := e.precompute(); err != nil {
			return nil, fmt.Errorf("theme file %s: %w", filepath.Base(path), err)
		}
	}
	return entries, nil
}
