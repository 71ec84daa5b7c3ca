// Package messages holds the player-facing text catalog. Templates use
// {{name}} placeholders filled from a value map at send time.
package messages

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Catalog is a concurrency-safe set of named templates.
type Catalog struct {
	mu    sync.RWMutex
	texts map[string]string
	path  string
}

// New returns a catalog seeded with Defaults.
func New() *Catalog {
	c := &Catalog{texts: make(map[string]string, len(Defaults))}
	for k, v := range Defaults {
		c.texts[k] = v
	}
	return c
}

// Get returns the raw template for key, or the key itself when unknown.
func (c *Catalog) Get(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if t, ok := c.texts[key]; ok {
		return t
	}
	return key
}

// Set overrides a single template.
func (c *Catalog) Set(key, text string) {
	c.mu.Lock()
	c.texts[key] = text
	c.mu.Unlock()
}

// Render looks up key and fills its placeholders from vals.
func (c *Catalog) Render(key string, vals map[string]string) string {
	return Format(c.Get(key), vals)
}

// Format substitutes {{name}} placeholders. Placeholders with no value are
// left as they are.
func Format(tmpl string, vals map[string]string) string {
	if len(vals) == 0 || !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	var sb strings.Builder
	rest := tmpl
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			break
		}
		end := strings.Index(rest[open+2:], "}}")
		if end < 0 {
			break
		}
		name := rest[open+2 : open+2+end]
		sb.WriteString(rest[:open])
		if v, ok := vals[strings.TrimSpace(name)]; ok {
			sb.WriteString(v)
		} else {
			sb.WriteString(rest[open : open+4+end])
		}
		rest = rest[open+4+end:]
	}
	sb.WriteString(rest)
	return sb.String()
}

// LoadFile merges a YAML map of key: template over the current catalog.
func (c *Catalog) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("messages: read %s: %w", path, err)
	}
	var overrides map[string]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return 0, fmt.Errorf("messages: parse %s: %w", path, err)
	}
	c.mu.Lock()
	for k, v := range overrides {
		c.texts[k] = v
	}
	c.path = path
	c.mu.Unlock()
	return len(overrides), nil
}

// Watch reloads the override file whenever it is written. It returns once
// the watcher is running; the watcher stops when ctx is done.
func (c *Catalog) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("messages: watcher: %w", err)
	}
	// Editors often replace files, so watch the directory.
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("messages: watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				n, err := c.LoadFile(path)
				if err != nil {
					log.Printf("messages: reload failed: %v", err)
					continue
				}
				log.Printf("messages: reloaded %d templates from %s", n, path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("messages: watcher error: %v", err)
			}
		}
	}()
	log.Printf("messages: watching %s for changes", path)
	return nil
}
