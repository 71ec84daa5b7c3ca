package messages

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		tmpl string
		vals map[string]string
		want string
	}{
		{"{{name}} says \"{{message}}\"", map[string]string{"name": "Ann", "message": "hi"}, "Ann says \"hi\""},
		{"no placeholders", map[string]string{"x": "y"}, "no placeholders"},
		{"{{missing}} stays", map[string]string{"name": "Ann"}, "{{missing}} stays"},
		{"{{ name }} trims", map[string]string{"name": "Ann"}, "Ann trims"},
		{"unterminated {{name", map[string]string{"name": "Ann"}, "unterminated {{name"},
		{"{{a}}{{a}}", map[string]string{"a": "x"}, "xx"},
		{"nil vals {{a}}", nil, "nil vals {{a}}"},
	}
	for _, tt := range tests {
		if got := Format(tt.tmpl, tt.vals); got != tt.want {
			t.Errorf("Format(%q) = %q, want %q", tt.tmpl, got, tt.want)
		}
	}
}

func TestCatalogDefaultsAndUnknown(t *testing.T) {
	c := New()
	if got := c.Render("says", map[string]string{"name": "Bob", "message": "yo"}); got != "Bob says \"yo\"" {
		t.Errorf("Render(says) = %q", got)
	}
	if got := c.Get("noSuchKey"); got != "noSuchKey" {
		t.Errorf("unknown key = %q", got)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "messages.yaml")
	if err := os.WriteFile(path, []byte("taken: \"Got it.\"\nextra: \"new\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := New()
	n, err := c.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if n != 2 {
		t.Errorf("loaded %d, want 2", n)
	}
	if c.Get("taken") != "Got it." {
		t.Errorf("taken = %q", c.Get("taken"))
	}
	if c.Get("dropped") != Defaults["dropped"] {
		t.Error("keys absent from the file should keep defaults")
	}
	if _, err := c.LoadFile(filepath.Join(dir, "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

// eventually polls until key renders as want.
func eventually(t *testing.T, c *Catalog, key, want string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for c.Get(key) != want {
		if time.Now().After(deadline) {
			t.Fatalf("%s = %q, want %q", key, c.Get(key), want)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "messages.yaml")
	if err := os.WriteFile(path, []byte("taken: Got it.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := New()
	if _, err := c.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Watch(ctx, path); err != nil {
		t.Fatal(err)
	}

	// In-place write.
	if err := os.WriteFile(path, []byte("taken: Yoink.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	eventually(t, c, "taken", "Yoink.")

	// Editors write a temp file and rename it over the original.
	tmp := filepath.Join(dir, "messages.yaml.swp")
	if err := os.WriteFile(tmp, []byte("taken: Mine now.\ndropped: Gone.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	eventually(t, c, "dropped", "Gone.")
	if got := c.Get("taken"); got != "Mine now." {
		t.Errorf("taken = %q", got)
	}
}

func TestWatchMissingDir(t *testing.T) {
	c := New()
	if err := c.Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "m.yaml")); err == nil {
		t.Error("watching a missing directory should fail")
	}
}
