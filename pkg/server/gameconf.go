package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// GameConf holds game-level configuration parameters, loaded from YAML.
type GameConf struct {
	// --- Identity ---
	MudName string `yaml:"mud_name"`

	// --- Listeners ---
	Port      int   `yaml:"port"`
	Cleartext *bool `yaml:"cleartext"` // nil means enabled

	WebEnabled     bool   `yaml:"web_enabled"`
	WebHost        string `yaml:"web_host"`
	WebPort        int    `yaml:"web_port"`
	WebDomain      string `yaml:"web_domain"` // enables autocert
	CertDir        string `yaml:"cert_dir"`
	TLSCert        string `yaml:"tls_cert"`
	TLSKey         string `yaml:"tls_key"`
	WSPingInterval int    `yaml:"ws_ping_interval"` // seconds
	WSConnectLimit int    `yaml:"ws_connect_limit"` // per address per minute, 0 disables

	WebTrustedProxies []string `yaml:"web_trusted_proxies"` // peers allowed to set X-Forwarded-For

	// --- Storage ---
	StoreDriver  string `yaml:"store_driver"` // memory | bolt | sqlite
	StorePath    string `yaml:"store_path"`
	StoreTimeout int    `yaml:"store_timeout"` // seconds, sqlite only

	// --- World ---
	DefaultRoom int `yaml:"default_room"`

	// --- Text ---
	MessagesPath     string `yaml:"messages_path"`
	WatchMessages    bool   `yaml:"watch_messages"`
	ClearScreenLines int    `yaml:"clear_screen_lines"`

	// --- Players ---
	HashPasswords   bool `yaml:"hash_passwords"`
	OverhearPercent int  `yaml:"overhear_percent"`
}

// DefaultGameConf returns a GameConf with sensible defaults.
func DefaultGameConf() *GameConf {
	return &GameConf{
		MudName:          "TinyMUD",
		Port:             4201,
		WebEnabled:       false,
		WebHost:          "",
		WebPort:          8443,
		WSPingInterval:   10,
		WSConnectLimit:   30,
		StoreDriver:      "memory",
		StorePath:        "data/tinymud.db",
		StoreTimeout:     5,
		DefaultRoom:      1,
		WatchMessages:    true,
		ClearScreenLines: 24,
		HashPasswords:    false,
		OverhearPercent:  10,
	}
}

// LoadGameConf reads a YAML config file over the defaults. Relative paths
// inside the file are resolved against the file's directory.
func LoadGameConf(path string) (*GameConf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gameconf: reading %s: %w", path, err)
	}

	gc := DefaultGameConf()
	if err := yaml.Unmarshal(data, gc); err != nil {
		return nil, fmt.Errorf("gameconf: parsing YAML %s: %w", path, err)
	}

	baseDir := filepath.Dir(path)
	for _, p := range []*string{&gc.StorePath, &gc.MessagesPath, &gc.CertDir, &gc.TLSCert, &gc.TLSKey} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(baseDir, *p)
		}
	}
	if err := gc.Validate(); err != nil {
		return nil, err
	}
	return gc, nil
}

// Validate rejects settings the server cannot run with.
func (gc *GameConf) Validate() error {
	switch gc.StoreDriver {
	case "memory", "bolt", "sqlite":
	default:
		return fmt.Errorf("gameconf: unknown store_driver %q", gc.StoreDriver)
	}
	if gc.OverhearPercent < 0 || gc.OverhearPercent > 100 {
		return fmt.Errorf("gameconf: overhear_percent %d out of range", gc.OverhearPercent)
	}
	if gc.WSConnectLimit < 0 {
		return fmt.Errorf("gameconf: ws_connect_limit must not be negative")
	}
	if _, err := parseProxies(gc.WebTrustedProxies); err != nil {
		return fmt.Errorf("gameconf: web_trusted_proxies: %w", err)
	}
	if gc.DefaultRoom <= 0 {
		return fmt.Errorf("gameconf: default_room must be positive")
	}
	return nil
}

// IsCleartext returns whether the cleartext listener is enabled.
// Defaults to true if not explicitly set.
func (gc *GameConf) IsCleartext() bool {
	if gc.Cleartext == nil {
		return true
	}
	return *gc.Cleartext
}

// PingInterval is the WebSocket keepalive period.
func (gc *GameConf) PingInterval() time.Duration {
	if gc.WSPingInterval <= 0 {
		return 10 * time.Second
	}
	return time.Duration(gc.WSPingInterval) * time.Second
}
