package service

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pilotguru/sensorlog/internal/session"
)

// ManifestFile is written next to the stream logs when a session stops.
const ManifestFile = "manifest.yaml"

// Manifest describes one recorded session directory.
type Manifest struct {
	SessionID string              `yaml:"session_id"`
	Started   time.Time           `yaml:"started"`
	Stopped   time.Time           `yaml:"stopped"`
	Files     []ManifestFileEntry `yaml:"files"`
}

type ManifestFileEntry struct {
	Name string `yaml:"name"`
	Size int64  `yaml:"size"`
}

// ManifestNotifier is a session.Notifier that records the finished files in
// manifest.yaml and then forwards them to Next.
type ManifestNotifier struct {
	Next session.Notifier

	mu      sync.Mutex
	id      string
	dir     string
	started time.Time
}

// Begin sets the identity of the session whose files arrive next.
func (n *ManifestNotifier) Begin(id, dir string, started time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.id, n.dir, n.started = id, dir, started
}

// Notify implements session.Notifier.
func (n *ManifestNotifier) Notify(paths []string) {
	n.mu.Lock()
	m := Manifest{SessionID: n.id, Started: n.started, Stopped: time.Now()}
	dir := n.dir
	n.mu.Unlock()

	for _, p := range paths {
		entry := ManifestFileEntry{Name: filepath.Base(p)}
		if fi, err := os.Stat(p); err == nil {
			entry.Size = fi.Size()
		}
		m.Files = append(m.Files, entry)
	}

	if dir != "" {
		if err := writeManifest(dir, &m); err != nil {
			slog.Warn("Failed to write session manifest", "dir", dir, "error", err)
		}
	}

	if n.Next != nil {
		n.Next.Notify(paths)
	}
}

func writeManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644)
}

// ReadManifest loads manifest.yaml from a session directory.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
