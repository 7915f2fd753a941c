package assemble

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"voxsplit/internal/services"
)

// Entry records one emitted artifact: its path on disk and, for segment
// audio, the source interval it covers.
type Entry struct {
	Path  string  `json:"path"`
	Start float64 `json:"start,omitempty"`
	End   float64 `json:"end,omitempty"`
}

// Manifest maps logical artifact names (vocals, bgm, speaker_00_combined,
// speaker_00_seg_001, ...) to their on-disk locations.
type Manifest struct {
	entries map[string]Entry
}

func NewManifest() *Manifest {
	return &Manifest{entries: make(map[string]Entry)}
}

func (m *Manifest) Add(name string, entry Entry) {
	m.entries[name] = entry
}

// Lookup returns the entry registered under name.
func (m *Manifest) Lookup(name string) (Entry, bool) {
	e, ok := m.entries[name]
	return e, ok
}

// Names returns all registered artifact names in sorted order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manifest) Len() int {
	return len(m.entries)
}

func (m *Manifest) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.entries)
}

func (m *Manifest) UnmarshalJSON(data []byte) error {
	m.entries = make(map[string]Entry)
	return json.Unmarshal(data, &m.entries)
}

// Write persists the manifest as JSON at path, creating parent directories
// as needed.
func (m *Manifest) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return services.Wrap(services.ErrIO, "assembly", "write manifest", "failed to create manifest directory", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrIO, "assembly", "write manifest", "failed to encode manifest", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrIO, "assembly", "write manifest", "failed to write manifest file", err)
	}
	return nil
}
