package models

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const snapshotFile = "session.yaml"

// Snapshot is the persisted state of a session. Inventory lives in the item
// store and is not part of it.
type Snapshot struct {
	Mode     GameplayMode `yaml:"mode"`
	Health   Health       `yaml:"health"`
	Gold     Gold         `yaml:"gold"`
	Messages []Message    `yaml:"messages"`
}

// Save writes the snapshot to <dir>/<name>/session.yaml.
func (s *Snapshot) Save(dir, name string) error {
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(path, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(path, snapshotFile), data, 0644)
}

// LoadSnapshot reads a snapshot saved under dir with the given name.
func LoadSnapshot(dir, name string) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(dir, name, snapshotFile))
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListSnapshots returns the names of saved sessions under dir.
func ListSnapshots(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []string{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		// session.yaml marks a valid save
		if _, err := os.Stat(filepath.Join(dir, entry.Name(), snapshotFile)); err == nil {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
