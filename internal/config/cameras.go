package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Camera describes one monitored camera.
type Camera struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	SourceDir string `yaml:"source_dir,omitempty"` // overrides SOURCE_DIR/<day>/<id> discovery
	UDPAddr   string `yaml:"udp_addr,omitempty"`   // sender IP for the UDP source
}

type camerasFile struct {
	Cameras []Camera `yaml:"cameras"`
}

// LoadCamerasFile parses a YAML camera list.
func LoadCamerasFile(path string) ([]Camera, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cameras file: %w", err)
	}

	var file camerasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse cameras file: %w", err)
	}

	seen := make(map[string]bool, len(file.Cameras))
	for i, cam := range file.Cameras {
		if cam.ID == "" {
			return nil, fmt.Errorf("%w: camera #%d has no id", ErrInvalidConfig, i+1)
		}
		if seen[cam.ID] {
			return nil, fmt.Errorf("%w: duplicate camera id %q", ErrInvalidConfig, cam.ID)
		}
		seen[cam.ID] = true
	}

	return file.Cameras, nil
}
