package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// artifactHeader fields shared by every saved model
type artifactHeader struct {
	Type      string    `json:"type"`
	Features  []string  `json:"features,omitempty"`
	Labels    []int     `json:"labels,omitempty"`
	TrainedAt time.Time `json:"trained_at"`
}

// ReadModelType returns the model type recorded in a saved artifact.
func ReadModelType(path string) (string, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var header artifactHeader
	if err := json.Unmarshal(payload, &header); err != nil {
		return "", fmt.Errorf("decode model header: %w", err)
	}
	if header.Type == "" {
		return "", fmt.Errorf("model artifact %s has no type", path)
	}
	return header.Type, nil
}

func writeArtifact(path string, artifact interface{}) error {
	payload, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	// Write then rename so a watching server never reads a half-written file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readArtifact(path, wantType string, artifact interface{}) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var header artifactHeader
	if err := json.Unmarshal(payload, &header); err != nil {
		return fmt.Errorf("decode model header: %w", err)
	}
	if header.Type != wantType {
		return fmt.Errorf("model artifact is %q, expected %q", header.Type, wantType)
	}
	if err := json.Unmarshal(payload, artifact); err != nil {
		return fmt.Errorf("decode %s model: %w", wantType, err)
	}
	return nil
}

func distinctLabels(labels []int) []int {
	seen := make(map[int]bool)
	out := make([]int, 0)
	for _, label := range labels {
		if !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	sort.Ints(out)
	return out
}
