package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	ArtifactType    = "linear_regression"
	ArtifactVersion = 1
)

type artifact struct {
	Type      string    `json:"type"`
	Version   int       `json:"version"`
	Slope     *float64  `json:"slope"`
	Intercept *float64  `json:"intercept"`
	TrainedAt time.Time `json:"trained_at"`
}

// Save writes the model to path. The file is written beside the target and renamed
// into place, so readers see either the previous artifact or the complete new one.
func (m *LinearModel) Save(path string) error {
	if !finite(m.Slope) || !finite(m.Intercept) {
		return fmt.Errorf("%w: refusing to save non-finite coefficients", ErrDegenerateFit)
	}
	slope, intercept := m.Slope, m.Intercept
	payload, err := json.MarshalIndent(artifact{
		Type:      ArtifactType,
		Version:   ArtifactVersion,
		Slope:     &slope,
		Intercept: &intercept,
		TrainedAt: m.TrainedAt,
	}, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// LoadModel reads an artifact written by Save.
func LoadModel(path string) (*LinearModel, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a artifact
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	if a.Type != ArtifactType || a.Version != ArtifactVersion {
		return nil, fmt.Errorf("%w: type %q version %d", ErrIncompatibleArtifact, a.Type, a.Version)
	}
	if a.Slope == nil || a.Intercept == nil {
		return nil, fmt.Errorf("%w: missing coefficients", ErrCorruptArtifact)
	}
	return &LinearModel{
		Slope:     *a.Slope,
		Intercept: *a.Intercept,
		TrainedAt: a.TrainedAt,
	}, nil
}
