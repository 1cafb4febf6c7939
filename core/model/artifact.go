package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/banerjixplores/climacrop/pkg/errors"
)

// FormatVersion is the only artifact format this build reads and writes.
const FormatVersion = "1.0"

// ArtifactSpec はアーティファクトのメタデータ
type ArtifactSpec struct {
	Name          string    `json:"name"`                  // モデル名 (e.g., "DecisionTreeClassifier")
	FormatVersion string    `json:"format_version"`        // フォーマットバージョン
	SystemType    string    `json:"system_type,omitempty"` // Agricultural / Wild
	RunID         string    `json:"run_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Artifact is a persisted model or result: metadata plus a model-specific payload.
type Artifact struct {
	Spec   ArtifactSpec    `json:"model_spec"`
	Params json.RawMessage `json:"params"`
}

// NewArtifact marshals params into an artifact named name.
func NewArtifact(name string, params interface{}) (*Artifact, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, "marshal params")
	}
	return &Artifact{
		Spec: ArtifactSpec{
			Name:          name,
			FormatVersion: FormatVersion,
			CreatedAt:     time.Now().UTC(),
		},
		Params: raw,
	}, nil
}

// WriteArtifact encodes a as indented JSON.
func WriteArtifact(a *Artifact, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return errors.Wrap(err, "encode artifact")
	}
	return nil
}

// SaveArtifact writes a to path, creating parent directories.
func SaveArtifact(a *Artifact, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "mkdir artifact dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := WriteArtifact(a, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadArtifact はReaderからアーティファクトを読み込み、バージョンを検証する
func ReadArtifact(r io.Reader) (*Artifact, error) {
	var a Artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, errors.Wrap(err, "decode artifact")
	}

	// バージョン検証
	if a.Spec.FormatVersion == "" {
		return nil, errors.NewValueError("ReadArtifact", "format_version is required")
	}
	if a.Spec.FormatVersion != FormatVersion {
		return nil, errors.NewValueError("ReadArtifact",
			fmt.Sprintf("unsupported format version: %s", a.Spec.FormatVersion))
	}
	if a.Spec.Name == "" {
		return nil, errors.NewValueError("ReadArtifact", "model name is required")
	}
	return &a, nil
}

// LoadArtifact reads an artifact from path.
func LoadArtifact(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()
	return ReadArtifact(f)
}

// Decode unmarshals the payload into out after checking the artifact name.
func (a *Artifact) Decode(name string, out interface{}) error {
	if a.Spec.Name != name {
		return errors.NewValueError("Artifact.Decode",
			fmt.Sprintf("expected %s, got %s", name, a.Spec.Name))
	}
	if err := json.Unmarshal(a.Params, out); err != nil {
		return errors.Wrap(err, "unmarshal params")
	}
	return nil
}
