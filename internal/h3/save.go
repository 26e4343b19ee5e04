package h3

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/samcharles93/hippo/internal/hub"
	"github.com/samcharles93/hippo/internal/safetensors"
)

const (
	WeightsFile = "model.safetensors"
	ConfigFile  = "config.json"
)

type hfConfig struct {
	Config
	Architectures []string `json:"architectures"`
	ModelType     string   `json:"model_type"`
}

// Save serializes the loaded model to dir as safetensors weights plus a
// config.json describing the architecture.
func (m *Model) Save(dir string, dtype safetensors.DType) error {
	if !m.loaded {
		return fmt.Errorf("model parameters not loaded")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	cfgBytes, err := json.MarshalIndent(hfConfig{
		Config:        m.cfg,
		Architectures: []string{"H3ForCausalLM"},
		ModelType:     "h3",
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), append(cfgBytes, '\n'), 0o644); err != nil {
		return err
	}

	manifest := m.cfg.Manifest()
	tensors := make([]safetensors.NamedTensor, 0, len(manifest))
	for _, spec := range manifest {
		t := m.param(spec.Name)
		tensors = append(tensors, safetensors.NamedTensor{
			Name:  spec.Name,
			Shape: t.Shape,
			Data:  t.Data,
		})
	}
	return safetensors.Write(filepath.Join(dir, WeightsFile), tensors, dtype)
}

// Uploader pushes files to a model registry. Satisfied by *hub.Client.
type Uploader interface {
	Upload(ctx context.Context, repo, summary string, files []hub.UploadFile) error
}

// Push serializes the model to a scratch directory and uploads the artifacts
// to the given repository.
func (m *Model) Push(ctx context.Context, up Uploader, repo string, dtype safetensors.DType) error {
	dir, err := os.MkdirTemp("", "hippo-push-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(dir) }()

	if err := m.Save(dir, dtype); err != nil {
		return err
	}
	files := []hub.UploadFile{
		{Path: ConfigFile, Source: filepath.Join(dir, ConfigFile)},
		{Path: WeightsFile, Source: filepath.Join(dir, WeightsFile)},
	}
	return up.Upload(ctx, repo, "Upload converted H3 checkpoint", files)
}
