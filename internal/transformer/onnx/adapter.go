package onnx

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	adapterConfigFile = "adapter_config.json"
	composedModelFile = "model.onnx"
)

// AdapterConfig is the subset of a PEFT adapter_config.json the loader checks.
type AdapterConfig struct {
	PeftType      string   `json:"peft_type"`
	TaskType      string   `json:"task_type"`
	BaseModel     string   `json:"base_model_name_or_path"`
	Rank          int      `json:"r"`
	Alpha         float64  `json:"lora_alpha"`
	Dropout       float64  `json:"lora_dropout"`
	TargetModules []string `json:"target_modules"`
}

// Adapter is a fine-tuned low rank adapter together with the graph that has it
// merged into the base backbone.
type Adapter struct {
	Dir       string
	Config    AdapterConfig
	ModelPath string
}

// LoadAdapter reads and checks the adapter at dir against the expected base model.
func LoadAdapter(dir, baseModelID string) (*Adapter, error) {
	if dir == "" {
		return nil, fmt.Errorf("missing adapter path")
	}

	raw, err := os.ReadFile(filepath.Join(dir, adapterConfigFile))
	if err != nil {
		return nil, fmt.Errorf("read adapter config: %w", err)
	}
	var cfg AdapterConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse adapter config: %w", err)
	}

	if !strings.EqualFold(cfg.PeftType, "LORA") {
		return nil, fmt.Errorf("unsupported adapter type %q, want LORA", cfg.PeftType)
	}
	if !strings.EqualFold(cfg.TaskType, "SEQ_CLS") {
		return nil, fmt.Errorf("adapter task %q is not sequence classification", cfg.TaskType)
	}
	if baseModelID != "" && cfg.BaseModel != "" && cfg.BaseModel != baseModelID {
		return nil, fmt.Errorf("adapter was trained on %q, not %q", cfg.BaseModel, baseModelID)
	}

	modelPath := filepath.Join(dir, composedModelFile)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("composed model: %w", err)
	}

	return &Adapter{Dir: dir, Config: cfg, ModelPath: modelPath}, nil
}

// Scaling is the factor the low rank update is multiplied by before merging.
func (a *Adapter) Scaling() float64 {
	if a.Config.Rank == 0 {
		return 0
	}
	return a.Config.Alpha / float64(a.Config.Rank)
}
