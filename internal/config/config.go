package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/hankgalt/triage/pkg/domain"
)

// Config holds runtime configuration read from the environment.
type Config struct {
	// Server
	Port int `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`

	// Model
	BaseModelID   string `env:"TRIAGE_BASE_MODEL_ID" envDefault:"meta-llama/Meta-Llama-3.1-8B" validate:"required"`
	AdapterPath   string `env:"TRIAGE_ADAPTER_PATH" envDefault:"./model" validate:"required"`
	TokenizerPath string `env:"TRIAGE_TOKENIZER_PATH"`
	HubCacheDir   string `env:"TRIAGE_HUB_CACHE_DIR"`
	HFToken       string `env:"HUGGING_FACE_TOKEN"`
	MaxSeqLen     int    `env:"TRIAGE_MAX_SEQ_LEN" envDefault:"512" validate:"min=1,max=512"`
	Device        string `env:"TRIAGE_DEVICE" envDefault:"auto" validate:"oneof=cpu gpu auto"`
	QuantType     string `env:"TRIAGE_QUANT_TYPE" envDefault:"nf4" validate:"oneof=nf4 fp4"`
	ComputeDType  string `env:"TRIAGE_COMPUTE_DTYPE" envDefault:"float16" validate:"oneof=float16 bfloat16 float32"`

	// Runtime
	RuntimeLibPath string `env:"ONNXRUNTIME_SHARED_LIBRARY_PATH"`
}

// Load reads an optional .env file, then the environment, and validates the result.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Classifier maps the configuration onto the model loader's settings.
func (c Config) Classifier() domain.ONNXClassifierConfig {
	return domain.ONNXClassifierConfig{
		BaseModelID:    c.BaseModelID,
		AdapterPath:    c.AdapterPath,
		TokenizerPath:  c.TokenizerPath,
		HubCacheDir:    c.HubCacheDir,
		HFToken:        c.HFToken,
		RuntimeLibPath: c.RuntimeLibPath,
		MaxSeqLen:      c.MaxSeqLen,
		Device:         domain.Device(c.Device),
		Quantization: domain.QuantizationConfig{
			LoadIn4Bit:   true,
			QuantType:    c.QuantType,
			ComputeDType: c.ComputeDType,
		},
	}.WithDefaults()
}
