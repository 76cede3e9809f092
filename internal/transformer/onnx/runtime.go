package onnx

import (
	"errors"
	"fmt"

	"github.com/comfforts/logger"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/hankgalt/triage/pkg/domain"
)

// ValidateQuantization rejects schemes the exported graphs are never built with.
func ValidateQuantization(q domain.QuantizationConfig) error {
	if q.LoadIn4Bit {
		switch q.QuantType {
		case "nf4", "fp4":
		default:
			return fmt.Errorf("unsupported 4-bit quant type %q", q.QuantType)
		}
	}
	switch q.ComputeDType {
	case "float16", "bfloat16", "float32":
	default:
		return fmt.Errorf("unsupported compute dtype %q", q.ComputeDType)
	}
	return nil
}

// InitRuntime initializes the global ORT env once per process (safe to call multiple times).
func InitRuntime(libPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	if libPath == "" {
		return errors.New("missing path to onnxruntime")
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("init ORT env: %w", err)
	}
	return nil
}

// sessionOptions resolves the configured device into execution providers.
// The returned device is the one actually used.
func sessionOptions(device domain.Device, l logger.Logger) (*ort.SessionOptions, domain.Device, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, "", fmt.Errorf("session options: %w", err)
	}

	switch device {
	case domain.DeviceCPU:
		return opts, domain.DeviceCPU, nil
	case domain.DeviceGPU, domain.DeviceAuto:
		cudaErr := appendCUDA(opts)
		if cudaErr == nil {
			return opts, domain.DeviceGPU, nil
		}
		if device == domain.DeviceGPU {
			_ = opts.Destroy()
			return nil, "", fmt.Errorf("gpu requested: %w", cudaErr)
		}
		l.Info("CUDA unavailable, placing model on cpu", "error", cudaErr.Error())
		return opts, domain.DeviceCPU, nil
	default:
		_ = opts.Destroy()
		return nil, "", fmt.Errorf("unknown device %q", device)
	}
}

func appendCUDA(opts *ort.SessionOptions) error {
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return err
	}
	defer cuda.Destroy()
	return opts.AppendExecutionProviderCUDA(cuda)
}
