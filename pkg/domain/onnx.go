package domain

// Device selects where the ONNX runtime places the model.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceGPU  Device = "gpu"
	DeviceAuto Device = "auto"
)

const (
	DefaultBaseModelID = "meta-llama/Meta-Llama-3.1-8B"
	DefaultAdapterPath = "./model"
	DefaultMaxSeqLen   = 512
	DefaultOutputName  = "logits"
)

// QuantizationConfig fixes the numeric format the composed graph was exported with.
type QuantizationConfig struct {
	// weights stored as 4-bit blocks
	LoadIn4Bit bool
	// "nf4" or "fp4"
	QuantType string
	// "float16", "bfloat16" or "float32"
	ComputeDType string
}

// DefaultQuantization is 4-bit NF4 with half precision compute.
func DefaultQuantization() QuantizationConfig {
	return QuantizationConfig{
		LoadIn4Bit:   true,
		QuantType:    "nf4",
		ComputeDType: "float16",
	}
}

type ONNXClassifierConfig struct {
	// hub id of the base backbone, e.g. "meta-llama/Meta-Llama-3.1-8B"
	BaseModelID string
	// directory containing adapter_config.json and the composed model.onnx
	AdapterPath string
	// optional local directory with tokenizer.json; skips the hub fetch
	TokenizerPath string
	// hub download cache, empty for the library default
	HubCacheDir string
	// hub credential, never logged
	HFToken string
	// path to the onnxruntime shared library
	RuntimeLibPath string
	// e.g. "input_ids"
	InputNameIDs string
	// e.g. "attention_mask"
	InputNameMask string
	// e.g. "logits"
	OutputName string
	// tokens kept after truncation, capped at 512
	MaxSeqLen int
	// cpu, gpu or auto
	Device       Device
	Quantization QuantizationConfig
	// if true, this instance will skip shutting down the ONNX runtime on close
	// This is useful if multiple classifiers are used in the same process.
	GlobalRuntime bool
}

// WithDefaults fills unset fields.
func (c ONNXClassifierConfig) WithDefaults() ONNXClassifierConfig {
	if c.BaseModelID == "" {
		c.BaseModelID = DefaultBaseModelID
	}
	if c.AdapterPath == "" {
		c.AdapterPath = DefaultAdapterPath
	}
	if c.InputNameIDs == "" {
		c.InputNameIDs = "input_ids"
	}
	if c.InputNameMask == "" {
		c.InputNameMask = "attention_mask"
	}
	if c.OutputName == "" {
		c.OutputName = DefaultOutputName
	}
	if c.MaxSeqLen <= 0 || c.MaxSeqLen > DefaultMaxSeqLen {
		c.MaxSeqLen = DefaultMaxSeqLen
	}
	if c.Device == "" {
		c.Device = DeviceAuto
	}
	if c.Quantization == (QuantizationConfig{}) {
		c.Quantization = DefaultQuantization()
	}
	return c
}
