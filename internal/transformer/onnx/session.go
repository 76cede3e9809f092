package onnx

import (
	"errors"
	"fmt"

	"github.com/comfforts/logger"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/hankgalt/triage/pkg/domain"
)

// Session runs the composed sequence classification graph.
type Session struct {
	cfg       domain.ONNXClassifierConfig
	sess      *ort.DynamicAdvancedSession
	numLabels int
	halfOut   bool // true if logits are float16
	device    domain.Device
}

// NewSession opens modelPath and checks its logits output carries numLabels classes.
// The ORT environment must already be initialized.
func NewSession(cfg domain.ONNXClassifierConfig, modelPath string, numLabels int, l logger.Logger) (*Session, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("missing model path")
	}
	if numLabels <= 0 {
		return nil, fmt.Errorf("invalid label count %d", numLabels)
	}
	infosIn, infosOut, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("GetInputOutputInfo: %w", err)
	}
	for _, i := range infosIn {
		l.Debug("model input", "name", i.Name, "type", i.DataType.String(), "dims", i.Dimensions.String())
	}

	var outInfo *ort.InputOutputInfo
	for i := range infosOut {
		l.Debug("model output", "name", infosOut[i].Name, "type", infosOut[i].DataType.String(), "dims", infosOut[i].Dimensions.String())
		if infosOut[i].Name == cfg.OutputName {
			outInfo = &infosOut[i]
			break
		}
	}
	if outInfo == nil {
		return nil, fmt.Errorf("output %q not found in model", cfg.OutputName)
	}

	outDims := outInfo.Dimensions
	if len(outDims) != 2 {
		return nil, fmt.Errorf("unexpected output rank %d (dims=%v), want 2", len(outDims), outDims)
	}
	// dynamic dims are reported as -1
	if outDims[1] > 0 && int(outDims[1]) != numLabels {
		return nil, fmt.Errorf("model has %d classes, label registry has %d", outDims[1], numLabels)
	}

	var halfOut bool
	switch outInfo.DataType {
	case ort.TensorElementDataTypeFloat:
	case ort.TensorElementDataTypeFloat16:
		halfOut = true
	default:
		return nil, fmt.Errorf("unsupported logits type %v", outInfo.DataType)
	}

	opts, device, err := sessionOptions(cfg.Device, l)
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	sess, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{cfg.InputNameIDs, cfg.InputNameMask},
		[]string{cfg.OutputName},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("NewDynamicAdvancedSession: %w", err)
	}

	l.Info("classification session ready",
		"device", string(device),
		"labels", numLabels,
		"quant-type", cfg.Quantization.QuantType,
		"compute-dtype", cfg.Quantization.ComputeDType,
	)

	return &Session{
		cfg:       cfg,
		sess:      sess,
		numLabels: numLabels,
		halfOut:   halfOut,
		device:    device,
	}, nil
}

// Device reports where the model was placed.
func (s *Session) Device() domain.Device {
	return s.device
}

// Forward runs one sequence through the graph and returns its raw logits.
func (s *Session) Forward(ids, mask []int64) ([]float32, error) {
	if s.sess == nil {
		return nil, fmt.Errorf("session not initialized")
	}
	if len(ids) == 0 || len(ids) != len(mask) {
		return nil, fmt.Errorf("bad input lengths ids=%d mask=%d", len(ids), len(mask))
	}

	// Inputs [1,T] int64
	shape := ort.NewShape(1, int64(len(ids)))
	idTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("input_ids tensor: %w", err)
	}
	defer idTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	outShape := ort.NewShape(1, int64(s.numLabels))
	if s.halfOut {
		out, err := ort.NewCustomDataTensor(outShape, make([]byte, 2*s.numLabels), ort.TensorElementDataTypeFloat16)
		if err != nil {
			return nil, fmt.Errorf("alloc out tensor: %w", err)
		}
		defer out.Destroy()

		if err := s.sess.Run([]ort.Value{idTensor, maskTensor}, []ort.Value{out}); err != nil {
			return nil, fmt.Errorf("ORT Run: %w", err)
		}
		return decodeHalfs(out.GetData()), nil
	}

	out, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		return nil, fmt.Errorf("alloc out tensor: %w", err)
	}
	defer out.Destroy()

	if err := s.sess.Run([]ort.Value{idTensor, maskTensor}, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("ORT Run: %w", err)
	}

	logits := make([]float32, s.numLabels)
	copy(logits, out.GetData())
	return logits, nil
}

func (s *Session) Close() error {
	var err error
	if s.sess != nil {
		err = s.sess.Destroy()
		s.sess = nil
	}
	if s.cfg.GlobalRuntime {
		return err
	}
	if eErr := ort.DestroyEnvironment(); eErr != nil {
		if err != nil {
			return errors.Join(err, eErr)
		}
		return eErr
	}
	return nil
}
