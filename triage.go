package triage

import (
	"context"
	"errors"

	"github.com/comfforts/logger"

	"github.com/hankgalt/triage/internal/hub"
	"github.com/hankgalt/triage/internal/transformer/onnx"
	"github.com/hankgalt/triage/pkg/domain"
)

type TicketClassifier interface {
	Classify(ctx context.Context, text string) (*domain.Prediction, error)
	Close(ctx context.Context) error
}

type onnxTicketClassifier struct {
	classifier *onnx.Classifier
}

// NewONNXTicketClassifier loads the adapter, tokenizer and composed model for the
// department registry. Any failure is a *LoadError.
func NewONNXTicketClassifier(ctx context.Context, cfg domain.ONNXClassifierConfig) (*onnxTicketClassifier, error) {
	l, err := logger.LoggerFromContext(ctx)
	if err != nil {
		l = logger.GetSlogLogger()
	}
	cfg = cfg.WithDefaults()
	labels := domain.DepartmentRegistry()

	if err := onnx.ValidateQuantization(cfg.Quantization); err != nil {
		l.Error("NewONNXTicketClassifier - invalid quantization", "error", err.Error())
		return nil, loadErr(StageModel, err)
	}

	if err := onnx.InitRuntime(cfg.RuntimeLibPath); err != nil {
		l.Error("NewONNXTicketClassifier - error initializing onnxruntime", "error", err.Error())
		return nil, loadErr(StageRuntime, err)
	}

	adapter, err := onnx.LoadAdapter(cfg.AdapterPath, cfg.BaseModelID)
	if err != nil {
		l.Error("NewONNXTicketClassifier - error loading adapter", "path", cfg.AdapterPath, "error", err.Error())
		return nil, loadErr(StageAdapter, err)
	}
	l.Info("adapter loaded",
		"path", adapter.Dir,
		"rank", adapter.Config.Rank,
		"scaling", adapter.Scaling(),
		"target-modules", adapter.Config.TargetModules,
	)

	tok, err := loadTokenizer(cfg)
	if err != nil {
		l.Error("NewONNXTicketClassifier - error loading tokenizer", "model", cfg.BaseModelID, "error", err.Error())
		return nil, loadErr(StageTokenizer, err)
	}
	if n, err := tok.VocabSize(); err == nil {
		l.Info("tokenizer loaded", "vocab", n, "pad-id", tok.PadID())
	}

	sess, err := onnx.NewSession(cfg, adapter.ModelPath, labels.Len(), l)
	if err != nil {
		l.Error("NewONNXTicketClassifier - error loading model", "error", err.Error())
		return nil, loadErr(StageModel, err)
	}

	cl, err := onnx.NewClassifier(tok, sess, labels, cfg.MaxSeqLen)
	if err != nil {
		_ = sess.Close()
		return nil, loadErr(StageModel, err)
	}

	return &onnxTicketClassifier{
		classifier: cl,
	}, nil
}

func loadTokenizer(cfg domain.ONNXClassifierConfig) (*onnx.HFTokenizer, error) {
	src, err := hub.NewSource(cfg.BaseModelID, cfg.TokenizerPath, cfg.HFToken, cfg.HubCacheDir)
	if err != nil {
		return nil, err
	}
	files, err := src.Tokenizer()
	if err != nil {
		return nil, err
	}

	eos := onnx.DefaultEOSToken
	if files.ConfigPath != "" {
		if t, err := hub.EOSToken(files.ConfigPath); err == nil {
			eos = t
		}
	}
	return onnx.NewHFTokenizerFromLocal(files.TokenizerPath, eos)
}

func (o *onnxTicketClassifier) Classify(ctx context.Context, text string) (*domain.Prediction, error) {
	l, err := logger.LoggerFromContext(ctx)
	if err != nil {
		l = logger.GetSlogLogger()
	}

	if o.classifier == nil {
		l.Error("onnxTicketClassifier:Classify - nil classifier")
		return nil, errors.New("nil classifier")
	}

	return o.classifier.Classify(ctx, text)
}

func (o *onnxTicketClassifier) Close(ctx context.Context) error {
	if o.classifier != nil {
		return o.classifier.Close()
	}
	return nil
}
