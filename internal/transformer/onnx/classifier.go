package onnx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/comfforts/logger"

	"github.com/hankgalt/triage/pkg/domain"
)

// Tokenizer turns one text into input_ids and attention_mask of at most maxLen tokens.
type Tokenizer interface {
	Encode(text string, maxLen int) ([]int64, []int64, error)
}

// Forwarder runs a single sequence through the model and returns its logits.
type Forwarder interface {
	Forward(ids, mask []int64) ([]float32, error)
	Close() error
}

// Classifier is a loaded tokenizer and model pair bound to a label registry.
type Classifier struct {
	tok       Tokenizer
	model     Forwarder
	labels    *domain.LabelRegistry
	maxSeqLen int

	// one forward pass at a time over the shared session
	mu sync.Mutex
}

func NewClassifier(tok Tokenizer, model Forwarder, labels *domain.LabelRegistry, maxSeqLen int) (*Classifier, error) {
	if tok == nil {
		return nil, fmt.Errorf("nil tokenizer")
	}
	if model == nil {
		return nil, fmt.Errorf("nil model")
	}
	if labels == nil {
		return nil, fmt.Errorf("nil label registry")
	}
	if maxSeqLen <= 0 || maxSeqLen > domain.DefaultMaxSeqLen {
		maxSeqLen = domain.DefaultMaxSeqLen
	}
	return &Classifier{tok: tok, model: model, labels: labels, maxSeqLen: maxSeqLen}, nil
}

// Classify scores text against every label. Callers reject empty text beforehand.
func (c *Classifier) Classify(ctx context.Context, text string) (*domain.Prediction, error) {
	l, err := logger.LoggerFromContext(ctx)
	if err != nil {
		l = logger.GetSlogLogger()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 1) Tokenize
	ids, mask, err := c.tok.Encode(text, c.maxSeqLen)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("text produced no tokens")
	}

	// 2) Forward
	start := time.Now()
	c.mu.Lock()
	logits, err := c.model.Forward(ids, mask)
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}
	if len(logits) != c.labels.Len() {
		l.Warn("Classifier:Classify - logits and labels differ", "logits", len(logits), "labels", c.labels.Len())
	}

	// 3) Probabilities, top class
	pred := domain.NewPrediction(c.labels, Softmax(logits))

	l.Debug("classified complaint",
		"tokens", len(ids),
		"label", pred.TopLabel,
		"confidence", pred.Confidence,
		"duration-ms", time.Since(start).Milliseconds(),
	)
	return pred, nil
}

// Labels returns the registry predictions are resolved against.
func (c *Classifier) Labels() *domain.LabelRegistry {
	return c.labels
}

func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model.Close()
}
