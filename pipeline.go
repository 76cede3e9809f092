package triage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/comfforts/logger"

	"github.com/hankgalt/triage/pkg/domain"
)

var errClosed = errors.New("pipeline closed")

// LoadFunc performs the expensive model load.
type LoadFunc func(ctx context.Context) (TicketClassifier, error)

// Pipeline lazily loads a TicketClassifier exactly once and shares it with every caller.
//
// The first Load runs the loader; concurrent Loads wait for it and then receive
// the same classifier or the same error. A failed or panicking load is never retried.
type Pipeline struct {
	load   LoadFunc
	loadMu sync.Mutex

	mu   sync.RWMutex
	done bool
	cl   TicketClassifier
	err  error
}

// NewPipeline returns an unloaded pipeline over the ONNX classifier built from cfg.
func NewPipeline(cfg domain.ONNXClassifierConfig) *Pipeline {
	return NewPipelineWithLoader(func(ctx context.Context) (TicketClassifier, error) {
		return NewONNXTicketClassifier(ctx, cfg)
	})
}

func NewPipelineWithLoader(load LoadFunc) *Pipeline {
	return &Pipeline{load: load}
}

// Load runs the loader on first use and returns the cached outcome afterwards.
func (p *Pipeline) Load(ctx context.Context) (TicketClassifier, error) {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	if cl, ok, err := p.state(); ok {
		return cl, err
	}

	l, lErr := logger.LoggerFromContext(ctx)
	if lErr != nil {
		l = logger.GetSlogLogger()
	}
	l.Info("loading classification model")

	cl, err := p.runLoad(ctx)
	if err != nil {
		if !errors.Is(err, ErrLoad) {
			err = loadErr(StageModel, err)
		}
		cl = nil
		l.Error("Pipeline:Load - model load failed", "error", err.Error())
	} else {
		l.Info("classification model loaded")
	}

	p.mu.Lock()
	p.done, p.cl, p.err = true, cl, err
	p.mu.Unlock()
	return cl, err
}

// runLoad turns a panicking loader into an ordinary load failure.
func (p *Pipeline) runLoad(ctx context.Context) (cl TicketClassifier, err error) {
	defer func() {
		if r := recover(); r != nil {
			cl, err = nil, fmt.Errorf("loader panic: %v", r)
		}
	}()
	return p.load(ctx)
}

// Get returns the loaded classifier without triggering a load.
func (p *Pipeline) Get() (TicketClassifier, error) {
	if cl, ok, err := p.state(); ok {
		return cl, err
	}
	return nil, ErrNotLoaded
}

// Ready is nil once loaded, ErrNotLoaded before that, or the sticky load error.
func (p *Pipeline) Ready() error {
	_, err := p.Get()
	return err
}

// Classify scores text with the loaded classifier. It does not load on demand.
func (p *Pipeline) Classify(ctx context.Context, text string) (*domain.Prediction, error) {
	cl, err := p.Get()
	if err != nil {
		return nil, err
	}
	return cl.Classify(ctx, text)
}

// Close releases the classifier. The pipeline cannot be loaded again.
func (p *Pipeline) Close(ctx context.Context) error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	p.mu.Lock()
	cl := p.cl
	p.done, p.cl, p.err = true, nil, errClosed
	p.mu.Unlock()

	if cl != nil {
		return cl.Close(ctx)
	}
	return nil
}

func (p *Pipeline) state() (TicketClassifier, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cl, p.done, p.err
}
