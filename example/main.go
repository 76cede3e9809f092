package main

import (
	"context"
	"log"
	"os"

	"github.com/comfforts/logger"
	"github.com/hankgalt/triage"
	"github.com/hankgalt/triage/pkg/domain"
)

func main() {
	l := logger.GetSlogLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithLogger(ctx, l)

	p := triage.NewPipeline(domain.ONNXClassifierConfig{
		BaseModelID:    domain.DefaultBaseModelID,
		AdapterPath:    "../model",
		HFToken:        os.Getenv("HUGGING_FACE_TOKEN"),
		RuntimeLibPath: os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"),
		Device:         domain.DeviceAuto,
		MaxSeqLen:      512,
	})
	defer p.Close(ctx)

	if _, err := p.Load(ctx); err != nil {
		log.Fatal(err)
	}

	// Classify a single complaint.
	pred, err := p.Classify(ctx, "I tried to pay my bill but the website crashed and now I was charged a late fee.")
	if err != nil {
		log.Fatal(err)
	}

	l.Info("classified complaint", "department", pred.TopLabel, "confidence", pred.Confidence, "band", string(pred.Band))
}
