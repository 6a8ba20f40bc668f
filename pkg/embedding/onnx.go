package embedding

import (
	"context"
	"sync"

	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
)

// ONNXConfig configures the local ONNX inference provider.
type ONNXConfig struct {
	ModelPath string
	Dimension int
	// Workers bounds the blocking-thread-pool size CPU-bound inference
	// runs on, so it never starves the caller's executor (spec §5).
	Workers int
}

// InferenceFunc runs one forward pass. Production builds wire this to
// an actual ONNX runtime binding; no such binding appears in the
// retrieved example pack (see DESIGN.md), so ONNX provides the
// dispatch-to-blocking-pool shape and a pluggable inference function
// rather than a vendored runtime.
type InferenceFunc func(modelPath, text string, dimension int) ([]float32, error)

// ONNX is the local-inference embedding provider (spec §6). CPU-bound
// inference is dispatched to a small fixed worker pool and awaited, so
// a slow model never blocks unrelated callers indefinitely.
type ONNX struct {
	cfg       ONNXConfig
	infer     InferenceFunc
	semaphore chan struct{}
}

// NewONNX constructs an ONNX provider. infer may be nil, in which case
// a deterministic placeholder (identical in shape to NoOp) is used —
// suitable for tests that exercise the dispatch mechanics without a
// real model file.
func NewONNX(cfg ONNXConfig, infer InferenceFunc) (*ONNX, error) {
	if cfg.ModelPath == "" {
		return nil, mnemoerr.Validation("onnx embedding provider requires a model path")
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 384
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	if infer == nil {
		infer = func(_, text string, dim int) ([]float32, error) {
			return deterministicVector(text, dim), nil
		}
	}
	return &ONNX{cfg: cfg, infer: infer, semaphore: make(chan struct{}, workers)}, nil
}

func (p *ONNX) Dimension() int { return p.cfg.Dimension }

func (p *ONNX) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case p.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.semaphore }()

	type result struct {
		vec []float32
		err error
	}
	done := make(chan result, 1)
	go func() {
		vec, err := p.infer(p.cfg.ModelPath, text, p.cfg.Dimension)
		done <- result{vec: vec, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, mnemoerr.Embedding("onnx inference failed", r.err)
		}
		return r.vec, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *ONNX) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	errs := make([]error, len(texts))
	var wg sync.WaitGroup
	for i, text := range texts {
		i, text := i, text
		wg.Add(1)
		go func() {
			defer wg.Done()
			vec, err := p.Embed(ctx, text)
			out[i] = vec
			errs[i] = err
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
