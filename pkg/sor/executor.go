package sor

import (
	"errors"
	"fmt"

	"deltastore/pkg/cluster"
	"deltastore/pkg/logger"
	"deltastore/pkg/metrics"
)

// execute issues a mutation batch to the backing store and classifies
// failures. Frame overruns surface from the transport as an opaque
// unknown error; re-measuring the attempted frame is the only way to
// tell them apart from connectivity failures, so callers can distinguish
// "reduce batch size and retry" from "cluster unreachable, retry as-is".
// No retry happens at this layer.
func (w *Writer) execute(mutation *cluster.MutationBatch, format string, args ...any) error {
	if mutation.IsEmpty() {
		return nil
	}
	err := mutation.Apply()
	if err == nil {
		metrics.Flushes.Inc()
		return nil
	}

	op := fmt.Sprintf(format, args...)
	if errors.Is(err, cluster.ErrTransportUnknown) && mutation.FrameSize() >= w.cfg.MaxFrameSize {
		logger.Warn("oversize_frame", "op", op, "frame_size", mutation.FrameSize(), "limit", w.cfg.MaxFrameSize)
		return &FrameSizeError{Op: op, Err: err}
	}
	logger.Error("mutation_failed", "op", op, "error", err)
	return &ExecutionError{Op: op, Err: err}
}
