package graph

import (
	"context"
	"log/slog"

	"github.com/streamcore/rollup/internal/checkpoint"
	"github.com/streamcore/rollup/internal/circuit"
	"github.com/streamcore/rollup/internal/observability"
	"github.com/streamcore/rollup/internal/rollup"
	"github.com/streamcore/rollup/pkg/config"
)

// WireCheckpoint attaches a checkpoint.Store to clock when cfg.Enabled,
// archiving every tick's GC-dropped entries under cfg.Directory in
// batches of cfg.SpillThreshold. Write failures are logged through
// logger rather than surfaced to the caller, since a checkpoint is a
// best-effort side channel: it must never make a tick fail. Returns nil
// (and leaves clock unmodified) when cfg.Enabled is false.
func WireCheckpoint(
	clock *circuit.Clock[string, int64, int64, int64, int64],
	cfg config.CheckpointConfig,
	logger *slog.Logger,
) *checkpoint.Store[string, int64, int64, rollup.Output[int64, int64]] {
	if !cfg.Enabled {
		return nil
	}

	store := checkpoint.NewStore[string, int64, int64, rollup.Output[int64, int64]](
		cfg.Directory, "rollup", cfg.SpillThreshold,
	)

	if logger != nil {
		store.OnError = func(err error) {
			logger.Error("checkpoint spill failed", "error", err)
		}
	}

	clock.SetGCSink(store)

	return store
}

// WireGCMetrics installs om's truncation counters on clock's GC-metrics
// hook, so every watermark-driven GC pass reports how many entries it
// dropped. No-op if om is nil.
func WireGCMetrics(
	clock *circuit.Clock[string, int64, int64, int64, int64],
	om *observability.OperatorMetrics,
) {
	if om == nil {
		return
	}

	clock.SetGCMetrics(func(dropped int) {
		om.RecordGCTruncation(context.Background(), int64(dropped))
	})
}
