package bus_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ramiqadoumi/go-pricing-agents/internal/bus"
)

// BenchmarkBus_PublishDispatch measures enqueue plus sequential delivery to two handlers.
func BenchmarkBus_PublishDispatch(b *testing.B) {
	bs := bus.New(bus.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), bus.WithQueueSize(b.N+1))
	noop := func(context.Context, bus.Message) error { return nil }
	bs.Subscribe("t", noop)
	bs.Subscribe("t", noop)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bs.Publish(ctx, "t", i, "bench")
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	bs.Run(cancelled)
}
