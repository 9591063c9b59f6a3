package internal

import (
	"context"
	"io"
	"time"

	"github.com/davidmdm/ansi"
)

type debugKey struct{}

func WithDebugFlag(ctx context.Context, enabled *bool) context.Context {
	return context.WithValue(ctx, debugKey{}, enabled)
}

func Debug(ctx context.Context) ansi.Terminal {
	if enabled, _ := ctx.Value(debugKey{}).(*bool); enabled != nil && *enabled {
		return ansi.Stderr
	}
	return ansi.Terminal{Writer: io.Discard}
}

// DebugTimer reports the start of a named phase and returns a func that
// reports elapsed time when the phase completes.
func DebugTimer(ctx context.Context, name string) func() {
	debug := Debug(ctx)
	start := time.Now()
	debug.Printf("start: %s\n", name)
	return func() {
		debug.Printf("done:  %s (%s)\n\n", name, time.Since(start).Round(time.Millisecond))
	}
}
