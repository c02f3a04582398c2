// Package sink delivers automation commands to the device groups.
package sink

import (
	"context"
	"github.com/clambin/greenhouse-controller/internal/automation"
	"log/slog"
)

// A Sink applies a command to a device group. Applying the same command more than once must be harmless.
type Sink interface {
	Apply(ctx context.Context, command automation.Command) error
}

var _ Sink = LogSink{}

// LogSink logs commands, but does not apply them.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Apply(_ context.Context, command automation.Command) error {
	s.Logger.Info("command", "command", command)
	return nil
}
