package automation

import (
	"github.com/clambin/greenhouse-controller/internal/rules"
	"log/slog"
)

// A Command sets a device group to its desired state.
type Command struct {
	Group string            `json:"deviceGroup"`
	State rules.DeviceState `json:"desiredState"`
}

func (c Command) String() string {
	return c.Group + " " + c.State.String()
}

func (c Command) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("group", c.Group),
		slog.String("state", c.State.String()),
	)
}
