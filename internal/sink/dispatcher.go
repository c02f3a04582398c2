package sink

import (
	"context"
	"github.com/clambin/greenhouse-controller/internal/automation"
	"github.com/prometheus/client_golang/prometheus"
	"log/slog"
	"time"
)

var _ prometheus.Collector = &Dispatcher{}

// Dispatcher decouples the automation engines from the Sink. Send queues commands without blocking; Run applies
// them to the Sink in order.
//
// The Dispatcher does not retry failed commands: while a session is running, the engine re-sends its desired
// state on every tick.
type Dispatcher struct {
	sink     Sink
	logger   *slog.Logger
	queue    chan automation.Command
	timeout  time.Duration
	commands *prometheus.CounterVec
}

func NewDispatcher(sink Sink, queueSize int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sink:    sink,
		logger:  logger,
		queue:   make(chan automation.Command, queueSize),
		timeout: timeout,
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenhouse",
			Subsystem: "sink",
			Name:      "commands_total",
			Help:      "Number of device commands, by outcome",
		}, []string{"group", "state", "result"}),
	}
}

// Send queues the commands. If the queue is full, the command is dropped.
func (d *Dispatcher) Send(commands ...automation.Command) {
	for _, command := range commands {
		select {
		case d.queue <- command:
		default:
			d.logger.Warn("command queue full. command dropped", "command", command)
			d.count(command, "dropped")
		}
	}
}

func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Debug("started")
	defer d.logger.Debug("stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case command := <-d.queue:
			d.apply(ctx, command)
		}
	}
}

func (d *Dispatcher) apply(ctx context.Context, command automation.Command) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := d.sink.Apply(ctx, command); err != nil {
		d.logger.Error("failed to apply command", "command", command, "err", err)
		d.count(command, "failed")
		return
	}
	d.logger.Debug("command applied", "command", command)
	d.count(command, "success")
}

func (d *Dispatcher) count(command automation.Command, result string) {
	d.commands.WithLabelValues(command.Group, command.State.String(), result).Inc()
}

func (d *Dispatcher) Describe(ch chan<- *prometheus.Desc) {
	d.commands.Describe(ch)
}

func (d *Dispatcher) Collect(ch chan<- prometheus.Metric) {
	d.commands.Collect(ch)
}
