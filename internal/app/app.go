// Package app assembles the greenhouse controller from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"github.com/clambin/go-common/slackbot"
	"github.com/clambin/greenhouse-controller/internal/api"
	"github.com/clambin/greenhouse-controller/internal/bot"
	"github.com/clambin/greenhouse-controller/internal/collector"
	"github.com/clambin/greenhouse-controller/internal/controller"
	"github.com/clambin/greenhouse-controller/internal/controller/notifier"
	"github.com/clambin/greenhouse-controller/internal/health"
	"github.com/clambin/greenhouse-controller/internal/rules"
	"github.com/clambin/greenhouse-controller/internal/sensors"
	"github.com/clambin/greenhouse-controller/internal/sink"
	"github.com/clambin/greenhouse-controller/internal/statepublisher"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// A Task is a long-running component of the application. Run returns when the context is canceled.
type Task interface {
	Run(ctx context.Context) error
}

// New loads the rules and returns all tasks that make up the controller.
func New(cfg *viper.Viper, version string, registry prometheus.Registerer, logger *slog.Logger) ([]Task, error) {
	rulesFile := cfg.GetString("automation.rules")
	if rulesFile == "" {
		rulesFile = filepath.Join(filepath.Dir(cfg.ConfigFileUsed()), "rules.yaml")
	}
	r, err := maybeLoadRules(rulesFile)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}

	var client mqtt.Client
	var hooks connectHooks
	if broker := cfg.GetString("mqtt.broker"); broker != "" {
		if client, err = connectMQTT(broker, cfg.GetString("mqtt.clientID"), hooks.onConnect, logger.With("component", "mqtt")); err != nil {
			return nil, err
		}
	}
	return makeTasks(cfg, client, &hooks, r, version, registry, logger)
}

// Run runs all tasks until the context is canceled or one of the tasks fails.
func Run(ctx context.Context, tasks ...Task) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error { return task.Run(ctx) })
	}
	return g.Wait()
}

func maybeLoadRules(path string) (rules.Configuration, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = nil
		}
		return rules.Configuration{}, err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	return rules.Load(f)
}

// connectHooks calls the registered handlers each time the MQTT client (re)connects to the broker.
type connectHooks struct {
	handlers []mqtt.OnConnectHandler
	lock     sync.Mutex
}

func (h *connectHooks) add(handler mqtt.OnConnectHandler) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.handlers = append(h.handlers, handler)
}

func (h *connectHooks) onConnect(client mqtt.Client) {
	h.lock.Lock()
	handlers := slices.Clone(h.handlers)
	h.lock.Unlock()
	for _, handler := range handlers {
		handler(client)
	}
}

func connectMQTT(broker, clientID string, onConnect mqtt.OnConnectHandler, logger *slog.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("connection to mqtt broker lost", "err", err)
	})
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	logger.Debug("connected to mqtt broker", "broker", broker)
	return client, nil
}

func makeTasks(cfg *viper.Viper, client mqtt.Client, hooks *connectHooks, r rules.Configuration, version string, registry prometheus.Registerer, l *slog.Logger) ([]Task, error) {
	var tasks []Task

	// Sensors
	readings := sensors.NewStore(cfg.GetDuration("sensors.maxAge"))
	if client != nil {
		subscriber := sensors.Subscriber{
			Client: client,
			Store:  readings,
			Topic:  cfg.GetString("mqtt.sensorTopic"),
			Logger: l.With("component", "sensors"),
		}
		hooks.add(subscriber.OnConnect)
		tasks = append(tasks, &subscriber)
	}

	// Command sink
	s, err := makeSink(cfg, client, registry, l.With("component", "sink"))
	if err != nil {
		return nil, err
	}
	dispatcher := sink.NewDispatcher(s, cfg.GetInt("sink.queue"), cfg.GetDuration("sink.timeout"), l.With("component", "dispatcher"))
	registry.MustRegister(dispatcher)
	tasks = append(tasks, dispatcher)

	// Notifiers
	notifiers := notifier.Notifiers{notifier.SLogNotifier{Logger: l.With("component", "notifier")}}
	var b *slackbot.SlackBot
	if token := cfg.GetString("slack.token"); token != "" {
		b = slackbot.New(
			token,
			slackbot.WithName("greenhouse "+version),
			slackbot.WithLogger(l.With(slog.String("component", "slackbot"))),
		)
		tasks = append(tasks, b)
		notifiers = append(notifiers, &notifier.SlackNotifier{Logger: l.With("component", "notifier"), SlackSender: b})
	}

	// Controller
	if len(r.Domains) == 0 {
		l.Warn("no rules found. controller will not switch any devices")
	}
	m, errs := controller.NewManager(r, readings, dispatcher, notifiers, cfg.GetDuration("automation.interval"), cfg.GetBool("automation.autoMode"), l.With("component", "controller"))
	for _, err := range errs {
		l.Warn("malformed rule will not be evaluated", "err", err)
	}
	tasks = append(tasks, m)

	// Collector
	coll := &collector.Collector{Publisher: m, Logger: l.With("component", "collector")}
	registry.MustRegister(coll)
	tasks = append(tasks, coll)

	// Prometheus Server
	tasks = append(tasks, &httpServer{
		server: &http.Server{Addr: cfg.GetString("prometheus.addr"), Handler: promhttp.Handler()},
		logger: l.With("component", "prometheus"),
	})

	// Health & API Endpoints
	h := health.New(m, l.With("component", "health"))
	tasks = append(tasks, h)
	mux := http.NewServeMux()
	mux.Handle("/health", h)
	mux.Handle("/api/", api.New(m, readings, l.With("component", "api")))
	tasks = append(tasks, &httpServer{
		server: &http.Server{Addr: cfg.GetString("api.addr"), Handler: mux},
		logger: l.With("component", "api"),
	})

	// State publisher
	if addr := cfg.GetString("redis.addr"); addr != "" {
		tasks = append(tasks, &statepublisher.StatePublisher{
			Publisher:  m,
			Client:     redis.NewClient(&redis.Options{Addr: addr}),
			Logger:     l.With("component", "statepublisher"),
			Expiration: cfg.GetDuration("redis.expiration"),
		})
	}

	// Slack commands
	if appToken := cfg.GetString("slack.appToken"); appToken != "" && b != nil {
		app := bot.NewApp(cfg.GetString("slack.token"), appToken, l.With("component", "slackapp"))
		tasks = append(tasks, bot.New(app, m, l.With("component", "bot")))
	}

	return tasks, nil
}

func makeSink(cfg *viper.Viper, client mqtt.Client, registry prometheus.Registerer, logger *slog.Logger) (sink.Sink, error) {
	switch sinkType := cfg.GetString("sink.type"); sinkType {
	case "", "log":
		return sink.LogSink{Logger: logger}, nil
	case "mqtt":
		if client == nil {
			return nil, errors.New("mqtt sink requires mqtt.broker")
		}
		return &sink.MQTTSink{Client: client, TopicTemplate: cfg.GetString("mqtt.commandTopic")}, nil
	case "http":
		if cfg.GetString("sink.url") == "" {
			return nil, errors.New("http sink requires sink.url")
		}
		metrics := sink.NewRequestMetrics("greenhouse", "sink", nil)
		registry.MustRegister(metrics)
		return sink.NewHTTPSink(cfg.GetString("sink.url"), metrics), nil
	default:
		return nil, fmt.Errorf("invalid sink type %q", sinkType)
	}
}
