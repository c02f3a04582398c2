package cmd

import (
	"github.com/clambin/go-common/charmer"
	"github.com/clambin/greenhouse-controller/internal/cmd/rulestool"
	"github.com/clambin/greenhouse-controller/internal/cmd/run"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log/slog"
	"os"
	"time"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:   "greenhouse",
		Short: "Rule-based climate controller for greenhouses",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			charmer.SetJSONLogger(cmd, viper.GetBool("debug"))
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file")
	_ = charmer.SetPersistentFlags(&RootCmd, viper.GetViper(), args)

	RootCmd.AddCommand(&run.Cmd, &rulestool.EvalCmd, &rulestool.ValidateCmd)
}

var args = charmer.Arguments{
	"debug":               {Default: false, Help: "Log debug messages"},
	"automation.autoMode": {Default: true, Help: "Enable automation at startup"},
	"automation.interval": {Default: time.Minute, Help: "Interval between rule evaluations"},
	"automation.rules":    {Default: "", Help: "Rules file (default: rules.yaml in the configuration directory)"},
	"sensors.maxAge":      {Default: 5 * time.Minute, Help: "Age after which a sensor reading is ignored"},
	"mqtt.broker":         {Default: "", Help: "MQTT broker URL (e.g. tcp://localhost:1883)"},
	"mqtt.clientID":       {Default: "greenhouse-controller", Help: "MQTT client ID"},
	"mqtt.sensorTopic":    {Default: "greenhouse/sensors/+", Help: "MQTT topic for sensor readings"},
	"mqtt.commandTopic":   {Default: "greenhouse/devices/<group>/set", Help: "MQTT topic for device commands"},
	"sink.type":           {Default: "log", Help: "Where to send device commands (log, mqtt, http)"},
	"sink.url":            {Default: "", Help: "Device gateway URL (http sink)"},
	"sink.timeout":        {Default: 5 * time.Second, Help: "Timeout for a single device command"},
	"sink.queue":          {Default: 64, Help: "Maximum number of pending device commands"},
	"redis.addr":          {Default: "", Help: "Redis address to publish sessions to (optional)"},
	"redis.expiration":    {Default: time.Duration(0), Help: "Expiration of the published sessions"},
	"prometheus.addr":     {Default: ":9090", Help: "Address of Prometheus metrics endpoint"},
	"api.addr":            {Default: ":8080", Help: "Address of the /health and /api endpoints"},
	"slack.token":         {Default: "", Help: "Slack bot token"},
	"slack.appToken":      {Default: "", Help: "Slack app token (enables slash commands)"},
}

func initConfig() {
	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/greenhouse/")
		viper.AddConfigPath("$HOME/.greenhouse")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("GREENHOUSE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFilename != "" {
			slog.Error("failed to read config file", "err", err)
			os.Exit(1)
		}
	}
}
