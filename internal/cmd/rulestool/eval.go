package rulestool

import (
	"fmt"
	"github.com/clambin/go-common/charmer"
	"github.com/clambin/greenhouse-controller/internal/automation"
	"github.com/clambin/greenhouse-controller/internal/rules"
	"github.com/clambin/greenhouse-controller/internal/sensors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"log/slog"
	"strings"
	"time"
)

var (
	EvalCmd = cobra.Command{
		Use:   "eval [rules.yaml|-]",
		Short: "Evaluate the rules against a set of sensor values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := inputFromConfig(viper.GetViper())
			if err != nil {
				return err
			}
			return eval(cmd.OutOrStdout(), cmd.InOrStdin(), rulesFile(viper.GetViper(), args), input)
		},
	}

	evalArgs = charmer.Arguments{
		"eval.temperature": {Default: 20.0, Help: "Indoor temperature"},
		"eval.humidity":    {Default: 60.0, Help: "Indoor humidity"},
		"eval.co2":         {Default: 400.0, Help: "Indoor CO2"},
		"eval.time":        {Default: "", Help: "Time of day (hh:mm). Default is the current time"},
	}
)

func init() {
	_ = charmer.SetPersistentFlags(&EvalCmd, viper.GetViper(), evalArgs)
}

type input struct {
	metrics sensors.Metrics
	now     time.Time
}

func inputFromConfig(v *viper.Viper) (input, error) {
	in := input{
		metrics: sensors.Aggregate([]sensors.Reading{{
			SensorID:    "eval",
			Temperature: v.GetFloat64("eval.temperature"),
			Humidity:    v.GetFloat64("eval.humidity"),
			CO2:         v.GetFloat64("eval.co2"),
		}}),
		now: time.Now(),
	}
	if at := v.GetString("eval.time"); at != "" {
		tod, err := rules.ParseTimeOfDay(at)
		if err != nil {
			return in, fmt.Errorf("invalid time: %w", err)
		}
		in.now = time.Date(in.now.Year(), in.now.Month(), in.now.Day(), tod.Hour, tod.Minutes, tod.Seconds, 0, time.Local)
	}
	return in, nil
}

const formatString = "%-12s %-20s %-6v %-6v %-6v %s\n"

func eval(w io.Writer, stdin io.Reader, filename string, in input) error {
	cfg, err := loadRules(filename, stdin)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, formatString, "DOMAIN", "RULE", "VALID", "ACTIVE", "MATCH", "CONDITIONS")
	for _, domain := range cfg.Domains {
		store, _ := domain.NewStore()
		snapshot := store.Snapshot()
		for _, rule := range snapshot.Rules() {
			params := rules.ParametersFor(rule, in.now, in.metrics, snapshot.Thresholds())
			matched := snapshot.Valid(rule.ID) && rules.EvaluateWith(rule, params)
			_, _ = fmt.Fprintf(w, formatString, domain.Name, rule.ID, snapshot.Valid(rule.ID), rule.Active, matched, describeConditions(rule, params))
		}

		engine := automation.NewEngine(automation.Config{Domain: domain.Name, DefaultRunTime: domain.DefaultRunTime}, slog.New(slog.DiscardHandler))
		commands := engine.Step(in.now, true, in.metrics, snapshot)
		session := engine.Session()
		if session.Status == automation.Running {
			_, _ = fmt.Fprintf(w, "%s: %s would start: %s\n", domain.Name, session.ActiveRuleID, describeCommands(commands))
		} else {
			_, _ = fmt.Fprintf(w, "%s: no rule would start\n", domain.Name)
		}
	}
	return nil
}

func describeConditions(rule rules.Rule, params rules.Parameters) string {
	descriptions := make([]string, len(rule.Conditions))
	for i, c := range rule.Conditions {
		outcome := rules.EvaluateCondition(c, params)
		if !outcome.Resolved {
			descriptions[i] = c.String() + " (unresolved)"
			continue
		}
		descriptions[i] = fmt.Sprintf("%s (%g vs %g): %v", c.String(), outcome.Value, outcome.Threshold, outcome.Matched)
	}
	return strings.Join(descriptions, ", ")
}

func describeCommands(commands []automation.Command) string {
	descriptions := make([]string, len(commands))
	for i, c := range commands {
		descriptions[i] = c.String()
	}
	return strings.Join(descriptions, ", ")
}
