// Package rulestool contains commands to check a rules file without running the controller.
package rulestool

import (
	"fmt"
	"github.com/clambin/greenhouse-controller/internal/rules"
	"github.com/spf13/viper"
	"io"
	"os"
	"path/filepath"
)

// rulesFile returns the rules file to check: the first argument, or the configured rules file.
func rulesFile(v *viper.Viper, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if path := v.GetString("automation.rules"); path != "" {
		return path
	}
	return filepath.Join(filepath.Dir(v.ConfigFileUsed()), "rules.yaml")
}

// loadRules reads a rules configuration. "-" reads from stdin.
func loadRules(filename string, stdin io.Reader) (rules.Configuration, error) {
	r := stdin
	if filename != "-" {
		f, err := os.Open(filename)
		if err != nil {
			return rules.Configuration{}, err
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	cfg, err := rules.Load(r)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", filename, err)
	}
	return cfg, nil
}
