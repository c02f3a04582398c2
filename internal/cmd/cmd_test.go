package cmd

import (
	"context"
	"log/slog"
	"testing"

	"github.com/clambin/go-common/charmer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestRootCmd_PersistentPreRun(t *testing.T) {
	for _, debug := range []bool{false, true} {
		viper.Set("debug", debug)
		var cmd cobra.Command
		RootCmd.PersistentPreRun(&cmd, nil)
		l := charmer.GetLogger(&cmd)
		assert.NotSame(t, slog.Default(), l)
		assert.Equal(t, debug, l.Enabled(context.Background(), slog.LevelDebug))
	}
	viper.Set("debug", false)
}
