package rulestool

import (
	"errors"
	"fmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
)

var ValidateCmd = cobra.Command{
	Use:   "validate [rules.yaml|-]",
	Short: "Check a rules file for malformed rules",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validate(cmd.OutOrStdout(), cmd.InOrStdin(), rulesFile(viper.GetViper(), args))
	},
}

var errMalformed = errors.New("rules file contains malformed rules")

func validate(w io.Writer, stdin io.Reader, filename string) error {
	cfg, err := loadRules(filename, stdin)
	if err != nil {
		return err
	}
	var malformed int
	for _, domain := range cfg.Domains {
		store, errs := domain.NewStore()
		_, _ = fmt.Fprintf(w, "%s: %d rules\n", domain.Name, store.Snapshot().Len())
		for _, err = range errs {
			_, _ = fmt.Fprintf(w, "  %s\n", err)
		}
		malformed += len(errs)
	}
	if malformed > 0 {
		return fmt.Errorf("%w: %d", errMalformed, malformed)
	}
	return nil
}
