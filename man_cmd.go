package main

import (
	"fmt"
	"io"
	"os"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

var manCmd = &cobra.Command{
	Use:                   "man",
	Short:                 "Generates manpages",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Hidden:                true,
	Args:                  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		return writeManPage(os.Stdout)
	},
}

func writeManPage(w io.Writer) error {
	manPage, err := mcobra.NewManPage(1, rootCmd)
	if err != nil {
		return fmt.Errorf("unable to instantiate man page: %w", err)
	}
	manPage = manPage.WithSection("Configuration",
		"Settings are read from quire.yml in the user config directory, "+
			"or from the directory named by QUIRE_CONFIG_HOME. "+
			"Every setting can also be given as a QUIRE_ environment variable.")
	if _, err := fmt.Fprint(w, manPage.Build(roff.NewDocument())); err != nil {
		return fmt.Errorf("unable to build man page: %w", err)
	}
	return nil
}
