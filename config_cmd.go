package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
)

const defaultConfig = `# style name or JSON path (default "auto")
style: "auto"
# layout width in cells (0 detects the terminal width)
width: 0
# how pages are measured: "glamour" renders markdown, "wrap" word-wraps plain text
oracle: "glamour"
# page height in lines
capacity: 24
# lines a page may run over before it is split
epsilon: 0
# characters to look back for a word or sentence break
lookback: 100
# pages with at most this many characters always merge into the previous page
nearly-empty: 0
# use pager to display pages
pager: false
# mouse support (TUI-mode only)
mouse: false
`

func defaultConfigFile() string {
	scope := gap.NewScope(gap.User, "quire")
	path, _ := scope.ConfigPath("quire.yml")
	return path
}

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the quire config file",
	Long:    paragraph(fmt.Sprintf("\n%s the quire config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("quire config\nquire config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("quire", configFile)
		if err != nil {
			return err
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return err
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = defaultConfigFile()
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported config type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("could not write config file: %w", err)
		}
		if err := os.WriteFile(configFile, []byte(defaultConfig), 0o600); err != nil {
			return fmt.Errorf("could not write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return err
	}
	return nil
}
