package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/quire/measure"
	"github.com/charmbracelet/quire/paginate"
	"github.com/charmbracelet/quire/ui"
	"github.com/charmbracelet/quire/utils"
	"github.com/muesli/gitcha"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	readmeNames = []string{"README.md", "README", "Readme.md", "Readme", "readme.md", "readme"}
	configFile  string
	pager       bool
	style       string
	width       uint
	oracleName  string
	capacity    float64
	epsilon     float64
	lookback    int
	nearlyEmpty int
	render      bool
	showStats   bool
	tui         bool
	mouse       bool

	rootCmd = &cobra.Command{
		Use:   "quire [SOURCE|DIR]",
		Short: "Lay out markdown documents as fixed-height pages",
		Long: paragraph(
			fmt.Sprintf("\nLay out markdown documents as %s, and keep them paginated while you edit.", keyword("fixed-height pages")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// source provides a readable document source.
type source struct {
	reader io.ReadCloser
	path   string
}

// sourceFromArg parses an argument and creates a readable source for it.
func sourceFromArg(arg string) (*source, error) {
	// from stdin
	if arg == "-" {
		return &source{reader: os.Stdin}, nil
	}

	// a directory:
	if len(arg) == 0 {
		// use the current working dir if no argument was supplied
		arg = "."
	}
	st, err := os.Stat(arg)
	if err == nil && st.IsDir() {
		path, err := findDocument(arg)
		if err != nil {
			return nil, err
		}
		r, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		return &source{r, path}, nil
	}

	// a repository README:
	if err != nil {
		if repo, ok := repositoryFromArg(arg); ok {
			return readmeSource(context.Background(), repo)
		}
	}

	// a file:
	r, err := os.Open(arg)
	u, _ := filepath.Abs(arg)
	return &source{r, u}, err
}

// findDocument returns the README of dir, or its first markdown file.
func findDocument(dir string) (string, error) {
	res, err := gitcha.FindFirstFile(dir, append(readmeNames, "*.md"))
	if err != nil || res.Path == "" {
		return "", errors.New("missing markdown source")
	}
	return res.Path, nil
}

func validateOptions(cmd *cobra.Command) error {
	// grab config values from Viper
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")
	pager = viper.GetBool("pager")
	capacity = viper.GetFloat64("capacity")
	epsilon = viper.GetFloat64("epsilon")
	lookback = viper.GetInt("lookback")
	nearlyEmpty = viper.GetInt("nearly-empty")
	oracleName = viper.GetString("oracle")

	cfg := paginate.Config{Capacity: capacity, Epsilon: epsilon, SnapLookback: lookback, NearlyEmpty: nearlyEmpty}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := measure.New(oracleName, 1); err != nil {
		return err
	}

	// validate the glamour style
	style = viper.GetString("style")
	if style != styles.AutoStyle && styles.DefaultStyles[style] == nil {
		style = utils.ExpandPath(style)
		if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("Specified style does not exist: %s", style)
		} else if err != nil {
			return err
		}
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	// We want to use a special no-TTY style, when stdout is not a terminal
	// and there was no specific style passed by arg
	if !isTerminal && !cmd.Flags().Changed("style") {
		style = "notty"
	}

	// Detect terminal width
	if isTerminal && width == 0 && !cmd.Flags().Changed("width") {
		w, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err == nil {
			width = uint(w)
		}

		if width > 120 {
			width = 120
		}
	}
	if width == 0 {
		width = 80
	}
	return nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, err
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

func execute(cmd *cobra.Command, args []string) error {
	// if stdin is a pipe then use stdin for input. note that you can also
	// explicitly use a - to read from stdin.
	if yes, err := stdinIsPipe(); err != nil {
		return err
	} else if yes {
		src := &source{reader: os.Stdin}
		defer src.reader.Close() //nolint:errcheck
		return executeCLI(cmd, src, os.Stdout)
	}

	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}

	if tui {
		if _, ok := repositoryFromArg(arg); ok {
			return errors.New("the TUI needs a local file to edit")
		}
		src, err := sourceFromArg(arg)
		if err != nil {
			return err
		}
		_ = src.reader.Close()
		if src.path == "" {
			return errors.New("the TUI needs a file to edit")
		}
		return runTUI(src.path)
	}
	return executeArg(cmd, arg, os.Stdout)
}

func executeArg(cmd *cobra.Command, arg string, w io.Writer) error {
	// create an io.Reader from the document source in cli-args
	src, err := sourceFromArg(arg)
	if err != nil {
		return err
	}
	defer src.reader.Close() //nolint:errcheck
	return executeCLI(cmd, src, w)
}

func executeCLI(cmd *cobra.Command, src *source, w io.Writer) error {
	b, err := io.ReadAll(src.reader)
	if err != nil {
		return err
	}
	doc := utils.ParseDocument(src.path, b)
	isCode := !utils.IsMarkdownFile(src.path)

	oracle, err := measure.New(oracleName, int(width), utils.GlamourStyle(style, isCode))
	if err != nil {
		return err
	}
	counter := measure.NewCounter(oracle)

	e, err := paginate.NewEngine(paginate.Config{
		Capacity:     capacity,
		Epsilon:      epsilon,
		SnapLookback: lookback,
		NearlyEmpty:  nearlyEmpty,
		Oracle:       counter,
		Logger:       log.Default().WithPrefix("paginate"),
	})
	if err != nil {
		return err
	}
	e.SetDocumentContent(doc)
	log.Debug("Paginated document", "path", src.path, "pages", len(e.Pages()), "degraded", e.Degraded())

	p := printer{
		width:  int(width),
		render: render,
		style:  style,
		isCode: isCode,
	}
	var out strings.Builder
	if err := p.printPages(&out, e.Pages()); err != nil {
		return err
	}
	if showStats {
		p.printStats(&out, e, counter.Calls())
	}

	// display
	if pager || cmd.Flags().Changed("pager") {
		pagerCmd := os.Getenv("PAGER")
		if pagerCmd == "" {
			pagerCmd = "less -r"
		}

		pa := strings.Split(pagerCmd, " ")
		c := exec.Command(pa[0], pa[1:]...) // nolint:gosec
		c.Stdin = strings.NewReader(out.String())
		c.Stdout = os.Stdout
		return c.Run()
	}

	fmt.Fprint(w, out.String()) //nolint: errcheck
	return nil
}

func runTUI(path string) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	cfg.Path = path
	cfg.Capacity = capacity
	cfg.Epsilon = epsilon
	cfg.SnapLookback = lookback
	cfg.NearlyEmpty = nearlyEmpty
	cfg.Oracle = oracleName
	cfg.GlamourMaxWidth = width
	cfg.GlamourStyle = style
	cfg.EnableMouse = mouse

	p, err := ui.NewProgram(cfg)
	if err != nil {
		return err
	}
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().BoolVarP(&pager, "pager", "p", false, "display with pager")
	rootCmd.Flags().StringVarP(&style, "style", "s", styles.AutoStyle, "style name or JSON path")
	rootCmd.Flags().UintVarP(&width, "width", "w", 0, "layout width in cells")
	rootCmd.Flags().StringVarP(&oracleName, "oracle", "o", measure.NameGlamour, "how pages are measured: glamour or wrap")
	rootCmd.Flags().Float64VarP(&capacity, "capacity", "c", 24, "page height in lines")
	rootCmd.Flags().Float64Var(&epsilon, "epsilon", 0, "lines a page may run over before it is split")
	rootCmd.Flags().IntVar(&lookback, "lookback", paginate.DefaultSnapLookback, "characters to look back for a word or sentence break")
	rootCmd.Flags().IntVar(&nearlyEmpty, "nearly-empty", 0, "pages with at most this many characters always merge into the previous page")
	rootCmd.Flags().BoolVarP(&render, "render", "r", false, "render pages with glamour")
	rootCmd.Flags().BoolVar(&showStats, "stats", false, "print pagination statistics")
	rootCmd.Flags().BoolVarP(&tui, "tui", "t", false, "edit the document page by page in the terminal")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel (TUI-mode only)")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("style", rootCmd.Flags().Lookup("style"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))
	_ = viper.BindPFlag("pager", rootCmd.Flags().Lookup("pager"))
	_ = viper.BindPFlag("oracle", rootCmd.Flags().Lookup("oracle"))
	_ = viper.BindPFlag("capacity", rootCmd.Flags().Lookup("capacity"))
	_ = viper.BindPFlag("epsilon", rootCmd.Flags().Lookup("epsilon"))
	_ = viper.BindPFlag("lookback", rootCmd.Flags().Lookup("lookback"))
	_ = viper.BindPFlag("nearly-empty", rootCmd.Flags().Lookup("nearly-empty"))

	viper.SetDefault("style", styles.AutoStyle)
	viper.SetDefault("width", 0)
	viper.SetDefault("oracle", measure.NameGlamour)
	viper.SetDefault("capacity", 24)
	viper.SetDefault("lookback", paginate.DefaultSnapLookback)
	viper.SetDefault("nearly-empty", 0)

	rootCmd.AddCommand(configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "quire")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "quire")}, dirs...)
	}

	if c := os.Getenv("QUIRE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("quire")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("quire")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "quire.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
