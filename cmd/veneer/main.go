package main

import (
	"fmt"
	"os"

	"veneer/internal/config"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// Version will be set during the build process using ldflags
var Version = "(dev) v0.0.0"

var (
	configPath string
	logFile    string
	verbosity  int
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "veneer",
	Short: "Language server for stylesheets, HTML and HTML templates",
	Long: `veneer answers editor requests for CSS, SCSS, Less, PostCSS, HTML and
templated HTML. Without a subcommand it serves the editor over stdio.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			color.NoColor = true
		}
		// glsp and every veneer package log through commonlog
		if logFile != "" {
			commonlog.Configure(verbosity, &logFile)
		} else {
			commonlog.Configure(verbosity, nil)
		}
		return nil
	},
	RunE: runServe,
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Load(nil)
	}
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("config %s: %w", configPath, err)
	}
	return cfg, nil
}

func main() {
	rootCmd.Version = Version

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "logfile", "", "write logs to this file instead of stderr")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "log verbosity (repeat for more)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
