package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	verbose    bool
	configPath string
	template   string
	provider   string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:          "sanews",
		Short:        "Fill SA News article templates and fit the body to its columns",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := log.InfoLevel
			if flags.verbose {
				level = log.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(os.Stderr, level)))
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose logging")
	pf.StringVar(&flags.configPath, "config", "", "config file (default ./sanews.toml)")
	pf.StringVarP(&flags.template, "template", "t", "templates/sanews.tmpl", "article template file")
	pf.StringVar(&flags.provider, "provider", "", "rewrite provider: anthropic, openai or mock")

	root.AddCommand(newDetectCmd(&flags))
	root.AddCommand(newFillCmd(&flags))
	root.AddCommand(newAutoFitCmd(&flags))
	root.AddCommand(newKeyCmd(&flags))
	root.AddCommand(newServeCmd(&flags))
	return root
}
