package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"interviewroom/internal/bootstrap"
	"interviewroom/internal/config"
)

// cli holds state resolved once before any subcommand runs.
type cli struct {
	v      *viper.Viper
	cfg    config.Config
	logger *log.Logger
	stdin  io.Reader
}

func main() {
	if err := newRootCmd(os.Stdin).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdin io.Reader) *cobra.Command {
	c := &cli{v: config.NewViper(), stdin: stdin}

	root := &cobra.Command{
		Use:          "interviewctl",
		Short:        "Run and manage interview room sessions from the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.loadConfig(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to interviewroom.yaml")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("backend-url", "", "Interview backend base URL, including /api")
	flags.String("interview-id", "", "Interview id to join")
	flags.String("token", "", "Bearer token for the backend")
	flags.String("journal", "", "Path to the local session journal")

	bindings := map[string]string{
		"log.level":            "log-level",
		"backend.base_url":     "backend-url",
		"backend.interview_id": "interview-id",
		"backend.token":        "token",
		"journal.path":         "journal",
	}
	for key, flag := range bindings {
		_ = c.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(c.runCmd())
	root.AddCommand(c.historyCmd())
	root.AddCommand(c.resubmitCmd())
	root.AddCommand(c.devBackendCmd())
	return root
}

func (c *cli) loadConfig(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	if err := config.ReadFile(c.v, path); err != nil {
		return err
	}
	cfg, err := config.Load(c.v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	c.cfg = cfg
	c.logger = bootstrap.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level)
	return nil
}
