package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"interviewroom/internal/bootstrap"
	"interviewroom/internal/usecase"
)

func (c *cli) resubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resubmit",
		Short: "Submit journaled interviews the backend never acknowledged",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := bootstrap.OpenJournal(c.cfg)
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("journal is disabled")
			}
			defer store.Close()

			backend, _, err := bootstrap.NewBackend(c.cfg, c.logger)
			if err != nil {
				return err
			}

			result, err := usecase.ResubmitPending(cmd.Context(), store, backend, c.logger, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, id := range result.Submitted {
				fmt.Fprintf(out, "submitted %s\n", id)
			}
			for id, failure := range result.Failed {
				fmt.Fprintf(out, "failed %s: %v\n", id, failure)
			}
			if len(result.Submitted) == 0 && len(result.Failed) == 0 {
				fmt.Fprintln(out, "Nothing to resubmit.")
			}
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d session(s) still pending", len(result.Failed))
			}
			return nil
		},
	}
}
