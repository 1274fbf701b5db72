package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"interviewroom/internal/bootstrap"
	"interviewroom/internal/domain"
	"interviewroom/internal/usecase"
)

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Take an interview in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sink := newTerminalSink(cmd.OutOrStdout())
			services, err := bootstrap.Build(ctx, c.cfg, sink, c.logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := services.Close(); err != nil {
					c.logger.Warn("shutdown failed", "error", err)
				}
			}()

			return c.interview(ctx, services.Controller)
		},
	}
}

func (c *cli) interview(ctx context.Context, controller *usecase.SessionController) error {
	if err := controller.Initialize(ctx); err != nil {
		return err
	}
	if err := controller.Start(ctx); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.stdin)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("interrupted; submitting what was answered")
			return finish(controller)
		case line, ok := <-lines:
			if !ok {
				return finish(controller)
			}
			if strings.EqualFold(line, "q") {
				return finish(controller)
			}
			if err := controller.Advance(ctx); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
				return err
			}
		case <-ticker.C:
		}

		status := controller.Status()
		if status.State == domain.SessionStateComplete {
			return nil
		}
		if status.State == domain.SessionStateError {
			return fmt.Errorf("interview ended with error: %s", status.Reason)
		}
	}
}

func finish(controller *usecase.SessionController) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := controller.Complete(ctx); err != nil {
		return fmt.Errorf("interview not submitted; run `interviewctl resubmit` later: %w", err)
	}
	return nil
}
